// Package outlook implements the email provider capability over Microsoft
// Graph with application permissions.
package outlook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"searchrelay/internal/dispatch"
	"searchrelay/internal/providers/token"
	"searchrelay/pkg/catalog"
)

const (
	graphBase    = "https://graph.microsoft.com/v1.0"
	graphScope   = "https://graph.microsoft.com/.default"
	loginBaseFmt = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// folderAliases maps query tokens like "in:sent" to Graph mail folder names.
var folderAliases = map[string]string{
	"in:inbox":     "inbox",
	"in:sent":      "sentitems",
	"in:sentitems": "sentitems",
	"in:drafts":    "drafts",
	"in:archive":   "archive",
}

// Builder adapts the provider constructor to the factory contract.
func Builder(rdb *redis.Client) dispatch.Builder {
	return func(metadata map[string]string) (dispatch.Provider, error) {
		return New(metadata, rdb)
	}
}

type Provider struct {
	userID string
	graph  *graphClient
}

func New(metadata map[string]string, rdb *redis.Client) (*Provider, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {metadata["graph_client_id"]},
		"client_secret": {metadata["graph_client_secret"]},
		"scope":         {graphScope},
	}
	tokenURL := fmt.Sprintf(loginBaseFmt, metadata["tenant_id"])
	return &Provider{
		userID: metadata["graph_user_id"],
		graph: &graphClient{
			base:   graphBase,
			tokens: token.NewSource(tokenURL, form, nil, rdb),
			httpc:  &http.Client{},
		},
	}, nil
}

func (p *Provider) Kind() catalog.SourceKind { return catalog.KindOutlook }
func (p *Provider) Name() string             { return "outlook" }

func (p *Provider) Search(ctx context.Context, query string, limit int) ([]dispatch.Result, error) {
	folder, terms := parseQuery(query)
	params := url.Values{
		"$top":    {strconv.Itoa(limit)},
		"$select": {"id,subject,from,receivedDateTime,isRead,webLink,bodyPreview"},
	}
	consistency := false
	if terms != "" {
		params.Set("$search", `"`+terms+`"`)
		consistency = true
	}
	var page struct {
		Value []message `json:"value"`
	}
	path := fmt.Sprintf("/users/%s/mailFolders/%s/messages", p.userID, folder)
	if err := p.graph.get(ctx, path, params, consistency, &page); err != nil {
		return nil, err
	}
	results := make([]dispatch.Result, 0, len(page.Value))
	for _, m := range page.Value {
		results = append(results, dispatch.Result{
			ID:    dispatch.MakeID(catalog.KindOutlook, m.ID),
			Title: m.subject(),
			Text:  snippet(m.BodyPreview, 300),
			URL:   m.WebLink,
		})
	}
	return results, nil
}

func (p *Provider) Fetch(ctx context.Context, nativeID string) (dispatch.Record, error) {
	params := url.Values{"$select": {"id,subject,from,receivedDateTime,isRead,webLink,body,bodyPreview"}}
	var m message
	if err := p.graph.get(ctx, fmt.Sprintf("/users/%s/messages/%s", p.userID, nativeID), params, false, &m); err != nil {
		return dispatch.Record{}, err
	}
	content := m.Body.Content
	if content == "" {
		content = m.BodyPreview
	}
	return dispatch.Record{
		ID:    dispatch.MakeID(catalog.KindOutlook, m.ID),
		Title: m.subject(),
		Text:  content,
		URL:   m.WebLink,
		Metadata: map[string]any{
			"from":             m.From,
			"receivedDateTime": m.ReceivedDateTime,
			"isRead":           m.IsRead,
			"contentType":      strings.ToLower(m.Body.ContentType),
		},
	}, nil
}

type message struct {
	ID               string         `json:"id"`
	Subject          string         `json:"subject"`
	BodyPreview      string         `json:"bodyPreview"`
	WebLink          string         `json:"webLink"`
	ReceivedDateTime string         `json:"receivedDateTime"`
	IsRead           bool           `json:"isRead"`
	From             map[string]any `json:"from"`
	Body             struct {
		Content     string `json:"content"`
		ContentType string `json:"contentType"`
	} `json:"body"`
}

func (m message) subject() string {
	if m.Subject == "" {
		return "(no subject)"
	}
	return m.Subject
}

// parseQuery strips folder alias tokens from the query, returning the
// target folder and the remaining search terms.
func parseQuery(query string) (folder, terms string) {
	folder = "inbox"
	var kept []string
	for _, part := range strings.Fields(query) {
		if f, ok := folderAliases[strings.ToLower(part)]; ok {
			folder = f
			continue
		}
		kept = append(kept, part)
	}
	return folder, strings.Join(kept, " ")
}

func snippet(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
