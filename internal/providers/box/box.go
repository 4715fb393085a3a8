// Package box implements the file provider capability over the Box content
// API using a client-credentials grant scoped to an enterprise or user.
package box

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"
	"github.com/redis/go-redis/v9"

	"searchrelay/internal/dispatch"
	"searchrelay/internal/oplog"
	"searchrelay/internal/providers/token"
	"searchrelay/pkg/catalog"
)

const (
	apiBase  = "https://api.box.com"
	tokenURL = "https://api.box.com/oauth2/token"
	repHints = "[extracted_text]"
)

// Builder adapts the provider constructor to the factory contract.
func Builder(rdb *redis.Client, ops *oplog.Logger) dispatch.Builder {
	return func(metadata map[string]string) (dispatch.Provider, error) {
		return New(metadata, rdb, ops), nil
	}
}

type Provider struct {
	base   string
	tokens *token.Source
	httpc  *http.Client
	ops    *oplog.Logger
}

func New(metadata map[string]string, rdb *redis.Client, ops *oplog.Logger) *Provider {
	form := url.Values{
		"grant_type":       {"client_credentials"},
		"client_id":        {metadata["box_client_id"]},
		"client_secret":    {metadata["box_client_secret"]},
		"box_subject_type": {metadata["box_subject_type"]},
		"box_subject_id":   {metadata["box_subject_id"]},
	}
	return &Provider{
		base:   apiBase,
		tokens: token.NewSource(tokenURL, form, nil, rdb),
		httpc:  &http.Client{},
		ops:    ops,
	}
}

func (p *Provider) Kind() catalog.SourceKind { return catalog.KindBox }
func (p *Provider) Name() string             { return "box" }

func (p *Provider) Search(ctx context.Context, query string, limit int) ([]dispatch.Result, error) {
	params := url.Values{
		"query": {query},
		"limit": {strconv.Itoa(limit)},
		"type":  {"file"},
	}
	var page struct {
		Entries []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"entries"`
	}
	if err := p.getJSON(ctx, "/2.0/search?"+params.Encode(), nil, &page); err != nil {
		return nil, err
	}
	results := make([]dispatch.Result, 0, len(page.Entries))
	for _, e := range page.Entries {
		results = append(results, dispatch.Result{
			ID:    dispatch.MakeID(catalog.KindBox, e.ID),
			Title: e.Name,
			Text:  e.Description,
			URL:   fmt.Sprintf("https://app.box.com/file/%s", e.ID),
		})
	}
	return results, nil
}

// Fetch retrieves file details plus the extracted-text representation when
// Box has one ready.
func (p *Provider) Fetch(ctx context.Context, nativeID string) (dispatch.Record, error) {
	var file map[string]any
	path := fmt.Sprintf("/2.0/files/%s?fields=id,name,description,size,modified_at,representations", url.PathEscape(nativeID))
	if err := p.getJSON(ctx, path, map[string]string{"x-rep-hints": repHints}, &file); err != nil {
		return dispatch.Record{}, err
	}
	name, _ := jmespath.Search("name", file)
	desc, _ := jmespath.Search("description", file)
	rec := dispatch.Record{
		ID:    dispatch.MakeID(catalog.KindBox, nativeID),
		Title: str(name),
		URL:   fmt.Sprintf("https://app.box.com/file/%s", nativeID),
		Metadata: map[string]any{
			"size":        file["size"],
			"modified_at": file["modified_at"],
		},
	}
	contentURL, _ := jmespath.Search(
		"representations.entries[?representation=='extracted_text'].content.url_template | [0]", file,
	)
	if tpl := str(contentURL); tpl != "" {
		// Extracted text is best effort: Box may still be generating the
		// representation, so a failure here degrades to the description.
		text, err := p.getText(ctx, tpl)
		if err != nil {
			p.ops.Warn(ctx, oplog.OpFetch, "Fetch", "extracted text unavailable",
				"file_id", nativeID, "error", err.Error())
		}
		rec.Text = text
	}
	if rec.Text == "" {
		rec.Text = str(desc)
	}
	return rec, nil
}

func (p *Provider) getJSON(ctx context.Context, path string, headers map[string]string, out any) error {
	resp, err := p.do(ctx, p.base+path, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// getText downloads the extracted-text representation. The url_template is
// usually an absolute download URL on dl.boxcloud.com, not the API host.
func (p *Provider) getText(ctx context.Context, tpl string) (string, error) {
	rawURL := strings.ReplaceAll(tpl, "{+asset_path}", "")
	if strings.HasPrefix(rawURL, "/") {
		rawURL = p.base + rawURL
	}
	resp, err := p.do(ctx, rawURL, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return string(body), err
}

func (p *Provider) do(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	tok, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("box token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("box %s: status %d: %s", rawURL, resp.StatusCode, string(body))
	}
	return resp, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
