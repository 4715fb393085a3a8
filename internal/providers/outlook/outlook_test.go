package outlook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchrelay/internal/providers/token"
)

func TestParseQuery(t *testing.T) {
	cases := []struct {
		in, folder, terms string
	}{
		{"quarterly report", "inbox", "quarterly report"},
		{"in:sent invoice", "sentitems", "invoice"},
		{"IN:SENT invoice", "sentitems", "invoice"},
		{"in:drafts", "drafts", ""},
		{"budget in:archive 2025", "archive", "budget 2025"},
		{"in:inbox", "inbox", ""},
	}
	for _, c := range cases {
		folder, terms := parseQuery(c.in)
		assert.Equal(t, c.folder, folder, "query %q", c.in)
		assert.Equal(t, c.terms, terms, "query %q", c.in)
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("  short  ", 300))
	long := strings.Repeat("a", 400)
	got := snippet(long, 300)
	assert.Len(t, got, 303)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func testProvider(t *testing.T, graph http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/", graph)
	srv := httptest.NewServer(mux)
	p := &Provider{
		userID: "user@contoso.com",
		graph: &graphClient{
			base:   srv.URL,
			tokens: token.NewSource(srv.URL+"/token", url.Values{}, nil, nil),
			httpc:  srv.Client(),
		},
	}
	return p, srv
}

func TestSearchNormalizesMessages(t *testing.T) {
	p, srv := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/users/user@contoso.com/mailFolders/sentitems/messages")
		assert.Equal(t, `"invoice"`, r.URL.Query().Get("$search"))
		assert.Equal(t, "eventual", r.Header.Get("ConsistencyLevel"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"value":[
			{"id":"m1","subject":"Invoice 42","bodyPreview":"attached","webLink":"https://outlook.test/m1"},
			{"id":"m2","subject":"","bodyPreview":""}
		]}`))
	})
	defer srv.Close()

	results, err := p.Search(context.Background(), "in:sent invoice", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "outlook::m1", results[0].ID)
	assert.Equal(t, "Invoice 42", results[0].Title)
	assert.Equal(t, "attached", results[0].Text)
	assert.Equal(t, "https://outlook.test/m1", results[0].URL)
	assert.Equal(t, "(no subject)", results[1].Title)
}

func TestSearchWithoutTermsSkipsConsistency(t *testing.T) {
	p, srv := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("$search"))
		assert.Empty(t, r.Header.Get("ConsistencyLevel"))
		w.Write([]byte(`{"value":[]}`))
	})
	defer srv.Close()

	results, err := p.Search(context.Background(), "in:drafts", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFetchFullBody(t *testing.T) {
	p, srv := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/users/user@contoso.com/messages/m1")
		w.Write([]byte(`{"id":"m1","subject":"Invoice 42","webLink":"https://outlook.test/m1",
			"receivedDateTime":"2025-01-02T03:04:05Z","isRead":true,
			"from":{"emailAddress":{"address":"a@b.c"}},
			"body":{"content":"<p>full body</p>","contentType":"HTML"}}`))
	})
	defer srv.Close()

	rec, err := p.Fetch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "outlook::m1", rec.ID)
	assert.Equal(t, "<p>full body</p>", rec.Text)
	assert.Equal(t, "html", rec.Metadata["contentType"])
	assert.Equal(t, true, rec.Metadata["isRead"])
}

func TestGraphErrorSurfaces(t *testing.T) {
	p, srv := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
	})
	defer srv.Close()

	_, err := p.Search(context.Background(), "x", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
