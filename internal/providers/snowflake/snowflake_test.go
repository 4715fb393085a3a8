package snowflake

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentStream = `event: message.delta
data: {"delta":{"content":[{"type":"text","text":"Revenue was "}]}}

data: {"delta":{"content":[{"type":"text","text":"$1.2M."}]}}

data: {"delta":{"content":[{"type":"tool_results","tool_results":{"content":[{"json":{"sql":"SELECT SUM(amount) FROM sales","searchResults":[{"doc_id":"d1","text":"sales memo"}]}}]}}]}}

data: [DONE]
`

func TestParseEventStream(t *testing.T) {
	ans, err := parseEventStream(strings.NewReader(agentStream))
	require.NoError(t, err)
	assert.Equal(t, "Revenue was $1.2M.", ans.Text)
	assert.Equal(t, "SELECT SUM(amount) FROM sales", ans.SQL)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, "d1", ans.Citations[0]["doc_id"])
}

func TestParseEventStreamIgnoresGarbage(t *testing.T) {
	ans, err := parseEventStream(strings.NewReader("data: not-json\n\ndata: {\"delta\":{\"content\":[{\"type\":\"text\",\"text\":\"ok\"}]}}\n"))
	require.NoError(t, err)
	assert.Equal(t, "ok", ans.Text)
}

func newTestProvider(handler http.Handler) (*Provider, *httptest.Server) {
	srv := httptest.NewServer(handler)
	p := New(map[string]string{
		"snowflake_account_url":           srv.URL,
		"snowflake_pat":                   "pat-123",
		"snowflake_semantic_model_file":   "@db.schema.stage/model.yaml",
		"snowflake_cortex_search_service": "db.schema.svc",
	})
	return p, srv
}

func TestSearchReturnsSingleResult(t *testing.T) {
	p, srv := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, agentPath, r.URL.Path)
		assert.Equal(t, "Bearer pat-123", r.Header.Get("Authorization"))
		assert.Equal(t, patTokenType, r.Header.Get("X-Snowflake-Authorization-Token-Type"))
		assert.NotEmpty(t, r.URL.Query().Get("requestId"))
		w.Write([]byte(`data: {"delta":{"content":[{"type":"text","text":"42 orders last week"}]}}` + "\n"))
	}))
	defer srv.Close()

	results, err := p.Search(context.Background(), "orders last week", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "snowflake::orders last week", results[0].ID)
	assert.Equal(t, "42 orders last week", results[0].Text)
}

func TestFetchExecutesGeneratedSQL(t *testing.T) {
	p, srv := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case agentPath:
			w.Write([]byte(agentStream))
		case statementsPath:
			w.Write([]byte(`{"resultSetMetaData":{"rowType":[{"name":"TOTAL"}]},"data":[["1200000"]]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	rec, err := p.Fetch(context.Background(), "total revenue")
	require.NoError(t, err)
	assert.Equal(t, "snowflake::total revenue", rec.ID)
	assert.Equal(t, "Revenue was $1.2M.", rec.Text)
	assert.Equal(t, "SELECT SUM(amount) FROM sales", rec.Metadata["sql"])
	rows, ok := rec.Metadata["rows"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "1200000", rows[0]["TOTAL"])
	assert.Len(t, rec.Metadata["citations"], 1)
}

func TestAgentErrorSurfaces(t *testing.T) {
	p, srv := newTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := p.Search(context.Background(), "x", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSnippetLine(t *testing.T) {
	assert.Equal(t, "a b", snippetLine("a\n  b", 80))
	assert.Equal(t, strings.Repeat("x", 10)+"...", snippetLine(strings.Repeat("x", 50), 10))
}
