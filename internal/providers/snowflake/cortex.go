package snowflake

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"
)

const (
	agentPath      = "/api/v2/cortex/agent:run"
	statementsPath = "/api/v2/statements"
	patTokenType   = "PROGRAMMATIC_ACCESS_TOKEN"
)

// cortexClient speaks the Cortex agent endpoint, which streams its answer as
// server-sent events, and the statements endpoint for plain SQL.
type cortexClient struct {
	accountURL    string
	pat           string
	semanticModel string
	searchService string
	httpc         *http.Client
}

func newCortexClient(accountURL, pat, semanticModel, searchService string) *cortexClient {
	return &cortexClient{
		accountURL:    accountURL,
		pat:           pat,
		semanticModel: semanticModel,
		searchService: searchService,
		httpc:         &http.Client{Timeout: 2 * time.Minute},
	}
}

// answer is the accumulated content of one agent run.
type answer struct {
	Text      string
	SQL       string
	Citations []map[string]any
}

func (c *cortexClient) run(ctx context.Context, query, requestID string) (answer, error) {
	payload := map[string]any{
		"model": "llama3.1-70b",
		"messages": []map[string]any{
			{"role": "user", "content": []map[string]any{{"type": "text", "text": query}}},
		},
		"tools": []map[string]any{
			{"tool_spec": map[string]any{"type": "cortex_analyst_text_to_sql", "name": "analyst1"}},
			{"tool_spec": map[string]any{"type": "cortex_search", "name": "search1"}},
		},
		"tool_resources": map[string]any{
			"analyst1": map[string]any{"semantic_model_file": c.semanticModel},
			"search1":  map[string]any{"name": c.searchService},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return answer{}, err
	}
	u := fmt.Sprintf("%s%s?requestId=%s", c.accountURL, agentPath, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return answer{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.pat)
	req.Header.Set("X-Snowflake-Authorization-Token-Type", patTokenType)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return answer{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return answer{}, fmt.Errorf("cortex agent: status %d: %s", resp.StatusCode, string(msg))
	}
	return parseEventStream(resp.Body)
}

// parseEventStream accumulates the streamed deltas into a single answer.
// Each "data:" line carries a JSON chunk with a delta.content list whose
// entries are text fragments or tool results holding SQL and citations.
func parseEventStream(r io.Reader) (answer, error) {
	var (
		ans  answer
		text strings.Builder
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if raw == "" || raw == "[DONE]" {
			continue
		}
		var chunk any
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			continue
		}
		if frag, _ := jmespath.Search("delta.content[?type=='text'].text", chunk); frag != nil {
			list, _ := frag.([]any)
			for _, f := range list {
				if s, ok := f.(string); ok {
					text.WriteString(s)
				}
			}
		}
		if sql, _ := jmespath.Search(
			"delta.content[?type=='tool_results'].tool_results.content[].json.sql | [0]", chunk,
		); sql != nil {
			if s, ok := sql.(string); ok && s != "" {
				ans.SQL = s
			}
		}
		if cites, _ := jmespath.Search(
			"delta.content[?type=='tool_results'].tool_results.content[].json.searchResults[] | []", chunk,
		); cites != nil {
			list, _ := cites.([]any)
			for _, c := range list {
				if m, ok := c.(map[string]any); ok {
					ans.Citations = append(ans.Citations, m)
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return answer{}, fmt.Errorf("read event stream: %w", err)
	}
	ans.Text = strings.TrimSpace(text.String())
	return ans, nil
}

// execute runs one SQL statement and returns the rows as column-name maps.
func (c *cortexClient) execute(ctx context.Context, sql string) ([]map[string]any, error) {
	body, err := json.Marshal(map[string]any{"statement": sql, "timeout": 60})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountURL+statementsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.pat)
	req.Header.Set("X-Snowflake-Authorization-Token-Type", patTokenType)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("statements: status %d: %s", resp.StatusCode, string(msg))
	}
	var out struct {
		ResultSetMetaData struct {
			RowType []struct {
				Name string `json:"name"`
			} `json:"rowType"`
		} `json:"resultSetMetaData"`
		Data [][]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(out.Data))
	for _, raw := range out.Data {
		row := make(map[string]any, len(raw))
		for i, v := range raw {
			if i < len(out.ResultSetMetaData.RowType) {
				row[out.ResultSetMetaData.RowType[i].Name] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
