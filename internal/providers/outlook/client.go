package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"searchrelay/internal/providers/token"
)

type graphClient struct {
	base   string
	tokens *token.Source
	httpc  *http.Client
}

func (c *graphClient) get(ctx context.Context, path string, params url.Values, consistency bool, out any) error {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("graph token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if consistency {
		// Required by Graph whenever $search is present on a messages query.
		req.Header.Set("ConsistencyLevel", "eventual")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
