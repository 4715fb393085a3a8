// Package snowflake implements the warehouse provider capability over the
// Snowflake Cortex agent and SQL statement APIs.
package snowflake

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"searchrelay/internal/dispatch"
	"searchrelay/pkg/catalog"
)

// Builder adapts the provider constructor to the factory contract.
func Builder() dispatch.Builder {
	return func(metadata map[string]string) (dispatch.Provider, error) {
		return New(metadata), nil
	}
}

type Provider struct {
	client *cortexClient
}

func New(metadata map[string]string) *Provider {
	return &Provider{
		client: newCortexClient(
			strings.TrimRight(metadata["snowflake_account_url"], "/"),
			metadata["snowflake_pat"],
			metadata["snowflake_semantic_model_file"],
			metadata["snowflake_cortex_search_service"],
		),
	}
}

func (p *Provider) Kind() catalog.SourceKind { return catalog.KindSnowflake }
func (p *Provider) Name() string             { return "snowflake" }

// Search runs the agent once and returns a single result carrying the
// answer. The wire identifier embeds the original query so Fetch can re-run
// it for the full record.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]dispatch.Result, error) {
	ans, err := p.client.run(ctx, query, uuid.NewString())
	if err != nil {
		return nil, err
	}
	return []dispatch.Result{{
		ID:    dispatch.MakeID(catalog.KindSnowflake, query),
		Title: fmt.Sprintf("Cortex answer: %s", snippetLine(query, 80)),
		Text:  snippetLine(ans.Text, 300),
	}}, nil
}

// Fetch treats the native identifier as the query, re-running the agent and
// executing any generated SQL so the record carries the full rowset.
func (p *Provider) Fetch(ctx context.Context, nativeID string) (dispatch.Record, error) {
	ans, err := p.client.run(ctx, nativeID, uuid.NewString())
	if err != nil {
		return dispatch.Record{}, err
	}
	rec := dispatch.Record{
		ID:       dispatch.MakeID(catalog.KindSnowflake, nativeID),
		Title:    fmt.Sprintf("Cortex answer: %s", snippetLine(nativeID, 80)),
		Text:     ans.Text,
		Metadata: map[string]any{},
	}
	if len(ans.Citations) > 0 {
		rec.Metadata["citations"] = ans.Citations
	}
	if ans.SQL != "" {
		rec.Metadata["sql"] = ans.SQL
		rows, err := p.client.execute(ctx, ans.SQL)
		if err != nil {
			return dispatch.Record{}, fmt.Errorf("execute generated sql: %w", err)
		}
		rec.Metadata["rows"] = rows
	}
	return rec, nil
}

func snippetLine(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
