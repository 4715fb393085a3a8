// Package gateway composes endpoint resolution, handler construction and
// provider dispatch behind the public search and fetch operations.
package gateway

import (
	"context"
	"time"

	"searchrelay/internal/dispatch"
	"searchrelay/internal/oplog"
	"searchrelay/pkg/catalog"
)

type Service struct {
	resolver *dispatch.Resolver
	factory  *dispatch.Factory
	cache    *dispatch.Cache
	agg      *dispatch.Aggregator
	ops      *oplog.Logger
	limit    int
	timeout  time.Duration
}

func NewService(resolver *dispatch.Resolver, factory *dispatch.Factory, cache *dispatch.Cache, agg *dispatch.Aggregator, ops *oplog.Logger, limit int, timeout time.Duration) *Service {
	if limit <= 0 {
		limit = 10
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Service{resolver: resolver, factory: factory, cache: cache, agg: agg, ops: ops, limit: limit, timeout: timeout}
}

// handlers returns the provider set for the endpoint, consulting the cache
// keyed on endpoint plus a fingerprint of the bound sources so credential
// edits take effect without waiting out the TTL.
func (s *Service) handlers(ctx context.Context, endpoint string) ([]dispatch.Provider, error) {
	sources, err := s.resolver.Resolve(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	fp := dispatch.Fingerprint(sources)
	if providers, ok := s.cache.Get(endpoint, fp); ok {
		return providers, nil
	}
	providers := s.factory.Build(ctx, sources)
	s.cache.Put(endpoint, fp, providers)
	return providers, nil
}

// Search fans the query out to every provider bound to the endpoint and
// returns the concatenated results. An endpoint with no bound sources gets
// an empty slice, not an error. limit is per provider; zero or negative
// takes the configured default.
func (s *Service) Search(ctx context.Context, endpoint, query string, limit int) ([]dispatch.Result, error) {
	if limit <= 0 || limit > 100 {
		limit = s.limit
	}
	t := s.ops.Start(ctx, oplog.OpSearch, "Search", "endpoint", endpoint, "query_len", len(query), "limit", limit)
	providers, err := s.handlers(ctx, endpoint)
	if err != nil {
		t.Failed(err)
		return nil, err
	}
	results := s.agg.SearchAll(ctx, providers, query, limit)
	t.Success("providers", len(providers), "results", len(results))
	return results, nil
}

// Fetch routes the wire identifier to the owning provider by prefix.
func (s *Service) Fetch(ctx context.Context, endpoint, id string) (dispatch.Record, error) {
	t := s.ops.Start(ctx, oplog.OpFetch, "Fetch", "endpoint", endpoint, "id", id)
	providers, err := s.handlers(ctx, endpoint)
	if err != nil {
		t.Failed(err)
		return dispatch.Record{}, err
	}
	provider, nativeID, err := dispatch.Route(id, providers)
	if err != nil {
		t.Failed(err)
		return dispatch.Record{}, err
	}
	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := provider.Fetch(fctx, nativeID)
	if err != nil {
		t.Failed(err, "provider", provider.Name())
		return dispatch.Record{}, err
	}
	t.Success("provider", provider.Name())
	return rec, nil
}

// Checks reports which provider kinds are live for the endpoint, for
// operators verifying a tenant's wiring without running a search.
func (s *Service) Checks(ctx context.Context, endpoint string) (map[string]int, error) {
	providers, err := s.handlers(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, k := range []catalog.SourceKind{catalog.KindOutlook, catalog.KindSnowflake, catalog.KindBox} {
		counts[string(k)] = 0
	}
	for _, p := range providers {
		counts[string(p.Kind())]++
	}
	return counts, nil
}

// Invalidate drops the cached handler set for an endpoint. Routine
// credential changes are picked up by the fingerprint check in handlers;
// this is for embedders that run the admin surface in the same process.
func (s *Service) Invalidate(endpoint string) { s.cache.Invalidate(endpoint) }
