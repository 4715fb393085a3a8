package dispatch

import (
	"context"

	"searchrelay/internal/oplog"
	"searchrelay/pkg/catalog"
)

// Resolver turns a tenant endpoint into the set of sources bound to it.
type Resolver struct {
	store catalog.Store
	ops   *oplog.Logger
}

func NewResolver(store catalog.Store, ops *oplog.Logger) *Resolver {
	return &Resolver{store: store, ops: ops}
}

// Resolve collects the union of sources referenced by every server whose
// endpoint matches, deduplicated, in first-reference order. Soft-deleted
// servers participate: tombstoning governs CRUD visibility, not routing.
// No bindings is not an error; the result is simply empty.
func (r *Resolver) Resolve(ctx context.Context, endpoint string) ([]catalog.Source, error) {
	t := r.ops.Start(ctx, oplog.OpResolve, "endpoint", "endpoint", endpoint)
	servers, err := r.store.ServersByEndpoint(ctx, endpoint)
	if err != nil {
		t.Failed(err)
		return nil, err
	}
	seen := map[string]bool{}
	var ids []string
	for _, srv := range servers {
		for _, id := range srv.SourceIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sources, err := r.store.SourcesByIDs(ctx, ids)
	if err != nil {
		t.Failed(err)
		return nil, err
	}
	t.Success("servers", len(servers), "sources", len(sources))
	return sources, nil
}
