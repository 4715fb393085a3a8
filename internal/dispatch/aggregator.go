package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"searchrelay/internal/oplog"
)

// Aggregator fans search out across providers concurrently. Each invocation
// is isolated: one provider's failure or timeout is logged and excluded,
// never aborting siblings or the overall call.
type Aggregator struct {
	ops     *oplog.Logger
	timeout time.Duration // per-provider ceiling; a slow provider becomes a failure, not a stall
}

func NewAggregator(ops *oplog.Logger, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Aggregator{ops: ops, timeout: timeout}
}

// SearchAll invokes Search on every provider and concatenates partial
// results in provider order (stable, no cross-provider rank normalization).
func (a *Aggregator) SearchAll(ctx context.Context, providers []Provider, query string, limit int) []Result {
	partial := make([][]Result, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p // per-iteration copies; toolchain is pre-1.22 loop semantics
		g.Go(func() error {
			t := a.ops.Start(gctx, oplog.OpSearch, p.Name(), "query", query, "limit", limit)
			cctx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()
			results, err := p.Search(cctx, query, limit)
			if err != nil {
				t.Failed(err)
				return nil // isolated: siblings keep running
			}
			t.Success("results", len(results))
			partial[i] = results
			return nil
		})
	}
	_ = g.Wait()
	var out []Result
	for _, rs := range partial {
		out = append(out, rs...)
	}
	return out
}
