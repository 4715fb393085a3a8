package dispatch

import (
	"context"

	"searchrelay/internal/oplog"
	"searchrelay/pkg/catalog"
)

// Builder constructs a live provider from a validated credential bundle.
// Builders must not perform network I/O; token acquisition is deferred to
// first use inside the provider.
type Builder func(metadata map[string]string) (Provider, error)

// Factory dispatches source kinds to registered builders. Incomplete or
// unbuildable bundles are skipped with a warning, never aborting the batch.
type Factory struct {
	builders map[catalog.SourceKind]Builder
	ops      *oplog.Logger
}

func NewFactory(ops *oplog.Logger) *Factory {
	return &Factory{builders: map[catalog.SourceKind]Builder{}, ops: ops}
}

func (f *Factory) Register(kind catalog.SourceKind, b Builder) {
	f.builders[kind] = b
}

// Build turns sources into live providers. Output order follows input order
// but callers must not rely on it: skipped bindings shift positions.
func (f *Factory) Build(ctx context.Context, sources []catalog.Source) []Provider {
	t := f.ops.Start(ctx, oplog.OpBuild, "factory", "sources", len(sources))
	out := make([]Provider, 0, len(sources))
	for _, src := range sources {
		b, ok := f.builders[src.Kind]
		if !ok {
			f.ops.Warn(ctx, oplog.OpBuild, "factory", "no builder for source type", "source_id", src.ID, "type", string(src.Kind))
			continue
		}
		if err := catalog.ValidateMetadata(src.Kind, src.Metadata); err != nil {
			f.ops.Warn(ctx, oplog.OpBuild, "factory", "incomplete credentials, binding skipped", "source_id", src.ID, "type", string(src.Kind), "reason", err.Error())
			continue
		}
		p, err := b(src.Metadata)
		if err != nil {
			f.ops.Warn(ctx, oplog.OpBuild, "factory", "handler construction failed, binding skipped", "source_id", src.ID, "type", string(src.Kind), "reason", err.Error())
			continue
		}
		out = append(out, p)
	}
	t.Success("handlers", len(out), "skipped", len(sources)-len(out))
	return out
}
