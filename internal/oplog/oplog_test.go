package oplog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"searchrelay/pkg/middleware"
)

type captureSink struct {
	entries []Entry
}

func (c *captureSink) Append(e Entry) { c.entries = append(c.entries, e) }

func TestTimerLifecycle(t *testing.T) {
	sink := &captureSink{}
	l := New(zap.NewNop().Sugar(), sink)
	ctx := middleware.WithCorrelationID(context.Background(), "abc123")

	timer := l.Start(ctx, OpSearch, "Search", "endpoint", "acme.relay.test")
	timer.Success("results", 3)

	require.Len(t, sink.entries, 2)

	start := sink.entries[0]
	assert.Equal(t, StatusStart, start.Status)
	assert.Equal(t, OpSearch, start.Operation)
	assert.Equal(t, "abc123", start.CorrelationID)
	assert.Zero(t, start.ElapsedSec)
	assert.Equal(t, "[SEARCH] Search | START | correlation_id=abc123 endpoint=acme.relay.test", start.Text)

	done := sink.entries[1]
	assert.Equal(t, StatusSuccess, done.Status)
	assert.GreaterOrEqual(t, done.ElapsedSec, 0.0)
	assert.Equal(t, 3, done.Metadata["results"])
}

func TestTimerFailedCarriesError(t *testing.T) {
	sink := &captureSink{}
	l := New(zap.NewNop().Sugar(), sink)

	timer := l.Start(context.Background(), OpFetch, "Fetch")
	timer.Failed(errors.New("upstream 503"), "provider", "box")

	require.Len(t, sink.entries, 2)
	done := sink.entries[1]
	assert.Equal(t, StatusFailed, done.Status)
	assert.Equal(t, "upstream 503", done.Metadata["error"])
	assert.Contains(t, done.Text, `error="upstream 503"`)
	assert.Contains(t, done.Text, "provider=box")
}

func TestWarnStandsAlone(t *testing.T) {
	sink := &captureSink{}
	l := New(zap.NewNop().Sugar(), sink)

	l.Warn(context.Background(), OpBuild, "factory", "incomplete credentials", "source_id", "s1")

	require.Len(t, sink.entries, 1)
	e := sink.entries[0]
	assert.Equal(t, StatusWarning, e.Status)
	assert.Equal(t, "WARN", e.Level)
	assert.Contains(t, e.Text, "[BUILD] factory | WARNING |")
	assert.Contains(t, e.Text, `warning="incomplete credentials"`)
}

func TestNilSinkIsSafe(t *testing.T) {
	l := New(zap.NewNop().Sugar(), nil)
	timer := l.Start(context.Background(), OpRoute, "Route")
	timer.Success()
}

func TestSinkDropsWhenFull(t *testing.T) {
	// no worker draining: a full queue must drop, not block
	s := &PGSink{queue: make(chan Entry, 1)}
	s.Append(Entry{Text: "a"})
	s.Append(Entry{Text: "b"})
	s.Append(Entry{Text: "c"})
	assert.Equal(t, int64(2), s.Dropped())
	assert.Len(t, s.queue, 1)
}

func TestKVString(t *testing.T) {
	s := kvString(map[string]any{"b": 2, "a": "one two", "c": true})
	assert.Equal(t, `a="one two" b=2 c=true`, s)
}
