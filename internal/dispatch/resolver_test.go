package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchrelay/pkg/catalog"
)

func TestResolveUnionsAndDedupes(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore([]string{"a.relay.test", "b.relay.test"})
	user, err := store.CreateUser(ctx, "dev@example.com", "x")
	require.NoError(t, err)

	meta := map[string]string{
		"tenant_id": "t", "graph_client_id": "c", "graph_client_secret": "s", "graph_user_id": "u",
	}
	s1, err := store.CreateSource(ctx, user.ID, catalog.KindOutlook, meta)
	require.NoError(t, err)
	s2, err := store.CreateSource(ctx, user.ID, catalog.KindBox, map[string]string{
		"box_client_id": "c", "box_client_secret": "s", "box_subject_type": "user", "box_subject_id": "1",
	})
	require.NoError(t, err)

	srv, err := store.CreateServer(ctx, user.ID, "primary", []string{s1.ID, s2.ID, s1.ID})
	require.NoError(t, err)

	r := NewResolver(store, testOps())
	sources, err := r.Resolve(ctx, srv.Endpoint)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, s1.ID, sources[0].ID)
	assert.Equal(t, s2.ID, sources[1].ID)
}

func TestResolveUnboundEndpointIsEmpty(t *testing.T) {
	store := catalog.NewMemoryStore([]string{"a.relay.test"})
	r := NewResolver(store, testOps())
	sources, err := r.Resolve(context.Background(), "nothing.relay.test")
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestResolveIncludesTombstonedServers(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore([]string{"a.relay.test"})
	user, err := store.CreateUser(ctx, "dev@example.com", "x")
	require.NoError(t, err)
	src, err := store.CreateSource(ctx, user.ID, catalog.KindBox, map[string]string{
		"box_client_id": "c", "box_client_secret": "s", "box_subject_type": "user", "box_subject_id": "1",
	})
	require.NoError(t, err)
	srv, err := store.CreateServer(ctx, user.ID, "primary", []string{src.ID})
	require.NoError(t, err)
	require.NoError(t, store.DeleteServer(ctx, srv.ID))

	r := NewResolver(store, testOps())
	sources, err := r.Resolve(ctx, srv.Endpoint)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}
