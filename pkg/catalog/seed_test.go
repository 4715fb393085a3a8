package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seedYAML = `
users:
  - email: dev@example.com
    password_hash: "$2a$10$fakehashfakehashfakehash"
    sources:
      - type: box
        metadata:
          box_client_id: c
          box_client_secret: s
          box_subject_type: user
          box_subject_id: "1"
      - type: snowflake
        metadata:
          snowflake_account_url: https://acct.snowflakecomputing.com
    servers:
      - name: primary
        sources: [0, 1]
`

func TestSeedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	ctx := context.Background()
	store := NewMemoryStore([]string{"a.relay.test"})
	require.NoError(t, SeedFromFile(ctx, store, path, zap.NewNop().Sugar()))

	user, err := store.UserByEmail(ctx, "dev@example.com")
	require.NoError(t, err)

	// the snowflake entry is incomplete and must be skipped, not fatal
	sources, err := store.SourcesByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, KindBox, sources[0].Kind)

	servers, err := store.ServersByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "a.relay.test", servers[0].Endpoint)
	assert.Equal(t, []string{sources[0].ID}, servers[0].SourceIDs)
}

func TestSeedFromFileMissing(t *testing.T) {
	store := NewMemoryStore(nil)
	assert.Error(t, SeedFromFile(context.Background(), store, "/does/not/exist.yaml", zap.NewNop().Sugar()))
	assert.NoError(t, SeedFromFile(context.Background(), store, "", zap.NewNop().Sugar()))
}
