package catalog

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEndpointExhausted = errors.New("no available endpoints in pool")
)

// Store is the persistence boundary for users, sources and servers.
//
// The two resolution methods feed live routing: ServersByEndpoint includes
// soft-deleted rows on purpose (tombstoning governs CRUD visibility, not
// routing), and both return empty slices rather than errors when nothing is
// bound; absence of configuration is not exceptional.
type Store interface {
	ServersByEndpoint(ctx context.Context, endpoint string) ([]Server, error)
	SourcesByIDs(ctx context.Context, ids []string) ([]Source, error)

	CreateUser(ctx context.Context, email, hashedPassword string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)

	CreateSource(ctx context.Context, userID string, kind SourceKind, metadata map[string]string) (Source, error)
	SourceByID(ctx context.Context, id string) (Source, error)
	SourcesByUser(ctx context.Context, userID string) ([]Source, error)
	UpdateSource(ctx context.Context, id string, kind *SourceKind, metadata map[string]string) error
	DeleteSource(ctx context.Context, id string) error
	SourceBelongsToUser(ctx context.Context, sourceID, userID string) (bool, error)

	// CreateServer assigns the next free endpoint from the pool; the pool
	// counts soft-deleted servers as occupants. ErrEndpointExhausted when
	// none remain.
	CreateServer(ctx context.Context, userID, name string, sourceIDs []string) (Server, error)
	ServerByID(ctx context.Context, id string) (Server, error)
	ServersByUser(ctx context.Context, userID string) ([]Server, error)
	UpdateServer(ctx context.Context, id string, name *string, sourceIDs []string) error
	DeleteServer(ctx context.Context, id string) error
	RestoreServer(ctx context.Context, id string) error
	// ServerBelongsToUser counts tombstoned rows: ownership survives a soft
	// delete so the owner can still restore.
	ServerBelongsToUser(ctx context.Context, serverID, userID string) (bool, error)
}
