// pkg/catalog/memory.go
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store for dev bring-up and tests.
type memStore struct {
	mu      sync.RWMutex
	users   map[string]User   // by id
	sources map[string]Source // by id
	servers map[string]Server // by id
	pool    []string
}

func NewMemoryStore(endpointPool []string) Store {
	return &memStore{
		users:   map[string]User{},
		sources: map[string]Source{},
		servers: map[string]Server{},
		pool:    endpointPool,
	}
}

func (m *memStore) ServersByEndpoint(ctx context.Context, endpoint string) ([]Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Server
	for _, s := range m.servers {
		if s.Endpoint == endpoint {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) SourcesByIDs(ctx context.Context, ids []string) ([]Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Source
	for _, id := range ids {
		if s, ok := m.sources[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) CreateUser(ctx context.Context, email, hashedPassword string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	u := User{ID: uuid.NewString(), Email: email, HashedPassword: hashedPassword, CreatedAt: now, UpdatedAt: now}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) UserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memStore) CreateSource(ctx context.Context, userID string, kind SourceKind, metadata map[string]string) (Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	s := Source{ID: uuid.NewString(), Kind: kind, Metadata: metadata, UserID: userID, CreatedAt: now, UpdatedAt: now}
	m.sources[s.ID] = s
	return s, nil
}

func (m *memStore) SourceByID(ctx context.Context, id string) (Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sources[id]; ok {
		return s, nil
	}
	return Source{}, ErrNotFound
}

func (m *memStore) SourcesByUser(ctx context.Context, userID string) ([]Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Source
	for _, s := range m.sources {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) UpdateSource(ctx context.Context, id string, kind *SourceKind, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return ErrNotFound
	}
	if kind != nil {
		s.Kind = *kind
	}
	if metadata != nil {
		s.Metadata = metadata
	}
	s.UpdatedAt = time.Now().UTC()
	m.sources[id] = s
	return nil
}

func (m *memStore) DeleteSource(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return ErrNotFound
	}
	delete(m.sources, id)
	return nil
}

func (m *memStore) SourceBelongsToUser(ctx context.Context, sourceID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[sourceID]
	return ok && s.UserID == userID, nil
}

func (m *memStore) CreateServer(ctx context.Context, userID, name string, sourceIDs []string) (Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := map[string]bool{}
	for _, s := range m.servers {
		used[s.Endpoint] = true
	}
	endpoint := ""
	for _, e := range m.pool {
		if !used[e] {
			endpoint = e
			break
		}
	}
	if endpoint == "" {
		return Server{}, ErrEndpointExhausted
	}
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	now := time.Now().UTC()
	srv := Server{ID: uuid.NewString(), Name: name, Endpoint: endpoint, SourceIDs: sourceIDs, UserID: userID, CreatedAt: now, UpdatedAt: now}
	m.servers[srv.ID] = srv
	return srv, nil
}

func (m *memStore) ServerByID(ctx context.Context, id string) (Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.servers[id]; ok && !s.Deleted() {
		return s, nil
	}
	return Server{}, ErrNotFound
}

func (m *memStore) ServersByUser(ctx context.Context, userID string) ([]Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Server
	for _, s := range m.servers {
		if s.UserID == userID && !s.Deleted() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) UpdateServer(ctx context.Context, id string, name *string, sourceIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[id]
	if !ok || s.Deleted() {
		return ErrNotFound
	}
	if name != nil {
		s.Name = *name
	}
	if sourceIDs != nil {
		s.SourceIDs = sourceIDs
	}
	s.UpdatedAt = time.Now().UTC()
	m.servers[id] = s
	return nil
}

func (m *memStore) DeleteServer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[id]
	if !ok || s.Deleted() {
		return ErrNotFound
	}
	now := time.Now().UTC()
	s.DeletedAt = &now
	m.servers[id] = s
	return nil
}

func (m *memStore) RestoreServer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[id]
	if !ok || !s.Deleted() {
		return ErrNotFound
	}
	s.DeletedAt = nil
	s.UpdatedAt = time.Now().UTC()
	m.servers[id] = s
	return nil
}

func (m *memStore) ServerBelongsToUser(ctx context.Context, serverID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.servers[serverID]
	return ok && s.UserID == userID, nil
}
