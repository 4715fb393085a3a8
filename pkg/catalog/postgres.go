// pkg/catalog/postgres.go
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
	cipher *Cipher
	pool   []string // endpoint pool, assignment order
}

// NewPostgresStore constructs a PostgreSQL-backed catalog store.
// endpointPool is the finite set of domains assignable to servers.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger, cipher *Cipher, endpointPool []string) Store {
	if cipher == nil {
		cipher = NewCipher("")
	}
	return &pgStore{dbPool: dbPool, log: log, cipher: cipher, pool: endpointPool}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
  id uuid PRIMARY KEY,
  email text UNIQUE NOT NULL,
  hashed_password text,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS sources (
  id uuid PRIMARY KEY,
  type text NOT NULL,
  metadata bytea,
  user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS servers (
  id uuid PRIMARY KEY,
  name text NOT NULL,
  endpoint text UNIQUE NOT NULL,
  source_ids text[] DEFAULT '{}',
  user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW(),
  deleted_at timestamptz
);
CREATE TABLE IF NOT EXISTS operation_logs (
  id uuid PRIMARY KEY,
  text text NOT NULL,
  level text NOT NULL,
  ts bigint NOT NULL,
  operation text,
  method text,
  status text,
  correlation_id text,
  elapsed_sec double precision,
  metadata jsonb,
  user_id uuid REFERENCES users(id) ON DELETE CASCADE,
  source_id uuid REFERENCES sources(id) ON DELETE SET NULL,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS sources_user_idx ON sources(user_id);
CREATE INDEX IF NOT EXISTS servers_user_idx ON servers(user_id);
CREATE INDEX IF NOT EXISTS servers_endpoint_idx ON servers(endpoint);
CREATE INDEX IF NOT EXISTS operation_logs_corr_idx ON operation_logs(correlation_id);
CREATE INDEX IF NOT EXISTS operation_logs_ts_idx ON operation_logs(ts);
`)
	return err
}

// ---- routing reads ----

// ServersByEndpoint includes soft-deleted rows: tombstoning hides a server
// from CRUD listings but its endpoint keeps routing until restored or purged.
func (s *pgStore) ServersByEndpoint(ctx context.Context, endpoint string) ([]Server, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT id,name,endpoint,COALESCE(source_ids,'{}'),user_id,created_at,updated_at,deleted_at FROM servers WHERE endpoint=$1`, endpoint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanServers(rows)
}

func (s *pgStore) SourcesByIDs(ctx context.Context, ids []string) ([]Source, error) {
	valid := ids[:0:0]
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	rows, err := s.dbPool.Query(ctx, `SELECT id,type,metadata,user_id,created_at,updated_at FROM sources WHERE id=ANY($1)`, valid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Source
	for rows.Next() {
		src, err := s.scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// ---- users ----

func (s *pgStore) CreateUser(ctx context.Context, email, hashedPassword string) (User, error) {
	u := User{ID: uuid.NewString(), Email: email, HashedPassword: hashedPassword}
	row := s.dbPool.QueryRow(ctx, `INSERT INTO users(id,email,hashed_password) VALUES ($1,$2,$3) RETURNING created_at,updated_at`, u.ID, u.Email, u.HashedPassword)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *pgStore) UserByEmail(ctx context.Context, email string) (User, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT id,email,COALESCE(hashed_password,''),created_at,updated_at FROM users WHERE email=$1`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// ---- sources ----

func (s *pgStore) CreateSource(ctx context.Context, userID string, kind SourceKind, metadata map[string]string) (Source, error) {
	blob, err := s.cipher.Seal(metadata)
	if err != nil {
		return Source{}, err
	}
	src := Source{ID: uuid.NewString(), Kind: kind, Metadata: metadata, UserID: userID}
	row := s.dbPool.QueryRow(ctx, `INSERT INTO sources(id,type,metadata,user_id) VALUES ($1,$2,$3,$4) RETURNING created_at,updated_at`, src.ID, string(kind), blob, userID)
	if err := row.Scan(&src.CreatedAt, &src.UpdatedAt); err != nil {
		return Source{}, err
	}
	return src, nil
}

func (s *pgStore) SourceByID(ctx context.Context, id string) (Source, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT id,type,metadata,user_id,created_at,updated_at FROM sources WHERE id=$1`, id)
	src, err := s.scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Source{}, ErrNotFound
		}
		return Source{}, err
	}
	return src, nil
}

func (s *pgStore) SourcesByUser(ctx context.Context, userID string) ([]Source, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT id,type,metadata,user_id,created_at,updated_at FROM sources WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Source
	for rows.Next() {
		src, err := s.scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *pgStore) UpdateSource(ctx context.Context, id string, kind *SourceKind, metadata map[string]string) error {
	if kind == nil && metadata == nil {
		return nil
	}
	if kind != nil && metadata != nil {
		blob, err := s.cipher.Seal(metadata)
		if err != nil {
			return err
		}
		return s.exec(ctx, `UPDATE sources SET type=$2,metadata=$3,updated_at=NOW() WHERE id=$1`, id, string(*kind), blob)
	}
	if kind != nil {
		return s.exec(ctx, `UPDATE sources SET type=$2,updated_at=NOW() WHERE id=$1`, id, string(*kind))
	}
	blob, err := s.cipher.Seal(metadata)
	if err != nil {
		return err
	}
	return s.exec(ctx, `UPDATE sources SET metadata=$2,updated_at=NOW() WHERE id=$1`, id, blob)
}

func (s *pgStore) DeleteSource(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM sources WHERE id=$1`, id)
}

func (s *pgStore) SourceBelongsToUser(ctx context.Context, sourceID, userID string) (bool, error) {
	var one int
	err := s.dbPool.QueryRow(ctx, `SELECT 1 FROM sources WHERE id=$1 AND user_id=$2`, sourceID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ---- servers ----

func (s *pgStore) CreateServer(ctx context.Context, userID, name string, sourceIDs []string) (Server, error) {
	endpoint, err := s.nextEndpoint(ctx)
	if err != nil {
		return Server{}, err
	}
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	srv := Server{ID: uuid.NewString(), Name: name, Endpoint: endpoint, SourceIDs: sourceIDs, UserID: userID}
	row := s.dbPool.QueryRow(ctx, `INSERT INTO servers(id,name,endpoint,source_ids,user_id) VALUES ($1,$2,$3,$4,$5) RETURNING created_at,updated_at`, srv.ID, name, endpoint, sourceIDs, userID)
	if err := row.Scan(&srv.CreatedAt, &srv.UpdatedAt); err != nil {
		return Server{}, err
	}
	return srv, nil
}

// nextEndpoint picks the first pool domain no server row occupies. Tombstoned
// servers still count as occupants so a domain is never silently reassigned.
func (s *pgStore) nextEndpoint(ctx context.Context) (string, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT endpoint FROM servers`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	used := map[string]bool{}
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return "", err
		}
		used[e] = true
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	for _, e := range s.pool {
		if !used[e] {
			return e, nil
		}
	}
	return "", ErrEndpointExhausted
}

func (s *pgStore) ServerByID(ctx context.Context, id string) (Server, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT id,name,endpoint,COALESCE(source_ids,'{}'),user_id,created_at,updated_at,deleted_at FROM servers WHERE id=$1 AND deleted_at IS NULL`, id)
	var srv Server
	if err := row.Scan(&srv.ID, &srv.Name, &srv.Endpoint, &srv.SourceIDs, &srv.UserID, &srv.CreatedAt, &srv.UpdatedAt, &srv.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Server{}, ErrNotFound
		}
		return Server{}, err
	}
	return srv, nil
}

func (s *pgStore) ServersByUser(ctx context.Context, userID string) ([]Server, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT id,name,endpoint,COALESCE(source_ids,'{}'),user_id,created_at,updated_at,deleted_at FROM servers WHERE user_id=$1 AND deleted_at IS NULL ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanServers(rows)
}

func (s *pgStore) UpdateServer(ctx context.Context, id string, name *string, sourceIDs []string) error {
	if name == nil && sourceIDs == nil {
		return nil
	}
	if name != nil && sourceIDs != nil {
		return s.exec(ctx, `UPDATE servers SET name=$2,source_ids=$3,updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id, *name, sourceIDs)
	}
	if name != nil {
		return s.exec(ctx, `UPDATE servers SET name=$2,updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id, *name)
	}
	return s.exec(ctx, `UPDATE servers SET source_ids=$2,updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id, sourceIDs)
}

func (s *pgStore) DeleteServer(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE servers SET deleted_at=$2 WHERE id=$1 AND deleted_at IS NULL`, id, time.Now().UTC())
}

func (s *pgStore) RestoreServer(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE servers SET deleted_at=NULL,updated_at=NOW() WHERE id=$1 AND deleted_at IS NOT NULL`, id)
}

func (s *pgStore) ServerBelongsToUser(ctx context.Context, serverID, userID string) (bool, error) {
	var one int
	err := s.dbPool.QueryRow(ctx, `SELECT 1 FROM servers WHERE id=$1 AND user_id=$2`, serverID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ---- helpers ----

func (s *pgStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.dbPool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) scanSource(row pgx.Row) (Source, error) {
	var src Source
	var kind string
	var blob []byte
	if err := row.Scan(&src.ID, &kind, &blob, &src.UserID, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return Source{}, err
	}
	src.Kind = SourceKind(kind)
	meta, err := s.cipher.Open(blob)
	if err != nil {
		return Source{}, err
	}
	src.Metadata = meta
	return src, nil
}

func scanServers(rows pgx.Rows) ([]Server, error) {
	var out []Server
	for rows.Next() {
		var srv Server
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.Endpoint, &srv.SourceIDs, &srv.UserID, &srv.CreatedAt, &srv.UpdatedAt, &srv.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, srv)
	}
	return out, rows.Err()
}
