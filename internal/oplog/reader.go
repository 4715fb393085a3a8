package oplog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Filter narrows a log read. Zero values mean no constraint.
type Filter struct {
	Operation     string
	Level         string
	CorrelationID string
	Limit         int
}

// PGReader reads persisted entries back, newest first.
type PGReader struct {
	pool *pgxpool.Pool
}

func NewPGReader(pool *pgxpool.Pool) *PGReader { return &PGReader{pool: pool} }

func (r *PGReader) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	where := []string{}
	args := []any{}
	add := func(col, val string) {
		if val != "" {
			args = append(args, val)
			where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
		}
	}
	add("operation", strings.ToUpper(f.Operation))
	add("level", strings.ToUpper(f.Level))
	add("correlation_id", f.CorrelationID)
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q := fmt.Sprintf(`SELECT text,level,ts,
	 COALESCE(operation,''),COALESCE(method,''),COALESCE(status,''),
	 COALESCE(correlation_id,''),COALESCE(elapsed_sec,0),metadata,
	 COALESCE(user_id::text,''),COALESCE(source_id::text,'')
	 FROM operation_logs%s ORDER BY ts DESC LIMIT $%d`, clause, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			meta []byte
		)
		if err := rows.Scan(&e.Text, &e.Level, &e.TS, &e.Operation, &e.Method, &e.Status,
			&e.CorrelationID, &e.ElapsedSec, &meta, &e.UserID, &e.SourceID); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
