package oplog

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PGSink persists entries to the operation_logs table through a bounded
// queue drained by a single worker. When the queue is full new entries are
// dropped, never blocking the request path.
type PGSink struct {
	pool    *pgxpool.Pool
	log     *zap.SugaredLogger
	queue   chan Entry
	done    chan struct{}
	dropped atomic.Int64
}

func NewPGSink(pool *pgxpool.Pool, log *zap.SugaredLogger, buffer int) *PGSink {
	if buffer <= 0 {
		buffer = 1024
	}
	s := &PGSink{
		pool:  pool,
		log:   log,
		queue: make(chan Entry, buffer),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *PGSink) Append(e Entry) {
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports entries discarded due to backpressure since startup.
func (s *PGSink) Dropped() int64 { return s.dropped.Load() }

// Close drains and stops the worker.
func (s *PGSink) Close() {
	close(s.queue)
	<-s.done
}

func (s *PGSink) run() {
	defer close(s.done)
	for e := range s.queue {
		s.insert(e)
	}
}

func (s *PGSink) insert(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var meta []byte
	if len(e.Metadata) > 0 {
		meta, _ = json.Marshal(e.Metadata)
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO operation_logs(id,text,level,ts,operation,method,status,correlation_id,elapsed_sec,metadata,user_id,source_id)
	 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		uuid.New(), e.Text, e.Level, e.TS, nullStr(e.Operation), nullStr(e.Method), nullStr(e.Status),
		nullStr(e.CorrelationID), nullFloat(e.ElapsedSec), meta, nullStr(e.UserID), nullStr(e.SourceID))
	if err != nil {
		// Best-effort by contract; surface at debug so a broken sink is
		// visible without flooding.
		s.log.Debugw("oplog insert failed", "err", err)
	}
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}
