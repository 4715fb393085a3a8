// Package adminapi is the management surface: account signup and session
// auth, source and server CRUD, and operation log inspection.
package adminapi

import (
	"context"
	"time"

	"go.uber.org/zap"

	"searchrelay/internal/oplog"
	"searchrelay/pkg/catalog"
)

// Config holds admin-api specific configuration.
type Config struct {
	HTTPAddr      string
	SessionSecret string
	SessionTTL    time.Duration
}

// App is the admin-api application container.
// Handlers and middleware have methods on this type.
//
// Keep it lean: shared deps and config only.
// Request-scoped work should use context.
type App struct {
	log        *zap.SugaredLogger
	store      catalog.Store
	ops        *oplog.Logger
	logs       LogLister
	sessionKey []byte
	sessionTTL time.Duration
}

// LogLister reads back persisted operation log rows. Nil disables the
// /api/v1/logs endpoint.
type LogLister interface {
	Recent(ctx context.Context, f oplog.Filter) ([]oplog.Entry, error)
}

func New(log *zap.SugaredLogger, store catalog.Store, ops *oplog.Logger, logs LogLister, cfg Config) *App {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &App{
		log:        log,
		store:      store,
		ops:        ops,
		logs:       logs,
		sessionKey: []byte(cfg.SessionSecret),
		sessionTTL: ttl,
	}
}
