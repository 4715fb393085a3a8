// cmd/admin-api-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"searchrelay/internal/adminapi"
	"searchrelay/internal/oplog"
	"searchrelay/pkg/catalog"
	"searchrelay/pkg/config"
	"searchrelay/pkg/db"
	"searchrelay/pkg/logger"
	"searchrelay/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, "admin-api-service")
	if cfg.SessionSecret == "" {
		log.Fatalw("SESSION_SECRET must be set")
	}

	pool := db.MustConnect(cfg, log)

	var (
		store catalog.Store
		sink  *oplog.PGSink
		logs  adminapi.LogLister
		ops   *oplog.Logger
	)
	if pool != nil {
		if err := catalog.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		store = catalog.NewPostgresStore(pool, log, catalog.NewCipher(cfg.EncryptionKey), cfg.EndpointPool)
		sink = oplog.NewPGSink(pool, log, 0)
		logs = oplog.NewPGReader(pool)
		ops = oplog.New(log, sink)
	} else {
		store = catalog.NewMemoryStore(cfg.EndpointPool)
		ops = oplog.New(log, nil)
	}
	if cfg.SeedFile != "" {
		if err := catalog.SeedFromFile(context.Background(), store, cfg.SeedFile, log); err != nil {
			log.Warnw("seed", "err", err)
		}
	}

	app := adminapi.New(log, store, ops, logs, adminapi.Config{
		HTTPAddr:      cfg.AdminAddr,
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
	})

	r := chi.NewRouter()
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("admin-api-service"))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Mount("/", app.Handler())

	srv := &http.Server{Addr: cfg.AdminAddr, Handler: r}
	go func() {
		log.Infow("admin-api-service listening", "addr", cfg.AdminAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if sink != nil {
		sink.Close()
	}
	fmt.Println("admin-api-service stopped")
}
