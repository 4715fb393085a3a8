// cmd/gateway-service/main.go
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

	"searchrelay/internal/dispatch"
	"searchrelay/internal/gateway"
	"searchrelay/internal/oplog"
	"searchrelay/internal/providers/box"
	"searchrelay/internal/providers/outlook"
	"searchrelay/internal/providers/snowflake"
	"searchrelay/pkg/catalog"
	"searchrelay/pkg/config"
	"searchrelay/pkg/db"
	"searchrelay/pkg/logger"
	"searchrelay/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, "gateway-service")

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var (
		store catalog.Store
		sink  *oplog.PGSink
	)
	if pool != nil {
		if err := catalog.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		store = catalog.NewPostgresStore(pool, log, catalog.NewCipher(cfg.EncryptionKey), cfg.EndpointPool)
		sink = oplog.NewPGSink(pool, log, 0)
	} else {
		store = catalog.NewMemoryStore(cfg.EndpointPool)
	}
	if cfg.SeedFile != "" {
		if err := catalog.SeedFromFile(context.Background(), store, cfg.SeedFile, log); err != nil {
			log.Warnw("seed", "err", err)
		}
	}

	var ops *oplog.Logger
	if sink != nil {
		ops = oplog.New(log, sink)
	} else {
		ops = oplog.New(log, nil)
	}

	factory := dispatch.NewFactory(ops)
	factory.Register(catalog.KindOutlook, outlook.Builder(rdb))
	factory.Register(catalog.KindSnowflake, snowflake.Builder())
	factory.Register(catalog.KindBox, box.Builder(rdb, ops))

	svc := gateway.NewService(
		dispatch.NewResolver(store, ops),
		factory,
		dispatch.NewCache(cfg.HandlerCacheTTL, 0),
		dispatch.NewAggregator(ops, cfg.ProviderTimeout),
		ops,
		cfg.SearchLimit,
		cfg.ProviderTimeout,
	)

	r := chi.NewRouter()
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("gateway-service"))
	r.Use(middleware.Endpoint())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Mount("/", gateway.Router(svc))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr)
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
	fmt.Println("gateway-service stopped")
}
