// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	HTTPAddr  string // gateway-service
	AdminAddr string // admin-api-service

	// Pool of endpoints (DNS-style domains) assignable to servers.
	EndpointPool []string

	// Dispatch tuning
	ProviderTimeout time.Duration // ceiling per provider call inside one search/fetch
	HandlerCacheTTL time.Duration // live handler reuse window
	SearchLimit     int           // default per-provider result limit

	// Admin auth
	SessionSecret string        // HS256 key for admin session tokens
	SessionTTL    time.Duration // admin session lifetime
	EncryptionKey string        // optional AES-GCM key for credential bundles

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	// Dev bootstrap
	SeedFile string // optional YAML seed of users/sources/servers
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:             env("RELAY_ENV", "dev"),
		HTTPAddr:        env("RELAY_HTTP_ADDR", ":8080"),
		AdminAddr:       env("RELAY_ADMIN_ADDR", ":8081"),
		EndpointPool:    envList("GATEWAY_ENDPOINT_POOL"),
		ProviderTimeout: envDur("PROVIDER_TIMEOUT_SEC", 45) * time.Second,
		HandlerCacheTTL: envDur("HANDLER_CACHE_TTL_SEC", 30) * time.Second,
		SearchLimit:     envInt("SEARCH_RESULT_LIMIT", 10),
		SessionSecret:   env("SESSION_SECRET", ""),
		SessionTTL:      envDur("SESSION_TTL_SEC", 86400) * time.Second,
		EncryptionKey:   env("SECRETS_ENCRYPTION_KEY", ""),
		RedisURL:        env("REDIS_URL", ""),
		DatabaseURL:     env("DATABASE_URL", ""),
		SeedFile:        env("RELAY_SEED_FILE", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set, using in-memory catalog for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
func envList(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
