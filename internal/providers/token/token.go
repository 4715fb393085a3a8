// Package token provides a lazy OAuth2 client-credentials token source.
// Nothing is fetched at construction; the first call to Token performs the
// grant and the result is cached until shortly before expiry. With a redis
// client the cache is shared across gateway replicas, otherwise it lives in
// the owning provider instance.
package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// expirySkew is subtracted from the upstream lifetime so a token is never
// used within a minute of expiring.
const expirySkew = 60 * time.Second

type Source struct {
	tokenURL string
	form     url.Values
	httpc    *http.Client
	rdb      *redis.Client // nil is fine

	mu  sync.Mutex
	tok string
	exp time.Time
}

func NewSource(tokenURL string, form url.Values, httpc *http.Client, rdb *redis.Client) *Source {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{tokenURL: tokenURL, form: form, httpc: httpc, rdb: rdb}
}

// Token returns a valid access token, acquiring one if needed.
func (s *Source) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok != "" && time.Now().Before(s.exp) {
		return s.tok, nil
	}
	if s.rdb != nil {
		if tok, err := s.rdb.Get(ctx, s.cacheKey()).Result(); err == nil && tok != "" {
			// Redis TTL already accounts for skew; trust it for half the skew
			// locally to avoid a GET per call.
			s.tok, s.exp = tok, time.Now().Add(expirySkew/2)
			return tok, nil
		}
	}
	tok, ttl, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	s.tok, s.exp = tok, time.Now().Add(ttl)
	if s.rdb != nil {
		_ = s.rdb.Set(ctx, s.cacheKey(), tok, ttl).Err()
	}
	return tok, nil
}

func (s *Source) acquire(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(s.form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, fmt.Errorf("token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	ttl := time.Duration(payload.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 3599 * time.Second
	}
	if ttl > expirySkew {
		ttl -= expirySkew
	}
	return payload.AccessToken, ttl, nil
}

// cacheKey hashes the grant parameters so distinct credentials never share
// a cached token.
func (s *Source) cacheKey() string {
	h := sha256.Sum256([]byte(s.tokenURL + "|" + s.form.Encode()))
	return "searchrelay:token:" + hex.EncodeToString(h[:8])
}
