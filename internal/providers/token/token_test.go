package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenLazyAndCached(t *testing.T) {
	grants := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		grants++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
	defer srv.Close()

	s := NewSource(srv.URL, url.Values{"grant_type": {"client_credentials"}, "client_id": {"cid"}}, nil, nil)
	assert.Equal(t, 0, grants, "construction must not hit the network")

	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, grants)

	tok, err = s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, grants, "second call must reuse the cached token")
}

func TestTokenErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSource(srv.URL, url.Values{}, nil, nil)
	_, err := s.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestCacheKeyDistinguishesCredentials(t *testing.T) {
	a := NewSource("https://x/token", url.Values{"client_id": {"a"}}, nil, nil)
	b := NewSource("https://x/token", url.Values{"client_id": {"b"}}, nil, nil)
	assert.NotEqual(t, a.cacheKey(), b.cacheKey())
}
