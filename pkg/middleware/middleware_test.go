package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointFromHost(t *testing.T) {
	var got string
	h := Endpoint()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = EndpointFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "Acme.Relay.Test:8443"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "acme.relay.test", got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "internal:8080"
	req.Header.Set("X-Forwarded-Host", "tenant.relay.test")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "tenant.relay.test", got)
}

func TestCorrelationID(t *testing.T) {
	var got string
	h := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CorrelationIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "given-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "given-id", got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, got, 8)
}
