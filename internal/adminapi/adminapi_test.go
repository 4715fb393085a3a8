package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"searchrelay/internal/oplog"
	"searchrelay/pkg/catalog"
)

func testApp(pool ...string) http.Handler {
	store := catalog.NewMemoryStore(pool)
	ops := oplog.New(zap.NewNop().Sugar(), nil)
	app := New(zap.NewNop().Sugar(), store, ops, nil, Config{
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
	})
	return app.Handler()
}

func do(h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func signupToken(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := do(h, http.MethodPost, "/api/v1/signup", "", map[string]string{
		"email": email, "password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestSignupSigninFlow(t *testing.T) {
	h := testApp()
	tok := signupToken(t, h, "dev@example.com")

	rec := do(h, http.MethodGet, "/api/v1/me", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// duplicate signup conflicts
	rec = do(h, http.MethodPost, "/api/v1/signup", "", map[string]string{
		"email": "dev@example.com", "password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// wrong password
	rec = do(h, http.MethodPost, "/api/v1/signin", "", map[string]string{
		"email": "dev@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/signin", "", map[string]string{
		"email": "dev@example.com", "password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignupValidation(t *testing.T) {
	h := testApp()
	rec := do(h, http.MethodPost, "/api/v1/signup", "", map[string]string{
		"email": "not-an-email", "password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/signup", "", map[string]string{
		"email": "dev@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	h := testApp()
	rec := do(h, http.MethodGet, "/api/v1/sources", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/sources", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSourceCRUD(t *testing.T) {
	h := testApp()
	tok := signupToken(t, h, "dev@example.com")

	// incomplete metadata rejected
	rec := do(h, http.MethodPost, "/api/v1/sources", tok, map[string]any{
		"type": "box", "metadata": map[string]string{"box_client_id": "c"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/sources", tok, map[string]any{
		"type": "unknown", "metadata": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/sources", tok, map[string]any{
		"type": "box",
		"metadata": map[string]string{
			"box_client_id": "c", "box_client_secret": "topsecret", "box_subject_type": "user", "box_subject_id": "1",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created sourceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "box", created.Type)
	assert.Equal(t, "********", created.Metadata["box_client_secret"])
	assert.Equal(t, "c", created.Metadata["box_client_id"])

	rec = do(h, http.MethodGet, "/api/v1/sources", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []sourceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	rec = do(h, http.MethodDelete, "/api/v1/sources/"+created.ID, tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(h, http.MethodGet, "/api/v1/sources/"+created.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCrossUserSourceHidden(t *testing.T) {
	h := testApp()
	aliceTok := signupToken(t, h, "alice@example.com")
	bobTok := signupToken(t, h, "bob@example.com")

	rec := do(h, http.MethodPost, "/api/v1/sources", aliceTok, map[string]any{
		"type": "box",
		"metadata": map[string]string{
			"box_client_id": "c", "box_client_secret": "s", "box_subject_type": "user", "box_subject_id": "1",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var src sourceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &src))

	// bob cannot read, update or reference alice's source
	rec = do(h, http.MethodGet, "/api/v1/sources/"+src.ID, bobTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(h, http.MethodDelete, "/api/v1/sources/"+src.ID, bobTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerLifecycle(t *testing.T) {
	h := testApp("a.relay.test")
	tok := signupToken(t, h, "dev@example.com")

	rec := do(h, http.MethodPost, "/api/v1/servers", tok, map[string]any{"name": "primary"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var srv serverView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &srv))
	assert.Equal(t, "a.relay.test", srv.Endpoint)

	// pool exhausted
	rec = do(h, http.MethodPost, "/api/v1/servers", tok, map[string]any{"name": "second"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// soft delete then restore keeps the endpoint
	rec = do(h, http.MethodDelete, "/api/v1/servers/"+srv.ID, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(h, http.MethodGet, "/api/v1/servers/"+srv.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/servers/"+srv.ID+"/restore", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var restored serverView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restored))
	assert.Equal(t, "a.relay.test", restored.Endpoint)
	assert.Nil(t, restored.DeletedAt)

	// restoring a live server fails
	rec = do(h, http.MethodPost, "/api/v1/servers/"+srv.ID+"/restore", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRestoreForeignServerHidden(t *testing.T) {
	h := testApp("a.relay.test")
	aliceTok := signupToken(t, h, "alice@example.com")
	bobTok := signupToken(t, h, "bob@example.com")

	rec := do(h, http.MethodPost, "/api/v1/servers", aliceTok, map[string]any{"name": "primary"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var srv serverView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &srv))
	require.Equal(t, http.StatusOK, do(h, http.MethodDelete, "/api/v1/servers/"+srv.ID, aliceTok, nil).Code)

	rec = do(h, http.MethodPost, "/api/v1/servers/"+srv.ID+"/restore", bobTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogsWithoutStore(t *testing.T) {
	h := testApp()
	tok := signupToken(t, h, "dev@example.com")
	rec := do(h, http.MethodGet, "/api/v1/logs", tok, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServerRejectsForeignSources(t *testing.T) {
	h := testApp("a.relay.test", "b.relay.test")
	aliceTok := signupToken(t, h, "alice@example.com")
	bobTok := signupToken(t, h, "bob@example.com")

	rec := do(h, http.MethodPost, "/api/v1/sources", aliceTok, map[string]any{
		"type": "box",
		"metadata": map[string]string{
			"box_client_id": "c", "box_client_secret": "s", "box_subject_type": "user", "box_subject_id": "1",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var src sourceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &src))

	rec = do(h, http.MethodPost, "/api/v1/servers", bobTok, map[string]any{
		"name": "sneaky", "source_ids": []string{src.ID},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
