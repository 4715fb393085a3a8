package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/bcrypt"

	"searchrelay/internal/oplog"
	"searchrelay/pkg/problems"
)

const sessionCookie = "relay_session"

type ctxUserKey struct{}

func userIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserKey{}).(string)
	return v
}

// issueSession signs an HS256 token carrying the user id.
func (a *App) issueSession(userID string) (string, error) {
	tok, err := jwt.NewBuilder().
		Subject(userID).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(a.sessionTTL)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, a.sessionKey))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func (a *App) verifySession(raw string) (string, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, a.sessionKey),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", err
	}
	return tok.Subject(), nil
}

// sessionAuth accepts the session cookie or a bearer token.
func (a *App) sessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := ""
		if c, err := r.Cookie(sessionCookie); err == nil {
			raw = c.Value
		}
		if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			raw = strings.TrimSpace(authz[len("Bearer "):])
		}
		if raw == "" {
			problems.Write(w, http.StatusUnauthorized, "unauthenticated", "Unauthenticated", "missing session")
			return
		}
		userID, err := a.verifySession(raw)
		if err != nil || userID == "" {
			problems.Write(w, http.StatusUnauthorized, "unauthenticated", "Unauthenticated", "invalid session")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, userID)))
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *App) signup(w http.ResponseWriter, r *http.Request) {
	t := a.ops.Start(r.Context(), oplog.OpAuth, "Signup")
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusBadRequest, "invalid-request", "Invalid request", "malformed body")
		return
	}
	if _, err := mail.ParseAddress(body.Email); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusBadRequest, "invalid-email", "Invalid email", "email address is not valid")
		return
	}
	if len(body.Password) < 8 {
		t.Failed(errors.New("password too short"))
		problems.Write(w, http.StatusBadRequest, "weak-password", "Weak password", "password must be at least 8 characters")
		return
	}
	if _, err := a.store.UserByEmail(r.Context(), body.Email); err == nil {
		t.Failed(errors.New("email taken"))
		problems.Write(w, http.StatusConflict, "email-taken", "Email already registered", "an account with this email exists")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "signup-failed", "Signup failed", err.Error())
		return
	}
	user, err := a.store.CreateUser(r.Context(), body.Email, string(hash))
	if err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusInternalServerError, "signup-failed", "Signup failed", err.Error())
		return
	}
	t.Success("user_id", user.ID)
	a.writeSession(w, user.ID, http.StatusCreated, map[string]any{"id": user.ID, "email": user.Email})
}

func (a *App) signin(w http.ResponseWriter, r *http.Request) {
	t := a.ops.Start(r.Context(), oplog.OpAuth, "Signin")
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Failed(err)
		problems.Write(w, http.StatusBadRequest, "invalid-request", "Invalid request", "malformed body")
		return
	}
	user, err := a.store.UserByEmail(r.Context(), body.Email)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(body.Password)) != nil {
		t.Failed(errors.New("bad credentials"))
		problems.Write(w, http.StatusUnauthorized, "bad-credentials", "Bad credentials", "email or password is wrong")
		return
	}
	t.Success("user_id", user.ID)
	a.writeSession(w, user.ID, http.StatusOK, map[string]any{"id": user.ID, "email": user.Email})
}

func (a *App) signout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

func (a *App) me(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	writeJSON(w, map[string]any{"id": userID}, http.StatusOK)
}

func (a *App) writeSession(w http.ResponseWriter, userID string, status int, payload map[string]any) {
	tok, err := a.issueSession(userID)
	if err != nil {
		problems.Write(w, http.StatusInternalServerError, "session-failed", "Session failed", err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(a.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	payload["token"] = tok
	writeJSON(w, payload, status)
}
