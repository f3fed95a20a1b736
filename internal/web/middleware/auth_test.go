package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/fileentity/internal/config"
	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecurity = &config.SecurityConfig{
	AdminAPIKeys: []string{"key-one", "key-two"},
	JWTSecret:    "s3cret",
}

// captureAccess runs a request through Authenticate and returns the status
// and the access seen by the inner handler.
func captureAccess(t *testing.T, cfg *config.SecurityConfig, req *http.Request) (int, core.Access) {
	t.Helper()
	var got core.Access
	h := Authenticate(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = core.AccessFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, got
}

func signed(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(perms ...string) Claims {
	return Claims{
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestAuthenticate_Anonymous(t *testing.T) {
	code, access := captureAccess(t, testSecurity, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, access.Has(core.PermCreateFiles))
	assert.False(t, access.Has(core.PermAdministerFileTypes))
}

func TestAuthenticate_APIKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "key-two")
	code, access := captureAccess(t, testSecurity, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, APIKeyActor("key-two"), access.Actor)
	assert.True(t, access.Has(core.PermAdministerFileTypes))
	assert.True(t, access.Has(core.PermCreateFiles))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "key-one")
	_, other := captureAccess(t, testSecurity, req)
	assert.NotEqual(t, access.Actor, other.Actor)
	assert.True(t, strings.HasPrefix(other.Actor, "api-key:"))
	assert.NotContains(t, other.Actor, "key-one")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "nope")
	code, _ = captureAccess(t, testSecurity, req)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAuthenticate_Token(t *testing.T) {
	tok := signed(t, "s3cret", jwt.SigningMethodHS256, validClaims(string(core.PermCreateFiles)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	code, access := captureAccess(t, testSecurity, req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", access.Actor)
	assert.True(t, access.Has(core.PermCreateFiles))
	assert.False(t, access.Has(core.PermAdministerFileTypes))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tok})
	code, access = captureAccess(t, testSecurity, req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", access.Actor)
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	anonymous := validClaims(string(core.PermCreateFiles))
	anonymous.Subject = ""
	blank := validClaims()
	blank.Subject = "  "

	tests := map[string]string{
		"garbage":       "not.a.token",
		"wrong secret":  signed(t, "other", jwt.SigningMethodHS256, validClaims()),
		"wrong method":  signed(t, "s3cret", jwt.SigningMethodHS512, validClaims()),
		"expired":       signed(t, "s3cret", jwt.SigningMethodHS256, expired),
		"no subject":    signed(t, "s3cret", jwt.SigningMethodHS256, anonymous),
		"blank subject": signed(t, "s3cret", jwt.SigningMethodHS256, blank),
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			code, _ := captureAccess(t, testSecurity, req)
			assert.Equal(t, http.StatusUnauthorized, code)
		})
	}
}

func TestAuthenticate_TokensDisabledWithoutSecret(t *testing.T) {
	tok := signed(t, "s3cret", jwt.SigningMethodHS256, validClaims())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	code, _ := captureAccess(t, &config.SecurityConfig{}, req)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRequirePermission(t *testing.T) {
	h := RequirePermission(core.PermCreateFiles)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := core.ContextWithAccess(req.Context(), core.Access{
		Actor:       "bob",
		Permissions: []core.Permission{core.PermCreateFiles},
	})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
