package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/fileentity/internal/config"
	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/golang-jwt/jwt/v5"
)

// TokenCookie carries a bearer token for browser sessions.
const TokenCookie = "fileentity_token"

// AllPermissions is granted to holders of an admin API key.
var AllPermissions = []core.Permission{core.PermAdministerFileTypes, core.PermCreateFiles}

// Claims is the JWT payload accepted by Authenticate.
type Claims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Authenticate resolves the caller into a core.Access stored in the
// request context. Credentials are checked in order: X-API-Key header,
// Authorization bearer token, token cookie. A request without credentials
// proceeds as anonymous; a request with bad credentials is rejected.
func Authenticate(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	secret := []byte(cfg.JWTSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := core.Anonymous

			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				if !isValidAPIKey(apiKey, cfg.AdminAPIKeys) {
					slog.Warn("auth: invalid API key",
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
					)
					http.Error(w, `{"error":"invalid API key","code":"AUTH_INVALID_KEY"}`, http.StatusForbidden)
					return
				}
				access = core.Access{Actor: APIKeyActor(apiKey), Permissions: AllPermissions}
			} else if raw := bearerToken(r); raw != "" {
				a, err := parseToken(raw, secret)
				if err != nil {
					slog.Warn("auth: invalid token",
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
						"error", err,
					)
					http.Error(w, `{"error":"invalid token","code":"AUTH_INVALID_TOKEN"}`, http.StatusUnauthorized)
					return
				}
				access = a
			}

			next.ServeHTTP(w, r.WithContext(core.ContextWithAccess(r.Context(), access)))
		})
	}
}

// RequirePermission rejects callers lacking p with 403.
func RequirePermission(p core.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !core.AccessFromContext(r.Context()).Has(p) {
				http.Error(w, "You are not authorized to access this page.", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func parseToken(raw string, secret []byte) (core.Access, error) {
	if len(secret) == 0 {
		return core.Anonymous, errors.New("token authentication is not configured")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return core.Anonymous, err
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return core.Anonymous, fmt.Errorf("%w: sub", jwt.ErrTokenRequiredClaimMissing)
	}

	access := core.Access{Actor: claims.Subject}
	for _, p := range claims.Permissions {
		access.Permissions = append(access.Permissions, core.Permission(p))
	}
	return access, nil
}

// APIKeyActor names the holder of key in audit entries and session
// ownership without revealing the key.
func APIKeyActor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "api-key:" + hex.EncodeToString(sum[:4])
}

// isValidAPIKey compares against every configured key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
