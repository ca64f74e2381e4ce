package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEARER TOKEN AUTHENTICATION
// Every /api/users/... route carries an HS256 Bearer token whose subject
// must match the userId in the URL. The agent mints these tokens from
// the shared secret; the server only ever verifies.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrTokenInvalid - the token is malformed, expired or signed with
	// the wrong key.
	ErrTokenInvalid = errors.New("invalid or expired token")

	// ErrSubjectMissing - the token carries no subject claim.
	ErrSubjectMissing = errors.New("token has no subject")

	// ErrAdminDisabled - no admin key hash is configured.
	ErrAdminDisabled = errors.New("admin endpoints are disabled")

	// ErrAdminKeyInvalid - the supplied admin key does not match.
	ErrAdminKeyInvalid = errors.New("invalid admin key")
)

// TokenClaims is the JWT payload the server accepts. The email claim is
// optional: profile creation uses it when the request body omits one.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// TokenVerifier validates HS256 Bearer tokens against a shared secret.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier. An empty secret disables
// verification; callers must check Enabled before trusting requests.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *TokenVerifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify parses and validates a raw token string and returns its claims.
func (v *TokenVerifier) Verify(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, v.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrSubjectMissing
	}
	return claims, nil
}

func (v *TokenVerifier) keyFunc(_ *jwt.Token) (interface{}, error) {
	return v.secret, nil
}

// BearerToken extracts the token from the Authorization header.
// The second return value is false when the header is absent or does
// not use the Bearer scheme.
func BearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	return token, token != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN KEY AUTHENTICATION
// Maintenance endpoints are guarded by a single admin key. Only its
// bcrypt hash is configured on the server, so a leaked config file does
// not leak the key.
// ══════════════════════════════════════════════════════════════════════════════

// AdminKeyHeader is the header carrying the admin key.
const AdminKeyHeader = "X-Admin-Key"

// AdminKeyAuth verifies the admin key against a stored bcrypt hash.
type AdminKeyAuth struct {
	hash []byte
}

// NewAdminKeyAuth creates an authenticator around a bcrypt hash.
// An empty hash disables admin endpoints entirely.
func NewAdminKeyAuth(bcryptHash string) *AdminKeyAuth {
	return &AdminKeyAuth{hash: []byte(bcryptHash)}
}

// Enabled reports whether an admin key hash is configured.
func (a *AdminKeyAuth) Enabled() bool {
	return len(a.hash) > 0
}

// Verify checks a supplied key against the stored hash.
func (a *AdminKeyAuth) Verify(key string) error {
	if !a.Enabled() {
		return ErrAdminDisabled
	}
	if key == "" {
		return ErrAdminKeyInvalid
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(key)); err != nil {
		return ErrAdminKeyInvalid
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Referrer policy
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Content security policy for a JSON-only API
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				http.Error(w, `{"error":"request body too large"}`,
					http.StatusRequestEntityTooLarge)
				return
			}

			// Also limit the actual body reading
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ChainHandler chains middleware and wraps a final handler.
func ChainHandler(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	return Chain(middlewares...)(handler)
}
