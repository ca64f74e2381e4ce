package profileapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOKEN PROVIDERS
// The profile server authenticates every call with a Bearer token whose
// subject must match the userId in the URL. Providers abstract where
// that token comes from.
// ══════════════════════════════════════════════════════════════════════════════

// TokenProvider supplies the Bearer token attached to each request.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// ErrNoToken is returned when a provider has nothing to offer.
var ErrNoToken = errors.New("no api token available")

// ─────────────────────────────────────────────────────────────────────────────
// Static provider
// ─────────────────────────────────────────────────────────────────────────────

// StaticTokenProvider returns the same pre-issued token on every call.
// Used when PROFILE_API_TOKEN is set in the environment.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider around a fixed token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

// Token returns the configured token.
func (p *StaticTokenProvider) Token(_ context.Context) (string, error) {
	if p.token == "" {
		return "", ErrNoToken
	}
	return p.token, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// HMAC provider
// ─────────────────────────────────────────────────────────────────────────────

// Claims is the JWT payload the profile server expects. The email claim
// is optional: the server uses it to backfill a profile created without
// an explicit email.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// HMACTokenProvider mints short-lived HS256 tokens locally from a shared
// secret. Tokens are cached and re-minted shortly before expiry so the
// sync engine never pushes with a stale one.
type HMACTokenProvider struct {
	mu sync.Mutex

	secret []byte
	userID string
	email  string
	issuer string
	ttl    time.Duration

	cached    string
	expiresAt time.Time
}

// renewMargin is how long before expiry a cached token is considered stale.
const renewMargin = 30 * time.Second

// NewHMACTokenProvider creates a provider minting tokens for the given user.
func NewHMACTokenProvider(secret, userID, email string, ttl time.Duration) *HMACTokenProvider {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &HMACTokenProvider{
		secret: []byte(secret),
		userID: userID,
		email:  email,
		issuer: "pykids-agent",
		ttl:    ttl,
	}
}

// Token returns a valid token, minting a fresh one when the cached token
// is missing or close to expiry.
func (p *HMACTokenProvider) Token(_ context.Context) (string, error) {
	if len(p.secret) == 0 {
		return "", ErrNoToken
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.cached != "" && now.Before(p.expiresAt.Add(-renewMargin)) {
		return p.cached, nil
	}

	expiresAt := now.Add(p.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.userID,
			Issuer:    p.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: p.email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", err
	}

	p.cached = signed
	p.expiresAt = expiresAt
	return signed, nil
}

// Invalidate drops the cached token so the next call mints a new one.
func (p *HMACTokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = ""
	p.expiresAt = time.Time{}
}
