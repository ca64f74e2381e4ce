package profileapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the profile server API client.
type ClientConfig struct {
	// BaseURL is the profile server base URL
	BaseURL string

	// Tokens supplies the Bearer token for each request
	Tokens TokenProvider

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimiterConfig for API rate limiting
	RateLimiterConfig RateLimiterConfig

	// CircuitBreakerConfig for fault tolerance
	CircuitBreakerConfig CircuitBreakerConfig

	// RetryConfig for retry behavior
	RetryConfig RetryConfig

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:              baseURL,
		Timeout:              15 * time.Second,
		RateLimiterConfig:    DefaultRateLimiterConfig(),
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
		RetryConfig:          DefaultRetryConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the profile server API client. It is the only component
// allowed to talk to the remote store; everything else goes through the
// sync engine or the session cache.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	mapper         *Mapper
	tokens         TokenProvider
}

// NewClient creates a new profile server API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:         config.Logger,
		rateLimiter:    NewRateLimiter(config.RateLimiterConfig),
		circuitBreaker: NewCircuitBreaker(config.CircuitBreakerConfig),
		mapper:         NewMapper(),
		tokens:         config.Tokens,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SENTINEL ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotFound - the server has no profile for this user.
	ErrNotFound = errors.New("profile not found")

	// ErrUnauthorized - the token is missing, malformed or expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden - the token subject does not match the requested user.
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest - the server rejected the request body.
	ErrBadRequest = errors.New("bad request")
)

// classifyAPIError maps HTTP status codes onto package sentinels so
// callers can branch with errors.Is without parsing messages.
func classifyAPIError(err error) error {
	var apiErr *APIErrorDTO
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, apiErr.Message)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchProfile fetches the full profile for a user.
// Returns ErrNotFound when no profile exists yet.
func (c *Client) FetchProfile(ctx context.Context, userID string) (*ProfileDTO, error) {
	path := fmt.Sprintf("/api/users/%s/profile", url.PathEscape(userID))

	var response ProfileDTO
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", userID, classifyAPIError(err))
	}

	return &response, nil
}

// CreateProfile creates a profile for a user, or updates the avatar when
// the profile already exists. The server resolves a missing email from
// the token, so the request may omit it.
func (c *Client) CreateProfile(ctx context.Context, userID string, req CreateProfileRequestDTO) (*ProfileLiteDTO, error) {
	path := fmt.Sprintf("/api/users/%s/profile", url.PathEscape(userID))

	var response ProfileLiteDTO
	if err := c.doRequest(ctx, http.MethodPost, path, req, &response); err != nil {
		return nil, fmt.Errorf("create profile %s: %w", userID, classifyAPIError(err))
	}

	return &response, nil
}

// PushProgress sends one progress update and returns the updated profile
// as the server now stores it.
func (c *Client) PushProgress(ctx context.Context, userID string, req UpdateProgressRequestDTO) (*ProfileDTO, error) {
	path := fmt.Sprintf("/api/users/%s/progress", url.PathEscape(userID))

	var response ProfileDTO
	if err := c.doRequest(ctx, http.MethodPut, path, req, &response); err != nil {
		return nil, fmt.Errorf("push progress %s/%s: %w", req.ModuleID, req.TopicID, classifyAPIError(err))
	}

	return &response, nil
}

// PutProfile replaces the whole stored profile document. The server
// recomputes aggregate totals before storing, so totals sent here are
// advisory only.
func (c *Client) PutProfile(ctx context.Context, userID string, req *ProfileDTO) (*ProfileDTO, error) {
	path := fmt.Sprintf("/api/users/%s/profile", url.PathEscape(userID))

	var response ProfileDTO
	if err := c.doRequest(ctx, http.MethodPut, path, req, &response); err != nil {
		return nil, fmt.Errorf("put profile %s: %w", userID, classifyAPIError(err))
	}

	return &response, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN-LEVEL OPERATIONS
// Convenience wrappers that map wire shapes to domain entities.
// ══════════════════════════════════════════════════════════════════════════════

// GetProfile fetches the profile and maps it to a domain entity.
// A missing profile surfaces as the domain sentinel so that callers
// above the wire layer never match on transport errors.
func (c *Client) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	dto, err := c.FetchProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", profile.ErrProfileNotFound, userID)
		}
		return nil, err
	}
	return c.mapper.ProfileFromDTO(dto)
}

// PushUpdate sends one progress update and returns the profile the
// server stored after merging it.
func (c *Client) PushUpdate(ctx context.Context, u progress.Update) (*profile.Profile, error) {
	dto, err := c.PushProgress(ctx, u.UserID, c.mapper.UpdateToDTO(u))
	if err != nil {
		return nil, err
	}
	return c.mapper.ProfileFromDTO(dto)
}

// ReplaceProfile writes the whole profile document to the remote store.
// The drain path uses it after a local read-merge: last write wins on
// same-key conflicts, disjoint keys survive because the write carries
// the freshly fetched remote state.
func (c *Client) ReplaceProfile(ctx context.Context, p *profile.Profile) (*profile.Profile, error) {
	dto, err := c.PutProfile(ctx, p.ID, c.mapper.ProfileToDTO(p))
	if err != nil {
		return nil, err
	}
	return c.mapper.ProfileFromDTO(dto)
}

// UpdateAvatar changes the stored avatar. The server treats profile
// creation as an upsert, so the same wire call serves both cases.
func (c *Client) UpdateAvatar(ctx context.Context, userID, email, avatar string) (*profile.Profile, error) {
	lite, err := c.CreateProfile(ctx, userID, CreateProfileRequestDTO{
		Email:          email,
		SelectedAvatar: avatar,
	})
	if err != nil {
		return nil, err
	}
	return c.mapper.ProfileFromLiteDTO(lite)
}

// EnsureProfile fetches the profile, creating it first when the server
// does not know the user yet. This is the session bootstrap path.
func (c *Client) EnsureProfile(ctx context.Context, userID, email, avatar string) (*profile.Profile, error) {
	p, err := c.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, profile.ErrProfileNotFound) {
		return nil, err
	}

	lite, err := c.CreateProfile(ctx, userID, CreateProfileRequestDTO{
		Email:          email,
		SelectedAvatar: avatar,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("profile created on remote store", "user_id", lite.ID)
	return c.mapper.ProfileFromLiteDTO(lite)
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request with rate limiting, circuit breaking, and retries.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	// Check circuit breaker
	if err := c.circuitBreaker.Allow(); err != nil {
		return fmt.Errorf("circuit breaker: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryConfig.CalculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		// Wait for rate limiter
		if err := c.rateLimiter.Allow(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := c.doSingleRequest(ctx, method, path, body, result)
		if err == nil {
			c.circuitBreaker.RecordSuccess()
			return nil
		}

		lastErr = err

		// Check if error is retryable
		if !c.isRetryable(err) {
			c.circuitBreaker.RecordFailure()
			return err
		}

		// Handle rate limit response
		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
		}
	}

	c.circuitBreaker.RecordFailure()
	return fmt.Errorf("request failed after %d retries: %w", c.config.RetryConfig.MaxRetries, lastErr)
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("api token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.config.Debug {
		c.logger.Debug("profile api request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	// Handle error responses; the server always answers {"error": "..."}
	if resp.StatusCode >= 400 {
		apiErr := APIErrorDTO{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return &apiErr
		}
		apiErr.Message = http.StatusText(resp.StatusCode)
		return &apiErr
	}

	// Unmarshal response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// isRetryable checks if an error is retryable.
// Client errors (4xx) are permanent: retrying an invalid update or a bad
// token is wasted work. Server errors and network failures are transient.
func (c *Client) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Rate limit errors are retryable
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	// API errors - check status code
	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}

	// Network errors are generally retryable
	errStr := err.Error()
	return containsAny(errStr, []string{"timeout", "connection refused", "temporary", "reset", "EOF"})
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if len(s) >= len(sub) && findStr(s, sub) >= 0 {
			return true
		}
	}
	return false
}

// findStr finds substr in s.
func findStr(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the profile server is reachable and its database
// is connected. Used by the sync engine as the online probe, so it goes
// through doSingleRequest and never consumes retry budget.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var response struct {
		Status string `json:"status"`
	}
	err := c.doSingleRequest(ctx, http.MethodGet, "/health", nil, &response)
	return err == nil && response.Status == "healthy"
}

// ClientStatus contains the current status of the client.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus
	CircuitBreaker CircuitBreakerStatus
	IsHealthy      bool
}

// Status returns the current status of the client.
func (c *Client) Status(ctx context.Context) ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.circuitBreaker.Status(),
		IsHealthy:      c.IsHealthy(ctx),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.circuitBreaker.Reset()
}
