package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/pykids/progress-hub/internal/interface/http/handlers"
)

const testSecret = "agent-shared-secret"

// ══════════════════════════════════════════════════════════════════════════════
// TEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, mutate ...func(*Config, *Dependencies)) (*Server, *memory.ProfileStore) {
	t.Helper()

	store := memory.NewProfileStore()
	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	cfg.RateLimitPerMinute = 0

	deps := Dependencies{
		Profiles: store,
		Logger:   discardLogger(),
	}
	for _, m := range mutate {
		m(&cfg, &deps)
	}

	return NewServer(cfg, deps), store
}

func mintToken(t *testing.T, subject, email string) string {
	t.Helper()

	now := time.Now()
	claims := handlers.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "pykids-agent",
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeProfileView(t *testing.T, rec *httptest.ResponseRecorder) profileView {
	t.Helper()

	var view profileView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func seedProfile(t *testing.T, store *memory.ProfileStore, id, email, avatar string) {
	t.Helper()

	p, err := profile.New(id, email, avatar)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), p))
}

type fakeSweep struct {
	runs int
	err  error
}

func (f *fakeSweep) Run(ctx context.Context) error {
	f.runs++
	return f.err
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_UserRoutesRequireBearerToken(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/users/user-42/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing or invalid Authorization header", errorMessage(t, rec))
}

func TestServer_UserRoutesRejectInvalidToken(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/users/user-42/profile", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", errorMessage(t, rec))
}

func TestServer_UserRoutesRejectForeignSubject(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	// The token is valid but belongs to a different student.
	token := mintToken(t, "user-7", "timur@pykids.dev")
	rec := doJSON(t, s, http.MethodGet, "/api/users/user-42/profile", token, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized: User ID does not match token", errorMessage(t, rec))
}

func TestServer_NoSecretDisablesUserAuth(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *Config, _ *Dependencies) {
		cfg.JWTSecret = ""
	})

	// Reaching the handler yields a domain 404, not an auth 401.
	rec := doJSON(t, s, http.MethodGet, "/api/users/user-42/profile", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", errorMessage(t, rec))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_GetProfile(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")
	rec := doJSON(t, s, http.MethodGet, "/api/users/user-42/profile", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	// Every response carries a generated request id.
	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	assert.NoError(t, err)

	view := decodeProfileView(t, rec)
	assert.Equal(t, "user-42", view.ID)
	assert.Equal(t, "mira@pykids.dev", view.Email)
	assert.Equal(t, "robot", view.SelectedAvatar)
	assert.NotNil(t, view.Progress)
	assert.Zero(t, view.TotalScore)
	assert.NotEmpty(t, view.CreatedAt)
}

func TestServer_GetProfile_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	token := mintToken(t, "user-404", "ghost@pykids.dev")
	rec := doJSON(t, s, http.MethodGet, "/api/users/user-404/profile", token, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", errorMessage(t, rec))
}

func TestServer_CreateProfile(t *testing.T) {
	s, store := newTestServer(t)

	token := mintToken(t, "user-42", "mira@pykids.dev")
	rec := doJSON(t, s, http.MethodPost, "/api/users/user-42/profile", token, map[string]string{
		"email":          "mira@pykids.dev",
		"selectedAvatar": "robot",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var lite profileLiteView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lite))
	assert.Equal(t, "user-42", lite.ID)
	assert.Equal(t, "mira@pykids.dev", lite.Email)
	assert.Equal(t, "robot", lite.SelectedAvatar)

	stored, err := store.GetByID(context.Background(), "user-42")
	require.NoError(t, err)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Equal(t, 0, stored.Progress.Len())
}

func TestServer_CreateProfile_EmailFallsBackToTokenClaim(t *testing.T) {
	s, store := newTestServer(t)

	token := mintToken(t, "user-42", "mira@pykids.dev")
	rec := doJSON(t, s, http.MethodPost, "/api/users/user-42/profile", token, map[string]string{
		"selectedAvatar": "astronaut",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := store.GetByID(context.Background(), "user-42")
	require.NoError(t, err)
	assert.Equal(t, "mira@pykids.dev", stored.Email)
}

func TestServer_PostExistingProfile_UpdatesAvatar(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")
	rec := doJSON(t, s, http.MethodPost, "/api/users/user-42/profile", token, map[string]string{
		"selectedAvatar": "astronaut",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var lite profileLiteView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lite))
	assert.Equal(t, "astronaut", lite.SelectedAvatar)

	stored, err := store.GetByID(context.Background(), "user-42")
	require.NoError(t, err)
	assert.Equal(t, "astronaut", stored.SelectedAvatar)
}

func TestServer_PostExistingProfile_RequiresAvatar(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")
	rec := doJSON(t, s, http.MethodPost, "/api/users/user-42/profile", token, map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "selectedAvatar is required", errorMessage(t, rec))
}

func TestServer_PostProfile_RejectsMalformedBody(t *testing.T) {
	s, _ := newTestServer(t)

	token := mintToken(t, "user-42", "mira@pykids.dev")
	req := httptest.NewRequest(http.MethodPost, "/api/users/user-42/profile", strings.NewReader("{broken"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON payload", errorMessage(t, rec))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS ENDPOINT
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_UpdateProgress_FirstCompletion(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")
	rec := doJSON(t, s, http.MethodPut, "/api/users/user-42/progress", token, map[string]interface{}{
		"moduleId":  "variables-and-data",
		"topicId":   "numbers",
		"completed": true,
		"score":     10,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeProfileView(t, rec)
	assert.Equal(t, 10, view.TotalScore)
	assert.Equal(t, 1, view.CompletedLessons)
	assert.Equal(t, 0, view.CompletedQuizzes)
	require.NotNil(t, view.LastActiveLesson)
	assert.Equal(t, "variables-and-data", view.LastActiveLesson.ModuleID)
	assert.Equal(t, "numbers", view.LastActiveLesson.TopicID)

	stored, ok := view.Progress.Get("variables-and-data", "numbers")
	require.True(t, ok)
	assert.True(t, stored.Completed)
	assert.Equal(t, 10, stored.Score)
	assert.NotNil(t, stored.CompletedAt)
}

func TestServer_UpdateProgress_ReplayDoesNotDoubleCount(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")
	body := map[string]interface{}{
		"moduleId":  "loops",
		"topicId":   "for-loops",
		"completed": true,
		"score":     25,
	}

	first := doJSON(t, s, http.MethodPut, "/api/users/user-42/progress", token, body)
	require.Equal(t, http.StatusOK, first.Code)

	// An agent retrying a drained update sends the identical body again.
	second := doJSON(t, s, http.MethodPut, "/api/users/user-42/progress", token, body)
	require.Equal(t, http.StatusOK, second.Code)

	view := decodeProfileView(t, second)
	assert.Equal(t, 25, view.TotalScore)
	assert.Equal(t, 1, view.CompletedLessons)
}

func TestServer_UpdateProgress_QuizTopic(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")
	rec := doJSON(t, s, http.MethodPut, "/api/users/user-42/progress", token, map[string]interface{}{
		"moduleId":  "loops",
		"topicId":   "quiz",
		"completed": true,
		"score":     50,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeProfileView(t, rec)
	assert.Equal(t, 1, view.CompletedQuizzes)
	assert.Equal(t, 0, view.CompletedLessons)
	assert.Equal(t, 50, view.TotalScore)
}

func TestServer_UpdateProgress_MissingScoreKeepsStored(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")

	// Visit the topic first without completing it, banking a score of 7.
	rec := doJSON(t, s, http.MethodPut, "/api/users/user-42/progress", token, map[string]interface{}{
		"moduleId":  "variables-and-data",
		"topicId":   "strings",
		"completed": false,
		"score":     7,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeProfileView(t, rec).TotalScore)

	// Completion without a score keeps the stored one.
	rec = doJSON(t, s, http.MethodPut, "/api/users/user-42/progress", token, map[string]interface{}{
		"moduleId":  "variables-and-data",
		"topicId":   "strings",
		"completed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeProfileView(t, rec)
	assert.Equal(t, 7, view.TotalScore)
	stored, ok := view.Progress.Get("variables-and-data", "strings")
	require.True(t, ok)
	assert.Equal(t, 7, stored.Score)
}

func TestServer_UpdateProgress_Validation(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")

	cases := []map[string]interface{}{
		{},
		{"moduleId": "loops", "completed": true},
		{"topicId": "for-loops", "completed": true},
		{"moduleId": "loops", "topicId": "for-loops"},
	}
	for _, body := range cases {
		rec := doJSON(t, s, http.MethodPut, "/api/users/user-42/progress", token, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "moduleId, topicId, and completed are required", errorMessage(t, rec))
	}
}

func TestServer_UpdateProgress_RejectsNegativeScore(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")
	rec := doJSON(t, s, http.MethodPut, "/api/users/user-42/progress", token, map[string]interface{}{
		"moduleId":  "loops",
		"topicId":   "for-loops",
		"completed": true,
		"score":     -5,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "score cannot be negative")
}

func TestServer_UpdateProgress_UnknownUser(t *testing.T) {
	s, _ := newTestServer(t)

	token := mintToken(t, "user-404", "ghost@pykids.dev")
	rec := doJSON(t, s, http.MethodPut, "/api/users/user-404/progress", token, map[string]interface{}{
		"moduleId":  "loops",
		"topicId":   "for-loops",
		"completed": true,
		"score":     10,
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", errorMessage(t, rec))
}

// ══════════════════════════════════════════════════════════════════════════════
// WHOLE-DOCUMENT REPLACE
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_ReplaceProfile_RecomputesTotals(t *testing.T) {
	s, store := newTestServer(t)
	seedProfile(t, store, "user-42", "mira@pykids.dev", "robot")

	token := mintToken(t, "user-42", "mira@pykids.dev")

	// Totals in the body are deliberately wrong; the server must derive
	// its own from the progress map.
	rec := doJSON(t, s, http.MethodPut, "/api/users/user-42/profile", token, map[string]interface{}{
		"email":          "mira@pykids.dev",
		"selectedAvatar": "astronaut",
		"totalScore":     999,
		"progress": map[string]interface{}{
			"variables-and-data": map[string]interface{}{
				"numbers": map[string]interface{}{"completed": true, "score": 10},
				"strings": map[string]interface{}{"completed": true, "score": 20},
				"quiz":    map[string]interface{}{"completed": true, "score": 50},
			},
		},
		"lastActiveLesson": map[string]string{
			"moduleId": "variables-and-data",
			"topicId":  "quiz",
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeProfileView(t, rec)
	assert.Equal(t, 80, view.TotalScore)
	assert.Equal(t, 2, view.CompletedLessons)
	assert.Equal(t, 1, view.CompletedQuizzes)
	assert.Equal(t, "astronaut", view.SelectedAvatar)
	require.NotNil(t, view.LastActiveLesson)
	assert.Equal(t, "quiz", view.LastActiveLesson.TopicID)
	assert.NotEmpty(t, view.UpdatedAt)

	stored, err := store.GetByID(context.Background(), "user-42")
	require.NoError(t, err)
	assert.Equal(t, 80, stored.TotalScore)
}

func TestServer_ReplaceProfile_UnknownUser(t *testing.T) {
	s, _ := newTestServer(t)

	token := mintToken(t, "user-404", "ghost@pykids.dev")
	rec := doJSON(t, s, http.MethodPut, "/api/users/user-404/profile", token, map[string]interface{}{
		"email":          "ghost@pykids.dev",
		"selectedAvatar": "robot",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", errorMessage(t, rec))
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM, HEALTH & SERVICE ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_Curriculum(t *testing.T) {
	s, _ := newTestServer(t)

	// Content metadata is public, no token required.
	rec := doJSON(t, s, http.MethodGet, "/api/curriculum", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view curriculumView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.NotEmpty(t, view.Version)
	require.NotEmpty(t, view.Modules)
	assert.Equal(t, "python-basics", view.Modules[0].ID)
	for _, m := range view.Modules {
		assert.NotEmpty(t, m.Lessons)
		assert.Equal(t, "quiz", m.Quiz.ID)
		assert.True(t, strings.HasSuffix(m.Quiz.Title, "Quiz"))
	}
}

func TestServer_HealthDefault(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_HealthReportsFailingDependency(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("v1")
	checker.AddCheck("database", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	s, _ := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.HealthChecker = checker
	})

	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])

	// Readiness follows the same aggregate.
	rec = doJSON(t, s, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RootAndProbes(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PyKIDS")

	rec = doJSON(t, s, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/no-such-page", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN SWEEP
// ══════════════════════════════════════════════════════════════════════════════

func adminKeyHash(t *testing.T, key string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestServer_AdminSweep_HiddenWhenDisabled(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/admin/sweep", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AdminSweep_RejectsWrongKey(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *Config, _ *Dependencies) {
		cfg.AdminKeyHash = adminKeyHash(t, "maintenance-key")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/sweep", nil)
	req.Header.Set(handlers.AdminKeyHeader, "wrong-key")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid admin key", errorMessage(t, rec))
}

func TestServer_AdminSweep_RunsSweep(t *testing.T) {
	sweep := &fakeSweep{}
	s, _ := newTestServer(t, func(cfg *Config, deps *Dependencies) {
		cfg.AdminKeyHash = adminKeyHash(t, "maintenance-key")
		deps.Sweep = sweep
	})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/sweep", nil)
	req.Header.Set(handlers.AdminKeyHeader, "maintenance-key")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sweep.runs)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "completed", body["status"])
}

func TestServer_AdminSweep_ReportsFailure(t *testing.T) {
	sweep := &fakeSweep{err: errors.New("sweep interrupted")}
	s, _ := newTestServer(t, func(cfg *Config, deps *Dependencies) {
		cfg.AdminKeyHash = adminKeyHash(t, "maintenance-key")
		deps.Sweep = sweep
	})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/sweep", nil)
	req.Header.Set(handlers.AdminKeyHeader, "maintenance-key")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "sweep interrupted", errorMessage(t, rec))
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE BEHAVIOUR
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_RateLimitBlocksBursts(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *Config, _ *Dependencies) {
		cfg.RateLimitPerMinute = 2
	})

	// httptest requests share a RemoteAddr, so they land in one bucket.
	doJSON(t, s, http.MethodGet, "/health", "", nil)
	doJSON(t, s, http.MethodGet, "/health", "", nil)
	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestServer_RejectsOversizedBody(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *Config, _ *Dependencies) {
		cfg.MaxBodyBytes = 32
	})

	token := mintToken(t, "user-42", "mira@pykids.dev")
	payload := strings.Repeat("x", 128)
	rec := doJSON(t, s, http.MethodPost, "/api/users/user-42/profile", token, map[string]string{
		"selectedAvatar": payload,
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
