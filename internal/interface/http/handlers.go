package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pykids/progress-hub/internal/domain/curriculum"
	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"message": "Welcome to the PyKIDS progress hub! Try /api/users/{id}/profile",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":     "/health",
			"profile":    "/api/users/{id}/profile",
			"progress":   "/api/users/{id}/progress",
			"curriculum": "/api/curriculum",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint. Sync agents probe it
// to decide online/offline, so the top-level status string must read
// "healthy" exactly when the server can serve them.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the JSON metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	if count, err := s.deps.Profiles.Count(r.Context()); err == nil {
		metrics["profiles"] = count
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProfile handles GET /api/users/{id}/profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	p, err := s.deps.Profiles.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			writeJSONError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("failed to load profile", "error", err, "user_id", userID)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, newProfileView(p))
}

// handleCreateOrUpdateProfile handles POST /api/users/{id}/profile.
// An existing profile gets its avatar updated; a missing one is created
// with an empty progress map. A missing email falls back to the email
// claim of the verified token.
func (s *Server) handleCreateOrUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req createProfileRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	exists, err := s.deps.Profiles.Exists(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to check profile existence", "error", err, "user_id", userID)
		writeJSONError(w, http.StatusInternalServerError, "Failed to update or create user")
		return
	}

	if exists {
		s.applyAvatarUpdate(w, r, userID, req.SelectedAvatar)
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = tokenEmail(r.Context())
	}

	p, err := profile.New(userID, email, req.SelectedAvatar)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Profiles.Create(r.Context(), p); err != nil {
		// Two sibling agents can race the first create; the loser
		// degrades to the same avatar-update path a plain POST to an
		// existing profile takes.
		if errors.Is(err, profile.ErrProfileAlreadyExists) {
			s.applyAvatarUpdate(w, r, userID, req.SelectedAvatar)
			return
		}
		s.logger.Error("failed to create profile", "error", err, "user_id", userID)
		writeJSONError(w, http.StatusInternalServerError, "Failed to update or create user")
		return
	}

	s.logger.Info("profile created", "user_id", userID)
	writeJSON(w, http.StatusOK, newProfileLiteView(p))
}

// applyAvatarUpdate is the existing-profile branch of POST profile.
func (s *Server) applyAvatarUpdate(w http.ResponseWriter, r *http.Request, userID, avatar string) {
	if strings.TrimSpace(avatar) == "" {
		writeJSONError(w, http.StatusBadRequest, "selectedAvatar is required")
		return
	}

	p, err := s.deps.Profiles.UpdateAvatar(r.Context(), userID, avatar)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			writeJSONError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("failed to update avatar", "error", err, "user_id", userID)
		writeJSONError(w, http.StatusInternalServerError, "Failed to update or create user")
		return
	}

	writeJSON(w, http.StatusOK, newProfileLiteView(p))
}

// handleReplaceProfile handles PUT /api/users/{id}/profile: the
// whole-document write used by draining agents after a local
// read-merge. Aggregate totals in the body are ignored; the server
// recomputes them from the progress map before storing.
func (s *Server) handleReplaceProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req replaceProfileRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	p := &profile.Profile{
		ID:               userID,
		Email:            strings.TrimSpace(req.Email),
		SelectedAvatar:   strings.TrimSpace(req.SelectedAvatar),
		Progress:         req.Progress,
		LastActiveLesson: req.LastActiveLesson,
	}
	if p.Progress == nil {
		p.Progress = progress.NewMap()
	}
	if p.Email == "" {
		p.Email = tokenEmail(r.Context())
	}
	p.RecomputeTotals()

	if err := s.deps.Profiles.Replace(r.Context(), p); err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			writeJSONError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("failed to replace profile", "error", err, "user_id", userID)
		writeJSONError(w, http.StatusInternalServerError, "Failed to replace profile")
		return
	}

	// Read back for authoritative timestamps; the write itself landed.
	stored, err := s.deps.Profiles.GetByID(r.Context(), userID)
	if err != nil {
		s.logger.Warn("replaced profile could not be read back", "error", err, "user_id", userID)
		writeJSON(w, http.StatusOK, newProfileView(p))
		return
	}

	writeJSON(w, http.StatusOK, newProfileView(stored))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleUpdateProgress handles PUT /api/users/{id}/progress: one
// topic-level update merged server-side in a single transaction. The
// score feeds the total only on an incomplete-to-complete transition,
// so replaying the same completion never double-counts.
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req updateProgressRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if strings.TrimSpace(req.ModuleID) == "" || strings.TrimSpace(req.TopicID) == "" || req.Completed == nil {
		writeJSONError(w, http.StatusBadRequest, "moduleId, topicId, and completed are required")
		return
	}

	kind := curriculum.TypeLesson
	if req.TopicID == curriculum.QuizTopicID {
		kind = curriculum.TypeQuiz
	}

	score := 0
	if req.Score != nil {
		score = *req.Score
	} else {
		// A body without a score keeps the stored one. The lookup runs
		// outside the merge transaction; the merge itself still
		// serializes on the row lock.
		p, err := s.deps.Profiles.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, profile.ErrProfileNotFound) {
				writeJSONError(w, http.StatusNotFound, "User not found")
				return
			}
			s.logger.Error("failed to load profile", "error", err, "user_id", userID)
			writeJSONError(w, http.StatusInternalServerError, "Failed to update progress")
			return
		}
		if rec, ok := p.Progress.Get(req.ModuleID, req.TopicID); ok {
			score = rec.Score
		}
	}

	u, err := progress.NewUpdate(userID, req.ModuleID, req.TopicID, *req.Completed, score, kind)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, isNew, err := s.deps.Profiles.ApplyUpdate(r.Context(), userID, u)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			writeJSONError(w, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("failed to apply progress update", "error", err,
			"user_id", userID, "key", u.Key())
		writeJSONError(w, http.StatusInternalServerError, "Failed to update progress")
		return
	}

	s.logger.Debug("progress updated",
		"user_id", userID,
		"key", u.Key(),
		"completed", u.Completed,
		"new_completion", isNew,
	)
	writeJSON(w, http.StatusOK, newProfileView(updated))
}

// ══════════════════════════════════════════════════════════════════════════════
// CURRICULUM HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleCurriculum handles GET /api/curriculum
func (s *Server) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newCurriculumView(s.deps.Curriculum))
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleAdminSweep handles POST /api/admin/sweep: a manual run of the
// aggregate integrity sweep. With no admin key configured the endpoint
// answers 404.
func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	if err := s.adminAuth.Verify(r.Header.Get(handlers.AdminKeyHeader)); err != nil {
		if errors.Is(err, handlers.ErrAdminDisabled) {
			writeJSONError(w, http.StatusNotFound, "Not found")
			return
		}
		s.logger.Warn("admin key rejected", "ip", getClientIP(r))
		writeJSONError(w, http.StatusUnauthorized, "Invalid admin key")
		return
	}

	if s.deps.Sweep == nil {
		writeJSONError(w, http.StatusNotImplemented, "Sweep is not configured")
		return
	}

	s.logger.Info("manual integrity sweep requested", "ip", getClientIP(r))

	if err := s.deps.Sweep.Run(r.Context()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST & VIEW TYPES
// Wire shapes of the profile API. Field names follow the JSON contract
// of the original backend, not Go conventions.
// ══════════════════════════════════════════════════════════════════════════════

// createProfileRequest is the body of POST profile.
type createProfileRequest struct {
	Email          string `json:"email"`
	SelectedAvatar string `json:"selectedAvatar"`
}

// updateProgressRequest is the body of PUT progress. Completed is a
// pointer to tell an absent field from an explicit false; a nil Score
// keeps the previously stored score.
type updateProgressRequest struct {
	ModuleID  string `json:"moduleId"`
	TopicID   string `json:"topicId"`
	Completed *bool  `json:"completed"`
	Score     *int   `json:"score"`
}

// replaceProfileRequest is the body of PUT profile: the whole document.
// Totals sent by the client are not part of this shape on purpose.
type replaceProfileRequest struct {
	Email            string            `json:"email"`
	SelectedAvatar   string            `json:"selectedAvatar"`
	Progress         progress.Map      `json:"progress"`
	LastActiveLesson *progress.Pointer `json:"lastActiveLesson"`
}

// profileView is the full profile document as served to clients.
type profileView struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	SelectedAvatar   string            `json:"selectedAvatar"`
	Progress         progress.Map      `json:"progress"`
	TotalScore       int               `json:"totalScore"`
	CompletedLessons int               `json:"completedLessons"`
	CompletedQuizzes int               `json:"completedQuizzes"`
	LastActiveLesson *progress.Pointer `json:"lastActiveLesson"`
	CreatedAt        string            `json:"createdAt,omitempty"`
	UpdatedAt        string            `json:"updatedAt,omitempty"`
}

// newProfileView maps a domain profile onto its wire shape.
func newProfileView(p *profile.Profile) *profileView {
	view := &profileView{
		ID:               p.ID,
		Email:            p.Email,
		SelectedAvatar:   p.SelectedAvatar,
		Progress:         p.Progress,
		TotalScore:       p.TotalScore,
		CompletedLessons: p.CompletedLessons,
		CompletedQuizzes: p.CompletedQuizzes,
		LastActiveLesson: p.LastActiveLesson,
	}
	if view.Progress == nil {
		view.Progress = progress.NewMap()
	}
	if !p.CreatedAt.IsZero() {
		view.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		view.UpdatedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return view
}

// profileLiteView is the minimal shape returned by POST profile.
type profileLiteView struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	SelectedAvatar string `json:"selectedAvatar"`
}

// newProfileLiteView maps a domain profile onto the create response.
func newProfileLiteView(p *profile.Profile) *profileLiteView {
	return &profileLiteView{
		ID:             p.ID,
		Email:          p.Email,
		SelectedAvatar: p.SelectedAvatar,
	}
}

// curriculumView is the curriculum as served on GET /api/curriculum.
type curriculumView struct {
	Version string       `json:"version"`
	Modules []moduleView `json:"modules"`
}

type moduleView struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Lessons     []lessonView `json:"lessons"`
	Quiz        lessonView   `json:"quiz"`
}

type lessonView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// newCurriculumView maps the curriculum onto its wire shape. The module
// quiz is addressed by the reserved topic id, same as in progress maps.
func newCurriculumView(c *curriculum.Curriculum) *curriculumView {
	view := &curriculumView{
		Version: c.Version,
		Modules: make([]moduleView, 0, len(c.Modules)),
	}
	for _, m := range c.Modules {
		lessons := make([]lessonView, 0, len(m.Lessons))
		for _, l := range m.Lessons {
			lessons = append(lessons, lessonView{ID: l.ID, Title: l.Title})
		}
		view.Modules = append(view.Modules, moduleView{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			Lessons:     lessons,
			Quiz:        lessonView{ID: curriculum.QuizTopicID, Title: m.QuizTitle()},
		})
	}
	return view
}

// decodeJSONBody decodes a JSON request body into dst.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
