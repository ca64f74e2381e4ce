// Package profileapi implements the remote profile store API client.
package profileapi

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// Wire shapes of the profile server. Field names follow the JSON the
// server emits, not Go conventions.
// ══════════════════════════════════════════════════════════════════════════════

// RecordDTO is one per-topic progress record as stored remotely.
//
// Score is a pointer: historical rows written before the score field
// existed omit it, and a PUT without a score must not zero the stored
// one. Nil means "not present".
type RecordDTO struct {
	Completed   bool    `json:"completed"`
	Score       *int    `json:"score,omitempty"`
	CompletedAt *string `json:"completedAt,omitempty"`
}

// PointerDTO identifies the last opened piece of content.
type PointerDTO struct {
	ModuleID string `json:"moduleId"`
	TopicID  string `json:"topicId"`
}

// ProfileDTO is the full profile as returned by GET profile and
// PUT progress.
type ProfileDTO struct {
	ID               string                          `json:"id"`
	Email            string                          `json:"email"`
	SelectedAvatar   string                          `json:"selectedAvatar"`
	Progress         map[string]map[string]RecordDTO `json:"progress"`
	TotalScore       int                             `json:"totalScore"`
	CompletedLessons int                             `json:"completedLessons"`
	CompletedQuizzes int                             `json:"completedQuizzes"`
	LastActiveLesson *PointerDTO                     `json:"lastActiveLesson"`
	CreatedAt        *string                         `json:"createdAt,omitempty"`
	UpdatedAt        *string                         `json:"updatedAt,omitempty"`
}

// ProfileLiteDTO is the minimal shape returned by POST profile.
type ProfileLiteDTO struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	SelectedAvatar string `json:"selectedAvatar"`
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

// CreateProfileRequestDTO is the body of POST profile.
// For an existing profile only the avatar is applied.
type CreateProfileRequestDTO struct {
	Email          string `json:"email,omitempty"`
	SelectedAvatar string `json:"selectedAvatar,omitempty"`
}

// UpdateProgressRequestDTO is the body of PUT progress.
type UpdateProgressRequestDTO struct {
	ModuleID  string `json:"moduleId"`
	TopicID   string `json:"topicId"`
	Completed bool   `json:"completed"`
	Score     *int   `json:"score,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR DTO
// ══════════════════════════════════════════════════════════════════════════════

// APIErrorDTO is the error body the server returns on 4xx/5xx:
// {"error": "..."}. StatusCode is filled in by the client.
type APIErrorDTO struct {
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("profile api: %s (status %d)", e.Message, e.StatusCode)
	}
	return "profile api: " + e.Message
}
