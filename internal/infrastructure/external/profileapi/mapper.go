package profileapi

import (
	"time"

	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to Domain Entity transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper handles transformation between profile server DTOs and domain
// entities. This follows the Anti-Corruption Layer pattern from DDD,
// protecting our domain from wire format changes.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// ProfileFromDTO converts a ProfileDTO to a domain Profile entity.
func (m *Mapper) ProfileFromDTO(dto *ProfileDTO) (*profile.Profile, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	progressMap := progress.NewMap()
	for moduleID, topics := range dto.Progress {
		for topicID, rec := range topics {
			progressMap.Set(moduleID, topicID, m.RecordFromDTO(rec))
		}
	}

	var pointer *progress.Pointer
	if dto.LastActiveLesson != nil {
		pointer = &progress.Pointer{
			ModuleID: dto.LastActiveLesson.ModuleID,
			TopicID:  dto.LastActiveLesson.TopicID,
		}
	}

	p := &profile.Profile{
		ID:               dto.ID,
		Email:            dto.Email,
		SelectedAvatar:   dto.SelectedAvatar,
		Progress:         progressMap,
		TotalScore:       dto.TotalScore,
		CompletedLessons: dto.CompletedLessons,
		CompletedQuizzes: dto.CompletedQuizzes,
		LastActiveLesson: pointer,
		CreatedAt:        parseTimestamp(dto.CreatedAt),
		UpdatedAt:        parseTimestamp(dto.UpdatedAt),
	}

	return p, nil
}

// ProfileFromLiteDTO converts the minimal create response to a domain
// Profile with an empty progress map.
func (m *Mapper) ProfileFromLiteDTO(dto *ProfileLiteDTO) (*profile.Profile, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	now := time.Now().UTC()
	return &profile.Profile{
		ID:             dto.ID,
		Email:          dto.Email,
		SelectedAvatar: dto.SelectedAvatar,
		Progress:       progress.NewMap(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// RecordFromDTO converts a RecordDTO to a domain Record.
// A missing score maps to zero; the merge rule that preserves the prior
// score on update lives server-side, not here.
func (m *Mapper) RecordFromDTO(dto RecordDTO) progress.Record {
	rec := progress.Record{
		Completed: dto.Completed,
	}
	if dto.Score != nil {
		rec.Score = *dto.Score
	}
	if dto.CompletedAt != nil {
		if ts := parseTimestamp(dto.CompletedAt); !ts.IsZero() {
			rec.CompletedAt = &ts
		}
	}
	return rec
}

// ══════════════════════════════════════════════════════════════════════════════
// REVERSE MAPPING (Domain to DTO)
// ══════════════════════════════════════════════════════════════════════════════

// UpdateToDTO converts a progress Update to the PUT request body.
// The score is always sent: the update carries the score the student
// earned, even when it is zero.
func (m *Mapper) UpdateToDTO(u progress.Update) UpdateProgressRequestDTO {
	score := u.Score
	return UpdateProgressRequestDTO{
		ModuleID:  u.ModuleID,
		TopicID:   u.TopicID,
		Completed: u.Completed,
		Score:     &score,
	}
}

// ProfileToDTO converts a domain Profile back to its wire shape.
// Used in tests and when replaying cached profiles.
func (m *Mapper) ProfileToDTO(p *profile.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}

	progressDTO := make(map[string]map[string]RecordDTO, len(p.Progress))
	for moduleID, topics := range p.Progress {
		converted := make(map[string]RecordDTO, len(topics))
		for topicID, rec := range topics {
			converted[topicID] = m.RecordToDTO(rec)
		}
		progressDTO[moduleID] = converted
	}

	var pointer *PointerDTO
	if p.LastActiveLesson != nil {
		pointer = &PointerDTO{
			ModuleID: p.LastActiveLesson.ModuleID,
			TopicID:  p.LastActiveLesson.TopicID,
		}
	}

	dto := &ProfileDTO{
		ID:               p.ID,
		Email:            p.Email,
		SelectedAvatar:   p.SelectedAvatar,
		Progress:         progressDTO,
		TotalScore:       p.TotalScore,
		CompletedLessons: p.CompletedLessons,
		CompletedQuizzes: p.CompletedQuizzes,
		LastActiveLesson: pointer,
	}
	if !p.CreatedAt.IsZero() {
		created := p.CreatedAt.UTC().Format(time.RFC3339)
		dto.CreatedAt = &created
	}
	if !p.UpdatedAt.IsZero() {
		updated := p.UpdatedAt.UTC().Format(time.RFC3339)
		dto.UpdatedAt = &updated
	}

	return dto
}

// RecordToDTO converts a domain Record to its wire shape.
func (m *Mapper) RecordToDTO(rec progress.Record) RecordDTO {
	score := rec.Score
	dto := RecordDTO{
		Completed: rec.Completed,
		Score:     &score,
	}
	if rec.CompletedAt != nil {
		completedAt := rec.CompletedAt.UTC().Format(time.RFC3339)
		dto.CompletedAt = &completedAt
	}
	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS AND ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// timestampLayouts covers the formats the server has been seen to emit:
// RFC 3339 with and without fractional seconds, and ISO 8601 without a
// zone from older Python deployments.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses an optional wire timestamp. Unknown formats map
// to the zero time rather than failing the whole profile.
func parseTimestamp(raw *string) time.Time {
	if raw == nil || *raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, *raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// ErrNilDTO is returned when trying to map a nil DTO.
var ErrNilDTO = &MappingError{Message: "cannot map nil DTO"}

// MappingError represents an error during DTO to domain mapping.
type MappingError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	if e.Field != "" {
		return "mapping error for field " + e.Field + ": " + e.Message
	}
	return "mapping error: " + e.Message
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Cause
}
