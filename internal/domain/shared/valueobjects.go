// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID is the opaque learner identifier handed to us by the identity
// provider. The system never parses it; it only requires non-emptiness.
type UserID string

// IsValid checks that the user ID is usable.
func (u UserID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrMissingUserID
	}
	return uid, nil
}

// ModuleID identifies a curriculum module (e.g. "python-basics").
type ModuleID string

// Module and topic ids share the slug format used by the curriculum files.
var slugIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// IsValid checks if the module ID is a well-formed slug.
func (m ModuleID) IsValid() bool {
	s := string(m)
	return len(s) >= 1 && len(s) <= 64 && slugIDRegex.MatchString(s)
}

// String returns the string representation.
func (m ModuleID) String() string {
	return string(m)
}

// NewModuleID creates a new ModuleID with validation.
func NewModuleID(id string) (ModuleID, error) {
	mid := ModuleID(strings.TrimSpace(id))
	if mid == "" {
		return "", ErrMissingModuleID
	}
	if !mid.IsValid() {
		return "", NewDomainError("shared", "NewModuleID", ErrInvalidID, "invalid module id format")
	}
	return mid, nil
}

// TopicID identifies one content item inside a module: a lesson id, or the
// reserved QuizTopicID for the module's quiz.
type TopicID string

// QuizTopicID is the literal topic key that addresses a module's quiz in the
// progress map and in the flattened sequence.
const QuizTopicID TopicID = "quiz"

// IsValid checks if the topic ID is a well-formed slug.
func (t TopicID) IsValid() bool {
	s := string(t)
	return len(s) >= 1 && len(s) <= 64 && slugIDRegex.MatchString(s)
}

// String returns the string representation.
func (t TopicID) String() string {
	return string(t)
}

// IsQuiz reports whether the topic addresses a module quiz.
func (t TopicID) IsQuiz() bool {
	return t == QuizTopicID
}

// NewTopicID creates a new TopicID with validation.
func NewTopicID(id string) (TopicID, error) {
	tid := TopicID(strings.TrimSpace(id))
	if tid == "" {
		return "", ErrMissingTopicID
	}
	if !tid.IsValid() {
		return "", NewDomainError("shared", "NewTopicID", ErrInvalidID, "invalid topic id format")
	}
	return tid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Content Type Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ContentType distinguishes the two kinds of content items.
type ContentType string

const (
	ContentLesson ContentType = "lesson"
	ContentQuiz   ContentType = "quiz"
)

// IsValid checks if the content type is one of the known kinds.
func (c ContentType) IsValid() bool {
	return c == ContentLesson || c == ContentQuiz
}

// String returns the string representation.
func (c ContentType) String() string {
	return string(c)
}

// NewContentType creates a ContentType with validation.
func NewContentType(v string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(v)))
	if !ct.IsValid() {
		return "", ErrUnknownType
	}
	return ct, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Score is the points earned for one content item.
type Score int

const (
	MinScore Score = 0
	MaxScore Score = 100000 // generous cap; quizzes award at most a few hundred
)

// IsValid checks if the score is within valid range.
func (s Score) IsValid() bool {
	return s >= MinScore && s <= MaxScore
}

// Int returns the underlying int value.
func (s Score) Int() int {
	return int(s)
}

// Add adds points and returns the result, capped at MaxScore.
func (s Score) Add(amount int) Score {
	result := Score(int(s) + amount)
	if result > MaxScore {
		return MaxScore
	}
	if result < MinScore {
		return MinScore
	}
	return result
}

// NewScore creates a new Score with validation.
func NewScore(amount int) (Score, error) {
	if amount < int(MinScore) {
		return 0, ErrNegativeScore
	}
	if amount > int(MaxScore) {
		return MaxScore, nil // Cap at max
	}
	return Score(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage is an integer completion percentage in [0, 100].
type Percentage int

// IsValid checks if the percentage is within range.
func (p Percentage) IsValid() bool {
	return p >= 0 && p <= 100
}

// Int returns the underlying int value.
func (p Percentage) Int() int {
	return int(p)
}

// String renders "42%".
func (p Percentage) String() string {
	return fmt.Sprintf("%d%%", int(p))
}

// RoundPercentage computes round(completed/total*100) with half-up rounding.
// Defined as 0 when total is 0.
func RoundPercentage(completed, total int) Percentage {
	if total <= 0 {
		return 0
	}
	// Integer half-up rounding: (a*100 + total/2) / total.
	p := (completed*100*2 + total) / (total * 2)
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return Percentage(p)
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// LastNDays returns a TimeRange for the last N days.
func LastNDays(n int) TimeRange {
	now := time.Now()
	return TimeRange{
		From: now.AddDate(0, 0, -n),
		To:   now,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
