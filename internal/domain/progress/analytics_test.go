package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pykids/progress-hub/internal/domain/curriculum"
)

// testCurriculum - два модуля по три урока: последовательность из 8 элементов.
func testCurriculum() *curriculum.Curriculum {
	return &curriculum.Curriculum{
		Version: "test",
		Modules: []curriculum.Module{
			{ID: "m1", Title: "Module One", Lessons: []curriculum.Lesson{
				{ID: "a", Title: "Lesson A"},
				{ID: "b", Title: "Lesson B"},
				{ID: "c", Title: "Lesson C"},
			}},
			{ID: "m2", Title: "Module Two", Lessons: []curriculum.Lesson{
				{ID: "d", Title: "Lesson D"},
				{ID: "e", Title: "Lesson E"},
				{ID: "f", Title: "Lesson F"},
			}},
		},
	}
}

func newTestAnalytics() *Analytics {
	cur := testCurriculum()
	return NewAnalytics(cur, curriculum.NewSequencer(cur))
}

func completedRecord(score int) Record {
	now := time.Now().UTC()
	return Record{Completed: true, Score: score, CompletedAt: &now}
}

func TestSummary_EmptyMap(t *testing.T) {
	a := newTestAnalytics()

	s := a.Summary(NewMap())

	assert.Equal(t, 6, s.TotalLessons)
	assert.Equal(t, 2, s.TotalQuizzes)
	assert.Equal(t, 8, s.TotalContent)
	assert.Equal(t, 0, s.CompletedContent)
	assert.Equal(t, 0, s.CompletionPercentage)
	assert.Equal(t, 0.0, s.AverageScore)
}

func TestSummary_CountsExcludeQuizFromLessons(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()
	m.Set("m1", "a", completedRecord(10))
	m.Set("m1", "b", completedRecord(20))
	m.Set("m1", curriculum.QuizTopicID, completedRecord(90))

	s := a.Summary(m)

	assert.Equal(t, 2, s.CompletedLessons)
	assert.Equal(t, 1, s.CompletedQuizzes)
	assert.Equal(t, 3, s.CompletedContent)
	assert.Equal(t, 40.0, s.AverageScore)
}

func TestSummary_FullCompletionIsHundredPercent(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()
	for _, item := range curriculum.NewSequencer(testCurriculum()).Sequence() {
		m.Set(item.ModuleID, item.TopicID, completedRecord(10))
	}

	s := a.Summary(m)

	assert.Equal(t, 100, s.CompletionPercentage)
	assert.Equal(t, s.TotalContent, s.CompletedContent)
}

func TestRoundPercent_HalfUpRounding(t *testing.T) {
	assert.Equal(t, 33, roundPercent(1, 3))
	assert.Equal(t, 67, roundPercent(2, 3))
	assert.Equal(t, 13, roundPercent(1, 8)) // 12.5 округляется вверх
	assert.Equal(t, 50, roundPercent(1, 2))
	assert.Equal(t, 0, roundPercent(0, 5))
	assert.Equal(t, 100, roundPercent(5, 5))
	assert.Equal(t, 0, roundPercent(3, 0)) // нулевой total определён как 0
}

func TestRoundPercent_AlwaysWithinRange(t *testing.T) {
	for completed := 0; completed <= 12; completed++ {
		for total := 0; total <= 10; total++ {
			p := roundPercent(completed, total)
			assert.GreaterOrEqual(t, p, 0, fmt.Sprintf("%d/%d", completed, total))
			assert.LessOrEqual(t, p, 100, fmt.Sprintf("%d/%d", completed, total))
		}
	}
}

func TestAverageScore_CompletedRecordsOnly(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()
	m.Set("m1", "a", completedRecord(100))
	m.Set("m1", "b", Record{Completed: false, Score: 999})

	assert.Equal(t, 100.0, a.AverageScore(m))
	assert.Equal(t, 0.0, a.AverageScore(NewMap()))
}

func TestModuleBreakdowns(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()
	m.Set("m1", "a", completedRecord(10))
	m.Set("m1", "b", completedRecord(10))
	m.Set("m1", curriculum.QuizTopicID, completedRecord(80))

	breakdowns := a.ModuleBreakdowns(m)

	assert.Len(t, breakdowns, 2)

	first := breakdowns[0]
	assert.Equal(t, "m1", first.ModuleID)
	assert.Equal(t, 3, first.TotalLessons)
	assert.Equal(t, 2, first.CompletedLessons)
	assert.True(t, first.QuizCompleted)
	assert.Equal(t, 4, first.TotalContent) // уроки + квиз
	assert.Equal(t, 3, first.CompletedContent)
	assert.Equal(t, 75, first.Percentage)

	second := breakdowns[1]
	assert.Equal(t, "m2", second.ModuleID)
	assert.Equal(t, 0, second.CompletedContent)
	assert.Equal(t, 0, second.Percentage)
}

func TestLastActiveContent(t *testing.T) {
	a := newTestAnalytics()

	resolved := a.LastActiveContent(&Pointer{ModuleID: "m1", TopicID: "b"})
	assert.NotNil(t, resolved)
	assert.Equal(t, "Lesson B", resolved.Title)
	assert.Equal(t, "Module One", resolved.ModuleName)
	assert.Equal(t, curriculum.TypeLesson, resolved.Type)

	quiz := a.LastActiveContent(&Pointer{ModuleID: "m2", TopicID: curriculum.QuizTopicID})
	assert.NotNil(t, quiz)
	assert.Equal(t, curriculum.TypeQuiz, quiz.Type)

	assert.Nil(t, a.LastActiveContent(nil))
	assert.Nil(t, a.LastActiveContent(&Pointer{}))
	assert.Nil(t, a.LastActiveContent(&Pointer{ModuleID: "ghost", TopicID: "b"}))
}

func TestNextRecommendedContent_ResumeInPlace(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()

	// Указатель на непройденный элемент - продолжаем с него же.
	next := a.NextRecommendedContent(m, &Pointer{ModuleID: "m1", TopicID: "b"})
	assert.NotNil(t, next)
	assert.Equal(t, "m1", next.ModuleID)
	assert.Equal(t, "b", next.TopicID)
}

func TestNextRecommendedContent_AdvancesPastCompleted(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()
	m.Set("m1", "b", completedRecord(10))

	next := a.NextRecommendedContent(m, &Pointer{ModuleID: "m1", TopicID: "b"})
	assert.NotNil(t, next)
	assert.Equal(t, "m1", next.ModuleID)
	assert.Equal(t, "c", next.TopicID)
}

func TestNextRecommendedContent_NoPointerScansForFirstIncomplete(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()
	m.Set("m1", "a", completedRecord(10))
	m.Set("m1", "b", completedRecord(10))

	next := a.NextRecommendedContent(m, nil)
	assert.NotNil(t, next)
	assert.Equal(t, "m1", next.ModuleID)
	assert.Equal(t, "c", next.TopicID)

	// Неразрешимый указатель равносилен отсутствию указателя.
	ghost := a.NextRecommendedContent(m, &Pointer{ModuleID: "ghost", TopicID: "x"})
	assert.NotNil(t, ghost)
	assert.Equal(t, "c", ghost.TopicID)
}

func TestNextRecommendedContent_CourseComplete(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()
	for _, item := range curriculum.NewSequencer(testCurriculum()).Sequence() {
		m.Set(item.ModuleID, item.TopicID, completedRecord(10))
	}

	assert.Nil(t, a.NextRecommendedContent(m, nil))
}

func TestValidateProgressData_CleanMap(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()
	m.Set("m1", "a", completedRecord(10))
	m.Set("m1", curriculum.QuizTopicID, completedRecord(90))

	result := a.ValidateProgressData(m)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidateProgressData_UnknownKeys(t *testing.T) {
	a := newTestAnalytics()
	m := NewMap()
	m.Set("ghost-module", "a", completedRecord(10))  // неизвестный модуль
	m.Set("m1", "ghost-topic", completedRecord(10))  // неизвестная тема в валидном модуле
	m.Set("m1", curriculum.QuizTopicID, completedRecord(90))

	result := a.ValidateProgressData(m)

	assert.False(t, result.IsValid)
	assert.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "ghost-module")
	assert.Contains(t, result.Errors[1], "ghost-topic")
}
