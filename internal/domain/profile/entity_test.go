package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pykids/progress-hub/internal/domain/curriculum"
	"github.com/pykids/progress-hub/internal/domain/progress"
)

func TestNew_RequiresID(t *testing.T) {
	_, err := New("  ", "kid@example.com", "robot")
	assert.ErrorIs(t, err, ErrMissingID)

	p, err := New("user1", "kid@example.com", "")
	assert.NoError(t, err)
	assert.Equal(t, "user1", p.ID)
	assert.Empty(t, p.SelectedAvatar) // аватар выбирается позже
	assert.NotNil(t, p.Progress)
}

func TestChangeAvatar(t *testing.T) {
	p, _ := New("user1", "kid@example.com", "robot")

	assert.ErrorIs(t, p.ChangeAvatar("  "), ErrAvatarRequired)
	assert.NoError(t, p.ChangeAvatar("astronaut"))
	assert.Equal(t, "astronaut", p.SelectedAvatar)
}

func TestApplyUpdate_NewCompletionCountsOnce(t *testing.T) {
	p, _ := New("user1", "kid@example.com", "robot")
	now := time.Now().UTC()

	u, _ := progress.NewUpdate("user1", "m1", curriculum.QuizTopicID, true, 100, curriculum.TypeQuiz)

	isNew, err := p.ApplyUpdate(u, now)
	assert.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, 100, p.TotalScore)
	assert.Equal(t, 1, p.CompletedQuizzes)
	assert.Equal(t, 0, p.CompletedLessons)

	// Повторное прохождение не удваивает агрегаты.
	isNew, err = p.ApplyUpdate(u, now.Add(time.Minute))
	assert.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, 100, p.TotalScore)
	assert.Equal(t, 1, p.CompletedQuizzes)
}

func TestApplyUpdate_MovesLastActivePointer(t *testing.T) {
	p, _ := New("user1", "kid@example.com", "robot")
	now := time.Now().UTC()

	first, _ := progress.NewUpdate("user1", "m1", "a", true, 10, curriculum.TypeLesson)
	second, _ := progress.NewUpdate("user1", "m2", "b", false, 0, curriculum.TypeLesson)

	p.ApplyUpdate(first, now)
	assert.Equal(t, &progress.Pointer{ModuleID: "m1", TopicID: "a"}, p.LastActiveLesson)

	// Указатель двигается даже без прохождения: открытие урока тоже активность.
	p.ApplyUpdate(second, now)
	assert.Equal(t, &progress.Pointer{ModuleID: "m2", TopicID: "b"}, p.LastActiveLesson)
}

func TestApplyUpdate_RejectsInvalidUpdate(t *testing.T) {
	p, _ := New("user1", "kid@example.com", "robot")

	bad := progress.Update{UserID: "user1", ModuleID: "", TopicID: "a", Type: curriculum.TypeLesson}
	_, err := p.ApplyUpdate(bad, time.Now().UTC())

	assert.ErrorIs(t, err, progress.ErrMissingModuleID)
	assert.Equal(t, 0, p.Progress.Len())
}

func TestRecomputeTotals_FullRescan(t *testing.T) {
	p, _ := New("user1", "kid@example.com", "robot")
	p.Progress.Set("m1", "a", progress.Record{Completed: true, Score: 10})
	p.Progress.Set("m1", curriculum.QuizTopicID, progress.Record{Completed: true, Score: 90})
	p.Progress.Set("m2", "b", progress.Record{Completed: false, Score: 55})

	p.RecomputeTotals()

	assert.Equal(t, 100, p.TotalScore)
	assert.Equal(t, 1, p.CompletedLessons)
	assert.Equal(t, 1, p.CompletedQuizzes)
}

func TestTotalsDrift(t *testing.T) {
	p, _ := New("user1", "kid@example.com", "robot")
	p.Progress.Set("m1", "a", progress.Record{Completed: true, Score: 10})
	p.RecomputeTotals()

	_, drifted := p.TotalsDrift()
	assert.False(t, drifted)

	// Поврежденный агрегат обнаруживается пересчётом.
	p.TotalScore = 999
	actual, drifted := p.TotalsDrift()
	assert.True(t, drifted)
	assert.Equal(t, 10, actual.TotalScore)
}

func TestClone_IsDeep(t *testing.T) {
	p, _ := New("user1", "kid@example.com", "robot")
	u, _ := progress.NewUpdate("user1", "m1", "a", true, 10, curriculum.TypeLesson)
	p.ApplyUpdate(u, time.Now().UTC())

	clone := p.Clone()
	clone.Progress.Set("m1", "a", progress.Record{Completed: false})
	clone.LastActiveLesson.ModuleID = "changed"

	rec, _ := p.Progress.Get("m1", "a")
	assert.True(t, rec.Completed)
	assert.Equal(t, "m1", p.LastActiveLesson.ModuleID)
}
