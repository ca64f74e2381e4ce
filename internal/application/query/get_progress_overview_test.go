package query

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pykids/progress-hub/internal/application/session"
	"github.com/pykids/progress-hub/internal/domain/curriculum"
	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testCurriculum: два модуля, по одному уроку и квизу в каждом.
func testCurriculum(t *testing.T) *curriculum.Curriculum {
	t.Helper()
	cur, err := curriculum.New("test", []curriculum.Module{
		{
			ID:      "variables",
			Title:   "Variables",
			Lessons: []curriculum.Lesson{{ID: "lesson_1", Title: "Intro"}},
		},
		{
			ID:      "loops",
			Title:   "Loops",
			Lessons: []curriculum.Lesson{{ID: "lesson_1", Title: "For"}},
		},
	})
	require.NoError(t, err)
	return cur
}

func overviewHandler(t *testing.T, store *session.Store) *GetProgressOverviewHandler {
	t.Helper()
	cur := testCurriculum(t)
	seq := curriculum.NewSequencer(cur)
	return NewGetProgressOverviewHandler(store, progress.NewAnalytics(cur, seq), seq, discardLogger())
}

func storeWithProgress(t *testing.T) *session.Store {
	t.Helper()
	p, err := profile.New("user-1", "kid@example.com", "robot")
	require.NoError(t, err)

	u, err := progress.NewUpdate("user-1", "variables", "lesson_1", true, 10, curriculum.TypeLesson)
	require.NoError(t, err)
	_, err = p.ApplyUpdate(u, time.Now().UTC())
	require.NoError(t, err)

	s := session.NewStore()
	s.Replace(p)
	return s
}

func TestGetProgressOverview_RequiresUserID(t *testing.T) {
	h := overviewHandler(t, session.NewStore())

	_, err := h.Handle(context.Background(), GetProgressOverviewQuery{UserID: " "})
	assert.Error(t, err)
}

func TestGetProgressOverview_RequiresLoadedProfile(t *testing.T) {
	h := overviewHandler(t, session.NewStore())

	_, err := h.Handle(context.Background(), GetProgressOverviewQuery{UserID: "user-1"})
	assert.ErrorIs(t, err, session.ErrNoProfile)
}

func TestGetProgressOverview_Summary(t *testing.T) {
	h := overviewHandler(t, storeWithProgress(t))

	dto, err := h.Handle(context.Background(), GetProgressOverviewQuery{UserID: "user-1"})
	require.NoError(t, err)

	// 4 элемента всего (2 урока + 2 квиза), пройден один.
	assert.Equal(t, 4, dto.Summary.TotalContent)
	assert.Equal(t, 1, dto.Summary.CompletedContent)
	assert.Equal(t, 25, dto.Summary.CompletionPercentage)
	assert.Equal(t, 10, dto.TotalScore)

	require.NotNil(t, dto.LastActive)
	assert.Equal(t, "Intro", dto.LastActive.Title)

	// Не запрошенные секции отсутствуют.
	assert.Nil(t, dto.Modules)
	assert.Nil(t, dto.NextContent)
	assert.Nil(t, dto.Validation)
}

func TestGetProgressOverview_OptionalSections(t *testing.T) {
	h := overviewHandler(t, storeWithProgress(t))

	dto, err := h.Handle(context.Background(), GetProgressOverviewQuery{
		UserID:             "user-1",
		IncludeModules:     true,
		IncludeNextContent: true,
		IncludeValidation:  true,
	})
	require.NoError(t, err)

	require.Len(t, dto.Modules, 2)
	assert.Equal(t, "variables", dto.Modules[0].ModuleID)
	assert.Equal(t, 1, dto.Modules[0].CompletedLessons)

	// После урока рекомендуется квиз того же модуля.
	require.NotNil(t, dto.NextContent)
	assert.Equal(t, "variables", dto.NextContent.ModuleID)
	assert.Equal(t, curriculum.QuizTopicID, dto.NextContent.TopicID)
	assert.Equal(t, "/quiz/variables", dto.NextContent.Route)

	require.NotNil(t, dto.Validation)
	assert.True(t, dto.Validation.IsValid)
}
