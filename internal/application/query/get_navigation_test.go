package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pykids/progress-hub/internal/application/session"
	"github.com/pykids/progress-hub/internal/domain/curriculum"
)

func navigationHandler(t *testing.T, store *session.Store) *GetNavigationHandler {
	t.Helper()
	seq := curriculum.NewSequencer(testCurriculum(t))
	return NewGetNavigationHandler(seq, store, discardLogger())
}

func TestGetNavigation_ValidatesQuery(t *testing.T) {
	h := navigationHandler(t, nil)

	_, err := h.Handle(context.Background(), GetNavigationQuery{ModuleID: "", TopicID: "lesson_1"})
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), GetNavigationQuery{ModuleID: "variables", TopicID: ""})
	assert.Error(t, err)
}

func TestGetNavigation_UnknownContent(t *testing.T) {
	h := navigationHandler(t, nil)

	_, err := h.Handle(context.Background(), GetNavigationQuery{ModuleID: "rockets", TopicID: "lesson_1"})
	assert.ErrorIs(t, err, ErrUnknownContent)
}

func TestGetNavigation_FirstItem(t *testing.T) {
	h := navigationHandler(t, nil)

	dto, err := h.Handle(context.Background(), GetNavigationQuery{ModuleID: "variables", TopicID: "lesson_1"})
	require.NoError(t, err)

	assert.False(t, dto.State.CanGoPrevious)
	assert.True(t, dto.State.CanGoNext)
	assert.Equal(t, curriculum.DestinationQuiz, dto.State.NextDestination)
	assert.Nil(t, dto.Previous)
	require.NotNil(t, dto.Next)
	assert.Equal(t, curriculum.QuizTopicID, dto.Next.TopicID)
	assert.Equal(t, "/quiz/variables", dto.NextRoute)
	assert.Equal(t, 0, dto.GlobalIndex)
	assert.Equal(t, 4, dto.TotalContent)
	assert.False(t, dto.Completed)
}

func TestGetNavigation_ModuleTransition(t *testing.T) {
	h := navigationHandler(t, nil)

	// Квиз первого модуля: следующий элемент открывает второй модуль.
	dto, err := h.Handle(context.Background(), GetNavigationQuery{
		ModuleID: "variables",
		TopicID:  curriculum.QuizTopicID,
	})
	require.NoError(t, err)

	require.NotNil(t, dto.Next)
	assert.Equal(t, "loops", dto.Next.ModuleID)
	assert.True(t, dto.IsModuleTransition)
	assert.Equal(t, "/lessons/loops/lesson_1", dto.NextRoute)
}

func TestGetNavigation_LastItemPointsToDashboard(t *testing.T) {
	h := navigationHandler(t, nil)

	dto, err := h.Handle(context.Background(), GetNavigationQuery{
		ModuleID: "loops",
		TopicID:  curriculum.QuizTopicID,
	})
	require.NoError(t, err)

	assert.False(t, dto.State.CanGoNext)
	assert.Equal(t, curriculum.DestinationDashboard, dto.State.NextDestination)
	assert.Nil(t, dto.Next)
	assert.Equal(t, curriculum.DashboardRoute, dto.NextRoute)
}

func TestGetNavigation_CompletedFlagFromStore(t *testing.T) {
	store := storeWithProgress(t)
	h := navigationHandler(t, store)

	dto, err := h.Handle(context.Background(), GetNavigationQuery{ModuleID: "variables", TopicID: "lesson_1"})
	require.NoError(t, err)
	assert.True(t, dto.Completed)

	dto, err = h.Handle(context.Background(), GetNavigationQuery{ModuleID: "loops", TopicID: "lesson_1"})
	require.NoError(t, err)
	assert.False(t, dto.Completed)
}
