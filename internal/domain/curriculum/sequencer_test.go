package curriculum

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// twoModules строит программу из двух модулей по пять уроков в каждом.
// Вместе с квизами последовательность содержит 12 элементов.
func twoModules() *Curriculum {
	makeLessons := func(prefix string) []Lesson {
		lessons := make([]Lesson, 0, 5)
		for i := 1; i <= 5; i++ {
			id := fmt.Sprintf("%s-l%d", prefix, i)
			lessons = append(lessons, Lesson{ID: id, Title: "Lesson " + id})
		}
		return lessons
	}

	return &Curriculum{
		Version: "test",
		Modules: []Module{
			{ID: "module1", Title: "Module One", Lessons: makeLessons("m1")},
			{ID: "module2", Title: "Module Two", Lessons: makeLessons("m2")},
		},
	}
}

func TestSequencer_BuildSequence(t *testing.T) {
	seq := NewSequencer(twoModules())

	assert.Equal(t, 12, seq.Len())

	items := seq.Sequence()
	firstCount := 0
	lastCount := 0
	for i, item := range items {
		assert.Equal(t, i, item.GlobalIndex)
		assert.Equal(t, i, seq.IndexOf(item.ModuleID, item.TopicID))
		if item.IsFirstOverall {
			firstCount++
		}
		if item.IsLastOverall {
			lastCount++
		}
	}
	assert.Equal(t, 1, firstCount)
	assert.Equal(t, 1, lastCount)

	// Квиз первого модуля закрывает модуль и стоит сразу после его уроков.
	quiz := items[5]
	assert.Equal(t, "module1", quiz.ModuleID)
	assert.Equal(t, QuizTopicID, quiz.TopicID)
	assert.Equal(t, TypeQuiz, quiz.Type)
	assert.True(t, quiz.IsLastInModule)
	assert.Equal(t, "Module One Quiz", quiz.Title)

	// Первый урок второго модуля идёт следом.
	next := items[6]
	assert.Equal(t, "module2", next.ModuleID)
	assert.Equal(t, "m2-l1", next.TopicID)
	assert.True(t, next.IsFirstInModule)
}

func TestSequencer_IndexOfUnknown(t *testing.T) {
	seq := NewSequencer(twoModules())

	assert.Equal(t, -1, seq.IndexOf("module1", "missing"))
	assert.Equal(t, -1, seq.IndexOf("ghost", "m1-l1"))
	assert.Equal(t, -1, seq.IndexOf("", ""))
}

func TestSequencer_NextPreviousRoundTrip(t *testing.T) {
	seq := NewSequencer(twoModules())

	// next(previous(x)) == x и previous(next(x)) == x для всех внутренних элементов.
	for _, item := range seq.Sequence() {
		if !item.IsFirstOverall {
			prev := seq.Previous(item.ModuleID, item.TopicID)
			assert.NotNil(t, prev)
			back := seq.Next(prev.ModuleID, prev.TopicID)
			assert.NotNil(t, back)
			assert.Equal(t, item.GlobalIndex, back.GlobalIndex)
		}
		if !item.IsLastOverall {
			next := seq.Next(item.ModuleID, item.TopicID)
			assert.NotNil(t, next)
			back := seq.Previous(next.ModuleID, next.TopicID)
			assert.NotNil(t, back)
			assert.Equal(t, item.GlobalIndex, back.GlobalIndex)
		}
	}
}

func TestSequencer_BoundariesReturnNil(t *testing.T) {
	seq := NewSequencer(twoModules())
	first := seq.First()
	last := seq.Last()

	assert.Nil(t, seq.Previous(first.ModuleID, first.TopicID))
	assert.Nil(t, seq.Next(last.ModuleID, last.TopicID))
	assert.Nil(t, seq.Next("ghost", "m1-l1"))
	assert.Nil(t, seq.Previous("ghost", "m1-l1"))
}

func TestSequencer_ModuleTransitionFlag(t *testing.T) {
	seq := NewSequencer(twoModules())

	// Переход с квиза первого модуля на первый урок второго.
	next := seq.Next("module1", QuizTopicID)
	assert.NotNil(t, next)
	assert.Equal(t, "module2", next.ModuleID)
	assert.True(t, next.IsModuleTransition)

	// Обратный переход тоже помечен.
	prev := seq.Previous("module2", "m2-l1")
	assert.NotNil(t, prev)
	assert.Equal(t, "module1", prev.ModuleID)
	assert.True(t, prev.IsModuleTransition)

	// Внутри модуля флаг не выставляется.
	inner := seq.Next("module1", "m1-l1")
	assert.NotNil(t, inner)
	assert.False(t, inner.IsModuleTransition)
}

func TestSequencer_NavigationStateAtBoundaries(t *testing.T) {
	seq := NewSequencer(twoModules())
	first := seq.First()
	last := seq.Last()

	start := seq.NavigationState(first.ModuleID, first.TopicID)
	assert.False(t, start.CanGoPrevious)
	assert.False(t, start.PreviousAvailable)
	assert.True(t, start.CanGoNext)
	assert.Equal(t, DestinationLesson, start.NextDestination)

	end := seq.NavigationState(last.ModuleID, last.TopicID)
	assert.True(t, end.CanGoPrevious)
	assert.False(t, end.CanGoNext)
	assert.Equal(t, DestinationDashboard, end.NextDestination)
}

func TestSequencer_NavigationStateBeforeQuiz(t *testing.T) {
	seq := NewSequencer(twoModules())

	nav := seq.NavigationState("module1", "m1-l5")
	assert.True(t, nav.CanGoNext)
	assert.Equal(t, DestinationQuiz, nav.NextDestination)
}

func TestSequencer_NavigationStateUnknown(t *testing.T) {
	seq := NewSequencer(twoModules())

	nav := seq.NavigationState("ghost", "nowhere")
	assert.False(t, nav.CanGoNext)
	assert.False(t, nav.CanGoPrevious)
	assert.Equal(t, DestinationDashboard, nav.NextDestination)
}

func TestSequencer_RouteFor(t *testing.T) {
	seq := NewSequencer(twoModules())

	assert.Equal(t, "/lessons/module1/m1-l1", seq.RouteFor("module1", "m1-l1"))
	assert.Equal(t, "/quiz/module1", seq.RouteFor("module1", QuizTopicID))
	assert.Equal(t, "", seq.RouteFor("ghost", "nowhere"))
}

func TestSequencer_DefaultCurriculumShape(t *testing.T) {
	cur := Default()
	seq := NewSequencer(cur)

	assert.Equal(t, cur.TotalContent(), seq.Len())

	// Каждый модуль закрывается своим квизом.
	for _, module := range cur.Modules {
		quiz := seq.Lookup(module.ID, QuizTopicID)
		assert.NotNil(t, quiz)
		assert.True(t, quiz.IsLastInModule)

		lastLesson := module.Lessons[len(module.Lessons)-1]
		assert.Equal(t, seq.IndexOf(module.ID, lastLesson.ID)+1, quiz.GlobalIndex)
	}
}
