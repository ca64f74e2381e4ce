package curriculum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_DefaultCurriculum(t *testing.T) {
	cur := Default()

	assert.NoError(t, cur.Validate())
	assert.Equal(t, 6, cur.TotalModules())
	assert.Equal(t, cur.TotalLessons()+cur.TotalModules(), cur.TotalContent())
}

func TestValidate_EmptyCurriculum(t *testing.T) {
	cur := &Curriculum{Version: "test"}

	assert.ErrorIs(t, cur.Validate(), ErrEmptyCurriculum)
}

func TestValidate_DuplicateModuleID(t *testing.T) {
	_, err := New("test", []Module{
		{ID: "m1", Title: "Module 1", Lessons: []Lesson{{ID: "a", Title: "A"}}},
		{ID: "m1", Title: "Module 1 Again", Lessons: []Lesson{{ID: "b", Title: "B"}}},
	})

	assert.ErrorIs(t, err, ErrDuplicateModuleID)
}

func TestValidate_ReservedQuizTopicID(t *testing.T) {
	_, err := New("test", []Module{
		{ID: "m1", Title: "Module 1", Lessons: []Lesson{{ID: "quiz", Title: "Sneaky"}}},
	})

	assert.ErrorIs(t, err, ErrReservedTopicID)
}

func TestValidate_DuplicateLessonWithinModule(t *testing.T) {
	_, err := New("test", []Module{
		{ID: "m1", Title: "Module 1", Lessons: []Lesson{
			{ID: "a", Title: "A"},
			{ID: "a", Title: "A Again"},
		}},
	})

	assert.ErrorIs(t, err, ErrDuplicateTopicID)
}

func TestValidate_ModuleWithoutTitle(t *testing.T) {
	_, err := New("test", []Module{
		{ID: "m1", Lessons: []Lesson{{ID: "a", Title: "A"}}},
	})

	assert.ErrorIs(t, err, ErrModuleWithoutTitle)
}

func TestValidate_ModuleWithoutLessons(t *testing.T) {
	_, err := New("test", []Module{
		{ID: "m1", Title: "Module 1"},
	})

	assert.ErrorIs(t, err, ErrModuleWithoutLessons)
}

func TestModule_HasTopic(t *testing.T) {
	module := Module{
		ID:    "m1",
		Title: "Module 1",
		Lessons: []Lesson{
			{ID: "intro", Title: "Intro"},
		},
	}

	assert.True(t, module.HasTopic("intro"))
	assert.True(t, module.HasTopic(QuizTopicID))
	assert.False(t, module.HasTopic("missing"))
}

func TestCurriculum_HasTopic(t *testing.T) {
	cur := Default()

	assert.True(t, cur.HasTopic("python-basics", "what-is-python"))
	assert.True(t, cur.HasTopic("python-basics", QuizTopicID))
	assert.False(t, cur.HasTopic("python-basics", "nope"))
	assert.False(t, cur.HasTopic("unknown-module", "what-is-python"))
}

func TestParse_RoundTrip(t *testing.T) {
	jsonData := `{
		"version": "9.9",
		"modules": [
			{
				"id": "m1",
				"title": "Module 1",
				"description": "First module",
				"lessons": [
					{"id": "a", "title": "Lesson A"},
					{"id": "b", "title": "Lesson B"}
				]
			}
		]
	}`

	cur, err := Parse([]byte(jsonData))
	assert.NoError(t, err)
	assert.Equal(t, "9.9", cur.Version)
	assert.Equal(t, 1, cur.TotalModules())
	assert.Equal(t, 2, cur.TotalLessons())

	module, err := cur.ModuleByID("m1")
	assert.NoError(t, err)
	assert.Equal(t, "First module", module.Description)
}

func TestParse_InvalidCurriculumRejected(t *testing.T) {
	jsonData := `{"version": "bad", "modules": [{"id": "m1", "title": "M1", "lessons": [{"id": "quiz", "title": "Quiz"}]}]}`

	_, err := Parse([]byte(jsonData))
	assert.ErrorIs(t, err, ErrReservedTopicID)
}

func TestLoadFile_EmptyPathUsesDefault(t *testing.T) {
	cur, err := LoadFile("")

	assert.NoError(t, err)
	assert.Equal(t, DefaultVersion, cur.Version)
}
