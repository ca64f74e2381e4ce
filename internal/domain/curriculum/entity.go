// Package curriculum содержит доменную модель учебной программы PyKIDS.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package curriculum

import (
	"errors"
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ContentType - вид учебного элемента: урок или квиз модуля.
type ContentType string

const (
	// TypeLesson - обычный урок внутри модуля.
	TypeLesson ContentType = "lesson"
	// TypeQuiz - итоговый квиз модуля.
	TypeQuiz ContentType = "quiz"
)

// IsValid проверяет, что тип контента известен.
func (c ContentType) IsValid() bool {
	return c == TypeLesson || c == TypeQuiz
}

// String возвращает строковое представление типа.
func (c ContentType) String() string {
	return string(c)
}

// QuizTopicID - зарезервированный идентификатор темы, адресующий квиз модуля.
// Уроки не могут использовать этот идентификатор.
const QuizTopicID = "quiz"

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Lesson - один урок внутри модуля.
type Lesson struct {
	// ID - идентификатор урока, уникальный внутри модуля.
	ID string

	// Title - отображаемое название урока.
	Title string
}

// Module - упорядоченная группа уроков, завершающаяся ровно одним квизом.
type Module struct {
	// ID - уникальный идентификатор модуля (например, "python-basics").
	ID string

	// Title - отображаемое название модуля.
	Title string

	// Description - краткое описание для слоя представления.
	Description string

	// Lessons - уроки модуля в порядке прохождения.
	Lessons []Lesson
}

// TopicCount возвращает количество учебных элементов модуля: уроки плюс квиз.
func (m Module) TopicCount() int {
	return len(m.Lessons) + 1
}

// QuizTitle возвращает отображаемое название квиза модуля.
func (m Module) QuizTitle() string {
	return m.Title + " Quiz"
}

// HasTopic проверяет, адресует ли topicID урок или квиз этого модуля.
func (m Module) HasTopic(topicID string) bool {
	if topicID == QuizTopicID {
		return true
	}
	return m.LessonIndex(topicID) >= 0
}

// LessonIndex возвращает позицию урока в модуле или -1, если урок не найден.
func (m Module) LessonIndex(lessonID string) int {
	for i, lesson := range m.Lessons {
		if lesson.ID == lessonID {
			return i
		}
	}
	return -1
}

// Curriculum - корневая сущность: упорядоченный список модулей.
// Загружается один раз при старте процесса и после этого не изменяется.
type Curriculum struct {
	// Version - версия программы (для логов и снапшотов профиля).
	Version string

	// Modules - модули в порядке прохождения.
	Modules []Module
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEmptyCurriculum - программа не содержит ни одного модуля.
	ErrEmptyCurriculum = errors.New("curriculum must contain at least one module")

	// ErrModuleWithoutID - у модуля отсутствует идентификатор.
	ErrModuleWithoutID = errors.New("module id is required")

	// ErrModuleWithoutTitle - у модуля отсутствует название.
	ErrModuleWithoutTitle = errors.New("module title is required")

	// ErrModuleWithoutLessons - модуль не содержит ни одного урока.
	ErrModuleWithoutLessons = errors.New("module must contain at least one lesson")

	// ErrDuplicateModuleID - идентификатор модуля встречается дважды.
	ErrDuplicateModuleID = errors.New("duplicate module id")

	// ErrLessonWithoutID - у урока отсутствует идентификатор.
	ErrLessonWithoutID = errors.New("lesson id is required")

	// ErrDuplicateTopicID - идентификатор урока встречается в модуле дважды.
	ErrDuplicateTopicID = errors.New("duplicate topic id within module")

	// ErrReservedTopicID - урок использует зарезервированный идентификатор квиза.
	ErrReservedTopicID = errors.New(`topic id "quiz" is reserved for the module quiz`)

	// ErrModuleNotFound - модуль не найден.
	ErrModuleNotFound = errors.New("module not found")

	// ErrTopicNotFound - тема не найдена в модуле.
	ErrTopicNotFound = errors.New("topic not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// New создаёт программу из списка модулей с полной валидацией.
func New(version string, modules []Module) (*Curriculum, error) {
	c := &Curriculum{
		Version: strings.TrimSpace(version),
		Modules: modules,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate проверяет структурные инварианты программы:
// модули непусты и уникальны, уроки уникальны внутри модуля,
// идентификатор "quiz" не занят уроком.
func (c *Curriculum) Validate() error {
	if len(c.Modules) == 0 {
		return ErrEmptyCurriculum
	}

	seenModules := make(map[string]struct{}, len(c.Modules))
	for _, module := range c.Modules {
		if strings.TrimSpace(module.ID) == "" {
			return ErrModuleWithoutID
		}
		if strings.TrimSpace(module.Title) == "" {
			return fmt.Errorf("%w: module %q", ErrModuleWithoutTitle, module.ID)
		}
		if _, dup := seenModules[module.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateModuleID, module.ID)
		}
		seenModules[module.ID] = struct{}{}

		if len(module.Lessons) == 0 {
			return fmt.Errorf("%w: module %q", ErrModuleWithoutLessons, module.ID)
		}

		seenLessons := make(map[string]struct{}, len(module.Lessons))
		for _, lesson := range module.Lessons {
			if strings.TrimSpace(lesson.ID) == "" {
				return fmt.Errorf("%w: module %q", ErrLessonWithoutID, module.ID)
			}
			if lesson.ID == QuizTopicID {
				return fmt.Errorf("%w: module %q", ErrReservedTopicID, module.ID)
			}
			if _, dup := seenLessons[lesson.ID]; dup {
				return fmt.Errorf("%w: module %q, lesson %q", ErrDuplicateTopicID, module.ID, lesson.ID)
			}
			seenLessons[lesson.ID] = struct{}{}
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// ModuleByID возвращает модуль по идентификатору.
// Возвращает ErrModuleNotFound, если модуль отсутствует.
func (c *Curriculum) ModuleByID(moduleID string) (*Module, error) {
	for i := range c.Modules {
		if c.Modules[i].ID == moduleID {
			return &c.Modules[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, moduleID)
}

// ModuleIndex возвращает позицию модуля в программе или -1.
func (c *Curriculum) ModuleIndex(moduleID string) int {
	for i := range c.Modules {
		if c.Modules[i].ID == moduleID {
			return i
		}
	}
	return -1
}

// HasTopic проверяет, что пара (moduleID, topicID) адресует
// существующий урок или квиз программы.
func (c *Curriculum) HasTopic(moduleID, topicID string) bool {
	module, err := c.ModuleByID(moduleID)
	if err != nil {
		return false
	}
	return module.HasTopic(topicID)
}

// TotalModules возвращает количество модулей.
func (c *Curriculum) TotalModules() int {
	return len(c.Modules)
}

// TotalLessons возвращает суммарное количество уроков во всех модулях.
func (c *Curriculum) TotalLessons() int {
	total := 0
	for _, module := range c.Modules {
		total += len(module.Lessons)
	}
	return total
}

// TotalContent возвращает количество всех учебных элементов: уроки + квизы.
func (c *Curriculum) TotalContent() int {
	return c.TotalLessons() + c.TotalModules()
}

// String возвращает краткое представление программы для логирования.
func (c *Curriculum) String() string {
	return fmt.Sprintf(
		"Curriculum{Version: %s, Modules: %d, Lessons: %d}",
		c.Version, c.TotalModules(), c.TotalLessons(),
	)
}
