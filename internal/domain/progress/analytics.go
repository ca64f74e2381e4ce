package progress

import (
	"fmt"
	"sort"

	"github.com/pykids/progress-hub/internal/domain/curriculum"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS ENGINE
// Производные представления прогресса. Движок не хранит состояния:
// каждый результат - чистая функция текущей карты прогресса и
// последовательности программы.
// ══════════════════════════════════════════════════════════════════════════════

// Summary - агрегированные счётчики прогресса по всей программе.
type Summary struct {
	TotalLessons     int `json:"totalLessons"`
	TotalQuizzes     int `json:"totalQuizzes"`
	TotalContent     int `json:"totalContent"`
	CompletedLessons int `json:"completedLessons"`
	CompletedQuizzes int `json:"completedQuizzes"`
	CompletedContent int `json:"completedContent"`

	// CompletionPercentage - целое в [0, 100], округление half-up.
	CompletionPercentage int `json:"completionPercentage"`

	// AverageScore - средние очки по пройденным элементам, 0 без таковых.
	AverageScore float64 `json:"averageScore"`
}

// ModuleBreakdown - счётчики прогресса одного модуля.
type ModuleBreakdown struct {
	ModuleID         string `json:"moduleId"`
	ModuleTitle      string `json:"moduleTitle"`
	TotalLessons     int    `json:"totalLessons"`
	CompletedLessons int    `json:"completedLessons"`
	QuizCompleted    bool   `json:"quizCompleted"`

	// TotalContent - уроки модуля плюс один квиз.
	TotalContent     int `json:"totalContent"`
	CompletedContent int `json:"completedContent"`
	Percentage       int `json:"percentage"`
}

// ActiveContent - последний открытый элемент, разрешённый через программу.
type ActiveContent struct {
	Title      string                 `json:"title"`
	ModuleName string                 `json:"moduleName"`
	Type       curriculum.ContentType `json:"type"`
}

// ValidationResult - итог сверки карты прогресса с программой.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Analytics отвечает на аналитические запросы поверх одной программы.
// Экземпляр создаётся композиционным корнем и безопасен для
// конкурентного чтения.
type Analytics struct {
	cur *curriculum.Curriculum
	seq *curriculum.Sequencer
}

// NewAnalytics создаёт аналитический движок для программы.
func NewAnalytics(cur *curriculum.Curriculum, seq *curriculum.Sequencer) *Analytics {
	return &Analytics{cur: cur, seq: seq}
}

// Summary считает агрегированные счётчики по карте прогресса.
// Ключ квиза исключается из счётчиков уроков и наоборот.
func (a *Analytics) Summary(m Map) Summary {
	s := Summary{
		TotalLessons: a.cur.TotalLessons(),
		TotalQuizzes: a.cur.TotalModules(),
		TotalContent: a.cur.TotalContent(),
	}

	scoreSum := 0
	for _, topics := range m {
		for topicID, rec := range topics {
			if !rec.Completed {
				continue
			}
			if topicID == curriculum.QuizTopicID {
				s.CompletedQuizzes++
			} else {
				s.CompletedLessons++
			}
			scoreSum += rec.Score
		}
	}
	s.CompletedContent = s.CompletedLessons + s.CompletedQuizzes
	s.CompletionPercentage = roundPercent(s.CompletedContent, s.TotalContent)
	if s.CompletedContent > 0 {
		s.AverageScore = float64(scoreSum) / float64(s.CompletedContent)
	}

	return s
}

// CompletionPercentage возвращает процент прохождения всей программы.
func (a *Analytics) CompletionPercentage(m Map) int {
	return a.Summary(m).CompletionPercentage
}

// AverageScore возвращает средние очки по пройденным элементам.
// Непройденные записи в среднее не входят; без пройденных - 0.
func (a *Analytics) AverageScore(m Map) float64 {
	return a.Summary(m).AverageScore
}

// ModuleBreakdowns считает счётчики по каждому модулю программы
// в порядке прохождения.
func (a *Analytics) ModuleBreakdowns(m Map) []ModuleBreakdown {
	out := make([]ModuleBreakdown, 0, len(a.cur.Modules))
	for _, module := range a.cur.Modules {
		b := ModuleBreakdown{
			ModuleID:     module.ID,
			ModuleTitle:  module.Title,
			TotalLessons: len(module.Lessons),
			TotalContent: len(module.Lessons) + 1,
		}

		for _, lesson := range module.Lessons {
			if m.IsCompleted(module.ID, lesson.ID) {
				b.CompletedLessons++
			}
		}
		b.QuizCompleted = m.IsCompleted(module.ID, curriculum.QuizTopicID)

		b.CompletedContent = b.CompletedLessons
		if b.QuizCompleted {
			b.CompletedContent++
		}
		b.Percentage = roundPercent(b.CompletedContent, b.TotalContent)

		out = append(out, b)
	}
	return out
}

// LastActiveContent разрешает указатель последнего открытого элемента
// в отображаемые данные. Возвращает nil, если указатель пуст или
// не разрешается через программу.
func (a *Analytics) LastActiveContent(ptr *Pointer) *ActiveContent {
	if ptr == nil || ptr.IsZero() {
		return nil
	}
	item := a.seq.Lookup(ptr.ModuleID, ptr.TopicID)
	if item == nil {
		return nil
	}
	return &ActiveContent{
		Title:      item.Title,
		ModuleName: item.ModuleTitle,
		Type:       item.Type,
	}
}

// NextRecommendedContent выбирает элемент для продолжения обучения:
//
//   - указатель есть и элемент пройден - следующий элемент за ним;
//   - указатель есть и элемент не пройден - тот же элемент (продолжить);
//   - указателя нет или он не разрешается - первый непройденный элемент
//     программы;
//   - непройденных нет - nil, программа завершена.
func (a *Analytics) NextRecommendedContent(m Map, ptr *Pointer) *curriculum.ContentItem {
	if ptr != nil && !ptr.IsZero() {
		if item := a.seq.Lookup(ptr.ModuleID, ptr.TopicID); item != nil {
			if m.IsCompleted(ptr.ModuleID, ptr.TopicID) {
				return a.seq.Next(ptr.ModuleID, ptr.TopicID)
			}
			return item
		}
	}

	for _, item := range a.seq.Sequence() {
		if !m.IsCompleted(item.ModuleID, item.TopicID) {
			found := item
			return &found
		}
	}
	return nil
}

// ValidateProgressData сверяет ключи карты прогресса с программой.
// На каждый ключ, не входящий в программу, добавляется одна строка
// ошибки. Сверка никогда не блокирует работу: повреждённые ключи
// остаются в карте и просто исключаются из навигации.
func (a *Analytics) ValidateProgressData(m Map) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []string{}}

	moduleIDs := make([]string, 0, len(m))
	for moduleID := range m {
		moduleIDs = append(moduleIDs, moduleID)
	}
	sort.Strings(moduleIDs)

	for _, moduleID := range moduleIDs {
		module, moduleErr := a.cur.ModuleByID(moduleID)

		topicIDs := make([]string, 0, len(m[moduleID]))
		for topicID := range m[moduleID] {
			topicIDs = append(topicIDs, topicID)
		}
		sort.Strings(topicIDs)

		for _, topicID := range topicIDs {
			switch {
			case moduleErr != nil:
				result.Errors = append(result.Errors,
					fmt.Sprintf("progress references unknown module %q (topic %q)", moduleID, topicID))
			case !module.HasTopic(topicID):
				result.Errors = append(result.Errors,
					fmt.Sprintf("progress references unknown topic %q in module %q", topicID, moduleID))
			}
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE TOTALS
// ══════════════════════════════════════════════════════════════════════════════

// Totals - агрегаты профиля, хранимые рядом с картой прогресса.
type Totals struct {
	CompletedLessons int `json:"completedLessons"`
	CompletedQuizzes int `json:"completedQuizzes"`
	TotalScore       int `json:"totalScore"`
}

// ComputeTotals пересчитывает агрегаты полным проходом по карте.
// Инкрементальный пересчёт запрещён: полный проход делает слияние
// идемпотентным и самовосстанавливающимся после расхождений.
// Одна и та же функция используется клиентом при merge-write и
// сервером при применении обновлений.
func ComputeTotals(m Map) Totals {
	var t Totals
	for _, topics := range m {
		for topicID, rec := range topics {
			if !rec.Completed {
				continue
			}
			if topicID == curriculum.QuizTopicID {
				t.CompletedQuizzes++
			} else {
				t.CompletedLessons++
			}
			t.TotalScore += rec.Score
		}
	}
	return t
}

// roundPercent считает round(completed/total*100) с округлением half-up.
// Для нулевого total определён как 0.
func roundPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := (completed*100*2 + total) / (total * 2)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
