package curriculum

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT SEQUENCE
// Развёртка программы в единую упорядоченную последовательность.
// Уроки модуля идут подряд, сразу за ними - квиз этого модуля.
// ══════════════════════════════════════════════════════════════════════════════

// ContentItem - один элемент развёрнутой последовательности: урок или квиз.
// Элементы строятся один раз при создании Sequencer и неизменяемы.
type ContentItem struct {
	// ModuleID - модуль, которому принадлежит элемент.
	ModuleID string

	// TopicID - идентификатор урока или QuizTopicID для квиза.
	TopicID string

	// Title - отображаемое название элемента.
	Title string

	// Type - урок или квиз.
	Type ContentType

	// ModuleTitle - название модуля (денормализовано для слоя представления).
	ModuleTitle string

	// GlobalIndex - позиция в общей последовательности, с нуля, без пропусков.
	GlobalIndex int

	// IsFirstInModule - элемент открывает модуль.
	IsFirstInModule bool

	// IsLastInModule - элемент закрывает модуль (всегда квиз).
	IsLastInModule bool

	// IsFirstOverall - первый элемент всей программы.
	IsFirstOverall bool

	// IsLastOverall - последний элемент всей программы.
	IsLastOverall bool

	// IsModuleTransition выставляется только на копиях, возвращаемых
	// Next/Previous: сосед принадлежит другому модулю.
	IsModuleTransition bool
}

// Key возвращает ключ элемента в формате "moduleID/topicID".
func (i ContentItem) Key() string {
	return i.ModuleID + "/" + i.TopicID
}

// IsQuiz проверяет, что элемент - квиз модуля.
func (i ContentItem) IsQuiz() bool {
	return i.Type == TypeQuiz
}

// String возвращает краткое представление для логирования.
func (i ContentItem) String() string {
	return fmt.Sprintf("ContentItem{%s, type: %s, index: %d}", i.Key(), i.Type, i.GlobalIndex)
}

// ══════════════════════════════════════════════════════════════════════════════
// NAVIGATION
// ══════════════════════════════════════════════════════════════════════════════

// Destination - куда ведёт следующий шаг навигации.
type Destination string

const (
	// DestinationLesson - следующий элемент является уроком.
	DestinationLesson Destination = "lesson"
	// DestinationQuiz - следующий элемент является квизом.
	DestinationQuiz Destination = "quiz"
	// DestinationDashboard - программа пройдена, дальше только дашборд.
	DestinationDashboard Destination = "dashboard"
)

// NavigationState - ответ на позиционный запрос для слоя представления.
// Вычисляется на каждый запрос из флагов ContentItem.
type NavigationState struct {
	// CanGoNext - есть следующий элемент.
	CanGoNext bool

	// CanGoPrevious - есть предыдущий элемент.
	CanGoPrevious bool

	// NextDestination - тип следующего элемента или dashboard в конце.
	NextDestination Destination

	// PreviousAvailable - дублирует CanGoPrevious для слоя представления.
	PreviousAvailable bool
}

// ══════════════════════════════════════════════════════════════════════════════
// SEQUENCER
// ══════════════════════════════════════════════════════════════════════════════

type sequenceKey struct {
	moduleID string
	topicID  string
}

// Sequencer отвечает на позиционные запросы по развёрнутой последовательности.
// Строится один раз из валидной программы; все методы безопасны для
// конкурентного чтения и никогда не паникуют: неизвестные идентификаторы
// дают nil, -1 или false.
type Sequencer struct {
	items []ContentItem
	index map[sequenceKey]int
}

// NewSequencer строит последовательность: для каждого модуля в порядке
// программы - его уроки по порядку, затем ровно один квиз.
func NewSequencer(c *Curriculum) *Sequencer {
	total := c.TotalContent()
	s := &Sequencer{
		items: make([]ContentItem, 0, total),
		index: make(map[sequenceKey]int, total),
	}

	globalIndex := 0
	for _, module := range c.Modules {
		for li, lesson := range module.Lessons {
			s.append(ContentItem{
				ModuleID:        module.ID,
				TopicID:         lesson.ID,
				Title:           lesson.Title,
				Type:            TypeLesson,
				ModuleTitle:     module.Title,
				GlobalIndex:     globalIndex,
				IsFirstInModule: li == 0,
			})
			globalIndex++
		}

		// Квиз всегда замыкает модуль.
		s.append(ContentItem{
			ModuleID:       module.ID,
			TopicID:        QuizTopicID,
			Title:          module.QuizTitle(),
			Type:           TypeQuiz,
			ModuleTitle:    module.Title,
			GlobalIndex:    globalIndex,
			IsLastInModule: true,
		})
		globalIndex++
	}

	if len(s.items) > 0 {
		s.items[0].IsFirstOverall = true
		s.items[len(s.items)-1].IsLastOverall = true
	}

	return s
}

func (s *Sequencer) append(item ContentItem) {
	s.index[sequenceKey{item.ModuleID, item.TopicID}] = len(s.items)
	s.items = append(s.items, item)
}

// Len возвращает длину последовательности.
func (s *Sequencer) Len() int {
	return len(s.items)
}

// Sequence возвращает копию всей последовательности.
func (s *Sequencer) Sequence() []ContentItem {
	out := make([]ContentItem, len(s.items))
	copy(out, s.items)
	return out
}

// IndexOf возвращает глобальный индекс элемента или -1, если пара
// (moduleID, topicID) не входит в программу.
func (s *Sequencer) IndexOf(moduleID, topicID string) int {
	if i, ok := s.index[sequenceKey{moduleID, topicID}]; ok {
		return i
	}
	return -1
}

// At возвращает копию элемента по глобальному индексу или nil.
func (s *Sequencer) At(globalIndex int) *ContentItem {
	if globalIndex < 0 || globalIndex >= len(s.items) {
		return nil
	}
	item := s.items[globalIndex]
	return &item
}

// Lookup возвращает копию элемента по паре идентификаторов или nil.
func (s *Sequencer) Lookup(moduleID, topicID string) *ContentItem {
	return s.At(s.IndexOf(moduleID, topicID))
}

// First возвращает первый элемент программы или nil для пустой программы.
func (s *Sequencer) First() *ContentItem {
	return s.At(0)
}

// Last возвращает последний элемент программы или nil для пустой программы.
func (s *Sequencer) Last() *ContentItem {
	return s.At(len(s.items) - 1)
}

// Next возвращает элемент, следующий за (moduleID, topicID), или nil,
// если элемент последний либо неизвестен. На возвращаемой копии
// выставлен IsModuleTransition, когда следующий элемент открывает
// другой модуль.
func (s *Sequencer) Next(moduleID, topicID string) *ContentItem {
	i := s.IndexOf(moduleID, topicID)
	if i < 0 || i+1 >= len(s.items) {
		return nil
	}
	item := s.items[i+1]
	item.IsModuleTransition = item.ModuleID != moduleID
	return &item
}

// Previous возвращает элемент перед (moduleID, topicID) или nil,
// если элемент первый либо неизвестен. IsModuleTransition выставлен
// по тому же правилу, что и в Next.
func (s *Sequencer) Previous(moduleID, topicID string) *ContentItem {
	i := s.IndexOf(moduleID, topicID)
	if i <= 0 {
		return nil
	}
	item := s.items[i-1]
	item.IsModuleTransition = item.ModuleID != moduleID
	return &item
}

// NavigationState вычисляет состояние навигации для элемента.
// Для неизвестной пары идентификаторов возвращается закрытое состояние
// с направлением на дашборд.
func (s *Sequencer) NavigationState(moduleID, topicID string) NavigationState {
	i := s.IndexOf(moduleID, topicID)
	if i < 0 {
		return NavigationState{NextDestination: DestinationDashboard}
	}

	item := s.items[i]
	state := NavigationState{
		CanGoNext:         !item.IsLastOverall,
		CanGoPrevious:     !item.IsFirstOverall,
		PreviousAvailable: !item.IsFirstOverall,
		NextDestination:   DestinationDashboard,
	}

	if next := s.At(i + 1); next != nil {
		if next.Type == TypeQuiz {
			state.NextDestination = DestinationQuiz
		} else {
			state.NextDestination = DestinationLesson
		}
	}

	return state
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// Локаторы для слоя представления. Ядро формирует их, но никогда не
// разбирает обратно.
// ══════════════════════════════════════════════════════════════════════════════

// DashboardRoute - локатор дашборда, конец навигации по программе.
const DashboardRoute = "/dashboard"

// RouteFor возвращает непрозрачный локатор элемента для слоя представления.
// Для неизвестной пары идентификаторов возвращается пустая строка.
func (s *Sequencer) RouteFor(moduleID, topicID string) string {
	i := s.IndexOf(moduleID, topicID)
	if i < 0 {
		return ""
	}
	if s.items[i].Type == TypeQuiz {
		return "/quiz/" + moduleID
	}
	return "/lessons/" + moduleID + "/" + topicID
}
