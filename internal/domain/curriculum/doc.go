// Package curriculum содержит доменную модель учебной программы PyKIDS.
//
// Это ядро read-model системы "PyKIDS Progress Hub". Пакет определяет:
//
//   - Сущности (Entities): Curriculum, Module, Lesson
//   - Value Objects: ContentType, зарезервированный идентификатор QuizTopicID
//   - Sequencer: развёртку программы в единую упорядоченную последовательность
//   - ContentItem и NavigationState: позиционные запросы для слоя представления
//
// # Архитектурные принципы
//
// Пакет следует принципам Clean Architecture и DDD:
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Программа загружается один раз и после этого неизменяема
//  3. Позиционные запросы никогда не паникуют: для неизвестных
//     идентификаторов возвращаются nil / -1 / false
//
// # Модель программы
//
// Программа - это упорядоченный список модулей. Каждый модуль содержит
// упорядоченный список уроков и ровно один квиз, который всегда идёт
// последним элементом модуля. Квиз адресуется зарезервированным
// идентификатором темы QuizTopicID ("quiz"), поэтому урок не может
// использовать этот идентификатор.
//
// # Sequencer
//
// Sequencer строит полную последовательность элементов при создании:
//
//	seq := curriculum.NewSequencer(cur)
//	item := seq.Next("python-basics", "what-is-python")
//	nav  := seq.NavigationState("python-basics", curriculum.QuizTopicID)
//
// Последовательность строится один раз, глобальные индексы непрерывны
// и начинаются с нуля, ровно один элемент помечен первым и ровно один
// последним во всей программе.
package curriculum
