package curriculum

import (
	"encoding/json"
	"fmt"
	"os"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOADER
// Загрузка программы из внешнего JSON-файла. Формат файла повторяет
// структуру Curriculum; после разбора выполняется полная валидация.
// ══════════════════════════════════════════════════════════════════════════════

type curriculumFile struct {
	Version string       `json:"version"`
	Modules []moduleFile `json:"modules"`
}

type moduleFile struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Lessons     []lessonFile `json:"lessons"`
}

type lessonFile struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Parse разбирает JSON-описание программы и валидирует его.
func Parse(data []byte) (*Curriculum, error) {
	var file curriculumFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse curriculum: %w", err)
	}

	modules := make([]Module, 0, len(file.Modules))
	for _, m := range file.Modules {
		lessons := make([]Lesson, 0, len(m.Lessons))
		for _, l := range m.Lessons {
			lessons = append(lessons, Lesson{ID: l.ID, Title: l.Title})
		}
		modules = append(modules, Module{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			Lessons:     lessons,
		})
	}

	return New(file.Version, modules)
}

// LoadFile читает программу из файла.
// Пустой путь означает встроенную программу по умолчанию.
func LoadFile(path string) (*Curriculum, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum file %s: %w", path, err)
	}

	return Parse(data)
}
