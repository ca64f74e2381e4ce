package curriculum

// DefaultVersion - версия встроенной программы.
const DefaultVersion = "2025.2"

// Default возвращает встроенную учебную программу PyKIDS.
// Используется, когда внешний файл программы не задан в конфигурации.
// Содержимое согласовано с фронтендом: идентификаторы модулей и уроков
// служат ключами карты прогресса и не должны меняться между релизами.
func Default() *Curriculum {
	return &Curriculum{
		Version: DefaultVersion,
		Modules: []Module{
			{
				ID:          "python-basics",
				Title:       "Python Basics",
				Description: "Meet Python and write your very first programs.",
				Lessons: []Lesson{
					{ID: "what-is-python", Title: "What is Python?"},
					{ID: "first-program", Title: "Your First Program"},
					{ID: "print-magic", Title: "Printing Messages"},
					{ID: "comments", Title: "Leaving Notes with Comments"},
				},
			},
			{
				ID:          "variables-and-data",
				Title:       "Variables & Data",
				Description: "Store numbers and words in little labeled boxes.",
				Lessons: []Lesson{
					{ID: "variables-are-boxes", Title: "Variables are Boxes"},
					{ID: "numbers", Title: "Playing with Numbers"},
					{ID: "strings", Title: "Fun with Words"},
					{ID: "user-input", Title: "Asking Questions"},
				},
			},
			{
				ID:          "making-decisions",
				Title:       "Making Decisions",
				Description: "Teach your program to choose between paths.",
				Lessons: []Lesson{
					{ID: "if-statements", Title: "The If Statement"},
					{ID: "else-paths", Title: "Choosing the Other Path"},
					{ID: "comparisons", Title: "Comparing Things"},
				},
			},
			{
				ID:          "loops",
				Title:       "Loops & Repetition",
				Description: "Make the computer repeat things so you do not have to.",
				Lessons: []Lesson{
					{ID: "for-loops", Title: "The For Loop"},
					{ID: "while-loops", Title: "The While Loop"},
					{ID: "loop-games", Title: "Loop Games"},
				},
			},
			{
				ID:          "functions",
				Title:       "Functions",
				Description: "Bundle steps into reusable magic spells.",
				Lessons: []Lesson{
					{ID: "what-are-functions", Title: "What is a Function?"},
					{ID: "making-functions", Title: "Making Your Own Functions"},
					{ID: "parameters", Title: "Giving Functions Instructions"},
				},
			},
			{
				ID:          "lists-and-collections",
				Title:       "Lists & Collections",
				Description: "Keep many things together and find them fast.",
				Lessons: []Lesson{
					{ID: "making-lists", Title: "Making Lists"},
					{ID: "list-tricks", Title: "List Tricks"},
					{ID: "dictionaries", Title: "Word Dictionaries"},
				},
			},
		},
	}
}
