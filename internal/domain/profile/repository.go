package profile

import (
	"context"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем профилей.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над профилями в удалённом хранилище.
type Repository interface {
	// Create создаёт новый профиль.
	// Возвращает ErrProfileAlreadyExists, если профиль уже существует.
	Create(ctx context.Context, profile *Profile) error

	// GetByID возвращает профиль по идентификатору.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	GetByID(ctx context.Context, id string) (*Profile, error)

	// UpdateAvatar меняет аватар существующего профиля.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	UpdateAvatar(ctx context.Context, id, avatar string) (*Profile, error)

	// ApplyUpdate атомарно применяет обновление прогресса:
	// чтение профиля, слияние записи, полный пересчёт агрегатов и
	// запись - в одной транзакции с блокировкой строки.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	ApplyUpdate(ctx context.Context, id string, u progress.Update) (*Profile, bool, error)

	// Replace перезаписывает профиль целиком: карту прогресса,
	// агрегаты и указатель последней активности.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	Replace(ctx context.Context, profile *Profile) error

	// Exists проверяет существование профиля.
	Exists(ctx context.Context, id string) (bool, error)

	// Count возвращает общее количество профилей.
	Count(ctx context.Context) (int, error)

	// List возвращает страницу профилей для фоновой сверки.
	List(ctx context.Context, offset, limit int) ([]*Profile, error)
}

// Cache определяет операции кеширования профилей.
type Cache interface {
	// Get получает профиль из кеша.
	Get(ctx context.Context, id string) (*Profile, error)

	// Set сохраняет профиль в кеш.
	Set(ctx context.Context, profile *Profile) error

	// Invalidate удаляет профиль из кеша.
	Invalidate(ctx context.Context, id string) error
}
