// Package session хранит локальное состояние агента между командами.
//
// Store - единственный владелец локального снапшота профиля. Команды
// изменяют его через явные методы, слой представления и фоновые задачи
// читают через Snapshot и подписки. Наружу отдаются только глубокие
// копии: мутация полученного снапшота не влияет на хранилище.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ErrNoProfile - профиль ещё не загружен, мутация невозможна.
var ErrNoProfile = errors.New("session: profile not loaded")

// Snapshot - неизменяемый срез состояния на момент запроса.
type Snapshot struct {
	// Profile - копия локального профиля; nil до первой загрузки.
	Profile *profile.Profile

	// Loading - выполняется начальная загрузка или принудительное обновление.
	Loading bool

	// Sync - последнее известное состояние движка синхронизации.
	Sync progress.SyncStatus
}

// Listener получает снапшот после каждого изменения хранилища.
type Listener func(Snapshot)

// Store - потокобезопасное хранилище состояния одного ученика.
type Store struct {
	mu        sync.RWMutex
	profile   *profile.Profile
	loading   bool
	sync      progress.SyncStatus
	listeners map[int]Listener
	nextID    int
}

// NewStore создаёт пустое хранилище. Профиль появляется после первой
// команды RefreshProfile.
func NewStore() *Store {
	return &Store{
		listeners: make(map[int]Listener),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ЧТЕНИЕ
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot возвращает копию текущего состояния.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Profile возвращает копию локального профиля или nil, если он не загружен.
func (s *Store) Profile() *profile.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	return s.profile.Clone()
}

// HasProfile сообщает, загружен ли профиль.
func (s *Store) HasProfile() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil
}

// SyncStatus возвращает последнее известное состояние синхронизации.
func (s *Store) SyncStatus() progress.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sync
}

// ══════════════════════════════════════════════════════════════════════════════
// МУТАЦИИ
// Вызываются только обработчиками команд и событий.
// ══════════════════════════════════════════════════════════════════════════════

// Replace целиком заменяет локальный профиль. Используется при загрузке
// и принудительном обновлении: пришедшее состояние авторитетно, слияние
// по полям не выполняется.
func (s *Store) Replace(p *profile.Profile) {
	s.mu.Lock()
	if p == nil {
		s.profile = nil
	} else {
		s.profile = p.Clone()
	}
	snap := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
}

// ApplyUpdate применяет обновление прогресса к локальному профилю.
// Возвращает true, если элемент завершён впервые. Итоги профиля
// пересчитываются внутри ApplyUpdate сущности.
func (s *Store) ApplyUpdate(u progress.Update, now time.Time) (bool, error) {
	s.mu.Lock()
	if s.profile == nil {
		s.mu.Unlock()
		return false, ErrNoProfile
	}

	isNew, err := s.profile.ApplyUpdate(u, now)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}

	snap := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
	return isNew, nil
}

// SetAvatar меняет выбранный аватар локального профиля.
func (s *Store) SetAvatar(avatar string) error {
	s.mu.Lock()
	if s.profile == nil {
		s.mu.Unlock()
		return ErrNoProfile
	}

	if err := s.profile.ChangeAvatar(avatar); err != nil {
		s.mu.Unlock()
		return err
	}

	snap := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
	return nil
}

// SetLoading выставляет флаг загрузки.
func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	if s.loading == v {
		s.mu.Unlock()
		return
	}
	s.loading = v
	snap := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
}

// SetSyncStatus сохраняет состояние движка синхронизации.
func (s *Store) SetSyncStatus(st progress.SyncStatus) {
	s.mu.Lock()
	s.sync = st
	snap := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
}

// ══════════════════════════════════════════════════════════════════════════════
// ПОДПИСКИ
// ══════════════════════════════════════════════════════════════════════════════

// Subscribe регистрирует слушателя изменений. Возвращает функцию отписки.
// Слушатель немедленно получает текущее состояние.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	snap := s.snapshotLocked()
	s.mu.Unlock()

	fn(snap)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ВНУТРЕННЕЕ
// ══════════════════════════════════════════════════════════════════════════════

// snapshotLocked собирает снапшот. Вызывается под блокировкой.
func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Loading: s.loading,
		Sync:    s.sync,
	}
	if s.profile != nil {
		snap.Profile = s.profile.Clone()
	}
	return snap
}

// listenersLocked копирует срез слушателей. Вызывается под блокировкой,
// уведомления уходят уже без неё.
func (s *Store) listenersLocked() []Listener {
	if len(s.listeners) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []Listener, snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
