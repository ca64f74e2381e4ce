// Package memory provides in-memory implementations of the agent's
// local store interfaces. Used when Redis is disabled (development,
// tests). Nothing here survives a process restart and sibling
// processes do not see each other.
package memory

import (
	"context"
	"sync"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// QueueStore implements progress.QueueStore with a mutex-guarded slice.
type QueueStore struct {
	mu    sync.Mutex
	items []progress.PendingUpdate
	seq   uint64
}

// NewQueueStore creates an empty in-memory queue store.
func NewQueueStore() *QueueStore {
	return &QueueStore{}
}

// Enqueue appends an item to the end of the queue.
func (s *QueueStore) Enqueue(_ context.Context, item progress.PendingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

// Snapshot returns a copy of the whole queue, oldest first.
func (s *QueueStore) Snapshot(_ context.Context) ([]progress.PendingUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]progress.PendingUpdate, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Replace rewrites the queue with the given items.
func (s *QueueStore) Replace(_ context.Context, items []progress.PendingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]progress.PendingUpdate, len(items))
	copy(s.items, items)
	return nil
}

// Len returns the number of queued items.
func (s *QueueStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

// Clear removes all queued items, keeping the sequence counter.
func (s *QueueStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return nil
}

// NextSeq returns the next monotonic sequence number.
func (s *QueueStore) NextSeq(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

// SyncMarker implements progress.SyncMarker for a single process.
// Without Redis there are no sibling processes, so the marker only
// guards against overlapping drains inside this process.
type SyncMarker struct {
	mu         sync.Mutex
	instanceID string
	holder     string
}

// NewSyncMarker creates an in-memory marker for the given instance.
func NewSyncMarker(instanceID string) *SyncMarker {
	return &SyncMarker{instanceID: instanceID}
}

// Acquire places the marker if it is free.
func (m *SyncMarker) Acquire(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder != "" && m.holder != m.instanceID {
		return false, nil
	}
	if m.holder == m.instanceID {
		return false, nil
	}
	m.holder = m.instanceID
	return true, nil
}

// Refresh is a no-op: the in-memory marker has no TTL.
func (m *SyncMarker) Refresh(_ context.Context) error {
	return nil
}

// Release frees the marker if this instance holds it.
func (m *SyncMarker) Release(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder == m.instanceID {
		m.holder = ""
	}
	return nil
}

// Holder returns the instance currently holding the marker.
func (m *SyncMarker) Holder(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder, nil
}

// StatusStore implements progress.StatusStore for a single process.
// The snapshot dies with the process, matching the rest of the package.
type StatusStore struct {
	mu sync.Mutex
	st *progress.SyncStatus
}

// NewStatusStore creates an empty in-memory status store.
func NewStatusStore() *StatusStore {
	return &StatusStore{}
}

// Save overwrites the held snapshot.
func (s *StatusStore) Save(_ context.Context, st progress.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := st
	s.st = &cp
	return nil
}

// Load returns the held snapshot, nil when none was saved.
func (s *StatusStore) Load(_ context.Context) (*progress.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == nil {
		return nil, nil
	}
	cp := *s.st
	return &cp, nil
}

// DropLog implements progress.DropLog with a capped in-memory ring.
type DropLog struct {
	mu      sync.Mutex
	entries []progress.DroppedUpdate
	max     int
}

// NewDropLog creates an in-memory drop journal holding up to max entries.
func NewDropLog(max int) *DropLog {
	if max <= 0 {
		max = 100
	}
	return &DropLog{max: max}
}

// Record adds a dropped update, newest first.
func (d *DropLog) Record(_ context.Context, dropped progress.DroppedUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append([]progress.DroppedUpdate{dropped}, d.entries...)
	if len(d.entries) > d.max {
		d.entries = d.entries[:d.max]
	}
	return nil
}

// Recent returns up to limit most recent drops, newest first.
func (d *DropLog) Recent(_ context.Context, limit int) ([]progress.DroppedUpdate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if limit <= 0 || limit > len(d.entries) {
		limit = len(d.entries)
	}
	out := make([]progress.DroppedUpdate, limit)
	copy(out, d.entries[:limit])
	return out, nil
}
