// Package syncer implements the persistence and sync engine: the
// durable pending queue, the drain loop with retry ceiling, the
// online/offline state machine, and the cross-process convergence
// pulse. Everything here is trigger-driven; the engine owns no timers
// of its own (the scheduler supplies the periodic trigger).
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// RemoteStore is the engine's port to the remote profile store. The
// adapter behind it owns the read-merge-write composition; the engine
// only sees "push one update" with all-or-nothing semantics per item.
type RemoteStore interface {
	// Push merges one update into the remote profile.
	Push(ctx context.Context, u progress.Update) error
}

// StatusListener receives sync status snapshots. Listeners run on the
// goroutine that triggered the change; keep them quick.
type StatusListener func(progress.SyncStatus)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// Config assembles an Engine. Queue, Remote, and UserID are required;
// Marker, Drops, and Events are optional and degrade gracefully.
type Config struct {
	// UserID is the learner this engine serves.
	UserID string

	// InstanceID distinguishes sibling processes of the same user.
	// Auto-generated when empty.
	InstanceID string

	// Queue is the durable pending-update store.
	Queue progress.QueueStore

	// Marker is the cross-process drain marker. Nil disables sibling
	// exclusion; duplicate drains are harmless, only wasteful.
	Marker progress.SyncMarker

	// Drops is the journal of permanently dropped updates.
	Drops progress.DropLog

	// Status persists the latest status snapshot so a restarted agent
	// can report its last sync before the first drain. Nil disables
	// persistence; writes are best-effort either way.
	Status progress.StatusStore

	// Remote is the remote profile store port.
	Remote RemoteStore

	// Events receives engine lifecycle events. Nil disables publishing.
	Events shared.EventPublisher

	// Logger for structured logging.
	Logger *slog.Logger

	// MaxRetries is the retry ceiling: an update failing this many
	// drain attempts is dropped permanently with a surfaced warning.
	MaxRetries int

	// Backoff is the minimum spacing policy between attempts.
	Backoff BackoffPolicy

	// StartOnline sets the initial connectivity assumption. The default
	// is offline; the connectivity probe or the caller flips it.
	StartOnline bool
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine is the persistence and sync engine for one learner.
//
// All state transitions recompute the SyncStatus snapshot and fan it
// out to listeners and the event bus. Remote failures never reach the
// caller of SaveProgress; they surface through status and events.
type Engine struct {
	userID     string
	instanceID string
	queue      progress.QueueStore
	marker     progress.SyncMarker
	drops      progress.DropLog
	status     progress.StatusStore
	remote     RemoteStore
	events     shared.EventPublisher
	logger     *slog.Logger
	maxRetries int
	backoff    BackoffPolicy

	mu           sync.Mutex
	online       bool
	syncing      bool
	pending      int
	lastSync     *time.Time
	lastError    string
	listeners    map[int]StatusListener
	nextListener int
	closed       bool
}

// New creates a sync engine from the config.
func New(cfg Config) (*Engine, error) {
	if cfg.UserID == "" {
		return nil, errors.New("syncer: user id is required")
	}
	if cfg.Queue == nil {
		return nil, errors.New("syncer: queue store is required")
	}
	if cfg.Remote == nil {
		return nil, errors.New("syncer: remote store is required")
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = "agent-" + uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if (cfg.Backoff == BackoffPolicy{}) {
		cfg.Backoff = DefaultBackoffPolicy()
	}

	e := &Engine{
		userID:     cfg.UserID,
		instanceID: cfg.InstanceID,
		queue:      cfg.Queue,
		marker:     cfg.Marker,
		drops:      cfg.Drops,
		status:     cfg.Status,
		remote:     cfg.Remote,
		events:     cfg.Events,
		logger:     cfg.Logger,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		online:     cfg.StartOnline,
		listeners:  make(map[int]StatusListener),
	}

	// A queue persisted by a previous run must show up in the first
	// status snapshot, before any operation touches the store.
	if n, err := cfg.Queue.Len(context.Background()); err == nil {
		e.pending = n
	}

	// Only the historical fields are restored from the last run's
	// snapshot. Connectivity and queue depth are live facts and must
	// come from the probe and the queue, not from a stale record.
	if cfg.Status != nil {
		if st, err := cfg.Status.Load(context.Background()); err == nil && st != nil {
			e.lastSync = st.LastSyncTime
			e.lastError = st.LastError
		}
	}

	return e, nil
}

// InstanceID returns the identifier of this engine's process.
func (e *Engine) InstanceID() string {
	return e.instanceID
}

// ══════════════════════════════════════════════════════════════════════════════
// SAVE PATH
// ══════════════════════════════════════════════════════════════════════════════

// SaveProgress persists one update. Invalid input is the only error a
// healthy store setup produces: remote failures are queued silently,
// and a queued update survives process restarts until it is confirmed
// or breaches the retry ceiling.
//
// Ordering: while the queue is non-empty, new updates join it instead
// of bypassing it, so same-key updates reach the remote store in their
// original order. The enqueue immediately triggers a drain.
func (e *Engine) SaveProgress(ctx context.Context, u progress.Update) error {
	if err := u.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return shared.ErrEngineClosed
	}
	online := e.online
	backlog := e.pending
	e.mu.Unlock()

	if online && backlog == 0 {
		err := e.remote.Push(ctx, u)
		if err == nil {
			e.recordDirectSync()
			e.publish(shared.NewRemotePulseEvent(e.userID, e.instanceID, "synced"))
			return nil
		}

		e.logger.Warn("direct sync failed, queueing",
			"module", u.ModuleID,
			"topic", u.TopicID,
			"error", err,
		)
		e.mu.Lock()
		e.lastError = err.Error()
		e.mu.Unlock()
	}

	if err := e.enqueue(ctx, u); err != nil {
		return err
	}

	// With a backlog and connectivity, drain right away so the fresh
	// update does not wait for the periodic timer.
	if online && backlog > 0 {
		if _, err := e.Drain(ctx); err != nil {
			e.logger.Warn("post-enqueue drain failed", "error", err)
		}
	}

	return nil
}

// enqueue wraps the update as a PendingUpdate and stores it durably.
func (e *Engine) enqueue(ctx context.Context, u progress.Update) error {
	seq, err := e.queue.NextSeq(ctx)
	if err != nil {
		return shared.WrapError("syncer", "SaveProgress", shared.ErrServiceUnavailable,
			"allocate queue sequence", err)
	}

	item := progress.PendingUpdate{
		ID:         uuid.NewString(),
		Update:     u,
		Priority:   progress.PriorityForUpdate(u),
		EnqueuedAt: time.Now().UTC(),
		Seq:        seq,
	}

	if err := e.queue.Enqueue(ctx, item); err != nil {
		return shared.WrapError("syncer", "SaveProgress", shared.ErrServiceUnavailable,
			"enqueue pending update", err)
	}

	e.mu.Lock()
	e.pending++
	pending := e.pending
	st := e.statusLocked()
	e.mu.Unlock()
	e.fanOut(st)

	e.logger.Info("update queued for later sync",
		"update_id", item.ID,
		"module", u.ModuleID,
		"topic", u.TopicID,
		"priority", item.Priority.String(),
		"pending", pending,
	)

	e.publish(shared.NewUpdateEnqueuedEvent(
		e.userID, item.ID, u.ModuleID, u.TopicID, item.Priority.String(), pending))
	e.publish(shared.NewRemotePulseEvent(e.userID, e.instanceID, "enqueue"))

	return nil
}

// recordDirectSync folds a successful queue-bypassing write into status.
func (e *Engine) recordDirectSync() {
	now := time.Now().UTC()
	e.mu.Lock()
	e.lastSync = &now
	e.lastError = ""
	st := e.statusLocked()
	e.mu.Unlock()
	e.fanOut(st)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTIVITY
// ══════════════════════════════════════════════════════════════════════════════

// SetOnline records a connectivity transition. Going online triggers a
// full drain; going offline stops new attempts but leaves the queue
// untouched. A drain already in flight notices the flag before its
// next attempt and winds down, keeping unattempted items.
func (e *Engine) SetOnline(ctx context.Context, online bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return shared.ErrEngineClosed
	}
	was := e.online
	e.online = online
	st := e.statusLocked()
	e.mu.Unlock()

	if was != online {
		e.logger.Info("connectivity changed", "online", online)
		e.fanOut(st)
	}

	if online && !was {
		if _, err := e.Drain(ctx); err != nil {
			return err
		}
	}

	return nil
}

// IsOnline reports the current connectivity assumption.
func (e *Engine) IsOnline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// ══════════════════════════════════════════════════════════════════════════════
// DRAIN
// ══════════════════════════════════════════════════════════════════════════════

// Drain pushes the pending queue to the remote store, high priority
// first, original order within a priority. A concurrent call while one
// drain is in flight is a recorded no-op. Offline, the call does
// nothing and keeps the queue intact.
func (e *Engine) Drain(ctx context.Context) (progress.FlushReport, error) {
	start := time.Now()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return progress.FlushReport{}, shared.ErrEngineClosed
	}
	if e.syncing {
		pending := e.pending
		e.mu.Unlock()
		e.logger.Debug("drain already in flight, skipping")
		return progress.FlushReport{Reentrant: true, Remaining: pending}, nil
	}
	if !e.online {
		pending := e.pending
		e.mu.Unlock()
		return progress.FlushReport{Remaining: pending}, nil
	}
	e.syncing = true
	st := e.statusLocked()
	e.mu.Unlock()
	e.fanOut(st)

	res, err := e.drainQueue(ctx)
	res.Duration = time.Since(start)

	now := time.Now().UTC()
	e.mu.Lock()
	e.syncing = false
	if !res.Reentrant {
		e.pending = res.Remaining
	}
	if res.Synced > 0 {
		e.lastSync = &now
	}
	// No case matches when all that remains was skipped by spacing:
	// those items keep their earlier failure text, since they are still
	// waiting out a backoff caused by it.
	switch {
	case err != nil:
		e.lastError = err.Error()
	case res.LastError != "":
		e.lastError = res.LastError
	case res.Remaining == 0:
		e.lastError = ""
	}
	st = e.statusLocked()
	e.mu.Unlock()
	e.fanOut(st)

	if err != nil || res.Reentrant {
		return res, err
	}

	e.logger.Info("drain cycle finished",
		"synced", res.Synced,
		"failed", res.Failed,
		"dropped", res.Dropped,
		"skipped", res.Skipped,
		"remaining", res.Remaining,
		"duration", res.Duration,
	)

	e.publish(shared.NewSyncQueueFlushedEvent(
		e.userID, res.Synced, res.Failed, res.Dropped, res.Remaining, res.Duration))
	if res.Synced > 0 {
		e.publish(shared.NewRemotePulseEvent(e.userID, e.instanceID, "synced"))
	}

	return res, nil
}

// drainQueue runs one cycle over the queue. The caller owns the
// syncing flag and final status recomputation.
func (e *Engine) drainQueue(ctx context.Context) (progress.FlushReport, error) {
	if e.marker != nil {
		ok, err := e.marker.Acquire(ctx)
		switch {
		case err != nil:
			// The marker is advisory: convergence comes from
			// broadcast-and-redrain, so a dead marker store never
			// blocks the drain.
			e.logger.Debug("sync marker unavailable, draining anyway", "error", err)
		case !ok:
			e.logger.Debug("sibling drain in flight, skipping")
			n, _ := e.queue.Len(ctx)
			return progress.FlushReport{Reentrant: true, Remaining: n}, nil
		default:
			defer func() {
				if err := e.marker.Release(context.WithoutCancel(ctx)); err != nil {
					e.logger.Debug("sync marker release failed", "error", err)
				}
			}()
		}
	}

	items, err := e.queue.Snapshot(ctx)
	if err != nil {
		return progress.FlushReport{}, shared.WrapError("syncer", "Drain", shared.ErrServiceUnavailable,
			"load pending queue", err)
	}
	if len(items) == 0 {
		return progress.FlushReport{}, nil
	}

	progress.SortForDrain(items)

	var res progress.FlushReport
	kept := make([]progress.PendingUpdate, 0, len(items))
	now := time.Now().UTC()

	for i := range items {
		item := items[i]

		// Cancellation or a mid-drain offline transition: keep the rest
		// of the queue untouched for the next trigger.
		if ctx.Err() != nil || !e.IsOnline() {
			kept = append(kept, item)
			continue
		}

		if !e.backoff.Due(item, now) {
			res.Skipped++
			kept = append(kept, item)
			continue
		}

		if e.marker != nil {
			if err := e.marker.Refresh(ctx); err != nil {
				e.logger.Debug("sync marker refresh failed", "error", err)
			}
		}

		if err := e.remote.Push(ctx, item.Update); err != nil {
			item.RetryCount++
			item.LastAttempt = now
			res.LastError = err.Error()

			if item.RetryCount >= e.maxRetries {
				e.drop(ctx, item, err)
				res.Dropped++
			} else {
				kept = append(kept, item)
				res.Failed++
			}
			continue
		}

		res.Synced++
	}

	if err := e.queue.Replace(ctx, kept); err != nil {
		return res, shared.WrapError("syncer", "Drain", shared.ErrServiceUnavailable,
			"persist pending queue", err)
	}

	res.Remaining = len(kept)
	return res, nil
}

// drop discards an update at the retry ceiling. Data loss is accepted
// here and must be loud: warning log, journal entry, event.
func (e *Engine) drop(ctx context.Context, item progress.PendingUpdate, cause error) {
	e.logger.Warn("update dropped after retry ceiling",
		"update_id", item.ID,
		"module", item.Update.ModuleID,
		"topic", item.Update.TopicID,
		"retries", item.RetryCount,
		"error", cause,
	)

	if e.drops != nil {
		entry := progress.DroppedUpdate{
			Update:     item.Update,
			RetryCount: item.RetryCount,
			Reason:     cause.Error(),
			DroppedAt:  time.Now().UTC(),
		}
		if err := e.drops.Record(ctx, entry); err != nil {
			e.logger.Error("drop journal write failed", "update_id", item.ID, "error", err)
		}
	}

	e.publish(shared.NewUpdateDroppedEvent(
		e.userID, item.ID, item.Update.ModuleID, item.Update.TopicID,
		item.RetryCount, cause.Error()))
}

// ForceSyncNow is the manual drain trigger for the presentation layer.
func (e *Engine) ForceSyncNow(ctx context.Context) (progress.FlushReport, error) {
	return e.Drain(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status returns the current status snapshot without touching the store.
func (e *Engine) Status() progress.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// PendingCount reads the live queue length from the durable store and
// refreshes the cached value.
func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	n, err := e.queue.Len(ctx)
	if err != nil {
		return 0, shared.WrapError("syncer", "PendingCount", shared.ErrServiceUnavailable,
			"read queue length", err)
	}

	e.mu.Lock()
	e.pending = n
	e.mu.Unlock()

	return n, nil
}

// OnStatusChange subscribes to status snapshots. The current status is
// replayed immediately; the returned func unsubscribes, after which
// the listener never fires again.
func (e *Engine) OnStatusChange(fn StatusListener) func() {
	e.mu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	st := e.statusLocked()
	e.mu.Unlock()

	fn(st)

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// statusLocked builds a snapshot from current fields. Callers hold mu.
func (e *Engine) statusLocked() progress.SyncStatus {
	var lastSync *time.Time
	if e.lastSync != nil {
		t := *e.lastSync
		lastSync = &t
	}
	return progress.NewSyncStatus(e.online, e.syncing, e.pending, lastSync, e.lastError)
}

// fanOut delivers a status snapshot to listeners, the durable status
// record, and the event bus. Runs without the mutex so listeners may
// call back into the engine.
func (e *Engine) fanOut(st progress.SyncStatus) {
	e.mu.Lock()
	listeners := make([]StatusListener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}

	e.persistStatus(st)

	e.publish(shared.NewSyncStateChangedEvent(
		e.userID, st.State.String(), st.IsOnline, st.PendingCount, st.LastSyncTime, st.LastError))
}

// persistStatus writes the snapshot to the durable store, best-effort.
// Failures are logged and swallowed: status persistence must never
// slow down or break a transition.
func (e *Engine) persistStatus(st progress.SyncStatus) {
	if e.status == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.status.Save(ctx, st); err != nil {
		e.logger.Debug("status persist failed", "error", err)
	}
}

// publish sends an event if a bus is attached. Publish failures are
// logged, never propagated: the engine works without its bus.
func (e *Engine) publish(event shared.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(event); err != nil {
		e.logger.Debug("event publish failed", "type", string(event.EventType()), "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Close stops the engine. Pending items stay in the durable store for
// the next run; listeners are detached.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.listeners = make(map[int]StatusListener)
	return nil
}
