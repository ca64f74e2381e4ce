package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pykids/progress-hub/internal/domain/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func syncBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
		Logger:        discardLogger(),
	}
}

func TestInMemoryEventBus_DeliversToTypeSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var pulses []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventRemotePulse, func(e shared.Event) error {
		pulses = append(pulses, e)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRemotePulseEvent("user-1", "agent-a", "progress_saved")))
	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("user-1", "variables", "lesson_1", true, 10, "lesson")))

	require.Len(t, pulses, 1)
	assert.Equal(t, shared.EventRemotePulse, pulses[0].EventType())
	assert.Equal(t, "user-1", pulses[0].AggregateID())
}

func TestInMemoryEventBus_SubscribeAllSeesEveryEvent(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	seen := 0
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		seen++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRemotePulseEvent("user-1", "agent-a", "progress_saved")))
	require.NoError(t, bus.Publish(shared.NewAvatarChangedEvent("user-1", "robot")))

	assert.Equal(t, 2, seen)
}

func TestInMemoryEventBus_RejectsNilArguments(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	assert.Error(t, bus.Subscribe(shared.EventRemotePulse, nil))
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(nil))
}

func TestInMemoryEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewAvatarChangedEvent("user-1", "robot"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventRemotePulse, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)

	// Повторное закрытие безопасно.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.Logger = discardLogger()
	bus := NewInMemoryEventBus(cfg)

	done := make(chan shared.Event, 1)
	require.NoError(t, bus.Subscribe(shared.EventRemotePulse, func(e shared.Event) error {
		done <- e
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRemotePulseEvent("user-1", "agent-a", "progress_saved")))

	select {
	case e := <-done:
		assert.Equal(t, "user-1", e.AggregateID())
	case <-time.After(time.Second):
		t.Fatal("async handler was never invoked")
	}

	require.NoError(t, bus.Close())
}

func TestInMemoryEventBus_MetricsCountPublishes(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return nil }))
	require.NoError(t, bus.Publish(shared.NewAvatarChangedEvent("user-1", "robot")))
	require.NoError(t, bus.Publish(shared.NewAvatarChangedEvent("user-1", "rocket")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, 1.0, snap.HandlerSuccessRate)
}

// fakeTransport реализует RedisClient поверх каналов, без настоящего Redis.
type fakeTransport struct {
	mu        sync.Mutex
	published []shared.EventEnvelope
	incoming  chan RedisMessage
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{incoming: make(chan RedisMessage, 16)}
}

func (f *fakeTransport) Publish(ctx context.Context, channel string, message interface{}) error {
	env, ok := message.(shared.EventEnvelope)
	if !ok {
		return errors.New("unexpected message type")
	}
	f.mu.Lock()
	f.published = append(f.published, env)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	return f.incoming, nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) envelopes() []shared.EventEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]shared.EventEnvelope, len(f.published))
	copy(out, f.published)
	return out
}

func (f *fakeTransport) inject(t *testing.T, env shared.EventEnvelope) {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	f.incoming <- RedisMessage{Channel: DefaultEventChannel, Payload: string(raw)}
}

func TestRedisEventBus_PublishReachesWireAndLocalHandlers(t *testing.T) {
	transport := newFakeTransport()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         transport,
		InstanceID:     "agent-a",
		LocalBusConfig: syncBusConfig(),
		Logger:         discardLogger(),
	})
	require.NoError(t, err)
	defer bus.Close()

	local := 0
	require.NoError(t, bus.Subscribe(shared.EventRemotePulse, func(shared.Event) error {
		local++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRemotePulseEvent("user-1", "agent-a", "progress_saved")))

	assert.Equal(t, 1, local)

	envs := transport.envelopes()
	require.Len(t, envs, 1)
	assert.Equal(t, shared.EventRemotePulse, envs[0].Type)
	assert.Equal(t, "user-1", envs[0].AggregateID)
	assert.Equal(t, "agent-a", envs[0].InstanceID)
	assert.NotEmpty(t, envs[0].ID)
}

func TestRedisEventBus_DeliversRemoteAndFiltersSelf(t *testing.T) {
	transport := newFakeTransport()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         transport,
		InstanceID:     "agent-a",
		LocalBusConfig: syncBusConfig(),
		Logger:         discardLogger(),
	})
	require.NoError(t, err)
	defer bus.Close()

	got := make(chan shared.Event, 2)
	require.NoError(t, bus.Subscribe(shared.EventRemotePulse, func(e shared.Event) error {
		got <- e
		return nil
	}))

	payload, err := json.Marshal(map[string]interface{}{"reason": "progress_saved"})
	require.NoError(t, err)

	// Собственная публикация уже обработана локально и должна быть отброшена
	transport.inject(t, shared.EventEnvelope{
		ID: "env-1", Type: shared.EventRemotePulse, AggregateID: "user-1",
		InstanceID: "agent-a", Timestamp: time.Now().UTC(), Version: 1, Payload: payload,
	})
	transport.inject(t, shared.EventEnvelope{
		ID: "env-2", Type: shared.EventRemotePulse, AggregateID: "user-1",
		InstanceID: "agent-b", Timestamp: time.Now().UTC(), Version: 1, Payload: payload,
	})

	select {
	case e := <-got:
		assert.Equal(t, shared.EventRemotePulse, e.EventType())
		assert.Equal(t, "user-1", e.AggregateID())
		assert.Equal(t, "progress_saved", e.Payload()["reason"])
	case <-time.After(time.Second):
		t.Fatal("remote event was never delivered")
	}

	// Сообщения обрабатываются по порядку: раз env-2 дошло, env-1 отброшено.
	select {
	case <-got:
		t.Fatal("self-published event must be filtered out")
	default:
	}
}

func testDispatcherConfig(bus shared.EventBus) DispatcherConfig {
	return DispatcherConfig{
		EventBus:       bus,
		WorkerPoolSize: 2,
		RetryConfig: RetryConfig{
			MaxRetries:        2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   10,
		Logger:                discardLogger(),
	}
}

func TestDispatcher_RoutesBusEventsToHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(testDispatcherConfig(bus))
	defer d.Stop()

	var seen []shared.Event
	require.NoError(t, d.RegisterSync(shared.EventRemotePulse, "pulse", func(e shared.Event) error {
		seen = append(seen, e)
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewRemotePulseEvent("user-1", "agent-b", "progress_saved")))
	// События без зарегистрированных обработчиков не являются ошибкой
	require.NoError(t, bus.Publish(shared.NewAvatarChangedEvent("user-1", "robot")))

	require.Len(t, seen, 1)
	assert.Equal(t, "user-1", seen[0].AggregateID())
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(testDispatcherConfig(bus))
	defer d.Stop()

	attempts := 0
	require.NoError(t, d.RegisterSync(shared.EventRemotePulse, "flaky", func(shared.Event) error {
		attempts++
		if attempts < 3 {
			return errors.New("session store busy")
		}
		return nil
	}))

	err := d.Dispatch(shared.NewRemotePulseEvent("user-1", "agent-b", "progress_saved"))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, d.DeadLetterQueue().Size())
}

func TestDispatcher_DeadLettersExhaustedEvents(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(testDispatcherConfig(bus))
	defer d.Stop()

	attempts := 0
	require.NoError(t, d.RegisterSync(shared.EventUpdateDropped, "doomed", func(shared.Event) error {
		attempts++
		return errors.New("handler keeps failing")
	}))

	err := d.Dispatch(shared.NewUpdateDroppedEvent("user-1", "upd-1", "variables", "lesson_1", 5, "server rejected"))
	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "doomed", entries[0].HandlerName)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Equal(t, shared.EventUpdateDropped, entries[0].Event.EventType())
}

func TestDispatcher_RecoveryMiddlewareContainsPanics(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcher(testDispatcherConfig(bus))
	defer d.Stop()
	d.Use(RecoveryMiddleware(discardLogger()))

	require.NoError(t, d.RegisterSync(shared.EventRemotePulse, "panicky", func(shared.Event) error {
		panic("corrupted session")
	}))

	err := d.Dispatch(shared.NewRemotePulseEvent("user-1", "agent-b", "progress_saved"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestDispatcherBuilder(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := NewDispatcherBuilder(bus).
		WithWorkerPoolSize(4).
		WithRetryConfig(RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1.0}).
		WithDeadLetterQueue(5).
		WithLogger(discardLogger()).
		Build()
	defer d.Stop()

	assert.Equal(t, 4, cap(d.workerPool))
	assert.Equal(t, 1, d.retryConfig.MaxRetries)
	require.NotNil(t, d.DeadLetterQueue())
}
