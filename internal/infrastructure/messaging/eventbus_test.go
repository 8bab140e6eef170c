package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

type fakeAuditEvent struct {
	shared.BaseEvent
}

func (e fakeAuditEvent) Payload() map[string]interface{} { return nil }

func TestInMemoryEventBus_SubscribeAllReceivesEveryEvent(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	var mu sync.Mutex
	var received []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(fakeAuditEvent{shared.NewBaseEvent(shared.EventModerationWarn, "chat:1")}))
	require.NoError(t, bus.Publish(fakeAuditEvent{shared.NewBaseEvent(shared.EventModerationBan, "chat:1")}))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []shared.EventType{shared.EventModerationWarn, shared.EventModerationBan}, received)
}

func TestInMemoryEventBus_PublishAfterCloseIsRejected(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true})
	require.NoError(t, bus.Close())

	err := bus.Publish(fakeAuditEvent{shared.NewBaseEvent(shared.EventModerationWarn, "chat:1")})

	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_AsyncHandlersEventuallyRun(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})
	defer bus.Close()

	done := make(chan struct{}, 1)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		done <- struct{}{}
		return nil
	}))

	require.NoError(t, bus.Publish(fakeAuditEvent{shared.NewBaseEvent(shared.EventModerationWarn, "chat:1")}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not run within timeout")
	}
}
