package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/finflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEvent implements DomainEvent for testing
type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New()),
		Data:            "test data",
	}
}

// testHandler implements EventHandler for testing
type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{
		eventTypes: eventTypes,
		handled:    make([]shared.DomainEvent, 0),
	}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("finance.document.payment_applied")
	bus.Subscribe(handler, "finance.document.payment_applied")

	event := newTestEvent("finance.document.payment_applied")
	err := bus.Publish(context.Background(), event)

	require.NoError(t, err)
	assert.Len(t, handler.getHandled(), 1)
	assert.Equal(t, event, handler.getHandled()[0])
}

func TestInMemoryEventBus_Publish_MultipleEvents(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("finance.document.settled")
	bus.Subscribe(handler, "finance.document.settled")

	err := bus.Publish(context.Background(),
		newTestEvent("finance.document.settled"),
		newTestEvent("finance.document.settled"),
	)

	require.NoError(t, err)
	assert.Len(t, handler.getHandled(), 2)
}

func TestInMemoryEventBus_Publish_WildcardHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	wildcardHandler := newTestHandler() // no event types = wildcard
	bus.Subscribe(wildcardHandler)

	err := bus.Publish(context.Background(), newTestEvent("any.event.type"))

	require.NoError(t, err)
	assert.Len(t, wildcardHandler.getHandled(), 1)
}

func TestInMemoryEventBus_Publish_HandlerError(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newTestHandler("finance.document.payment_voided")
	failing.err = errors.New("handler error")
	healthy := newTestHandler("finance.document.payment_voided")
	bus.Subscribe(failing, "finance.document.payment_voided")
	bus.Subscribe(healthy, "finance.document.payment_voided")

	err := bus.Publish(context.Background(), newTestEvent("finance.document.payment_voided"))

	// one failing handler never blocks the others
	require.NoError(t, err)
	assert.Len(t, failing.getHandled(), 1)
	assert.Len(t, healthy.getHandled(), 1)
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("finance.document.created")
	bus.Subscribe(handler, "finance.document.created")
	bus.Unsubscribe(handler)

	err := bus.Publish(context.Background(), newTestEvent("finance.document.created"))

	require.NoError(t, err)
	assert.Empty(t, handler.getHandled())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Stop(ctx))
}

func TestInMemoryEventBus_PublishAfterStopIsDropped(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	handler := newTestHandler("finance.document.created")
	bus.Subscribe(handler, "finance.document.created")

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Stop(ctx))

	err := bus.Publish(ctx, newTestEvent("finance.document.created"))

	require.NoError(t, err)
	assert.Empty(t, handler.getHandled())
}

type panickingHandler struct{}

func (panickingHandler) Handle(ctx context.Context, event shared.DomainEvent) error { panic("boom") }
func (panickingHandler) EventTypes() []string                                       { return nil }

func TestInMemoryEventBus_Publish_HandlerPanic(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	bus.Subscribe(panickingHandler{})
	healthy := newTestHandler()
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("finance.document.created"))

	require.NoError(t, err)
	assert.Len(t, healthy.getHandled(), 1)
}
