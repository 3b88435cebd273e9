// Package eventing is the in-process event bus connecting telemetry ingest
// to the trigger coordinator.
package eventing

import (
	"context"
	"sync"

	telemetry "gridflow/internal/telemetry/domain"
)

// TelemetryReceived is published for every ingested telemetry record.
type TelemetryReceived struct {
	Data telemetry.TelemetryData
}

// InMemoryEventBus is a lightweight in-process event bus.
type InMemoryEventBus struct {
	mu sync.RWMutex

	telemetryHandlers []func(context.Context, TelemetryReceived) error
}

// NewInMemoryEventBus constructs a new bus.
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{}
}

// SubscribeTelemetryReceived registers a handler for TelemetryReceived.
func (b *InMemoryEventBus) SubscribeTelemetryReceived(handler func(context.Context, TelemetryReceived) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.telemetryHandlers = append(b.telemetryHandlers, handler)
}

// PublishTelemetryReceived publishes a TelemetryReceived event. Handlers run
// synchronously in registration order; the first error stops delivery.
func (b *InMemoryEventBus) PublishTelemetryReceived(ctx context.Context, event TelemetryReceived) error {
	b.mu.RLock()
	handlers := append([]func(context.Context, TelemetryReceived) error(nil), b.telemetryHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
