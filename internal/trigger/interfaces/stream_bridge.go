// Package interfaces connects the trigger coordinator to the event bus.
package interfaces

import (
	"context"
	"errors"
	"log"

	"gridflow/internal/eventing"
	telemetry "gridflow/internal/telemetry/domain"
)

const defaultStreamBuffer = 256

// StreamBridge forwards TelemetryReceived events onto a channel consumed by
// the coordinator's stream processor.
type StreamBridge struct {
	stream chan telemetry.TelemetryData
	logger *log.Logger
}

// NewStreamBridge constructs a bridge and subscribes it to the bus.
func NewStreamBridge(bus *eventing.InMemoryEventBus, buffer int, logger *log.Logger) (*StreamBridge, error) {
	if bus == nil {
		return nil, errors.New("stream bridge: nil bus")
	}
	if logger == nil {
		logger = log.Default()
	}
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	bridge := &StreamBridge{
		stream: make(chan telemetry.TelemetryData, buffer),
		logger: logger,
	}
	bus.SubscribeTelemetryReceived(bridge.onTelemetryReceived)
	return bridge, nil
}

func (b *StreamBridge) onTelemetryReceived(ctx context.Context, event eventing.TelemetryReceived) error {
	select {
	case b.stream <- event.Data:
		return nil
	case <-ctx.Done():
		b.logger.Printf("stream bridge: dropping record %s: %v", event.Data.ID, ctx.Err())
		return ctx.Err()
	}
}

// Stream is the channel of records in arrival order.
func (b *StreamBridge) Stream() <-chan telemetry.TelemetryData {
	return b.stream
}

// Close closes the stream. Publish after Close panics; close only once no
// more events will be published.
func (b *StreamBridge) Close() {
	close(b.stream)
}
