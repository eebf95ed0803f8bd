package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func meter() metric.Meter {
	return otel.GetMeterProvider().Meter("markerlens/events")
}

// Bus is the outbound event channel. Producers (the lifecycle manager,
// the session, the tap resolver) call Emit from their own goroutines;
// the host consumes Events() on the UI/command goroutine.
//
// Emit never blocks: when the buffer is full the event is dropped and
// counted, because a stalled host must not back-pressure the render tick.
type Bus struct {
	ch     chan Event
	logger zerolog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	emitted metric.Int64Counter
	dropped metric.Int64Counter
}

// NewBus creates a Bus with the given buffer capacity.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewBus(buffer int, logger zerolog.Logger) (*Bus, error) {
	if buffer < 1 {
		buffer = 1
	}
	b := &Bus{
		ch:     make(chan Event, buffer),
		logger: logger,
	}

	m := meter()
	var err error
	b.emitted, err = m.Int64Counter(
		"events.emitted",
		metric.WithDescription("Total outbound events emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}
	b.dropped, err = m.Int64Counter(
		"events.dropped",
		metric.WithDescription("Total outbound events dropped due to full buffer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return b, nil
}

// Emit queues an event for delivery. Fire-and-forget: full buffers drop,
// and emits racing a Close are dropped rather than delivered.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	attr := metric.WithAttributes(attribute.String("type", string(e.Type)))
	select {
	case b.ch <- e:
		b.emitted.Add(context.Background(), 1, attr)
	default:
		b.dropped.Add(context.Background(), 1, attr)
		b.logger.Warn().Str("type", string(e.Type)).Msg("event buffer full, dropping")
	}
}

// Events returns the delivery channel consumed by the host goroutine.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Close stops delivery. Safe to call more than once; later Emits become
// no-ops.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.ch)
	})
}
