package tracking

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/execution-hub/execution-tracker/internal/domain/execution"
)

const (
	DefaultEventBuffer = 1024
	sinkSendTimeout    = 5 * time.Second
)

// Dispatcher forwards appended events to sinks from a single goroutine.
// Observe never blocks: when the queue is full the event is dropped.
type Dispatcher struct {
	queue   chan execution.Event
	sinks   []execution.EventSink
	logger  zerolog.Logger
	dropped atomic.Int64
}

func NewDispatcher(bufferSize int, logger zerolog.Logger, sinks ...execution.EventSink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBuffer
	}
	return &Dispatcher{
		queue:  make(chan execution.Event, bufferSize),
		sinks:  sinks,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Observe matches memory.Observer.
func (d *Dispatcher) Observe(events []execution.Event) {
	for _, event := range events {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
			d.logger.Warn().
				Str("event_id", event.ID).
				Str("execution_id", event.ExecutionID).
				Str("event_type", string(event.Type)).
				Msg("event queue full, dropping")
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run delivers queued events until ctx is cancelled, then flushes what is
// already queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event execution.Event) {
	for _, sink := range d.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, sinkSendTimeout)
		err := sink.Send(sendCtx, event)
		cancel()
		if err != nil {
			d.logger.Error().
				Err(err).
				Str("sink", sink.Name()).
				Str("event_id", event.ID).
				Str("execution_id", event.ExecutionID).
				Msg("sink send failed")
		}
	}
}
