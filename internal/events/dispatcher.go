package events

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Sink receives engine events. Implementations are best-effort: a sink
// error is logged and never propagated back to the engine.
type Sink interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}

// Dispatcher fans events out to the configured sinks on a background
// goroutine. Publish never blocks the caller beyond a channel send into a
// bounded buffer; when the buffer is full the event is dropped with a log
// line rather than stalling settlement.
type Dispatcher struct {
	sinks   []Sink
	logger  *slog.Logger
	ch      chan Event
	seq     atomic.Uint64
	timeout time.Duration
	done    chan struct{}
}

// NewDispatcher creates a dispatcher delivering to sinks. buffer is the
// size of the pending-event queue; timeout bounds each sink delivery.
func NewDispatcher(logger *slog.Logger, buffer int, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Dispatcher{
		sinks:   sinks,
		logger:  logger,
		ch:      make(chan Event, buffer),
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Dispatch assigns sequence numbers and enqueues the events for delivery.
// Safe for concurrent use.
func (d *Dispatcher) Dispatch(evts ...Event) {
	for _, e := range evts {
		e.Seq = d.seq.Add(1)
		select {
		case d.ch <- e:
		default:
			d.logger.Warn("event queue full, dropping event",
				slog.String("type", string(e.Type)),
				slog.Uint64("seq", e.Seq),
			)
		}
	}
}

// Run delivers queued events until ctx is cancelled, then drains whatever
// is left in the queue before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-d.ch:
					d.deliver(e)
				default:
					return
				}
			}
		case e := <-d.ch:
			d.deliver(e)
		}
	}
}

// Wait blocks until Run has returned. Used during shutdown.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) deliver(e Event) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := s.Publish(ctx, e); err != nil {
			d.logger.Error("sink publish failed",
				slog.String("sink", s.Name()),
				slog.String("type", string(e.Type)),
				slog.Uint64("seq", e.Seq),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}
