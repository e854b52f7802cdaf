package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher asynchronously forwards audit events to a sink. A nil
// Dispatcher is valid and drops everything, so callers never branch on
// whether auditing is enabled.
type Dispatcher struct {
	sink       Sink
	events     chan Event
	quit       chan struct{}
	drained    chan struct{}
	dropIfFull bool
	dropped    atomic.Uint64
	closing    atomic.Bool
	stopOnce   sync.Once
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		events:     make(chan Event, cfg.BufferSize),
		quit:       make(chan struct{}),
		drained:    make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}

	go d.relay()

	return d
}

// relay is the single consumer of the event buffer. It runs until Close
// and then flushes whatever was buffered before shutdown began.
func (d *Dispatcher) relay() {
	defer close(d.drained)

	for {
		select {
		case ev := <-d.events:
			d.sink.Emit(context.Background(), ev)
		case <-d.quit:
			// Emit stops accepting once closing is set, so len is a
			// stable upper bound on what remains.
			for n := len(d.events); n > 0; n-- {
				d.sink.Emit(context.Background(), <-d.events)
			}
			return
		}
	}
}

func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		case <-d.quit:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close drains buffered events into the sink and stops the relay. It
// blocks until the flush completes.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closing.Store(true)
		close(d.quit)
		<-d.drained
	})
}

// Dropped reports how many events were discarded under DropIfFull.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
