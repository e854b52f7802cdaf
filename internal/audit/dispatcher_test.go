package audit

import (
	"context"
	"testing"
	"time"
)

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}

	// nil receiver must be safe to use.
	d.Emit(context.Background(), Event{EventType: "login"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	d.Emit(context.Background(), Event{EventType: "login", SubjectID: "subject-1", Success: true})
	d.Close()

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login" || ev.SubjectID != "subject-1" || !ev.Success {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A sink that never drains: channel of size 1, no reader.
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer d.Close()

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "login"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected some events to be dropped")
	}
}

func TestCloseFlushesBufferedEvents(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	const emitted = 5
	for i := 0; i < emitted; i++ {
		d.Emit(context.Background(), Event{EventType: "login", Success: true})
	}

	// Close blocks until the relay has flushed, so everything emitted
	// beforehand must already be in the sink when it returns.
	d.Close()

	for i := 0; i < emitted; i++ {
		select {
		case <-sink.Events():
		default:
			t.Fatalf("event %d not flushed before Close returned", i)
		}
	}
}

func TestEmitAfterCloseIsNoOp(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	d.Close()
	d.Emit(context.Background(), Event{EventType: "login"})
}
