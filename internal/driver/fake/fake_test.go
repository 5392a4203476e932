package fake

import (
	"context"
	"testing"
	"time"

	"github.com/asgard/mavhub/internal/bus"
)

// TestLoopbackSourceToSink reproduces the reference loopback scenario:
// a Source and Sink sharing one bus should move at least 800 messages
// within one second.
func TestLoopbackSourceToSink(t *testing.T) {
	b := bus.New(10000)
	source := NewSource("loopback-source", time.Millisecond)
	sink := NewSink("loopback-sink")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go source.Run(ctx, b)
	go sink.Run(ctx, b)

	<-ctx.Done()

	sourceMessages := source.Stats().Output.Messages
	sinkMessages := sink.Stats().Input.Messages

	if sourceMessages < 800 {
		t.Fatalf("expected source to emit at least 800 messages, got %d", sourceMessages)
	}
	if sinkMessages < 800 {
		t.Fatalf("expected sink to receive at least 800 messages, got %d", sinkMessages)
	}
}

func TestSourceAndSinkExposeStableUUIDAndName(t *testing.T) {
	source := NewSource("source-1", time.Second)
	if source.Name() != "source-1" {
		t.Fatalf("unexpected name %q", source.Name())
	}
	source.SetName("renamed")
	if source.Name() != "renamed" {
		t.Fatalf("expected live rename to take effect")
	}
	if source.UUID().String() == "" {
		t.Fatalf("expected non-empty uuid")
	}
}
