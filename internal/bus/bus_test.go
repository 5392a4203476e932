package bus

import (
	"context"
	"testing"
	"time"

	"github.com/asgard/mavhub/internal/mavlink"
)

func frame(seq byte) *mavlink.Protocol {
	raw := []byte{mavlink.StartByteV2, 0, 0, 0, seq, 1, 1, 0, 0, 0}
	raw = append(raw, 0, 0)
	return mavlink.NewProtocol("test", mavlink.NewPacket(raw))
}

func TestBusPreservesPublishOrder(t *testing.T) {
	b := New(16)
	sub := b.Subscribe()

	for i := 0; i < 10; i++ {
		b.Publish(frame(byte(i)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 10; i++ {
		msg, lag, err := sub.Recv(ctx)
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if lag != 0 {
			t.Fatalf("unexpected lag at index %d: %d", i, lag)
		}
		if got := msg.Header().Sequence; got != byte(i) {
			t.Fatalf("expected sequence %d, got %d", i, got)
		}
	}
}

func TestBusDeliversIndependentlyToEachSubscriber(t *testing.T) {
	b := New(16)
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(frame(7))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, s := range []*Subscriber{a, c} {
		msg, _, err := s.Recv(ctx)
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		if msg.Header().Sequence != 7 {
			t.Fatalf("unexpected sequence %d", msg.Header().Sequence)
		}
	}
}

// TestBusSignalsLagWithoutDisconnecting reproduces an overloaded
// subscriber: 20,000 messages published into a 10,000-capacity queue
// while the subscriber never reads. It must end up with exactly
// capacity messages still queued and a lag count for everything
// evicted, rather than being torn down.
func TestBusSignalsLagWithoutDisconnecting(t *testing.T) {
	b := New(10000)
	sub := b.Subscribe()

	for i := 0; i < 20000; i++ {
		b.Publish(frame(byte(i)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, lag, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a delivered message")
	}
	if lag < 10000 {
		t.Fatalf("expected lag signal >= 10000, got %d", lag)
	}

	delivered := 1
	for {
		select {
		case <-ctx.Done():
			t.Fatal("timed out draining subscriber")
		default:
		}
		_, _, err := sub.Recv(ctx)
		if err != nil {
			break
		}
		delivered++
		if delivered > 10000 {
			t.Fatalf("delivered more than capacity: %d", delivered)
		}
	}
}

func TestSubscriberRecvRespectsContextCancellation(t *testing.T) {
	b := New(1)
	sub := b.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := sub.Recv(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	sub.Close()

	b.Publish(frame(1))

	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", got)
	}
}
