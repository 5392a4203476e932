package callback

import (
	"errors"
	"testing"

	"github.com/asgard/mavhub/internal/mavlink"
)

func TestChainPreservesOrderAndSkipsRejections(t *testing.T) {
	c := New()
	var order []int

	c.Register(func(*mavlink.Protocol) error {
		order = append(order, 1)
		return nil
	})
	c.Register(func(*mavlink.Protocol) error {
		order = append(order, 2)
		return errors.New("reject")
	})
	c.Register(func(*mavlink.Protocol) error {
		order = append(order, 3)
		return nil
	})

	msg := mavlink.NewProtocol("test", mavlink.NewPacket([]byte{0xFD}))
	c.CallAll(msg)

	if len(order) != 3 {
		t.Fatalf("expected all 3 observers invoked, got %v", order)
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("expected registration order, got %v", order)
		}
	}
}

func TestChainLen(t *testing.T) {
	c := New()
	if c.Len() != 0 {
		t.Fatalf("expected empty chain")
	}
	c.Register(func(*mavlink.Protocol) error { return nil })
	if c.Len() != 1 {
		t.Fatalf("expected 1 observer registered")
	}
}
