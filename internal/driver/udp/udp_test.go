package udp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/asgard/mavhub/internal/bus"
)

func TestServerTracksPeerByIdentity(t *testing.T) {
	s := NewServer("server", "127.0.0.1:0")

	addr1 := mustResolve(t, "127.0.0.1:30001")
	addr2 := mustResolve(t, "127.0.0.1:30002")

	s.rememberPeer(1, 1, addr1)
	if got := s.peerFor(1, 1); got == nil || got.String() != addr1.String() {
		t.Fatalf("expected peer 1/1 to resolve to %v, got %v", addr1, got)
	}

	// Last-writer-wins: a later packet from the same (sysid, compid)
	// replaces the remembered address.
	s.rememberPeer(1, 1, addr2)
	if got := s.peerFor(1, 1); got == nil || got.String() != addr2.String() {
		t.Fatalf("expected peer 1/1 updated to %v, got %v", addr2, got)
	}

	if got := s.peerFor(9, 9); got != nil {
		t.Fatalf("expected unknown peer to resolve to nil, got %v", got)
	}
}

func TestClientRunExitsOnContextCancel(t *testing.T) {
	c := NewClient("client", "127.0.0.1:30999")
	b := bus.New(16)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Run(ctx, b)
	if err == nil {
		t.Fatal("expected Run to return an error on context cancellation")
	}
}

func mustResolve(t *testing.T, addr string) *net.UDPAddr {
	t.Helper()
	resolved, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		t.Fatalf("resolve %s: %v", addr, err)
	}
	return resolved
}
