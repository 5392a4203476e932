package udp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asgard/mavhub/internal/bus"
	"github.com/asgard/mavhub/internal/driver"
	"github.com/asgard/mavhub/internal/mavlink"
	"github.com/asgard/mavhub/internal/obsmetrics"
	"github.com/asgard/mavhub/internal/stats"
)

// peerKey identifies a remote system by (system_id, component_id),
// the original's server.rs peer table key.
type peerKey struct {
	systemID, componentID uint8
}

// Server is a shared-socket UDP endpoint that tracks a peer address
// per (system_id, component_id) last seen on, last-writer-wins, with
// no TTL eviction by default.
type Server struct {
	name string
	id   uuid.UUID
	addr string

	driverStats stats.DriverStats

	mu    sync.RWMutex
	peers map[peerKey]*net.UDPAddr
}

// NewServer creates a UDP server bound to addr ("host:port").
func NewServer(name, addr string) *Server {
	return &Server{
		name:  name,
		id:    driver.NewUUID(name),
		addr:  addr,
		peers: make(map[peerKey]*net.UDPAddr),
	}
}

func (s *Server) Name() string    { return s.name }
func (s *Server) UUID() uuid.UUID { return s.id }

func (s *Server) Info() driver.Info {
	return driver.Info{
		Name:         "udp server",
		ValidSchemes: []string{"udps", "udpserver", "udpin"},
		ExampleURLs:  []string{"udpin://0.0.0.0:14550"},
	}
}

func (s *Server) Stats() stats.DriverStatsSnapshot { return s.driverStats.Snapshot() }
func (s *Server) ResetStats()                      { s.driverStats.Reset() }

// Run binds addr as a shared socket and serves every peer that sends
// to it, routing replies back to each peer's last-seen address.
func (s *Server) Run(ctx context.Context, b *bus.Bus) error {
	laddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("udp server %s: resolve: %w", s.name, err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("udp server %s: listen: %w", s.name, err)
	}
	defer conn.Close()

	logrus.WithFields(logrus.Fields{"driver": s.name, "addr": s.addr}).Info("udp server listening")

	sub := b.Subscribe()
	defer sub.Close()

	errCh := make(chan error, 2)
	go s.receiveTask(ctx, conn, b, errCh)
	go s.sendTask(ctx, conn, sub, errCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) receiveTask(ctx context.Context, conn *net.UDPConn, b *bus.Bus, errCh chan<- error) {
	buf := make([]byte, 0, readBufferSize)
	read := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		default:
		}

		n, raddr, err := conn.ReadFromUDP(read)
		if err != nil {
			errCh <- fmt.Errorf("udp server %s: read: %w", s.name, err)
			return
		}
		buf = append(buf, read[:n]...)

		buf, _ = mavlink.ReadAllMessages(raddr.String(), buf, func(msg *mavlink.Protocol) {
			hdr := msg.Header()
			s.rememberPeer(hdr.SystemID, hdr.ComponentID, raddr)
			s.driverStats.UpdateInput(msg)
			obsmetrics.Get().Observe(s.name, "input", msg)
			b.Publish(msg)
		})
	}
}

// sendTask fans every bus message out to every known peer address
// except the one it originated from: the peer table has no notion of
// "intended recipient" per message, so every other peer is a
// candidate destination.
func (s *Server) sendTask(ctx context.Context, conn *net.UDPConn, sub *bus.Subscriber, errCh chan<- error) {
	for {
		msg, lag, err := sub.Recv(ctx)
		if err != nil {
			errCh <- err
			return
		}
		if lag > 0 {
			logrus.WithFields(logrus.Fields{"driver": s.name, "lag": lag}).Warn("udp server send queue fell behind")
		}

		for _, target := range s.peerAddrs() {
			if msg.Origin == target.String() {
				continue // never echo a message back to the peer it came from
			}
			if _, err := conn.WriteToUDP(msg.RawBytes(), target); err != nil {
				errCh <- fmt.Errorf("udp server %s: write: %w", s.name, err)
				return
			}
			s.driverStats.UpdateOutput(msg)
			obsmetrics.Get().Observe(s.name, "output", msg)
		}
	}
}

func (s *Server) rememberPeer(systemID, componentID uint8, addr *net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.peers[peerKey{systemID, componentID}]
	s.peers[peerKey{systemID, componentID}] = addr
	if !existed {
		logrus.WithFields(logrus.Fields{
			"driver":       s.name,
			"system_id":    systemID,
			"component_id": componentID,
			"addr":         addr.String(),
		}).Debug("udp server learned new peer")
	}
}

// peerFor returns the last-seen address for a (system_id, component_id)
// pair, or nil if none has been observed yet.
func (s *Server) peerFor(systemID, componentID uint8) *net.UDPAddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peers[peerKey{systemID, componentID}]
}

// peerAddrs returns a snapshot of every known peer address, deduplicated
// by address since multiple (system_id, component_id) pairs may share
// a transport address.
func (s *Server) peerAddrs() []*net.UDPAddr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.peers))
	out := make([]*net.UDPAddr, 0, len(s.peers))
	for _, addr := range s.peers {
		if _, ok := seen[addr.String()]; ok {
			continue
		}
		seen[addr.String()] = struct{}{}
		out = append(out, addr)
	}
	return out
}
