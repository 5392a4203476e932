package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asgard/mavhub/internal/bus"
	"github.com/asgard/mavhub/internal/driver"
	"github.com/asgard/mavhub/internal/stats"
)

// Server accepts inbound TCP connections and runs the shared
// receive/send pair per connection, aggregating stats across every
// connected peer.
type Server struct {
	name string
	id   uuid.UUID
	addr string

	mu    sync.Mutex
	stats stats.DriverStats
}

// NewServer creates a TCP server bound to addr.
func NewServer(name, addr string) *Server {
	return &Server{name: name, id: driver.NewUUID(name), addr: addr}
}

func (s *Server) Name() string    { return s.name }
func (s *Server) UUID() uuid.UUID { return s.id }

func (s *Server) Info() driver.Info {
	return driver.Info{
		Name:         "tcp server",
		ValidSchemes: []string{"tcps", "tcpserver"},
		ExampleURLs:  []string{"tcpserver://0.0.0.0:5760"},
	}
}

func (s *Server) Stats() stats.DriverStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Snapshot()
}

func (s *Server) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Reset()
}

// Run listens on addr and spawns a connection handler per accepted
// client until ctx is canceled.
func (s *Server) Run(ctx context.Context, b *bus.Bus) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcp server %s: listen: %w", s.name, err)
	}
	defer ln.Close()

	logrus.WithFields(logrus.Fields{"driver": s.name, "addr": s.addr}).Info("tcp server listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("tcp server %s: accept: %w", s.name, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			logrus.WithFields(logrus.Fields{"driver": s.name, "remote": conn.RemoteAddr()}).Info("tcp server accepted connection")
			if err := runConnection(ctx, s.name, conn, b, s.sharedStats()); err != nil {
				logrus.WithError(err).WithField("driver", s.name).Debug("tcp server connection closed")
			}
		}()
	}
}

func (s *Server) sharedStats() *stats.DriverStats {
	return &s.stats
}
