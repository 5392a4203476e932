// Package tcp implements MAVLink TCP client and server drivers.
package tcp

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asgard/mavhub/internal/bus"
	"github.com/asgard/mavhub/internal/driver"
	"github.com/asgard/mavhub/internal/mavlink"
	"github.com/asgard/mavhub/internal/obsmetrics"
	"github.com/asgard/mavhub/internal/stats"
)

func init() {
	driver.Register(newClientFromOptions, "tcpc", "tcpclient")
	driver.Register(newServerFromOptions, "tcps", "tcpserver")
}

func newClientFromOptions(name string, options map[string]string) (driver.Driver, error) {
	host, port := options["host"], options["port"]
	if host == "" || port == "" {
		return nil, fmt.Errorf("tcp client: host and port are required")
	}
	return NewClient(name, net.JoinHostPort(host, port)), nil
}

func newServerFromOptions(name string, options map[string]string) (driver.Driver, error) {
	host, port := options["host"], options["port"]
	if host == "" {
		host = "0.0.0.0"
	}
	if port == "" {
		return nil, fmt.Errorf("tcp server: port is required")
	}
	return NewServer(name, net.JoinHostPort(host, port)), nil
}

const readBufferSize = 4096

// Client is an outbound TCP endpoint, grounded on the original's
// tcp::client helpers (tcp_receive_task / tcp_send_task).
type Client struct {
	name string
	id   uuid.UUID
	addr string

	stats stats.DriverStats
}

// NewClient creates a TCP client that dials addr.
func NewClient(name, addr string) *Client {
	return &Client{name: name, id: driver.NewUUID(name), addr: addr}
}

func (c *Client) Name() string                     { return c.name }
func (c *Client) UUID() uuid.UUID                  { return c.id }
func (c *Client) Stats() stats.DriverStatsSnapshot { return c.stats.Snapshot() }
func (c *Client) ResetStats()                      { c.stats.Reset() }

func (c *Client) Info() driver.Info {
	return driver.Info{
		Name:         "tcp client",
		ValidSchemes: []string{"tcpc", "tcpclient"},
		ExampleURLs:  []string{"tcpclient://192.168.0.10:5760"},
	}
}

// Run dials addr and runs the shared receive/send task pair until
// ctx is canceled or either side fails.
func (c *Client) Run(ctx context.Context, b *bus.Bus) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("tcp client %s: dial: %w", c.name, err)
	}
	defer conn.Close()

	logrus.WithFields(logrus.Fields{"driver": c.name, "addr": c.addr}).Info("tcp client connected")

	return runConnection(ctx, c.name, conn, b, &c.stats)
}

// runConnection is the shared receive/send pair used by both the
// client and each server-accepted connection, mirroring the
// original's shared tcp_receive_task/tcp_send_task helpers.
func runConnection(ctx context.Context, name string, conn net.Conn, b *bus.Bus, st *stats.DriverStats) error {
	sub := b.Subscribe()
	defer sub.Close()

	origin := conn.RemoteAddr().String()

	errCh := make(chan error, 2)
	go receiveTask(ctx, name, origin, conn, b, st, errCh)
	go sendTask(ctx, name, origin, conn, sub, st, errCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func receiveTask(ctx context.Context, name, origin string, conn net.Conn, b *bus.Bus, st *stats.DriverStats, errCh chan<- error) {
	buf := make([]byte, 0, readBufferSize)
	read := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		default:
		}

		n, err := conn.Read(read)
		if err != nil {
			errCh <- fmt.Errorf("tcp %s: read: %w", name, err)
			return
		}
		buf = append(buf, read[:n]...)

		buf, _ = mavlink.ReadAllMessages(origin, buf, func(msg *mavlink.Protocol) {
			st.UpdateInput(msg)
			obsmetrics.Get().Observe(name, "input", msg)
			b.Publish(msg)
		})
	}
}

func sendTask(ctx context.Context, name, origin string, conn net.Conn, sub *bus.Subscriber, st *stats.DriverStats, errCh chan<- error) {
	for {
		msg, lag, err := sub.Recv(ctx)
		if err != nil {
			errCh <- err
			return
		}
		if lag > 0 {
			logrus.WithFields(logrus.Fields{"driver": name, "lag": lag}).Warn("tcp send queue fell behind")
		}
		if msg.Origin == origin {
			continue
		}
		if _, err := conn.Write(msg.RawBytes()); err != nil {
			errCh <- fmt.Errorf("tcp %s: write: %w", name, err)
			return
		}
		st.UpdateOutput(msg)
		obsmetrics.Get().Observe(name, "output", msg)
	}
}
