// Package udp implements MAVLink UDP client and server drivers.
package udp

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
	driver.Register(newClientFromOptions, "udpc", "udpclient", "udpout")
	driver.Register(newServerFromOptions, "udps", "udpserver", "udpin")
}

func newClientFromOptions(name string, options map[string]string) (driver.Driver, error) {
	host, port := options["host"], options["port"]
	if host == "" || port == "" {
		return nil, fmt.Errorf("udp client: host and port are required")
	}
	return NewClient(name, net.JoinHostPort(host, port)), nil
}

func newServerFromOptions(name string, options map[string]string) (driver.Driver, error) {
	host, port := options["host"], options["port"]
	if host == "" {
		host = "0.0.0.0"
	}
	if port == "" {
		return nil, fmt.Errorf("udp server: port is required")
	}
	return NewServer(name, net.JoinHostPort(host, port)), nil
}

const readBufferSize = 4096

// Client is an outbound UDP endpoint: it binds an ephemeral local
// port and connects to a fixed remote address, matching the original
// udp::client semantics (schemes udpc/udpclient/udpout).
type Client struct {
	name string
	id   uuid.UUID
	addr string

	stats stats.DriverStats
}

// NewClient creates a UDP client targeting addr ("host:port").
func NewClient(name, addr string) *Client {
	return &Client{name: name, id: driver.NewUUID(name), addr: addr}
}

func (c *Client) Name() string      { return c.name }
func (c *Client) UUID() uuid.UUID   { return c.id }
func (c *Client) Stats() stats.DriverStatsSnapshot { return c.stats.Snapshot() }
func (c *Client) ResetStats()                      { c.stats.Reset() }

func (c *Client) Info() driver.Info {
	return driver.Info{
		Name:         "udp client",
		ValidSchemes: []string{"udpc", "udpclient", "udpout"},
		ExampleURLs:  []string{"udpout://192.168.0.10:14550"},
	}
}

// Run dials addr and exchanges frames until ctx is canceled or either
// direction fails; the hub's reconnect loop is responsible for retrying.
func (c *Client) Run(ctx context.Context, b *bus.Bus) error {
	raddr, err := net.ResolveUDPAddr("udp", c.addr)
	if err != nil {
		return fmt.Errorf("udp client %s: resolve: %w", c.name, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("udp client %s: dial: %w", c.name, err)
	}
	defer conn.Close()

	logrus.WithFields(logrus.Fields{"driver": c.name, "addr": c.addr}).Info("udp client connected")

	sub := b.Subscribe()
	defer sub.Close()

	errCh := make(chan error, 2)
	go c.receiveTask(ctx, conn, b, errCh)
	go c.sendTask(ctx, conn, sub, errCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (c *Client) receiveTask(ctx context.Context, conn *net.UDPConn, b *bus.Bus, errCh chan<- error) {
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
			errCh <- fmt.Errorf("udp client %s: read: %w", c.name, err)
			return
		}
		buf = append(buf, read[:n]...)

		buf, _ = mavlink.ReadAllMessages(c.name, buf, func(msg *mavlink.Protocol) {
			c.stats.UpdateInput(msg)
			obsmetrics.Get().Observe(c.name, "input", msg)
			b.Publish(msg)
		})
	}
}

func (c *Client) sendTask(ctx context.Context, conn *net.UDPConn, sub *bus.Subscriber, errCh chan<- error) {
	for {
		msg, lag, err := sub.Recv(ctx)
		if err != nil {
			errCh <- err
			return
		}
		if lag > 0 {
			logrus.WithFields(logrus.Fields{"driver": c.name, "lag": lag}).Warn("udp client send queue fell behind")
		}
		if msg.Origin == c.name {
			continue
		}
		if _, err := conn.Write(msg.RawBytes()); err != nil {
			errCh <- fmt.Errorf("udp client %s: write: %w", c.name, err)
			return
		}
		c.stats.UpdateOutput(msg)
		obsmetrics.Get().Observe(c.name, "output", msg)
	}
}
