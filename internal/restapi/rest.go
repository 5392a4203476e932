package restapi

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asgard/mavhub/internal/bus"
	"github.com/asgard/mavhub/internal/driver"
	"github.com/asgard/mavhub/internal/mavlink"
	"github.com/asgard/mavhub/internal/obsmetrics"
	"github.com/asgard/mavhub/internal/stats"
)

func init() {
	driver.Register(newFromOptions, "rest")
}

func newFromOptions(name string, _ map[string]string) (driver.Driver, error) {
	return NewDriver(name), nil
}

// Driver is the REST/WebSocket bridge driver. It has no receive task
// of its own: HTTP handlers inject messages via Inject, which
// publishes directly to the bus captured at Run time. Its "send task"
// subscribes to the bus and fans traffic out to WebSocket clients.
type Driver struct {
	name string
	id   uuid.UUID

	ws    *wsHub
	cache *messageCache

	bus   atomic.Pointer[bus.Bus]
	stats stats.DriverStats
}

// NewDriver creates a REST bridge driver.
func NewDriver(name string) *Driver {
	return &Driver{
		name:  name,
		id:    driver.NewUUID(name),
		ws:    newWSHub(),
		cache: newMessageCache(),
	}
}

func (d *Driver) Name() string                     { return d.name }
func (d *Driver) UUID() uuid.UUID                  { return d.id }
func (d *Driver) Stats() stats.DriverStatsSnapshot { return d.stats.Snapshot() }
func (d *Driver) ResetStats()                      { d.stats.Reset() }

func (d *Driver) Info() driver.Info {
	return driver.Info{
		Name:         "rest",
		ValidSchemes: []string{"rest"},
		ExampleURLs:  []string{"rest://0.0.0.0:8080"},
	}
}

// Run subscribes to b and fans every bus message out to connected
// WebSocket clients until ctx is canceled. It never returns an error
// of its own accord (there is no transport to fail); it only returns
// when ctx is done.
func (d *Driver) Run(ctx context.Context, b *bus.Bus) error {
	d.bus.Store(b)

	sub := b.Subscribe()
	defer sub.Close()

	logrus.WithField("driver", d.name).Debug("rest bridge starting")

	for {
		msg, lag, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if lag > 0 {
			logrus.WithFields(logrus.Fields{"driver": d.name, "lag": lag}).Warn("rest bridge send queue fell behind")
		}

		d.cache.update(msg)
		d.stats.UpdateOutput(msg)
		obsmetrics.Get().Observe(d.name, "output", msg)
		d.ws.broadcast(msg, senderUUIDFor(msg))
	}
}

// senderUUIDFor derives a pseudo sender identity for bus-side loopback
// suppression against WebSocket clients; messages from WebSocket
// clients carry Origin "ws:<client uuid>", set by InjectFromWebSocket,
// so messages echo back to every client except their true origin.
func senderUUIDFor(msg *mavlink.Protocol) uuid.UUID {
	raw, ok := strings.CutPrefix(msg.Origin, "ws:")
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Inject publishes a message onto the bus captured from the most
// recent Run call, with origin "rest" per the injection contract.
// Returns an error if the driver has not yet been started by the hub.
func (d *Driver) Inject(systemID, componentID uint8, messageID uint32, seq uint8, payload []byte) error {
	b := d.bus.Load()
	if b == nil {
		return fmt.Errorf("rest: driver not running")
	}
	raw := mavlink.EncodeFrame(seq, systemID, componentID, messageID, payload)
	msg := mavlink.NewProtocol("rest", mavlink.NewPacket(raw))
	d.stats.UpdateInput(msg)
	obsmetrics.Get().Observe(d.name, "input", msg)
	b.Publish(msg)
	return nil
}

// InjectFromWebSocket publishes a message received over a WebSocket
// client connection, tagging it with the client's uuid as Origin so
// senderUUIDFor can suppress echoing it back to the same client.
func (d *Driver) InjectFromWebSocket(clientID uuid.UUID, systemID, componentID uint8, messageID uint32, seq uint8, payload []byte) error {
	b := d.bus.Load()
	if b == nil {
		return fmt.Errorf("rest: driver not running")
	}
	raw := mavlink.EncodeFrame(seq, systemID, componentID, messageID, payload)
	msg := mavlink.NewProtocol("ws:"+clientID.String(), mavlink.NewPacket(raw))
	d.stats.UpdateInput(msg)
	obsmetrics.Get().Observe(d.name, "input", msg)
	b.Publish(msg)
	return nil
}
