// Package serial implements a MAVLink driver over a local serial
// port, grounded on go.bug.st/serial usage for port configuration.
package serial

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/asgard/mavhub/internal/bus"
	"github.com/asgard/mavhub/internal/driver"
	"github.com/asgard/mavhub/internal/mavlink"
	"github.com/asgard/mavhub/internal/obsmetrics"
	"github.com/asgard/mavhub/internal/stats"
)

func init() {
	driver.Register(newFromOptions, "serial")
}

func newFromOptions(name string, options map[string]string) (driver.Driver, error) {
	path := options["path"]
	if path == "" {
		return nil, fmt.Errorf("serial: path is required")
	}
	baud := 57600
	if v, ok := options["baud"]; ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("serial: invalid baud %q: %w", v, err)
		}
		baud = parsed
	}
	return NewDriver(name, path, baud), nil
}

const readBufferSize = 4096

// Driver talks MAVLink over a local serial port. A read of zero bytes
// or an I/O error ends Run; the hub's outer loop handles reconnect.
type Driver struct {
	name string
	id   uuid.UUID
	path string
	baud int

	stats stats.DriverStats
}

// NewDriver creates a serial driver for path at the given baud rate.
func NewDriver(name, path string, baud int) *Driver {
	return &Driver{name: name, id: driver.NewUUID(name), path: path, baud: baud}
}

func (d *Driver) Name() string                     { return d.name }
func (d *Driver) UUID() uuid.UUID                  { return d.id }
func (d *Driver) Stats() stats.DriverStatsSnapshot { return d.stats.Snapshot() }
func (d *Driver) ResetStats()                      { d.stats.Reset() }

func (d *Driver) Info() driver.Info {
	return driver.Info{
		Name:         "serial",
		ValidSchemes: []string{"serial"},
		ExampleURLs:  []string{"serial:///dev/ttyUSB0?baud=57600"},
	}
}

// Run opens the serial port and exchanges frames until ctx is
// canceled or the port fails.
func (d *Driver) Run(ctx context.Context, b *bus.Bus) error {
	mode := &serial.Mode{
		BaudRate: d.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(d.path, mode)
	if err != nil {
		return fmt.Errorf("serial %s: open %s: %w", d.name, d.path, err)
	}
	defer port.Close()

	port.SetReadTimeout(500 * time.Millisecond)

	logrus.WithFields(logrus.Fields{"driver": d.name, "path": d.path, "baud": d.baud}).Info("serial port opened")

	sub := b.Subscribe()
	defer sub.Close()

	errCh := make(chan error, 2)
	go d.receiveTask(ctx, port, b, errCh)
	go d.sendTask(ctx, port, sub, errCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (d *Driver) receiveTask(ctx context.Context, port serial.Port, b *bus.Bus, errCh chan<- error) {
	buf := make([]byte, 0, readBufferSize)
	read := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		default:
		}

		n, err := port.Read(read)
		if err != nil {
			errCh <- fmt.Errorf("serial %s: read: %w", d.name, err)
			return
		}
		if n == 0 {
			errCh <- fmt.Errorf("serial %s: port closed (zero-byte read)", d.name)
			return
		}
		buf = append(buf, read[:n]...)

		buf, _ = mavlink.ReadAllMessages(d.name, buf, func(msg *mavlink.Protocol) {
			d.stats.UpdateInput(msg)
			obsmetrics.Get().Observe(d.name, "input", msg)
			b.Publish(msg)
		})
	}
}

func (d *Driver) sendTask(ctx context.Context, port serial.Port, sub *bus.Subscriber, errCh chan<- error) {
	for {
		msg, lag, err := sub.Recv(ctx)
		if err != nil {
			errCh <- err
			return
		}
		if lag > 0 {
			logrus.WithFields(logrus.Fields{"driver": d.name, "lag": lag}).Warn("serial send queue fell behind")
		}
		if msg.Origin == d.name {
			continue
		}
		if _, err := port.Write(msg.RawBytes()); err != nil {
			errCh <- fmt.Errorf("serial %s: write: %w", d.name, err)
			return
		}
		d.stats.UpdateOutput(msg)
		obsmetrics.Get().Observe(d.name, "output", msg)
	}
}
