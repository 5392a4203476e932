// Package fake provides synthetic source and sink drivers used for
// local testing and loopback verification, with no real transport
// underneath.
package fake

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asgard/mavhub/internal/bus"
	"github.com/asgard/mavhub/internal/driver"
	"github.com/asgard/mavhub/internal/mavlink"
	"github.com/asgard/mavhub/internal/obsmetrics"
	"github.com/asgard/mavhub/internal/stats"
)

func init() {
	driver.Register(newSourceFromOptions, "fakesrc", "fakesource", "fakes")
	driver.Register(newSinkFromOptions, "fakec", "fakesink", "fakeclient")
}

func newSourceFromOptions(name string, options map[string]string) (driver.Driver, error) {
	period := 100 * time.Millisecond
	if v, ok := options["period_ms"]; ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("fake: invalid period_ms %q: %w", v, err)
		}
		period = time.Duration(ms) * time.Millisecond
	}
	return NewSource(name, period), nil
}

func newSinkFromOptions(name string, _ map[string]string) (driver.Driver, error) {
	return NewSink(name), nil
}

// atomicName holds a live-renamable driver name, mirroring the
// original's arc_swap::ArcSwap<String> field.
type atomicName struct {
	v atomic.Pointer[string]
}

func newAtomicName(name string) *atomicName {
	a := &atomicName{}
	a.Store(name)
	return a
}

func (a *atomicName) Store(name string) { a.v.Store(&name) }
func (a *atomicName) Load() string      { return *a.v.Load() }

// Source periodically synthesizes HEARTBEAT frames and publishes them
// onto the bus as if they arrived from a real transport, grounded on
// the original's FakeSource used by its loopback unit test.
type Source struct {
	name   *atomicName
	id     uuid.UUID
	period time.Duration

	stats stats.DriverStats
	seq   atomic.Uint32
}

// NewSource creates a Source that emits one synthetic HEARTBEAT every
// period.
func NewSource(name string, period time.Duration) *Source {
	return &Source{
		name:   newAtomicName(name),
		id:     driver.NewUUID(name),
		period: period,
	}
}

func (s *Source) Name() string      { return s.name.Load() }
func (s *Source) UUID() uuid.UUID   { return s.id }
func (s *Source) SetName(name string) { s.name.Store(name) }

func (s *Source) Info() driver.Info {
	return driver.Info{
		Name:         "fake source",
		ValidSchemes: []string{"fakesrc", "fakesource", "fakes"},
		ExampleURLs:  []string{"fakesource://?period_ms=100"},
	}
}

func (s *Source) Stats() stats.DriverStatsSnapshot { return s.stats.Snapshot() }
func (s *Source) ResetStats()                      { s.stats.Reset() }

// Run emits synthetic HEARTBEAT frames onto b until ctx is canceled.
func (s *Source) Run(ctx context.Context, b *bus.Bus) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	logrus.WithField("driver", s.Name()).Debug("fake source starting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			seq := byte(s.seq.Add(1))
			payload := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0} // custom_mode(4) + type + autopilot + base_mode + system_status + mavlink_version
			raw := mavlink.EncodeFrame(seq, 1, 1, mavlink.MsgIDHeartbeat, payload)
			msg := mavlink.NewProtocol(s.Name(), mavlink.NewPacket(raw))
			s.stats.UpdateOutput(msg)
			obsmetrics.Get().Observe(s.Name(), "output", msg)
			b.Publish(msg)
		}
	}
}

// Sink subscribes to the bus and discards every message it receives,
// tracking input stats only; grounded on the original's FakeSink.
type Sink struct {
	name *atomicName
	id   uuid.UUID

	stats stats.DriverStats
}

// NewSink creates a Sink.
func NewSink(name string) *Sink {
	return &Sink{
		name: newAtomicName(name),
		id:   driver.NewUUID(name),
	}
}

func (s *Sink) Name() string        { return s.name.Load() }
func (s *Sink) UUID() uuid.UUID     { return s.id }
func (s *Sink) SetName(name string) { s.name.Store(name) }

func (s *Sink) Info() driver.Info {
	return driver.Info{
		Name:         "fake sink",
		ValidSchemes: []string{"fakec", "fakesink", "fakeclient"},
		ExampleURLs:  []string{"fakesink://"},
	}
}

func (s *Sink) Stats() stats.DriverStatsSnapshot { return s.stats.Snapshot() }
func (s *Sink) ResetStats()                      { s.stats.Reset() }

// Run subscribes to b and consumes every message until ctx is
// canceled.
func (s *Sink) Run(ctx context.Context, b *bus.Bus) error {
	sub := b.Subscribe()
	defer sub.Close()

	logrus.WithField("driver", s.Name()).Debug("fake sink starting")

	for {
		msg, lag, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if lag > 0 {
			logrus.WithFields(logrus.Fields{"driver": s.Name(), "lag": lag}).Warn("fake sink fell behind")
		}
		s.stats.UpdateInput(msg)
		obsmetrics.Get().Observe(s.Name(), "input", msg)
	}
}
