// Package hub implements the command-loop actor that owns the
// broadcast bus, the driver table, and hub-wide stats, serving
// AddDriver/RemoveDriver/GetDrivers/GetSender/GetHubStats/
// GetDriversStats/ResetAllStats the way the original's hub actor
// serves its HubCommand enum over a mpsc channel with oneshot replies.
package hub

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asgard/mavhub/internal/bus"
	"github.com/asgard/mavhub/internal/driver"
	"github.com/asgard/mavhub/internal/obsmetrics"
	"github.com/asgard/mavhub/internal/stats"
)

// ErrNotFound is returned by RemoveDriver when the id is unknown.
var ErrNotFound = errors.New("hub: driver not found")

// DriverID identifies a driver added to the hub, assigned sequentially
// starting at 1.
type DriverID uint64

// DriverSummary is the information returned for each entry of
// GetDrivers: identity plus the static Info the driver advertises.
type DriverSummary struct {
	ID   DriverID    `json:"id"`
	Name string      `json:"name"`
	Info driver.Info `json:"info"`
}

// DriverStatsEntry pairs a driver's name with its accumulated stats,
// matching the REST surface's {name, driver_type, stats:{input,output}}
// shape for GET /stats/drivers.
type DriverStatsEntry struct {
	ID         DriverID                  `json:"id"`
	Name       string                    `json:"name"`
	DriverType string                    `json:"driver_type"`
	Stats      stats.DriverStatsSnapshot `json:"stats"`
}

type driverHandle struct {
	id     DriverID
	d      driver.Driver
	cancel context.CancelFunc
	done   chan struct{}
}

// Hub is the command-loop actor. Construct with New and start it with
// Run in its own goroutine; every other method is safe to call
// concurrently and communicates with the running loop over channels.
type Hub struct {
	bus *bus.Bus

	commands chan command

	// drivers and nextID are only ever touched from within Run's
	// goroutine; hub's counters carry their own locks and are also
	// updated by the bus tally goroutine Run starts.
	drivers map[DriverID]*driverHandle
	nextID  DriverID
	hub     stats.HubStats
}

// New creates a Hub backed by a broadcast bus of the given capacity
// (0 uses bus.DefaultCapacity).
func New(busCapacity int) *Hub {
	return &Hub{
		bus:      bus.New(busCapacity),
		commands: make(chan command, 64),
		drivers:  make(map[DriverID]*driverHandle),
	}
}

// Run executes the command loop until ctx is canceled, counting every
// bus message into the hub aggregate's input counter. On return every
// driver task has been canceled and waited on.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdownAll()

	tally := h.bus.Subscribe()
	defer tally.Close()
	go func() {
		for {
			msg, _, err := tally.Recv(ctx)
			if err != nil {
				return
			}
			h.hub.Input.Update(msg)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			cmd.exec(ctx, h)
		}
	}
}

func (h *Hub) shutdownAll() {
	for _, handle := range h.drivers {
		handle.cancel()
		<-handle.done
	}
}

// command is the internal envelope every public method sends through
// h.commands, each carrying its own one-shot reply channel, mirroring
// the original's HubCommand variants.
type command interface {
	exec(ctx context.Context, h *Hub)
}

type addDriverCmd struct {
	d     driver.Driver
	reply chan DriverID
}

func (c addDriverCmd) exec(ctx context.Context, h *Hub) {
	id := h.nextID + 1
	h.nextID = id

	driverCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	handle := &driverHandle{id: id, d: c.d, cancel: cancel, done: done}
	h.drivers[id] = handle

	go h.runDriverWithReconnect(driverCtx, handle)
	obsmetrics.Get().ActiveDrivers.Inc()

	c.reply <- id
}

// runDriverWithReconnect is the outer loop: acquire a transport (via
// Driver.Run), and on any exit other than context cancellation, back
// off one second and retry, matching the original's Created ->
// Running <-> Reconnecting state machine.
func (h *Hub) runDriverWithReconnect(ctx context.Context, handle *driverHandle) {
	defer close(handle.done)

	for {
		err := handle.d.Run(ctx, h.bus)
		if ctx.Err() != nil {
			return
		}
		logrus.WithFields(logrus.Fields{
			"driver": handle.d.Name(),
			"error":  err,
		}).Warn("driver exited, reconnecting in 1s")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

type removeDriverCmd struct {
	id    DriverID
	reply chan error
}

func (c removeDriverCmd) exec(_ context.Context, h *Hub) {
	handle, ok := h.drivers[c.id]
	if !ok {
		c.reply <- ErrNotFound
		return
	}
	delete(h.drivers, c.id)
	handle.cancel()
	<-handle.done
	obsmetrics.Get().ActiveDrivers.Dec()
	c.reply <- nil
}

type getDriversCmd struct {
	reply chan []DriverSummary
}

func (c getDriversCmd) exec(_ context.Context, h *Hub) {
	out := make([]DriverSummary, 0, len(h.drivers))
	for id, handle := range h.drivers {
		out = append(out, DriverSummary{ID: id, Name: handle.d.Name(), Info: handle.d.Info()})
	}
	c.reply <- out
}

type getSenderCmd struct {
	reply chan *bus.Bus
}

func (c getSenderCmd) exec(_ context.Context, h *Hub) {
	c.reply <- h.bus
}

type getHubStatsCmd struct {
	reply chan stats.HubStatsSnapshot
}

func (c getHubStatsCmd) exec(_ context.Context, h *Hub) {
	c.reply <- h.hub.Snapshot()
}

type getDriversStatsCmd struct {
	reply chan []DriverStatsEntry
}

func (c getDriversStatsCmd) exec(_ context.Context, h *Hub) {
	out := make([]DriverStatsEntry, 0, len(h.drivers))
	for id, handle := range h.drivers {
		out = append(out, DriverStatsEntry{ID: id, Name: handle.d.Name(), DriverType: handle.d.Info().Name, Stats: handle.d.Stats()})
	}
	c.reply <- out
}

type resetAllStatsCmd struct {
	reply chan struct{}
}

func (c resetAllStatsCmd) exec(_ context.Context, h *Hub) {
	for _, handle := range h.drivers {
		handle.d.ResetStats()
	}
	h.hub.Reset()
	c.reply <- struct{}{}
}

// AddDriver assigns the driver a fresh DriverID, spawns its
// reconnect-managed run loop against the hub's bus, and returns the
// id.
func (h *Hub) AddDriver(ctx context.Context, d driver.Driver) (DriverID, error) {
	reply := make(chan DriverID, 1)
	select {
	case h.commands <- addDriverCmd{d: d, reply: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case id := <-reply:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// RemoveDriver cancels and removes the driver with id, or returns
// ErrNotFound if no such driver is registered.
func (h *Hub) RemoveDriver(ctx context.Context, id DriverID) error {
	reply := make(chan error, 1)
	select {
	case h.commands <- removeDriverCmd{id: id, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetDrivers returns a snapshot of every currently registered driver.
func (h *Hub) GetDrivers(ctx context.Context) ([]DriverSummary, error) {
	reply := make(chan []DriverSummary, 1)
	select {
	case h.commands <- getDriversCmd{reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetSender returns the hub's shared bus, analogous to cloning the
// broadcast sender in the original.
func (h *Hub) GetSender(ctx context.Context) (*bus.Bus, error) {
	reply := make(chan *bus.Bus, 1)
	select {
	case h.commands <- getSenderCmd{reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case b := <-reply:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetHubStats returns a snapshot of the hub-wide aggregate counters.
func (h *Hub) GetHubStats(ctx context.Context) (stats.HubStatsSnapshot, error) {
	reply := make(chan stats.HubStatsSnapshot, 1)
	select {
	case h.commands <- getHubStatsCmd{reply: reply}:
	case <-ctx.Done():
		return stats.HubStatsSnapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return stats.HubStatsSnapshot{}, ctx.Err()
	}
}

// GetDriversStats returns per-driver accumulated stats for every
// registered driver.
func (h *Hub) GetDriversStats(ctx context.Context) ([]DriverStatsEntry, error) {
	reply := make(chan []DriverStatsEntry, 1)
	select {
	case h.commands <- getDriversStatsCmd{reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResetAllStats zeroes every driver's stats and the hub aggregate.
func (h *Hub) ResetAllStats(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	select {
	case h.commands <- resetAllStatsCmd{reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
