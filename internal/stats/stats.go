// Package stats accumulates per-driver and hub-wide traffic counters.
package stats

import (
	"sync"

	"github.com/asgard/mavhub/internal/mavlink"
)

// Snapshot is an immutable, concurrency-safe copy of a Counter's state.
type Snapshot struct {
	Bytes          uint64            `json:"bytes"`
	Messages       uint64            `json:"messages"`
	FirstMessageUs *int64            `json:"first_message_us"`
	LastMessageUs  *int64            `json:"last_message_us"`
	PerMessageID   map[uint32]uint64 `json:"per_message_id"`
}

// Rates are computed from a Snapshot on read; they are never stored.
type Rates struct {
	MessagesPerSecond float64 `json:"messages_per_second"`
	BytesPerSecond    float64 `json:"bytes_per_second"`
}

// Rates computes message/byte throughput between the first and last
// observed message in this snapshot. It returns the zero value if
// fewer than two timestamps are available or no time has elapsed.
func (s Snapshot) Rates() Rates {
	if s.FirstMessageUs == nil || s.LastMessageUs == nil {
		return Rates{}
	}
	elapsedUs := *s.LastMessageUs - *s.FirstMessageUs
	if elapsedUs <= 0 {
		return Rates{}
	}
	elapsedSec := float64(elapsedUs) / 1e6
	return Rates{
		MessagesPerSecond: float64(s.Messages) / elapsedSec,
		BytesPerSecond:    float64(s.Bytes) / elapsedSec,
	}
}

// Counter accumulates one direction (input or output) of a driver's
// traffic. Zero value is ready to use.
type Counter struct {
	mu             sync.RWMutex
	bytes          uint64
	messages       uint64
	firstMessageUs *int64
	lastMessageUs  *int64
	perMessageID   map[uint32]uint64
}

// Update folds msg into the counter: increments bytes/messages, advances
// the last-seen timestamp, sets first-seen on the first call since
// creation or reset, and bumps the per-message-id histogram.
func (c *Counter) Update(msg *mavlink.Protocol) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bytes += uint64(len(msg.RawBytes()))
	c.messages++

	ts := msg.Timestamp
	if c.firstMessageUs == nil {
		c.firstMessageUs = &ts
	}
	last := ts
	c.lastMessageUs = &last

	if c.perMessageID == nil {
		c.perMessageID = make(map[uint32]uint64)
	}
	c.perMessageID[msg.Header().MessageID]++
}

// Snapshot returns a point-in-time copy safe to read after this call
// returns, independent of subsequent Updates.
func (c *Counter) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	perID := make(map[uint32]uint64, len(c.perMessageID))
	for k, v := range c.perMessageID {
		perID[k] = v
	}

	var first, last *int64
	if c.firstMessageUs != nil {
		v := *c.firstMessageUs
		first = &v
	}
	if c.lastMessageUs != nil {
		v := *c.lastMessageUs
		last = &v
	}

	return Snapshot{
		Bytes:          c.bytes,
		Messages:       c.messages,
		FirstMessageUs: first,
		LastMessageUs:  last,
		PerMessageID:   perID,
	}
}

// Reset zeroes the counter, as if newly created.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytes = 0
	c.messages = 0
	c.firstMessageUs = nil
	c.lastMessageUs = nil
	c.perMessageID = nil
}

// DriverStats holds the input and output Counters for a single driver.
type DriverStats struct {
	Input  Counter `json:"-"`
	Output Counter `json:"-"`
}

// UpdateInput folds an ingress message into the input counter.
func (d *DriverStats) UpdateInput(msg *mavlink.Protocol) {
	d.Input.Update(msg)
}

// UpdateOutput folds an egress message into the output counter.
func (d *DriverStats) UpdateOutput(msg *mavlink.Protocol) {
	d.Output.Update(msg)
}

// Reset zeroes both counters.
func (d *DriverStats) Reset() {
	d.Input.Reset()
	d.Output.Reset()
}

// DriverStatsSnapshot is the serializable view of DriverStats, matching
// the REST surface's stats:{input, output} shape.
type DriverStatsSnapshot struct {
	Input  Snapshot `json:"input"`
	Output Snapshot `json:"output"`
}

// Snapshot returns a point-in-time copy of both counters.
func (d *DriverStats) Snapshot() DriverStatsSnapshot {
	return DriverStatsSnapshot{
		Input:  d.Input.Snapshot(),
		Output: d.Output.Snapshot(),
	}
}
