package stats

import "sync"

// HubStats is the hub-wide aggregate, independent of any single
// driver's counters: Input counts every message published on the bus;
// the hub does not update Output.
type HubStats struct {
	mu       sync.RWMutex
	Input    Counter
	Output   Counter
}

// HubStatsSnapshot is the serializable view of HubStats.
type HubStatsSnapshot struct {
	Input  Snapshot `json:"input"`
	Output Snapshot `json:"output"`
}

// Snapshot returns a point-in-time copy of the hub aggregate.
func (h *HubStats) Snapshot() HubStatsSnapshot {
	return HubStatsSnapshot{
		Input:  h.Input.Snapshot(),
		Output: h.Output.Snapshot(),
	}
}

// Reset zeroes the hub aggregate.
func (h *HubStats) Reset() {
	h.Input.Reset()
	h.Output.Reset()
}

// MessageIDAggregate merges the input per-message-id histograms of a
// set of driver snapshots into a single hub-wide histogram, the shape
// GET /stats/messages serves.
func MessageIDAggregate(snapshots []DriverStatsSnapshot) map[uint32]uint64 {
	agg := make(map[uint32]uint64)
	for _, s := range snapshots {
		for id, count := range s.Input.PerMessageID {
			agg[id] += count
		}
	}
	return agg
}
