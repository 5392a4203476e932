package hub

import (
	"context"
	"testing"
	"time"

	"github.com/asgard/mavhub/internal/driver/fake"
)

// TestAddRemoveDriverLifecycle reproduces the reference Add/Remove
// scenario: add a driver, see it listed, remove it, see it gone, and
// get NotFound removing it again.
func TestAddRemoveDriverLifecycle(t *testing.T) {
	h := New(64)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	sink := fake.NewSink("sink")
	id, err := h.AddDriver(ctx, sink)
	if err != nil {
		t.Fatalf("AddDriver: %v", err)
	}

	drivers, err := h.GetDrivers(ctx)
	if err != nil {
		t.Fatalf("GetDrivers: %v", err)
	}
	if !containsID(drivers, id) {
		t.Fatalf("expected driver %v in %+v", id, drivers)
	}

	if err := h.RemoveDriver(ctx, id); err != nil {
		t.Fatalf("RemoveDriver: %v", err)
	}

	drivers, err = h.GetDrivers(ctx)
	if err != nil {
		t.Fatalf("GetDrivers after remove: %v", err)
	}
	if containsID(drivers, id) {
		t.Fatalf("expected driver %v removed, got %+v", id, drivers)
	}

	if err := h.RemoveDriver(ctx, id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound removing twice, got %v", err)
	}
}

// TestResetAllStatsZeroesDriverStats reproduces the reference stats
// reset scenario: after traffic, GetDriversStats shows nonzero
// messages; ResetAllStats zeroes them.
func TestResetAllStatsZeroesDriverStats(t *testing.T) {
	h := New(64)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	source := fake.NewSource("source", time.Millisecond)
	sink := fake.NewSink("sink")

	if _, err := h.AddDriver(ctx, source); err != nil {
		t.Fatalf("AddDriver source: %v", err)
	}
	if _, err := h.AddDriver(ctx, sink); err != nil {
		t.Fatalf("AddDriver sink: %v", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		entries, err := h.GetDriversStats(ctx)
		if err != nil {
			t.Fatalf("GetDriversStats: %v", err)
		}
		total := uint64(0)
		for _, e := range entries {
			total += e.Stats.Input.Messages + e.Stats.Output.Messages
		}
		if total >= 100 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for traffic, last total=%d", total)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := h.ResetAllStats(ctx); err != nil {
		t.Fatalf("ResetAllStats: %v", err)
	}

	entries, err := h.GetDriversStats(ctx)
	if err != nil {
		t.Fatalf("GetDriversStats after reset: %v", err)
	}
	for _, e := range entries {
		if e.Stats.Input.Messages != 0 || e.Stats.Output.Messages != 0 {
			t.Fatalf("expected zeroed stats after reset, got %+v", e)
		}
		if e.Stats.Input.FirstMessageUs != nil || e.Stats.Output.FirstMessageUs != nil {
			t.Fatalf("expected nil first-message timestamp after reset, got %+v", e)
		}
	}
}

func containsID(drivers []DriverSummary, id DriverID) bool {
	for _, d := range drivers {
		if d.ID == id {
			return true
		}
	}
	return false
}
