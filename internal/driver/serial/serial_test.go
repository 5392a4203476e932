package serial

import (
	"context"
	"testing"
	"time"

	"github.com/asgard/mavhub/internal/bus"
)

func TestRunFailsOnMissingPort(t *testing.T) {
	d := NewDriver("serial-1", "/dev/does-not-exist-mavhub", 57600)
	b := bus.New(16)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := d.Run(ctx, b); err == nil {
		t.Fatal("expected error opening a nonexistent serial port")
	}
}

func TestDriverIdentity(t *testing.T) {
	d := NewDriver("serial-1", "/dev/ttyUSB0", 115200)
	if d.Name() != "serial-1" {
		t.Fatalf("unexpected name %q", d.Name())
	}
	if d.UUID().String() == "" {
		t.Fatal("expected non-empty uuid")
	}
	info := d.Info()
	if len(info.ValidSchemes) != 1 || info.ValidSchemes[0] != "serial" {
		t.Fatalf("unexpected schemes %v", info.ValidSchemes)
	}
}
