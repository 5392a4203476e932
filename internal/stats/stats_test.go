package stats

import (
	"testing"

	"github.com/asgard/mavhub/internal/mavlink"
)

func msg(ts int64, msgID uint32) *mavlink.Protocol {
	payload := make([]byte, 4)
	raw := append([]byte{mavlink.StartByteV2, 4, 0, 0, 0, 1, 1}, byte(msgID), byte(msgID>>8), byte(msgID>>16))
	raw = append(raw, payload...)
	raw = append(raw, 0, 0) // crc placeholder
	return mavlink.NewProtocolWithTimestamp(ts, "test", mavlink.NewPacket(raw))
}

func TestCounterMonotonicity(t *testing.T) {
	var c Counter
	c.Update(msg(1000, 0))
	c.Update(msg(2000, 0))
	c.Update(msg(3000, 1))

	snap := c.Snapshot()
	if snap.Messages != 3 {
		t.Fatalf("expected 3 messages, got %d", snap.Messages)
	}
	if snap.PerMessageID[0] != 2 || snap.PerMessageID[1] != 1 {
		t.Fatalf("unexpected per-message-id histogram: %+v", snap.PerMessageID)
	}
	if *snap.FirstMessageUs != 1000 || *snap.LastMessageUs != 3000 {
		t.Fatalf("unexpected first/last timestamps: %d %d", *snap.FirstMessageUs, *snap.LastMessageUs)
	}
}

func TestCounterResetClearsFirstSeen(t *testing.T) {
	var c Counter
	c.Update(msg(1000, 0))
	c.Reset()

	snap := c.Snapshot()
	if snap.Messages != 0 || snap.FirstMessageUs != nil {
		t.Fatalf("expected zeroed counter after reset, got %+v", snap)
	}
}

func TestRatesComputedOnRead(t *testing.T) {
	var c Counter
	c.Update(msg(0, 0))
	c.Update(msg(2_000_000, 0)) // 2 seconds later, 1 more message

	snap := c.Snapshot()
	rates := snap.Rates()
	if rates.MessagesPerSecond != 1 {
		t.Fatalf("expected 1 msg/s, got %f", rates.MessagesPerSecond)
	}
}

func TestDriverStatsSeparatesInputOutput(t *testing.T) {
	var d DriverStats
	d.UpdateInput(msg(0, 0))
	d.UpdateOutput(msg(0, 0))
	d.UpdateOutput(msg(0, 0))

	snap := d.Snapshot()
	if snap.Input.Messages != 1 || snap.Output.Messages != 2 {
		t.Fatalf("expected input=1 output=2, got input=%d output=%d", snap.Input.Messages, snap.Output.Messages)
	}
}
