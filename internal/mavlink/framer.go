package mavlink

import (
	"github.com/sirupsen/logrus"
)

// Observer is invoked once per fully-parsed frame by ReadAllMessages.
type Observer func(*Protocol)

// ReadAllMessages scans buf for complete MAVLink v2 frames, invoking
// observe once per frame in order, and returns the unconsumed remainder
// of buf (a partial frame, or bytes following a parse error) along with
// the number of frames observed.
//
// It never busy-loops on a truncated buffer: an incomplete header or
// payload stops the scan and leaves those bytes for the next call. A
// MAVLink v1 start byte is a protocol violation, logged and skipped one
// byte at a time; scanning resumes immediately after it.
func ReadAllMessages(origin string, buf []byte, observe Observer) ([]byte, int) {
	pos := 0
	count := 0

	for {
		start := -1
		for i := pos; i < len(buf); i++ {
			switch buf[i] {
			case StartByteV2:
				start = i
			case StartByteV1:
				logrus.WithField("origin", origin).Debug("rejecting MAVLink v1 frame")
				continue
			default:
				continue
			}
			break
		}

		if start == -1 {
			pos = len(buf)
			break
		}

		if len(buf)-start < HeaderLen {
			pos = start
			break
		}

		payloadLen := int(buf[start+1])
		incompat := buf[start+2]

		frameLen := HeaderLen + payloadLen + CRCLen
		if incompat&IncompatFlagSigned != 0 {
			frameLen += SignatureLen
		}

		if len(buf)-start < frameLen {
			pos = start
			break
		}

		frame := make([]byte, frameLen)
		copy(frame, buf[start:start+frameLen])

		protocol := NewProtocol(origin, NewPacket(frame))
		logrus.WithField("packet", protocol.Packet().String()).Trace("parsed message")
		observe(protocol)
		count++

		pos = start + frameLen
	}

	remaining := append([]byte(nil), buf[pos:]...)
	return remaining, count
}
