package mavlink

import "strconv"

// Common-dialect message IDs used by the fake driver and by REST/WS
// message-name classification. Not exhaustive; extend as needed.
const (
	MsgIDHeartbeat         = 0
	MsgIDSysStatus         = 1
	MsgIDSystemTime        = 2
	MsgIDPing              = 4
	MsgIDAttitude          = 30
	MsgIDLocalPositionNED  = 32
	MsgIDGlobalPositionInt = 33
	MsgIDRCChannels        = 65
	MsgIDCommandLong       = 76
	MsgIDCommandAck        = 77
)

// messageNames maps a handful of well-known IDs to their dialect name,
// used to classify inbound/outbound traffic for the WebSocket bridge's
// name-regex filter and to key the REST GET /mavlink cache by name.
var messageNames = map[uint32]string{
	MsgIDHeartbeat:         "HEARTBEAT",
	MsgIDSysStatus:         "SYS_STATUS",
	MsgIDSystemTime:        "SYSTEM_TIME",
	MsgIDPing:              "PING",
	MsgIDAttitude:          "ATTITUDE",
	MsgIDLocalPositionNED:  "LOCAL_POSITION_NED",
	MsgIDGlobalPositionInt: "GLOBAL_POSITION_INT",
	MsgIDRCChannels:        "RC_CHANNELS",
	MsgIDCommandLong:       "COMMAND_LONG",
	MsgIDCommandAck:        "COMMAND_ACK",
}

// MessageName returns the dialect name for a message ID, or a numeric
// fallback ("MSG_42") for IDs this router does not have a name for.
func MessageName(id uint32) string {
	if name, ok := messageNames[id]; ok {
		return name
	}
	return unknownMessageName(id)
}

func unknownMessageName(id uint32) string {
	return "MSG_" + strconv.FormatUint(uint64(id), 10)
}
