// Package restapi implements the REST/WebSocket bridge, itself a
// driver.Driver: its "receive task" is HTTP handlers injecting
// messages via Inject, and its "send task" fans out bus traffic to
// connected WebSocket clients.
package restapi

import (
	"sync"

	"github.com/asgard/mavhub/internal/mavlink"
)

// messageCache caches the last-seen header fields, timestamp and
// origin per message id, backing GET /mavlink and GET /mavlink/{name}
// (looked up by dialect name), grounded on the original's
// data::update/data::messages cache.
type messageCache struct {
	mu   sync.RWMutex
	byID map[uint32]cachedMessage
}

type cachedMessage struct {
	SystemID    uint8  `json:"system_id"`
	ComponentID uint8  `json:"component_id"`
	MessageID   uint32 `json:"message_id"`
	Sequence    uint8  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
	Origin      string `json:"origin"`
}

func newMessageCache() *messageCache {
	return &messageCache{byID: make(map[uint32]cachedMessage)}
}

func (c *messageCache) update(msg *mavlink.Protocol) {
	hdr := msg.Header()
	entry := cachedMessage{
		SystemID:    hdr.SystemID,
		ComponentID: hdr.ComponentID,
		MessageID:   hdr.MessageID,
		Sequence:    hdr.Sequence,
		TimestampUs: msg.Timestamp,
		Origin:      msg.Origin,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[hdr.MessageID] = entry
}

func (c *messageCache) all() map[string]cachedMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]cachedMessage, len(c.byID))
	for id, msg := range c.byID {
		out[mavlink.MessageName(id)] = msg
	}
	return out
}

func (c *messageCache) byName(name string) (cachedMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, msg := range c.byID {
		if mavlink.MessageName(id) == name {
			return msg, true
		}
	}
	return cachedMessage{}, false
}
