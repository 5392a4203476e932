// Package callback implements an ordered message-observer chain. No
// driver in this repository holds a Chain: ingress and egress traffic
// reaches the bus and the transports without passing through one.
package callback

import (
	"sync"

	"github.com/asgard/mavhub/internal/mavlink"
	"github.com/sirupsen/logrus"
)

// Observer inspects a message and may reject it for this path by
// returning an error; a rejection drops the message for this observer
// only, it never aborts the chain.
type Observer func(*mavlink.Protocol) error

// Chain is an ordered, append-only list of Observers. Registration
// order is preserved; observers are never reordered or deduplicated.
type Chain struct {
	mu        sync.RWMutex
	observers []Observer
}

// New returns an empty Chain.
func New() *Chain {
	return &Chain{}
}

// Register appends an observer to the end of the chain.
func (c *Chain) Register(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// CallAll runs every registered observer against msg in registration
// order. An observer's error is logged at debug level and that
// observer's delivery is dropped; remaining observers still run.
func (c *Chain) CallAll(msg *mavlink.Protocol) {
	c.mu.RLock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.RUnlock()

	for _, observe := range observers {
		if err := observe(msg); err != nil {
			logrus.WithError(err).Debug("dropping message: callback rejected it")
			continue
		}
	}
}

// Len reports the number of registered observers.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.observers)
}
