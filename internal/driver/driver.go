// Package driver defines the uniform contract every transport
// (fake, UDP, TCP, serial, REST/WebSocket) implements to plug into the
// hub, plus a scheme-keyed registry for constructing drivers from
// endpoint URLs.
package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/asgard/mavhub/internal/bus"
	"github.com/asgard/mavhub/internal/stats"
)

// Driver is the uniform contract the hub holds every transport to.
// Run must block until ctx is canceled or the transport fails, at
// which point the hub's outer loop is responsible for reconnect
// backoff; Run itself never retries internally.
type Driver interface {
	Run(ctx context.Context, b *bus.Bus) error
	Info() Info
	Name() string
	UUID() uuid.UUID
	Stats() stats.DriverStatsSnapshot
	ResetStats()
}

// Info describes a driver kind for discovery endpoints: its name, the
// URL schemes it accepts, and example URLs for operator documentation.
type Info struct {
	Name         string   `json:"name"`
	ValidSchemes []string `json:"valid_schemes"`
	ExampleURLs  []string `json:"example_urls"`
}

// Factory builds a Driver from a parsed endpoint URL's scheme-specific
// options. Registered factories are looked up by scheme in New.
type Factory func(name string, options map[string]string) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register associates a Factory with one or more URL schemes. Driver
// packages call this from an init func, mirroring the original's
// static DriverInfo::valid_schemes lookup table.
func Register(factory Factory, schemes ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, scheme := range schemes {
		registry[scheme] = factory
	}
}

// New constructs a Driver for the given scheme via its registered
// Factory. It returns an error if no driver claims the scheme.
func New(scheme, name string, options map[string]string) (Driver, error) {
	registryMu.RLock()
	factory, ok := registry[scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("driver: no driver registered for scheme %q", scheme)
	}
	return factory(name, options)
}

// Schemes returns every scheme currently registered, in no particular
// order.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for scheme := range registry {
		out = append(out, scheme)
	}
	return out
}

// driverNamespace scopes the deterministic uuids NewUUID derives, so
// they never collide with uuids from an unrelated namespace.
var driverNamespace = uuid.MustParse("6f6e8b2a-6e4e-4f0a-9f0e-2f7a9e6b9c1a")

// NewUUID derives a driver's stable identity from its name: the same
// name always produces the same uuid, so a driver's identity survives
// process restarts, matching DriverUuid's documented contract.
func NewUUID(name string) uuid.UUID {
	return uuid.NewSHA1(driverNamespace, []byte(name))
}
