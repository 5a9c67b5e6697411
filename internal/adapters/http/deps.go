package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/wavemap/internal/core/ports"
	"github.com/samirrijal/wavemap/internal/core/usecases"
)

// Tapper injects a simulated tap into the engine.
type Tapper interface {
	Tap(x, y float64) bool
}

// Pinger is a dependency the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers. Map is only touched
// through Loop.
type Dependencies struct {
	Map    *usecases.MapControl
	Loop   ports.MainThread
	Areas  *usecases.AreaService
	Events ports.EventPublisher
	Tapper Tapper
	NATS   *nats.Conn
	DB     Pinger
	Cache  Pinger
}
