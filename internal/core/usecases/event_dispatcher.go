package usecases

import (
	"github.com/samirrijal/wavemap/internal/core/ports"
)

// ClickListener receives the geographic coordinate of a tap.
type ClickListener func(lat, lng float64)

// IdleListener is told that camera motion has settled.
type IdleListener func()

// EventDispatcher holds at most one click listener and one idle listener and routes engine
// events to them. Registering replaces the previous listener in that slot; nil empties it.
type EventDispatcher struct {
	engine ports.MapEngine
	click  ClickListener
	idle   IdleListener
}

// NewEventDispatcher creates a dispatcher that resolves taps through engine.
func NewEventDispatcher(engine ports.MapEngine) *EventDispatcher {
	return &EventDispatcher{engine: engine}
}

// SetOnMapClickListener replaces the click listener.
func (d *EventDispatcher) SetOnMapClickListener(l ClickListener) {
	d.click = l
}

// SetOnCameraIdleListener replaces the idle listener.
func (d *EventDispatcher) SetOnCameraIdleListener(l IdleListener) {
	d.idle = l
}

// OnTap implements ports.EngineEvents. Without a click listener the tap is dropped.
func (d *EventDispatcher) OnTap(x, y float64) {
	l := d.click
	if l == nil {
		return
	}
	p := d.engine.ScreenToGeo(x, y)
	l(p.Lat, p.Lng)
}

// OnCameraIdle implements ports.EngineEvents.
func (d *EventDispatcher) OnCameraIdle() {
	if l := d.idle; l != nil {
		l()
	}
}

// Reset empties both slots.
func (d *EventDispatcher) Reset() {
	d.click = nil
	d.idle = nil
}

var _ ports.EngineEvents = (*EventDispatcher)(nil)
