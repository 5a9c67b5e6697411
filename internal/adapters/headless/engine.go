// Package headless implements the map engine port without a native view. It keeps the
// rendered camera, overlays and style in memory, projects with Web Mercator, and runs camera
// transitions as linear interpolations on a Clock.
package headless

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
	"github.com/samirrijal/wavemap/internal/pkg/geospatial"
)

// Config sizes the simulated drawing surface.
type Config struct {
	Width        float64
	Height       float64
	TileSize     float64
	StyleTimeout time.Duration
}

type flight struct {
	from, to   domain.CameraState
	start      time.Time
	duration   time.Duration
	timer      Timer
	onComplete func()
}

// Engine implements ports.MapEngine. All methods except Tap must be called on the owning
// thread; timer and style callbacks are posted back to it.
type Engine struct {
	cfg    Config
	thread ports.MainThread
	clock  Clock
	styles StyleLoader
	log    *slog.Logger

	events   ports.EngineEvents
	pose     domain.CameraState
	flight   *flight
	polygons []domain.WavePolygon
	override *domain.BoundingBox
	margins  domain.Insets
	style    string
}

// New creates an engine. A nil clock uses the wall clock; a nil loader accepts every style.
func New(cfg Config, thread ports.MainThread, clock Clock, styles StyleLoader, log *slog.Logger) *Engine {
	if cfg.TileSize <= 0 {
		cfg.TileSize = geospatial.DefaultTileSize
	}
	if cfg.StyleTimeout <= 0 {
		cfg.StyleTimeout = 30 * time.Second
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if styles == nil {
		styles = StaticStyleLoader{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, thread: thread, clock: clock, styles: styles, log: log}
}

func (e *Engine) Bind(events ports.EngineEvents) { e.events = events }

// LoadStyle fetches the style off the owning thread and reports back on it.
func (e *Engine) LoadStyle(url string, onLoaded func(err error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StyleTimeout)
		defer cancel()
		err := e.styles.Load(ctx, url)
		e.log.Debug("style fetched", "url", url, "error", err)
		e.thread.Post(func() {
			if err == nil {
				e.style = url
			}
			onLoaded(err)
		})
	}()
}

func (e *Engine) Viewport() domain.Viewport {
	return domain.Viewport{Width: e.cfg.Width, Height: e.cfg.Height}
}

// SetCamera jumps to pose. A running transition is dropped without completing.
func (e *Engine) SetCamera(pose domain.CameraState) {
	e.stopFlight()
	e.pose = pose
	e.postIdle()
}

// AnimateCamera interpolates from the rendered pose to pose over duration.
func (e *Engine) AnimateCamera(pose domain.CameraState, duration time.Duration, onComplete func()) {
	if e.flight != nil {
		e.pose = interpolate(e.flight, e.clock.Now())
		e.stopFlight()
	}
	f := &flight{
		from:       e.pose,
		to:         pose,
		start:      e.clock.Now(),
		duration:   duration,
		onComplete: onComplete,
	}
	e.flight = f
	f.timer = e.clock.AfterFunc(duration, func() {
		e.thread.Post(func() { e.land(f) })
	})
}

// CancelAnimation stops the transition where it is now and returns that pose.
func (e *Engine) CancelAnimation() domain.CameraState {
	f := e.flight
	if f == nil {
		return e.pose
	}
	e.stopFlight()
	e.pose = interpolate(f, e.clock.Now())
	e.postIdle()
	return e.pose
}

func (e *Engine) DrawPolygons(polygons []domain.WavePolygon) {
	for _, p := range polygons {
		e.polygons = append(e.polygons, p.Clone())
	}
}

func (e *Engine) ClearPolygons() { e.polygons = nil }

func (e *Engine) DrawOverrideBbox(bbox domain.BoundingBox) { e.override = &bbox }

func (e *Engine) SetAttributionMargins(margins domain.Insets) { e.margins = margins }

// ScreenToGeo unprojects a pixel of the viewport at the rendered pose.
func (e *Engine) ScreenToGeo(x, y float64) domain.LatLng {
	return e.unproject(e.pose, x, y)
}

// VisibleBounds returns the geographic extent of the viewport at pose.
func (e *Engine) VisibleBounds(pose domain.CameraState) domain.BoundingBox {
	return domain.BoundingBox{
		SW: e.unproject(pose, 0, e.cfg.Height),
		NE: e.unproject(pose, e.cfg.Width, 0),
	}
}

// Tap simulates a user tap at a viewport pixel. Safe from any goroutine.
func (e *Engine) Tap(x, y float64) bool {
	return e.thread.Post(func() {
		if e.events != nil {
			e.events.OnTap(x, y)
		}
	})
}

// Camera is the pose currently rendered, mid-transition included.
func (e *Engine) Camera() domain.CameraState {
	if e.flight != nil {
		return interpolate(e.flight, e.clock.Now())
	}
	return e.pose
}

func (e *Engine) Animating() bool { return e.flight != nil }
func (e *Engine) Polygons() []domain.WavePolygon { return append([]domain.WavePolygon(nil), e.polygons...) }
func (e *Engine) Margins() domain.Insets { return e.margins }
func (e *Engine) Style() string { return e.style }

func (e *Engine) OverrideBbox() (domain.BoundingBox, bool) {
	if e.override == nil {
		return domain.BoundingBox{}, false
	}
	return *e.override, true
}

func (e *Engine) land(f *flight) {
	if e.flight != f {
		return
	}
	e.flight = nil
	e.pose = f.to
	f.onComplete()
	e.postIdle()
}

func (e *Engine) stopFlight() {
	if e.flight == nil {
		return
	}
	e.flight.timer.Stop()
	e.flight = nil
}

func (e *Engine) postIdle() {
	e.thread.Post(func() {
		if e.events != nil && e.flight == nil {
			e.events.OnCameraIdle()
		}
	})
}

func (e *Engine) unproject(pose domain.CameraState, x, y float64) domain.LatLng {
	world := geospatial.WorldSize(e.cfg.TileSize, pose.Zoom)
	cx := geospatial.MercatorX(pose.Center.Lng) * world
	cy := geospatial.MercatorY(pose.Center.Lat) * world

	px := (cx + x - e.cfg.Width/2) / world
	py := (cy + y - e.cfg.Height/2) / world

	return domain.LatLng{
		Lat: geospatial.LatFromY(clamp01(py)),
		Lng: math.Max(-180, math.Min(180, geospatial.LngFromX(px))),
	}
}

func interpolate(f *flight, now time.Time) domain.CameraState {
	t := 1.0
	if f.duration > 0 {
		t = float64(now.Sub(f.start)) / float64(f.duration)
	}
	t = clamp01(t)
	return domain.CameraState{
		Center: domain.LatLng{
			Lat: lerp(f.from.Center.Lat, f.to.Center.Lat, t),
			Lng: lerp(f.from.Center.Lng, f.to.Center.Lng, t),
		},
		Zoom: lerp(f.from.Zoom, f.to.Zoom, t),
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

var _ ports.MapEngine = (*Engine)(nil)
