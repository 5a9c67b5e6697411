package usecases

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
	"github.com/samirrijal/wavemap/internal/pkg/metrics"
)

// MapControl is the single entry point of the map layer. It composes the camera controller,
// the overlay manager and the event dispatcher, and forwards rendering primitives to the engine.
//
// MapControl is not safe for concurrent use. Every call, including the engine callbacks it
// receives, must happen on the owning goroutine (see mainloop.Loop).
type MapControl struct {
	engine   ports.MapEngine
	camera   *CameraController
	overlays *OverlayManager
	events   *EventDispatcher
	diag     ports.Diagnostics
	log      *slog.Logger

	styleURL string
	styleSeq uint64
	margins  domain.Insets
	settled  domain.LatLng
	closed   bool
}

// NewMapControl builds the facade and binds itself as the engine's event sink.
func NewMapControl(engine ports.MapEngine, cfg CameraControllerConfig, diag ports.Diagnostics, log *slog.Logger) (*MapControl, error) {
	if log == nil {
		log = slog.Default()
	}
	if diag == nil {
		diag = nopDiagnostics{}
	}
	camera, err := NewCameraController(engine, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("camera controller: %w", err)
	}

	m := &MapControl{
		engine:   engine,
		camera:   camera,
		overlays: NewOverlayManager(engine),
		events:   NewEventDispatcher(engine),
		diag:     diag,
		log:      log,
	}
	m.settled = camera.CameraCenter()
	engine.Bind(m)
	metrics.OverlayPolygons.Set(0)
	return m, nil
}

// SetStyle asks the engine to load the style at styleURL. onReady receives nil once the style
// is in place, or the load error. A load superseded by a later SetStyle still reports its own
// outcome, but only the latest successful load becomes StyleURL.
func (m *MapControl) SetStyle(styleURL string, onReady func(error)) error {
	if m.closed {
		return domain.ErrControllerClosed
	}
	if err := validateStyleURL(styleURL); err != nil {
		return err
	}

	m.styleSeq++
	seq := m.styleSeq
	m.engine.LoadStyle(styleURL, func(err error) {
		switch {
		case err != nil:
			metrics.StyleLoads.WithLabelValues("error").Inc()
			m.log.Warn("style load failed", "url", styleURL, "error", err)
			m.diag.RecordException(err.Error(), "style", "")
			err = fmt.Errorf("load style %s: %w", styleURL, err)
		case m.closed:
			err = domain.ErrControllerClosed
		default:
			metrics.StyleLoads.WithLabelValues("ok").Inc()
			if seq == m.styleSeq {
				m.styleURL = styleURL
			}
			m.log.Info("style loaded", "url", styleURL)
		}
		if onReady != nil {
			onReady(err)
		}
	})
	return nil
}

// StyleURL is the last style that loaded successfully.
func (m *MapControl) StyleURL() string { return m.styleURL }

// MoveCamera jumps to the given centre. KeepZoom retains the current zoom.
func (m *MapControl) MoveCamera(lat, lng float64, zoom domain.ZoomOption) error {
	if err := m.camera.MoveCamera(domain.LatLng{Lat: lat, Lng: lng}, zoom); err != nil {
		return err
	}
	metrics.CameraMoves.Inc()
	return nil
}

// AnimateCamera starts an animated transition. cb may be nil.
func (m *MapControl) AnimateCamera(lat, lng float64, zoom domain.ZoomOption, cb ports.CameraCallback) (*Animation, error) {
	return m.started(m.camera.AnimateCamera(domain.LatLng{Lat: lat, Lng: lng}, zoom, m.track(cb)))
}

// AnimateCameraToBounds frames bbox with paddingPx on every side. cb may be nil.
func (m *MapControl) AnimateCameraToBounds(bbox domain.BoundingBox, paddingPx int, cb ports.CameraCallback) (*Animation, error) {
	return m.started(m.camera.AnimateCameraToBounds(bbox, paddingPx, m.track(cb)))
}

func (m *MapControl) SetBoundsForCameraTarget(bbox *domain.BoundingBox) error {
	return m.camera.SetBoundsForCameraTarget(bbox)
}

func (m *MapControl) SetMinZoom(z float64) error { return m.camera.SetMinZoom(z) }
func (m *MapControl) SetMaxZoom(z float64) error { return m.camera.SetMaxZoom(z) }

// SetZoomRange replaces both zoom limits.
func (m *MapControl) SetZoomRange(minZoom, maxZoom float64) error {
	return m.camera.SetZoomRange(minZoom, maxZoom)
}

// AddWavePolygons replaces or extends the overlay set. The batch is all-or-nothing.
func (m *MapControl) AddWavePolygons(polygons []domain.WavePolygon, clearExisting bool) error {
	if m.closed {
		return domain.ErrControllerClosed
	}
	if err := m.overlays.AddWavePolygons(polygons, clearExisting); err != nil {
		return err
	}
	metrics.OverlayPolygons.Set(float64(m.overlays.Count()))
	return nil
}

func (m *MapControl) ClearWavePolygons() error {
	if m.closed {
		return domain.ErrControllerClosed
	}
	m.overlays.ClearWavePolygons()
	metrics.OverlayPolygons.Set(0)
	return nil
}

func (m *MapControl) DrawOverrideBbox(bbox domain.BoundingBox) error {
	if m.closed {
		return domain.ErrControllerClosed
	}
	return m.overlays.DrawOverrideBbox(bbox)
}

func (m *MapControl) OverlayCount() int { return m.overlays.Count() }
func (m *MapControl) Polygons() []domain.WavePolygon { return m.overlays.Polygons() }
func (m *MapControl) OverrideBbox() (domain.BoundingBox, bool) { return m.overlays.OverrideBbox() }

// SetOnMapClickListener replaces the click listener; nil removes it.
func (m *MapControl) SetOnMapClickListener(l ClickListener) { m.events.SetOnMapClickListener(l) }

// SetOnCameraIdleListener replaces the idle listener; nil removes it.
func (m *MapControl) SetOnCameraIdleListener(l IdleListener) { m.events.SetOnCameraIdleListener(l) }

// SetAttributionMargins moves the engine's attribution control away from the view edges.
func (m *MapControl) SetAttributionMargins(in domain.Insets) error {
	if in.Left < 0 || in.Top < 0 || in.Right < 0 || in.Bottom < 0 {
		return domain.Invalid("attribution_margins", "must not be negative")
	}
	m.margins = in
	m.engine.SetAttributionMargins(in)
	return nil
}

func (m *MapControl) AttributionMargins() domain.Insets { return m.margins }

func (m *MapControl) Width() float64 { return m.engine.Viewport().Width }
func (m *MapControl) Height() float64 { return m.engine.Viewport().Height }

func (m *MapControl) Camera() domain.CameraState { return m.camera.Camera() }
func (m *MapControl) CameraCenter() domain.LatLng { return m.camera.CameraCenter() }
func (m *MapControl) Zoom() float64 { return m.camera.Zoom() }
func (m *MapControl) MinZoom() float64 { return m.camera.MinZoom() }
func (m *MapControl) MaxZoom() float64 { return m.camera.MaxZoom() }
func (m *MapControl) Constraints() domain.CameraConstraints { return m.camera.Constraints() }
func (m *MapControl) VisibleBounds() domain.BoundingBox { return m.camera.VisibleBounds() }
func (m *MapControl) IsAnimating() bool { return m.camera.IsAnimating() }
func (m *MapControl) Closed() bool { return m.closed }

// ApplyArea constrains the camera to an event area and animates to frame it. The area's
// style is loaded first when it differs from the current one.
func (m *MapControl) ApplyArea(area domain.EventArea, paddingPx int, cb ports.CameraCallback) (*Animation, error) {
	if err := area.Validate(); err != nil {
		return nil, err
	}
	if area.StyleURL != "" {
		if err := validateStyleURL(area.StyleURL); err != nil {
			return nil, err
		}
	}
	if m.closed {
		return m.AnimateCameraToBounds(area.Bounds, paddingPx, cb)
	}

	if err := m.camera.SetZoomRange(area.MinZoom, area.MaxZoom); err != nil {
		return nil, err
	}
	bounds := area.Bounds
	if err := m.camera.SetBoundsForCameraTarget(&bounds); err != nil {
		return nil, err
	}
	if area.StyleURL != "" && area.StyleURL != m.styleURL {
		if err := m.SetStyle(area.StyleURL, nil); err != nil {
			return nil, err
		}
	}
	m.diag.SetCustomKey("event_area", area.ID)
	return m.AnimateCameraToBounds(area.Bounds, paddingPx, cb)
}

// Close tears the map down. The in-flight animation is cancelled and both listener slots are
// emptied; engine events arriving later are dropped.
func (m *MapControl) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.camera.Close()
	m.events.Reset()
	m.log.Info("map control closed")
}

// OnTap implements ports.EngineEvents.
func (m *MapControl) OnTap(x, y float64) {
	if m.closed {
		return
	}
	metrics.MapEvents.WithLabelValues(string(domain.MapEventClick)).Inc()
	m.events.OnTap(x, y)
}

// OnCameraIdle implements ports.EngineEvents.
func (m *MapControl) OnCameraIdle() {
	if m.closed {
		return
	}
	metrics.MapEvents.WithLabelValues(string(domain.MapEventIdle)).Inc()
	c := m.camera.CameraCenter()
	metrics.CameraTravelMeters.Observe(geo.DistanceHaversine(orb.Point{m.settled.Lng, m.settled.Lat}, orb.Point{c.Lng, c.Lat}))
	m.settled = c
	m.events.OnCameraIdle()
}

func (m *MapControl) track(cb ports.CameraCallback) ports.CameraCallback {
	return CameraCallbackFuncs{
		Finish: func() {
			metrics.CameraAnimations.WithLabelValues(domain.AnimationFinished.String()).Inc()
			if cb != nil {
				cb.OnFinish()
			}
		},
		Cancel: func() {
			metrics.CameraAnimations.WithLabelValues(domain.AnimationCancelled.String()).Inc()
			if cb != nil {
				cb.OnCancel()
			}
		},
	}
}

func (m *MapControl) started(anim *Animation, err error) (*Animation, error) {
	if err == nil && anim.Result() == domain.AnimationPending {
		metrics.CameraAnimations.WithLabelValues("started").Inc()
	}
	return anim, err
}

func validateStyleURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return domain.Invalid("style_url", "must be an absolute URL")
	}
	return nil
}

type nopDiagnostics struct{}

func (nopDiagnostics) RecordException(string, string, string) {}
func (nopDiagnostics) Log(string, string) {}
func (nopDiagnostics) SetCustomKey(string, string) {}
func (nopDiagnostics) SetUserID(string) {}
func (nopDiagnostics) IsCollectionEnabled() bool { return false }
func (nopDiagnostics) SetCollectionEnabled(bool) {}

var _ ports.EngineEvents = (*MapControl)(nil)
