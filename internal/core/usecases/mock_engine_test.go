package usecases_test

import (
	"context"
	"time"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
)

// --- Mock MapEngine ---

type animateCall struct {
	pose       domain.CameraState
	duration   time.Duration
	onComplete func()
}

type mockEngine struct {
	viewport domain.Viewport
	events   ports.EngineEvents

	setCameraCalls []domain.CameraState
	animateCalls   []animateCall
	cancelCalls    int
	drawCalls      [][]domain.WavePolygon
	clearCalls     int
	overrideCalls  []domain.BoundingBox
	margins        []domain.Insets
	styleCalls     []string

	// cancelPose is returned by CancelAnimation; nil returns the last animation target.
	cancelPose  *domain.CameraState
	onLoadStyle func(url string, onLoaded func(error))
	screenToGeo func(x, y float64) domain.LatLng
}

func newMockEngine() *mockEngine {
	return &mockEngine{viewport: domain.Viewport{Width: 100, Height: 100}}
}

func (m *mockEngine) Bind(events ports.EngineEvents) { m.events = events }

func (m *mockEngine) LoadStyle(url string, onLoaded func(error)) {
	m.styleCalls = append(m.styleCalls, url)
	if m.onLoadStyle != nil {
		m.onLoadStyle(url, onLoaded)
		return
	}
	onLoaded(nil)
}

func (m *mockEngine) Viewport() domain.Viewport { return m.viewport }

func (m *mockEngine) SetCamera(pose domain.CameraState) {
	m.setCameraCalls = append(m.setCameraCalls, pose)
}

func (m *mockEngine) AnimateCamera(pose domain.CameraState, d time.Duration, onComplete func()) {
	m.animateCalls = append(m.animateCalls, animateCall{pose: pose, duration: d, onComplete: onComplete})
}

func (m *mockEngine) CancelAnimation() domain.CameraState {
	m.cancelCalls++
	if m.cancelPose != nil {
		return *m.cancelPose
	}
	return m.lastAnimate().pose
}

func (m *mockEngine) DrawPolygons(polygons []domain.WavePolygon) {
	m.drawCalls = append(m.drawCalls, polygons)
}

func (m *mockEngine) ClearPolygons() { m.clearCalls++ }

func (m *mockEngine) DrawOverrideBbox(bbox domain.BoundingBox) {
	m.overrideCalls = append(m.overrideCalls, bbox)
}

func (m *mockEngine) ScreenToGeo(x, y float64) domain.LatLng {
	if m.screenToGeo != nil {
		return m.screenToGeo(x, y)
	}
	return domain.LatLng{Lat: y, Lng: x}
}

func (m *mockEngine) VisibleBounds(pose domain.CameraState) domain.BoundingBox {
	return domain.BoundingBox{
		SW: domain.LatLng{Lat: pose.Center.Lat - 1, Lng: pose.Center.Lng - 1},
		NE: domain.LatLng{Lat: pose.Center.Lat + 1, Lng: pose.Center.Lng + 1},
	}
}

func (m *mockEngine) SetAttributionMargins(in domain.Insets) { m.margins = append(m.margins, in) }

func (m *mockEngine) lastAnimate() animateCall {
	if len(m.animateCalls) == 0 {
		return animateCall{}
	}
	return m.animateCalls[len(m.animateCalls)-1]
}

// finish completes the most recent engine animation.
func (m *mockEngine) finish() {
	m.lastAnimate().onComplete()
}

// --- Mock CameraCallback ---

type recordingCallback struct {
	log *[]string
	tag string
}

func (c recordingCallback) OnFinish() { *c.log = append(*c.log, c.tag+":finish") }
func (c recordingCallback) OnCancel() { *c.log = append(*c.log, c.tag+":cancel") }

// --- Synchronous MainThread ---

type syncThread struct{}

func (syncThread) Post(fn func()) bool {
	fn()
	return true
}

func (syncThread) Do(_ context.Context, fn func() error) error { return fn() }

// --- Mock Diagnostics ---

type mockDiagnostics struct {
	exceptions []string
	keys       map[string]string
}

func (d *mockDiagnostics) RecordException(message, tag, _ string) {
	d.exceptions = append(d.exceptions, tag+":"+message)
}

func (d *mockDiagnostics) SetCustomKey(key, value string) {
	if d.keys == nil {
		d.keys = map[string]string{}
	}
	d.keys[key] = value
}

func (d *mockDiagnostics) Log(string, string) {}
func (d *mockDiagnostics) SetUserID(string) {}
func (d *mockDiagnostics) IsCollectionEnabled() bool { return true }
func (d *mockDiagnostics) SetCollectionEnabled(bool) {}

func mustBBox(swLat, swLng, neLat, neLng float64) domain.BoundingBox {
	b, err := domain.NewBoundingBox(swLat, swLng, neLat, neLng)
	if err != nil {
		panic(err)
	}
	return b
}

func triangle(lat, lng float64) domain.WavePolygon {
	return domain.WavePolygon{Vertices: []domain.LatLng{
		{Lat: lat, Lng: lng},
		{Lat: lat + 0.01, Lng: lng},
		{Lat: lat, Lng: lng + 0.01},
	}}
}
