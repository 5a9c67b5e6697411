package ports

import (
	"time"

	"github.com/samirrijal/wavemap/internal/core/domain"
)

// EngineEvents receives events originating in the rendering engine.
// Calls arrive on the owning thread.
type EngineEvents interface {
	OnTap(x, y float64)
	OnCameraIdle()
}

// MapEngine is the narrow primitive interface the core drives the rendering engine through.
// Everything is synchronous except LoadStyle and AnimateCamera, which complete through callbacks
// delivered on the owning thread.
type MapEngine interface {
	// Bind attaches the sink for taps and camera-idle notifications.
	Bind(events EngineEvents)

	LoadStyle(url string, onLoaded func(err error))
	Viewport() domain.Viewport

	SetCamera(pose domain.CameraState)
	// AnimateCamera starts a transition; onComplete fires only if it runs to the end.
	AnimateCamera(pose domain.CameraState, duration time.Duration, onComplete func())
	// CancelAnimation stops any running transition and returns the pose the engine stopped at.
	CancelAnimation() domain.CameraState

	DrawPolygons(polygons []domain.WavePolygon)
	ClearPolygons()
	DrawOverrideBbox(bbox domain.BoundingBox)

	ScreenToGeo(x, y float64) domain.LatLng
	VisibleBounds(pose domain.CameraState) domain.BoundingBox
	SetAttributionMargins(margins domain.Insets)
}
