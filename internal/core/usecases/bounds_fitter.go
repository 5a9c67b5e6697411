package usecases

import (
	"math"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/pkg/geospatial"
)

// BoundsFitter computes the camera pose that frames a bounding box inside a viewport.
type BoundsFitter struct {
	tileSize float64
}

// NewBoundsFitter creates a fitter for a Web Mercator world of tileSize pixels at zoom 0.
func NewBoundsFitter(tileSize float64) *BoundsFitter {
	if tileSize <= 0 {
		tileSize = geospatial.DefaultTileSize
	}
	return &BoundsFitter{tileSize: tileSize}
}

// Fit centres on the midpoint of bbox and picks the largest zoom at which bbox, grown by
// padding pixels on every side, fits the viewport. The zoom is the smaller of the width-
// and height-limited zooms, clamped to the constraints. Degenerate input yields MaxZoom.
func (f *BoundsFitter) Fit(bbox domain.BoundingBox, viewport domain.Viewport, padding float64, c domain.CameraConstraints) domain.CameraState {
	pose := domain.CameraState{Center: bbox.Center()}

	spanX := geospatial.MercatorX(bbox.NE.Lng) - geospatial.MercatorX(bbox.SW.Lng)
	spanY := geospatial.MercatorY(bbox.SW.Lat) - geospatial.MercatorY(bbox.NE.Lat)

	zoomW := geospatial.ZoomForSpan(spanX, viewport.Width-2*padding, f.tileSize)
	zoomH := geospatial.ZoomForSpan(spanY, viewport.Height-2*padding, f.tileSize)

	zoom := math.Min(zoomW, zoomH)
	if math.IsNaN(zoomW) || math.IsNaN(zoomH) || math.IsInf(zoom, 0) {
		pose.Zoom = c.MaxZoom
		return pose
	}

	pose.Zoom = ClampZoom(zoom, c)
	return pose
}

// Footprint returns the pixel size of bbox rendered at zoom.
func (f *BoundsFitter) Footprint(bbox domain.BoundingBox, zoom float64) domain.Viewport {
	world := geospatial.WorldSize(f.tileSize, zoom)
	return domain.Viewport{
		Width:  (geospatial.MercatorX(bbox.NE.Lng) - geospatial.MercatorX(bbox.SW.Lng)) * world,
		Height: (geospatial.MercatorY(bbox.SW.Lat) - geospatial.MercatorY(bbox.NE.Lat)) * world,
	}
}
