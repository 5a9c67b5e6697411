package domain

import (
	"math"

	"github.com/paulmach/orb"
)

// LatLng represents a geographic coordinate (WGS 84).
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinate is finite and inside the WGS 84 range.
func (p LatLng) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return invalid("lat", "must be a finite value in [-90, 90]")
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) || p.Lng < -180 || p.Lng > 180 {
		return invalid("lng", "must be a finite value in [-180, 180]")
	}
	return nil
}

// Viewport is the pixel size of the drawing surface.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CameraState is a camera pose.
type CameraState struct {
	Center LatLng  `json:"center"`
	Zoom   float64 `json:"zoom"`
}

// BoundingBox is an axis-aligned geographic rectangle.
// A well-formed box has SW strictly south-west of NE.
type BoundingBox struct {
	SW LatLng `json:"sw"`
	NE LatLng `json:"ne"`
}

// NewBoundingBox builds a well-formed bounding box or fails with a ValidationError.
func NewBoundingBox(swLat, swLng, neLat, neLng float64) (BoundingBox, error) {
	b := BoundingBox{
		SW: LatLng{Lat: swLat, Lng: swLng},
		NE: LatLng{Lat: neLat, Lng: neLng},
	}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// Validate re-checks a box that was built without NewBoundingBox.
func (b BoundingBox) Validate() error {
	if err := b.SW.Validate(); err != nil {
		return invalid("bbox.sw", err.(*ValidationError).Reason)
	}
	if err := b.NE.Validate(); err != nil {
		return invalid("bbox.ne", err.(*ValidationError).Reason)
	}
	if !(b.SW.Lat < b.NE.Lat) {
		return invalid("bbox", "south-west latitude must be strictly less than north-east latitude")
	}
	if !(b.SW.Lng < b.NE.Lng) {
		return invalid("bbox", "south-west longitude must be strictly less than north-east longitude")
	}
	return nil
}

// Center returns the arithmetic midpoint of the box.
func (b BoundingBox) Center() LatLng {
	return LatLng{
		Lat: (b.SW.Lat + b.NE.Lat) / 2,
		Lng: (b.SW.Lng + b.NE.Lng) / 2,
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p LatLng) bool {
	return p.Lat >= b.SW.Lat && p.Lat <= b.NE.Lat &&
		p.Lng >= b.SW.Lng && p.Lng <= b.NE.Lng
}

// ZoomOption is either "keep the current zoom" or an explicit zoom level.
type ZoomOption struct {
	value float64
	set   bool
}

// KeepZoom retains the camera's current zoom.
var KeepZoom = ZoomOption{}

// ZoomTo requests an explicit zoom level.
func ZoomTo(z float64) ZoomOption {
	return ZoomOption{value: z, set: true}
}

// Get returns the requested zoom and whether one was set.
func (o ZoomOption) Get() (float64, bool) {
	return o.value, o.set
}

// Or returns the requested zoom, or current when none was set.
func (o ZoomOption) Or(current float64) float64 {
	if o.set {
		return o.value
	}
	return current
}

// Validate rejects non-finite explicit zoom values.
func (o ZoomOption) Validate() error {
	if o.set && (math.IsNaN(o.value) || math.IsInf(o.value, 0)) {
		return invalid("zoom", "must be finite")
	}
	return nil
}

// CameraConstraints are the limits every camera mutation is clamped against.
type CameraConstraints struct {
	MinZoom      float64      `json:"min_zoom"`
	MaxZoom      float64      `json:"max_zoom"`
	TargetBounds *BoundingBox `json:"target_bounds,omitempty"`
}

// Validate checks the zoom range and the optional target bounds.
func (c CameraConstraints) Validate() error {
	if math.IsNaN(c.MinZoom) || math.IsInf(c.MinZoom, 0) {
		return invalid("min_zoom", "must be finite")
	}
	if math.IsNaN(c.MaxZoom) || math.IsInf(c.MaxZoom, 0) {
		return invalid("max_zoom", "must be finite")
	}
	if c.MinZoom > c.MaxZoom {
		return invalid("min_zoom", "must not exceed max_zoom")
	}
	if c.TargetBounds != nil {
		return c.TargetBounds.Validate()
	}
	return nil
}

// Insets are pixel margins, used for the attribution control.
type Insets struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// WavePolygon is an ordered ring of vertices drawn as one overlay.
// The ring is implicitly closed; the last vertex is not repeated.
type WavePolygon struct {
	Vertices []LatLng `json:"vertices"`
}

// MinPolygonVertices is the smallest vertex count a WavePolygon may have.
const MinPolygonVertices = 3

// Validate checks vertex count and every vertex.
func (w WavePolygon) Validate() error {
	if len(w.Vertices) < MinPolygonVertices {
		return invalid("polygon", "needs at least 3 vertices")
	}
	for _, v := range w.Vertices {
		if err := v.Validate(); err != nil {
			return invalid("polygon.vertex", err.(*ValidationError).Reason)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (w WavePolygon) Clone() WavePolygon {
	return WavePolygon{Vertices: append([]LatLng(nil), w.Vertices...)}
}

// Ring converts the polygon to a closed orb ring.
func (w WavePolygon) Ring() orb.Ring {
	ring := make(orb.Ring, 0, len(w.Vertices)+1)
	for _, v := range w.Vertices {
		ring = append(ring, orb.Point{v.Lng, v.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring
}

// Bound returns the polygon's bounding rectangle.
func (w WavePolygon) Bound() orb.Bound {
	return w.Ring().Bound()
}

// WavePolygonFromRing converts an orb ring; a closing vertex equal to the first is dropped.
func WavePolygonFromRing(r orb.Ring) WavePolygon {
	pts := []orb.Point(r)
	if len(pts) > 1 && pts[0].Equal(pts[len(pts)-1]) {
		pts = pts[:len(pts)-1]
	}
	vertices := make([]LatLng, len(pts))
	for i, p := range pts {
		vertices[i] = LatLng{Lat: p.Lat(), Lng: p.Lon()}
	}
	return WavePolygon{Vertices: vertices}
}
