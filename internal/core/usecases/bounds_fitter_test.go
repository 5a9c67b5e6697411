package usecases_test

import (
	"math"
	"testing"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/usecases"
)

const fitTolerance = 1e-6

func TestBoundsFitter_UnitBoxExample(t *testing.T) {
	f := usecases.NewBoundsFitter(0)
	c := domain.CameraConstraints{MinZoom: 0, MaxZoom: 22}
	bbox := mustBBox(0, 0, 1, 1)
	vp := domain.Viewport{Width: 100, Height: 100}

	pose := f.Fit(bbox, vp, 0, c)

	if pose.Center != (domain.LatLng{Lat: 0.5, Lng: 0.5}) {
		t.Errorf("centre must be the exact midpoint, got %v", pose.Center)
	}

	fp := f.Footprint(bbox, pose.Zoom)
	if fp.Width > vp.Width+fitTolerance || fp.Height > vp.Height+fitTolerance {
		t.Errorf("footprint %+v exceeds viewport %+v", fp, vp)
	}
	// the limiting side spans the viewport exactly
	if math.Abs(math.Max(fp.Width, fp.Height)-100) > fitTolerance {
		t.Errorf("expected the box to span 100px on its limiting side, got %+v", fp)
	}
}

func TestBoundsFitter_FootprintFitsForAllBoxes(t *testing.T) {
	f := usecases.NewBoundsFitter(512)
	c := domain.CameraConstraints{MinZoom: 0, MaxZoom: 22}

	boxes := []domain.BoundingBox{
		mustBBox(43.2, -3.0, 43.3, -2.8),
		mustBBox(-60, -170, 70, 170),
		mustBBox(10, 10, 10.0001, 10.5),
		mustBBox(-1, -1, 1, 1),
	}
	viewports := []domain.Viewport{{Width: 100, Height: 100}, {Width: 1920, Height: 1080}, {Width: 320, Height: 640}}

	for _, b := range boxes {
		for _, vp := range viewports {
			for _, pad := range []float64{0, 10} {
				pose := f.Fit(b, vp, pad, c)
				if pose.Zoom > c.MaxZoom || pose.Zoom < c.MinZoom {
					t.Errorf("zoom %v outside constraints for %+v", pose.Zoom, b)
				}
				if pose.Zoom == c.MaxZoom || pose.Zoom == c.MinZoom {
					continue
				}
				fp := f.Footprint(b, pose.Zoom)
				if fp.Width > vp.Width-2*pad+fitTolerance || fp.Height > vp.Height-2*pad+fitTolerance {
					t.Errorf("box %+v at zoom %v: footprint %+v exceeds %+v (pad %v)", b, pose.Zoom, fp, vp, pad)
				}
			}
		}
	}
}

func TestBoundsFitter_PaddingLowersZoom(t *testing.T) {
	f := usecases.NewBoundsFitter(0)
	c := domain.CameraConstraints{MinZoom: 0, MaxZoom: 22}
	bbox := mustBBox(43.2, -3.0, 43.3, -2.8)
	vp := domain.Viewport{Width: 400, Height: 400}

	tight := f.Fit(bbox, vp, 0, c)
	padded := f.Fit(bbox, vp, 50, c)
	if !(padded.Zoom < tight.Zoom) {
		t.Errorf("padding should lower zoom: tight %v padded %v", tight.Zoom, padded.Zoom)
	}
}

func TestBoundsFitter_DegenerateFallsBackToMaxZoom(t *testing.T) {
	f := usecases.NewBoundsFitter(0)
	c := domain.CameraConstraints{MinZoom: 2, MaxZoom: 18}
	bbox := mustBBox(0, 0, 1, 1)

	tests := []struct {
		name string
		vp   domain.Viewport
		pad  float64
	}{
		{"zero viewport", domain.Viewport{}, 0},
		{"padding eats viewport", domain.Viewport{Width: 100, Height: 100}, 60},
		{"zero height", domain.Viewport{Width: 100, Height: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pose := f.Fit(bbox, tt.vp, tt.pad, c)
			if pose.Zoom != 18 {
				t.Errorf("expected max zoom 18, got %v", pose.Zoom)
			}
			if math.IsNaN(pose.Zoom) || math.IsInf(pose.Zoom, 0) {
				t.Errorf("non-finite zoom %v", pose.Zoom)
			}
		})
	}

	flat := domain.BoundingBox{SW: domain.LatLng{Lat: 1, Lng: 1}, NE: domain.LatLng{Lat: 1, Lng: 1}}
	if pose := f.Fit(flat, domain.Viewport{Width: 100, Height: 100}, 0, c); pose.Zoom != 18 {
		t.Errorf("zero-area box: expected 18, got %v", pose.Zoom)
	}
}

func TestBoundsFitter_ClampsToConstraints(t *testing.T) {
	f := usecases.NewBoundsFitter(0)
	pose := f.Fit(mustBBox(-80, -179, 80, 179), domain.Viewport{Width: 100, Height: 100}, 0,
		domain.CameraConstraints{MinZoom: 3, MaxZoom: 18})
	if pose.Zoom != 3 {
		t.Errorf("expected min zoom 3 for a world-sized box, got %v", pose.Zoom)
	}
}
