package usecases_test

import (
	"math"
	"testing"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/usecases"
)

func TestClampZoom_RangeAndIdempotence(t *testing.T) {
	c := domain.CameraConstraints{MinZoom: 2, MaxZoom: 18}
	for _, z := range []float64{-100, -1, 0, 1.99, 2, 7.5, 18, 18.01, 25, 1e9, math.Inf(1), math.Inf(-1), math.NaN()} {
		got := usecases.ClampZoom(z, c)
		if got < c.MinZoom || got > c.MaxZoom {
			t.Errorf("ClampZoom(%v) = %v, outside [%v, %v]", z, got, c.MinZoom, c.MaxZoom)
		}
		if again := usecases.ClampZoom(got, c); again != got {
			t.Errorf("ClampZoom not idempotent for %v: %v then %v", z, got, again)
		}
	}
}

func TestClampZoom_NaNMapsToMin(t *testing.T) {
	if got := usecases.ClampZoom(math.NaN(), domain.CameraConstraints{MinZoom: 3, MaxZoom: 9}); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
}

func TestClampCenter(t *testing.T) {
	bounds := mustBBox(0, 0, 10, 10)
	c := domain.CameraConstraints{MinZoom: 0, MaxZoom: 20, TargetBounds: &bounds}

	tests := []struct {
		name string
		in   domain.LatLng
		want domain.LatLng
	}{
		{"inside", domain.LatLng{Lat: 5, Lng: 5}, domain.LatLng{Lat: 5, Lng: 5}},
		{"north-east", domain.LatLng{Lat: 20, Lng: 30}, domain.LatLng{Lat: 10, Lng: 10}},
		{"west only", domain.LatLng{Lat: 5, Lng: -5}, domain.LatLng{Lat: 5, Lng: 0}},
		{"on edge", domain.LatLng{Lat: 0, Lng: 10}, domain.LatLng{Lat: 0, Lng: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usecases.ClampCenter(tt.in, c); got != tt.want {
				t.Errorf("ClampCenter(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	free := domain.LatLng{Lat: 80, Lng: 170}
	if got := usecases.ClampCenter(free, domain.CameraConstraints{MaxZoom: 20}); got != free {
		t.Errorf("unbounded centre moved to %v", got)
	}
}

func TestConstraintEnforcer_RejectsInvertedRange(t *testing.T) {
	if _, err := usecases.NewConstraintEnforcer(domain.CameraConstraints{MinZoom: 10, MaxZoom: 5}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	e, err := usecases.NewConstraintEnforcer(domain.CameraConstraints{MinZoom: 2, MaxZoom: 18})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.SetMinZoom(19); !domain.IsValidation(err) {
		t.Errorf("SetMinZoom(19): expected validation error, got %v", err)
	}
	err = e.SetMaxZoom(1)
	var ve *domain.ValidationError
	if !asValidation(err, &ve) || ve.Field != "max_zoom" {
		t.Errorf("SetMaxZoom(1): expected max_zoom validation error, got %v", err)
	}
	if got := e.Constraints(); got.MinZoom != 2 || got.MaxZoom != 18 {
		t.Errorf("prior constraints must stay in effect, got %+v", got)
	}

	if err := e.SetZoomRange(20, 22); err != nil {
		t.Errorf("SetZoomRange(20, 22): %v", err)
	}
	if got := e.ClampZoom(5); got != 20 {
		t.Errorf("expected 20, got %v", got)
	}
}

func TestConstraintEnforcer_TargetBounds(t *testing.T) {
	e, _ := usecases.NewConstraintEnforcer(domain.CameraConstraints{MinZoom: 0, MaxZoom: 20})

	bad := domain.BoundingBox{SW: domain.LatLng{Lat: 5, Lng: 5}, NE: domain.LatLng{Lat: 1, Lng: 1}}
	if err := e.SetTargetBounds(&bad); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if e.Constraints().TargetBounds != nil {
		t.Fatal("malformed bounds must not be stored")
	}

	b := mustBBox(40, -5, 45, 0)
	if err := e.SetTargetBounds(&b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.NE.Lat = 89 // caller's copy must not leak in
	got := e.Clamp(domain.CameraState{Center: domain.LatLng{Lat: 50, Lng: 3}, Zoom: 30})
	want := domain.CameraState{Center: domain.LatLng{Lat: 45, Lng: 0}, Zoom: 20}
	if got != want {
		t.Errorf("Clamp = %+v, want %+v", got, want)
	}

	if err := e.SetTargetBounds(nil); err != nil || e.Constraints().TargetBounds != nil {
		t.Errorf("nil should lift the restriction (err=%v)", err)
	}
}

func asValidation(err error, target **domain.ValidationError) bool {
	ve, ok := err.(*domain.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}
