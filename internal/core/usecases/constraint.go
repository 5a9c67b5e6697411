package usecases

import (
	"math"

	"github.com/samirrijal/wavemap/internal/core/domain"
)

// ClampZoom limits zoom to [MinZoom, MaxZoom]. NaN maps to MinZoom.
func ClampZoom(zoom float64, c domain.CameraConstraints) float64 {
	if math.IsNaN(zoom) {
		return c.MinZoom
	}
	return math.Max(c.MinZoom, math.Min(c.MaxZoom, zoom))
}

// ClampCenter moves center to the nearest point inside TargetBounds, if any are configured.
func ClampCenter(center domain.LatLng, c domain.CameraConstraints) domain.LatLng {
	if c.TargetBounds == nil {
		return center
	}
	b := c.TargetBounds
	return domain.LatLng{
		Lat: math.Max(b.SW.Lat, math.Min(b.NE.Lat, center.Lat)),
		Lng: math.Max(b.SW.Lng, math.Min(b.NE.Lng, center.Lng)),
	}
}

// ConstraintEnforcer owns the camera constraints and clamps requests against them.
type ConstraintEnforcer struct {
	constraints domain.CameraConstraints
}

// NewConstraintEnforcer validates the initial constraints.
func NewConstraintEnforcer(c domain.CameraConstraints) (*ConstraintEnforcer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.TargetBounds != nil {
		b := *c.TargetBounds
		c.TargetBounds = &b
	}
	return &ConstraintEnforcer{constraints: c}, nil
}

// Constraints returns a copy of the active constraints.
func (e *ConstraintEnforcer) Constraints() domain.CameraConstraints {
	c := e.constraints
	if c.TargetBounds != nil {
		b := *c.TargetBounds
		c.TargetBounds = &b
	}
	return c
}

// SetMinZoom fails when z is not finite or exceeds the current maximum.
func (e *ConstraintEnforcer) SetMinZoom(z float64) error {
	next := e.constraints
	next.MinZoom = z
	if err := next.Validate(); err != nil {
		return err
	}
	e.constraints = next
	return nil
}

// SetMaxZoom fails when z is not finite or below the current minimum.
func (e *ConstraintEnforcer) SetMaxZoom(z float64) error {
	next := e.constraints
	next.MaxZoom = z
	if err := next.Validate(); err != nil {
		if ve, ok := err.(*domain.ValidationError); ok && ve.Field == "min_zoom" {
			return domain.Invalid("max_zoom", "must not be below min_zoom")
		}
		return err
	}
	e.constraints = next
	return nil
}

// SetZoomRange replaces both limits at once, so a range may move past the current one.
func (e *ConstraintEnforcer) SetZoomRange(minZoom, maxZoom float64) error {
	next := e.constraints
	next.MinZoom, next.MaxZoom = minZoom, maxZoom
	if err := next.Validate(); err != nil {
		return err
	}
	e.constraints = next
	return nil
}

// SetTargetBounds restricts the camera target to bbox; nil lifts the restriction.
func (e *ConstraintEnforcer) SetTargetBounds(bbox *domain.BoundingBox) error {
	if bbox == nil {
		e.constraints.TargetBounds = nil
		return nil
	}
	if err := bbox.Validate(); err != nil {
		return err
	}
	b := *bbox
	e.constraints.TargetBounds = &b
	return nil
}

// ClampZoom clamps against the active constraints.
func (e *ConstraintEnforcer) ClampZoom(zoom float64) float64 {
	return ClampZoom(zoom, e.constraints)
}

// Clamp applies both the zoom range and the pan restriction to a pose.
func (e *ConstraintEnforcer) Clamp(pose domain.CameraState) domain.CameraState {
	return domain.CameraState{
		Center: ClampCenter(pose.Center, e.constraints),
		Zoom:   ClampZoom(pose.Zoom, e.constraints),
	}
}
