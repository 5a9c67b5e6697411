package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
)

// AreaService focuses the map on stored event areas.
type AreaService struct {
	areas ports.EventAreaRepository
	loop  ports.MainThread
	ctrl  *MapControl
}

// NewAreaService creates a new AreaService. ctrl is only touched on loop.
func NewAreaService(areas ports.EventAreaRepository, loop ports.MainThread, ctrl *MapControl) *AreaService {
	return &AreaService{areas: areas, loop: loop, ctrl: ctrl}
}

// Focus loads the area, then on the owning thread constrains the camera to it and starts
// framing it. The returned animation may still be in flight.
func (s *AreaService) Focus(ctx context.Context, areaID string, paddingPx int, cb ports.CameraCallback) (*domain.EventArea, *Animation, error) {
	if areaID == "" {
		return nil, nil, domain.Invalid("id", "is required")
	}
	area, err := s.areas.GetByID(ctx, areaID)
	if err != nil {
		return nil, nil, fmt.Errorf("get area: %w", err)
	}
	if area == nil {
		return nil, nil, domain.ErrAreaNotFound
	}

	var anim *Animation
	err = s.loop.Do(ctx, func() error {
		var err error
		anim, err = s.ctrl.ApplyArea(*area, paddingPx, cb)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return area, anim, nil
}

// List returns every stored area.
func (s *AreaService) List(ctx context.Context) ([]domain.EventArea, error) {
	return s.areas.List(ctx)
}

// Upsert validates and stores an area.
func (s *AreaService) Upsert(ctx context.Context, area *domain.EventArea) error {
	if err := area.Validate(); err != nil {
		return err
	}
	if area.CreatedAt.IsZero() {
		area.CreatedAt = time.Now().UTC()
	}
	if err := s.areas.Upsert(ctx, area); err != nil {
		return fmt.Errorf("upsert area %s: %w", area.ID, err)
	}
	return nil
}

// IsNotFound reports whether err means the requested area does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrAreaNotFound)
}
