package usecases

import (
	"fmt"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
)

// OverlayManager owns the ordered set of wave polygons and the override debug bbox.
type OverlayManager struct {
	engine   ports.MapEngine
	polygons []domain.WavePolygon
	override *domain.BoundingBox
}

// NewOverlayManager creates an empty overlay set.
func NewOverlayManager(engine ports.MapEngine) *OverlayManager {
	return &OverlayManager{engine: engine}
}

// AddWavePolygons replaces the set (clearExisting) or appends to it. The batch is validated
// up front; one bad polygon rejects the whole call and leaves the set untouched.
func (m *OverlayManager) AddWavePolygons(polygons []domain.WavePolygon, clearExisting bool) error {
	accepted := make([]domain.WavePolygon, len(polygons))
	for i, p := range polygons {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("polygon %d: %w", i, err)
		}
		accepted[i] = p.Clone()
	}

	if clearExisting {
		m.polygons = nil
		m.engine.ClearPolygons()
	}
	if len(accepted) == 0 {
		return nil
	}

	m.polygons = append(m.polygons, accepted...)
	m.engine.DrawPolygons(accepted)
	return nil
}

// ClearWavePolygons empties the set.
func (m *OverlayManager) ClearWavePolygons() {
	m.polygons = nil
	m.engine.ClearPolygons()
}

// DrawOverrideBbox shows bbox as the single debug rectangle, replacing any previous one.
func (m *OverlayManager) DrawOverrideBbox(bbox domain.BoundingBox) error {
	if err := bbox.Validate(); err != nil {
		return err
	}
	m.override = &bbox
	m.engine.DrawOverrideBbox(bbox)
	return nil
}

// Count returns the number of wave polygons.
func (m *OverlayManager) Count() int {
	return len(m.polygons)
}

// Polygons returns a copy of the set in render order.
func (m *OverlayManager) Polygons() []domain.WavePolygon {
	out := make([]domain.WavePolygon, len(m.polygons))
	for i, p := range m.polygons {
		out[i] = p.Clone()
	}
	return out
}

// OverrideBbox returns the current debug rectangle, if one is drawn.
func (m *OverlayManager) OverrideBbox() (domain.BoundingBox, bool) {
	if m.override == nil {
		return domain.BoundingBox{}, false
	}
	return *m.override, true
}
