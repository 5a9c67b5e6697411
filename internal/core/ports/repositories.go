package ports

import (
	"context"

	"github.com/samirrijal/wavemap/internal/core/domain"
)

// EventAreaRepository persists event areas.
type EventAreaRepository interface {
	Upsert(ctx context.Context, area *domain.EventArea) error
	GetByID(ctx context.Context, id string) (*domain.EventArea, error)
	List(ctx context.Context) ([]domain.EventArea, error)
}
