package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
)

// AreaRepo implements ports.EventAreaRepository.
type AreaRepo struct {
	db *DB
}

func NewAreaRepo(db *DB) *AreaRepo {
	return &AreaRepo{db: db}
}

const areaColumns = `id, name, style_url, sw_lat, sw_lng, ne_lat, ne_lng, min_zoom, max_zoom, created_at`

func (r *AreaRepo) Upsert(ctx context.Context, a *domain.EventArea) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO event_areas (id, name, style_url, sw_lat, sw_lng, ne_lat, ne_lng, min_zoom, max_zoom, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			style_url = EXCLUDED.style_url,
			sw_lat = EXCLUDED.sw_lat, sw_lng = EXCLUDED.sw_lng,
			ne_lat = EXCLUDED.ne_lat, ne_lng = EXCLUDED.ne_lng,
			min_zoom = EXCLUDED.min_zoom, max_zoom = EXCLUDED.max_zoom,
			updated_at = now()
	`, a.ID, a.Name, a.StyleURL,
		a.Bounds.SW.Lat, a.Bounds.SW.Lng, a.Bounds.NE.Lat, a.Bounds.NE.Lng,
		a.MinZoom, a.MaxZoom, a.CreatedAt)
	return err
}

// GetByID returns (nil, nil) when no area has id.
func (r *AreaRepo) GetByID(ctx context.Context, id string) (*domain.EventArea, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+areaColumns+` FROM event_areas WHERE id = $1`, id)
	a, err := scanArea(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan area %s: %w", id, err)
	}
	return &a, nil
}

func (r *AreaRepo) List(ctx context.Context) ([]domain.EventArea, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+areaColumns+` FROM event_areas ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var areas []domain.EventArea
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

func scanArea(row pgx.Row) (domain.EventArea, error) {
	var a domain.EventArea
	err := row.Scan(&a.ID, &a.Name, &a.StyleURL,
		&a.Bounds.SW.Lat, &a.Bounds.SW.Lng, &a.Bounds.NE.Lat, &a.Bounds.NE.Lng,
		&a.MinZoom, &a.MaxZoom, &a.CreatedAt)
	return a, err
}

var _ ports.EventAreaRepository = (*AreaRepo)(nil)
