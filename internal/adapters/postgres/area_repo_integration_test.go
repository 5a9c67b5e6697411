//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/samirrijal/wavemap/internal/adapters/postgres"
	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/pkg/config"
)

func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("wavemap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	schema, err := os.ReadFile("../../../migrations/001_event_areas.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func TestAreaRepo_UpsertGetList(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewAreaRepo(db)
	ctx := context.Background()

	id := "it-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM event_areas WHERE id = $1`, id)
	})

	bounds, _ := domain.NewBoundingBox(43.2, -3.0, 43.3, -2.9)
	area := &domain.EventArea{
		ID:        id,
		Name:      "Bilbao",
		StyleURL:  "https://tiles.example.com/style.json",
		Bounds:    bounds,
		MinZoom:   10,
		MaxZoom:   16,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := repo.Upsert(ctx, area); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	area.Name = "Bilbao Centro"
	area.MaxZoom = 17
	if err := repo.Upsert(ctx, area); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected area, got nil")
	}
	if got.Name != "Bilbao Centro" || got.MaxZoom != 17 {
		t.Errorf("expected updated area, got %+v", got)
	}
	if got.Bounds != bounds {
		t.Errorf("expected bounds %+v, got %+v", bounds, got.Bounds)
	}

	areas, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, a := range areas {
		if a.ID == id {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in list", id)
	}
}

func TestAreaRepo_GetMissing(t *testing.T) {
	repo := postgres.NewAreaRepo(setupTestDB(t))

	got, err := repo.GetByID(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil area, got %+v", got)
	}
}
