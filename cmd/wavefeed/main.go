package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/wavemap/internal/adapters/nats"
	"github.com/samirrijal/wavemap/internal/adapters/postgres"
	"github.com/samirrijal/wavemap/internal/pkg/config"
	"github.com/samirrijal/wavemap/internal/pkg/logging"
)

// wavefeed registers event areas and publishes their wave frames to the map daemon.
//
//	wavefeed [manifest.json] [poll interval]
func main() {
	cfg, err := config.Load("wavemap-wavefeed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	pollInterval := 30 * time.Second
	if len(os.Args) > 2 {
		d, err := time.ParseDuration(os.Args[2])
		if err != nil || d <= 0 {
			log.Fatalf("invalid poll interval %q", os.Args[2])
		}
		pollInterval = d
	}

	manifest, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	slog.Info("wave feed starting", "areas", len(manifest.Areas), "source", manifest.Source)

	// Areas are registered once per run.
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Warn("database unavailable, areas not registered", "error", err)
	} else {
		repo := postgres.NewAreaRepo(db)
		for i := range manifest.Areas {
			area := manifest.Areas[i].EventArea
			if err := repo.Upsert(ctx, &area); err != nil {
				slog.Error("upsert area failed", "area", area.ID, "error", err)
				continue
			}
			slog.Info("area registered", "area", area.ID, "name", area.Name)
		}
		db.Close()
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	var feeds []AreaEntry
	for _, a := range manifest.Areas {
		if a.WavesURL != "" {
			feeds = append(feeds, a)
		}
	}
	if len(feeds) == 0 {
		slog.Info("no wave feeds configured")
		return
	}

	fetchers := make(map[string]*frameFetcher, len(feeds))
	for _, a := range feeds {
		fetchers[a.ID] = newFrameFetcher(20 * time.Second)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("polling wave frames", "feeds", len(feeds), "interval", pollInterval)
	pollAll(ctx, pub, fetchers, feeds)

	for {
		select {
		case <-ticker.C:
			pollAll(ctx, pub, fetchers, feeds)
		case sig := <-quit:
			slog.Info("shutting down wave feed", "signal", sig.String())
			return
		}
	}
}

func pollAll(ctx context.Context, pub *natsadapter.Publisher, fetchers map[string]*frameFetcher, feeds []AreaEntry) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, 4)

	for _, area := range feeds {
		wg.Add(1)
		go func(a AreaEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := pollArea(ctx, pub, fetchers[a.ID], a); err != nil {
				slog.Error("wave frame failed", "area", a.ID, "error", err)
			}
		}(area)
	}
	wg.Wait()
}

func pollArea(ctx context.Context, pub *natsadapter.Publisher, f *frameFetcher, a AreaEntry) error {
	fc, err := f.fetch(a.WavesURL)
	if err != nil {
		return err
	}
	if fc == nil {
		return nil
	}

	// Each frame replaces the previous one.
	batch, err := natsadapter.BatchFromFeatures(fc, true)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pub.PublishWaveBatch(ctx, batch); err != nil {
		return err
	}
	slog.Debug("wave frame published", "area", a.ID, "polygons", len(batch.Polygons))
	return nil
}
