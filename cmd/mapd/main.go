package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/wavemap/internal/adapters/diagnostics"
	"github.com/samirrijal/wavemap/internal/adapters/headless"
	"github.com/samirrijal/wavemap/internal/adapters/http"
	natsadapter "github.com/samirrijal/wavemap/internal/adapters/nats"
	"github.com/samirrijal/wavemap/internal/adapters/postgres"
	"github.com/samirrijal/wavemap/internal/adapters/valkey"
	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
	"github.com/samirrijal/wavemap/internal/core/usecases"
	"github.com/samirrijal/wavemap/internal/pkg/config"
	"github.com/samirrijal/wavemap/internal/pkg/logging"
	"github.com/samirrijal/wavemap/internal/pkg/mainloop"
	"github.com/samirrijal/wavemap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("wavemap-mapd")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	// Diagnostics
	diag := diagnostics.NewReporter(logger, cfg.Diagnostics.Enabled)
	if cfg.Diagnostics.UserID != "" {
		diag.SetUserID(cfg.Diagnostics.UserID)
	}

	deps := &http.Dependencies{}

	// Database (optional: event areas)
	var areaRepo ports.EventAreaRepository
	if db, err := postgres.New(ctx, cfg.Database.DSN()); err != nil {
		slog.Warn("database unavailable, event areas disabled", "error", err)
	} else {
		defer db.Close()
		go db.ReportPoolStats(ctx, 15*time.Second)
		areaRepo = postgres.NewAreaRepo(db)
		deps.DB = db
	}

	// Cache (optional: camera snapshot)
	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, camera snapshots disabled", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
		deps.Cache = cache
	}
	snapshots := usecases.NewSnapshotService(cacheSvc, cfg.Valkey.SnapshotTTL)

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, map events not published", "error", err)
	} else {
		defer pub.Close()
		deps.Events = pub
		deps.NATS = pub.Conn()
	}

	// Owning loop
	loop := mainloop.New(diag, logger)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)
	deps.Loop = loop

	// Engine
	styleTimeout := time.Duration(cfg.Map.StyleTimeout) * time.Second
	engine := headless.New(headless.Config{
		Width:        cfg.Map.Width,
		Height:       cfg.Map.Height,
		TileSize:     cfg.Map.TileSize,
		StyleTimeout: styleTimeout,
	}, loop, headless.SystemClock{}, headless.NewHTTPStyleLoader(styleTimeout, cfg.Map.StyleRetries, logger), logger)
	deps.Tapper = engine

	initial := domain.CameraState{
		Center: domain.LatLng{Lat: cfg.Map.InitialLat, Lng: cfg.Map.InitialLng},
		Zoom:   cfg.Map.InitialZoom,
	}
	if pose, ok := snapshots.Load(ctx); ok {
		slog.Info("resuming camera from snapshot", "lat", pose.Center.Lat, "lng", pose.Center.Lng, "zoom", pose.Zoom)
		initial = pose
	}

	rl := newRelay(deps.Events, snapshots, logger, 5*time.Second)
	relayCtx, stopRelay := context.WithCancel(ctx)
	go rl.run(relayCtx)

	var ctrl *usecases.MapControl
	err = loop.Do(ctx, func() error {
		var err error
		ctrl, err = usecases.NewMapControl(engine, usecases.CameraControllerConfig{
			Initial:           initial,
			Constraints:       domain.CameraConstraints{MinZoom: cfg.Map.MinZoom, MaxZoom: cfg.Map.MaxZoom},
			AnimationDuration: cfg.Map.AnimationDuration(),
			TileSize:          cfg.Map.TileSize,
		}, diag, logger)
		if err != nil {
			return err
		}
		rl.install(ctrl)
		if cfg.Map.StyleURL == "" {
			return nil
		}
		return ctrl.SetStyle(cfg.Map.StyleURL, func(err error) {
			if err != nil {
				slog.Error("initial style failed", "url", cfg.Map.StyleURL, "error", err)
				return
			}
			slog.Info("initial style ready", "url", cfg.Map.StyleURL)
		})
	})
	if err != nil {
		log.Fatalf("map control: %v", err)
	}
	deps.Map = ctrl

	if areaRepo != nil {
		deps.Areas = usecases.NewAreaService(areaRepo, loop, ctrl)
	}

	// Wave polygon feed
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, logger); err != nil {
		slog.Warn("wave feed unavailable", "error", err)
	} else {
		defer sub.Close()
		err := sub.SubscribeWaveBatches(ctx, func(ctx context.Context, batch *domain.WaveBatch) error {
			return loop.Do(ctx, func() error {
				return ctrl.AddWavePolygons(batch.Polygons, batch.ClearExisting)
			})
		})
		if err != nil {
			slog.Warn("wave feed subscribe failed", "error", err)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // wave batches can be large
		AppName:      "Wavemap",
	})
	app.Use(recover.New())

	http.SetupRoutes(app, deps, http.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: 15 * time.Second,
		RateLimit:      600,
	})

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("map daemon starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	final, err := closeMap(shutdownCtx, loop, ctrl)
	stopRelay()
	<-rl.done
	if err != nil {
		slog.Error("map close failed", "error", err)
	} else if err := snapshots.Save(shutdownCtx, final); err != nil {
		slog.Warn("final camera snapshot not saved", "error", err)
	}

	stopLoop()
	<-loop.Done()
	slog.Info("map daemon stopped")
}
