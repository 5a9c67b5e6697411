package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"go.opentelemetry.io/otel"

	"github.com/samirrijal/wavemap/internal/pkg/metrics"
)

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	CORSOrigins    string
	RequestTimeout time.Duration
	RateLimit      int // requests per minute per IP; 0 disables
	OpenAPIPath    string
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies, cfg RouterConfig) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "*"
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	// Request ID, then a request-scoped logger and trace context
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware(otel.GetTextMapPropagator()))
	app.Use(AccessLogMiddleware())

	if cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	t := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, cfg.RequestTimeout)
	}

	v1 := app.Group("/v1")
	v1.Get("/camera", t(GetCameraHandler(deps)))
	v1.Post("/camera/move", t(MoveCameraHandler(deps)))
	v1.Post("/camera/animate", t(AnimateCameraHandler(deps)))
	v1.Post("/camera/animate-bounds", t(AnimateBoundsHandler(deps)))
	v1.Put("/camera/constraints", t(ConstraintsHandler(deps)))
	v1.Post("/style", t(SetStyleHandler(deps)))
	v1.Put("/attribution-margins", t(AttributionMarginsHandler(deps)))
	v1.Get("/overlays", t(ListOverlaysHandler(deps)))
	v1.Post("/overlays", t(AddOverlaysHandler(deps)))
	v1.Delete("/overlays", t(ClearOverlaysHandler(deps)))
	v1.Put("/overlays/override-bbox", t(OverrideBboxHandler(deps)))
	v1.Get("/areas", t(ListAreasHandler(deps)))
	v1.Put("/areas/:id", t(UpsertAreaHandler(deps)))
	v1.Post("/areas/:id/focus", t(FocusAreaHandler(deps)))
	v1.Post("/simulate/tap", t(SimulateTapHandler(deps)))

	app.Post("/graphql", t(GraphQLHandler(deps)))

	SetupDocs(app, cfg.OpenAPIPath)

	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS, deps.Tapper)))
	}
}
