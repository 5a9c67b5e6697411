package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/usecases"
	"github.com/samirrijal/wavemap/internal/pkg/mainloop"
	"github.com/samirrijal/wavemap/internal/pkg/telemetry"
)

// CameraView is the JSON form of the map's camera state.
type CameraView struct {
	Center             domain.LatLng       `json:"center"`
	Zoom               float64             `json:"zoom"`
	MinZoom            float64             `json:"min_zoom"`
	MaxZoom            float64             `json:"max_zoom"`
	TargetBounds       *domain.BoundingBox `json:"target_bounds,omitempty"`
	VisibleBounds      domain.BoundingBox  `json:"visible_bounds"`
	Viewport           domain.Viewport     `json:"viewport"`
	Animating          bool                `json:"animating"`
	StyleURL           string              `json:"style_url,omitempty"`
	AttributionMargins domain.Insets       `json:"attribution_margins"`
}

// AnimationView describes a started animation.
type AnimationView struct {
	AnimationID string             `json:"animation_id"`
	Target      domain.CameraState `json:"target"`
	Result      string             `json:"result"`
}

// OverlayView lists the overlays currently drawn.
type OverlayView struct {
	Count        int                  `json:"count"`
	Polygons     []domain.WavePolygon `json:"polygons"`
	OverrideBbox *domain.BoundingBox  `json:"override_bbox,omitempty"`
}

func cameraView(m *usecases.MapControl) CameraView {
	cons := m.Constraints()
	return CameraView{
		Center:             m.CameraCenter(),
		Zoom:               m.Zoom(),
		MinZoom:            cons.MinZoom,
		MaxZoom:            cons.MaxZoom,
		TargetBounds:       cons.TargetBounds,
		VisibleBounds:      m.VisibleBounds(),
		Viewport:           domain.Viewport{Width: m.Width(), Height: m.Height()},
		Animating:          m.IsAnimating(),
		StyleURL:           m.StyleURL(),
		AttributionMargins: m.AttributionMargins(),
	}
}

// traced starts a span for a handler operation.
func traced(c *fiber.Ctx, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(c.UserContext(), name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// onLoop runs fn on the owning loop inside a span named name.
func onLoop(c *fiber.Ctx, deps *Dependencies, name string, fn func() error) error {
	ctx, span := traced(c, name)
	err := deps.Loop.Do(ctx, fn)
	endSpan(span, err)
	return err
}

func zoomOption(z *float64) domain.ZoomOption {
	if z == nil {
		return domain.KeepZoom
	}
	return domain.ZoomTo(*z)
}

// watchAnimation publishes the animation's outcome and forwards it on the returned channel.
func watchAnimation(deps *Dependencies, anim *usecases.Animation) <-chan domain.AnimationResult {
	out := make(chan domain.AnimationResult, 1)
	go func() {
		r := <-anim.Done()
		out <- r
		if deps.Events == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		target := anim.Target()
		err := deps.Events.PublishMapEvent(ctx, &domain.MapEvent{
			Type:        domain.MapEventAnimation,
			AnimationID: anim.ID(),
			Result:      r.String(),
			Latitude:    target.Center.Lat,
			Longitude:   target.Center.Lng,
			Zoom:        target.Zoom,
		})
		if err != nil {
			slog.Warn("publish animation event failed", "animation_id", anim.ID(), "error", err)
		}
	}()
	return out
}

// respondAnimation answers 202 with the animation, or with ?wait=true blocks until it
// resolves and answers 200.
func respondAnimation(c *fiber.Ctx, deps *Dependencies, anim *usecases.Animation, initial domain.AnimationResult, extra fiber.Map) error {
	result := watchAnimation(deps, anim)
	view := AnimationView{AnimationID: anim.ID(), Target: anim.Target(), Result: initial.String()}

	status := fiber.StatusAccepted
	if c.QueryBool("wait", false) {
		select {
		case r := <-result:
			view.Result = r.String()
			status = fiber.StatusOK
		case <-c.UserContext().Done():
			return respondError(c, c.UserContext().Err())
		}
	}

	if extra == nil {
		return c.Status(status).JSON(view)
	}
	extra["animation"] = view
	return c.Status(status).JSON(extra)
}

// GetCameraHandler returns the committed camera state.
func GetCameraHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var view CameraView
		err := onLoop(c, deps, "camera.get", func() error {
			view = cameraView(deps.Map)
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	}
}

type cameraTargetRequest struct {
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
	Zoom *float64 `json:"zoom"`
}

func (r cameraTargetRequest) validate() error {
	if r.Lat == nil {
		return domain.Invalid("lat", "is required")
	}
	if r.Lng == nil {
		return domain.Invalid("lng", "is required")
	}
	return nil
}

// MoveCameraHandler jumps the camera. A missing zoom keeps the current one.
func MoveCameraHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req cameraTargetRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := req.validate(); err != nil {
			return respondError(c, err)
		}

		var view CameraView
		err := onLoop(c, deps, "camera.move", func() error {
			if err := deps.Map.MoveCamera(*req.Lat, *req.Lng, zoomOption(req.Zoom)); err != nil {
				return err
			}
			view = cameraView(deps.Map)
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	}
}

// AnimateCameraHandler starts an animated transition.
func AnimateCameraHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req cameraTargetRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := req.validate(); err != nil {
			return respondError(c, err)
		}

		var (
			anim    *usecases.Animation
			initial domain.AnimationResult
		)
		err := onLoop(c, deps, "camera.animate", func() error {
			var err error
			anim, err = deps.Map.AnimateCamera(*req.Lat, *req.Lng, zoomOption(req.Zoom), nil)
			if err != nil {
				return err
			}
			initial = anim.Result()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return respondAnimation(c, deps, anim, initial, nil)
	}
}

type animateBoundsRequest struct {
	Bounds  domain.BoundingBox `json:"bounds"`
	Padding int                `json:"padding"`
}

// AnimateBoundsHandler animates the camera to frame a bounding box.
func AnimateBoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req animateBoundsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		var (
			anim    *usecases.Animation
			initial domain.AnimationResult
		)
		err := onLoop(c, deps, "camera.animate_bounds", func() error {
			var err error
			anim, err = deps.Map.AnimateCameraToBounds(req.Bounds, req.Padding, nil)
			if err != nil {
				return err
			}
			initial = anim.Result()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return respondAnimation(c, deps, anim, initial, nil)
	}
}

type constraintsRequest struct {
	MinZoom           *float64            `json:"min_zoom"`
	MaxZoom           *float64            `json:"max_zoom"`
	TargetBounds      *domain.BoundingBox `json:"target_bounds"`
	ClearTargetBounds bool                `json:"clear_target_bounds"`
}

// ConstraintsHandler updates the zoom range and the camera target bounds.
func ConstraintsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req constraintsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.TargetBounds != nil && req.ClearTargetBounds {
			return errBadRequest(c, "target_bounds and clear_target_bounds are mutually exclusive")
		}
		if req.TargetBounds != nil {
			if err := req.TargetBounds.Validate(); err != nil {
				return respondError(c, err)
			}
		}

		var cons domain.CameraConstraints
		err := onLoop(c, deps, "camera.constraints", func() error {
			var err error
			switch {
			case req.MinZoom != nil && req.MaxZoom != nil:
				err = deps.Map.SetZoomRange(*req.MinZoom, *req.MaxZoom)
			case req.MinZoom != nil:
				err = deps.Map.SetMinZoom(*req.MinZoom)
			case req.MaxZoom != nil:
				err = deps.Map.SetMaxZoom(*req.MaxZoom)
			}
			if err != nil {
				return err
			}
			switch {
			case req.TargetBounds != nil:
				err = deps.Map.SetBoundsForCameraTarget(req.TargetBounds)
			case req.ClearTargetBounds:
				err = deps.Map.SetBoundsForCameraTarget(nil)
			}
			if err != nil {
				return err
			}
			cons = deps.Map.Constraints()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(cons)
	}
}

type styleRequest struct {
	URL string `json:"url"`
}

// SetStyleHandler loads a style and answers once the engine reports it ready.
func SetStyleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req styleRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		ready := make(chan error, 1)
		err := onLoop(c, deps, "style.set", func() error {
			return deps.Map.SetStyle(req.URL, func(err error) { ready <- err })
		})
		if err != nil {
			return respondError(c, err)
		}

		ctx, span := traced(c, "style.wait", attribute.String("style.url", req.URL))
		select {
		case err = <-ready:
		case <-ctx.Done():
			err = ctx.Err()
			endSpan(span, err)
			return respondError(c, err)
		}
		endSpan(span, err)

		event := &domain.MapEvent{Type: domain.MapEventStyle, StyleURL: req.URL}
		if err != nil {
			event.Error = err.Error()
		}
		publish(deps, event)

		if err != nil {
			return newError(c, fiber.StatusBadGateway, "style_load_failed", err.Error())
		}
		return c.JSON(fiber.Map{"style_url": req.URL})
	}
}

// AttributionMarginsHandler positions the attribution control.
func AttributionMarginsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req domain.Insets
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		err := onLoop(c, deps, "attribution.margins", func() error {
			return deps.Map.SetAttributionMargins(req)
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(req)
	}
}

// ListOverlaysHandler returns the drawn wave polygons and the override box.
func ListOverlaysHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var view OverlayView
		err := onLoop(c, deps, "overlays.list", func() error {
			view.Polygons = deps.Map.Polygons()
			view.Count = len(view.Polygons)
			if bbox, ok := deps.Map.OverrideBbox(); ok {
				view.OverrideBbox = &bbox
			}
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		if view.Polygons == nil {
			view.Polygons = []domain.WavePolygon{}
		}
		return c.JSON(view)
	}
}

// AddOverlaysHandler adds a batch of wave polygons.
func AddOverlaysHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var batch domain.WaveBatch
		if err := c.BodyParser(&batch); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		var count int
		err := onLoop(c, deps, "overlays.add", func() error {
			if err := deps.Map.AddWavePolygons(batch.Polygons, batch.ClearExisting); err != nil {
				return err
			}
			count = deps.Map.OverlayCount()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"count": count})
	}
}

// ClearOverlaysHandler removes every wave polygon.
func ClearOverlaysHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := onLoop(c, deps, "overlays.clear", func() error {
			return deps.Map.ClearWavePolygons()
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// OverrideBboxHandler draws the override bounding box.
func OverrideBboxHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var bbox domain.BoundingBox
		if err := c.BodyParser(&bbox); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		err := onLoop(c, deps, "overlays.override_bbox", func() error {
			return deps.Map.DrawOverrideBbox(bbox)
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(bbox)
	}
}

// ListAreasHandler returns stored event areas, paginated.
func ListAreasHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Areas == nil {
			return errUnavailable(c, "event areas not configured")
		}
		areas, err := deps.Areas.List(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}

		offset, limit := pageParams(c, 50, 200)
		start, end := pageBounds(offset, limit, len(areas))
		page := areas[start:end]
		if page == nil {
			page = []domain.EventArea{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: len(areas)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// UpsertAreaHandler stores the event area named in the path.
func UpsertAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Areas == nil {
			return errUnavailable(c, "event areas not configured")
		}
		var area domain.EventArea
		if err := c.BodyParser(&area); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		area.ID = c.Params("id")

		ctx, span := traced(c, "areas.upsert", attribute.String("area.id", area.ID))
		err := deps.Areas.Upsert(ctx, &area)
		endSpan(span, err)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(area)
	}
}

type focusRequest struct {
	Padding int `json:"padding"`
}

// FocusAreaHandler constrains the map to an event area and frames it.
func FocusAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Areas == nil {
			return errUnavailable(c, "event areas not configured")
		}
		var req focusRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if req.Padding < 0 {
			return respondError(c, domain.Invalid("padding", "must not be negative"))
		}

		id := c.Params("id")
		ctx, span := traced(c, "areas.focus", attribute.String("area.id", id))
		area, anim, err := deps.Areas.Focus(ctx, id, req.Padding, nil)
		endSpan(span, err)
		if err != nil {
			return respondError(c, err)
		}
		return respondAnimation(c, deps, anim, domain.AnimationPending, fiber.Map{"area": area})
	}
}

type tapRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SimulateTapHandler injects a tap into the engine at a viewport pixel.
func SimulateTapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Tapper == nil {
			return errUnavailable(c, "tap simulation not available")
		}
		var req tapRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if !deps.Tapper.Tap(req.X, req.Y) {
			return respondError(c, mainloop.ErrStopped)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "posted"})
	}
}

// publish sends event without blocking the request on the broker.
func publish(deps *Dependencies, event *domain.MapEvent) {
	if deps.Events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := deps.Events.PublishMapEvent(ctx, event); err != nil {
			slog.Warn("publish map event failed", "type", event.Type, "error", err)
		}
	}()
}
