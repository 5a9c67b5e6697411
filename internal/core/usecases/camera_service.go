package usecases

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
)

// DefaultAnimationDuration is used when no duration is configured.
const DefaultAnimationDuration = 500 * time.Millisecond

// CameraCallbackFuncs adapts a pair of funcs to ports.CameraCallback. Nil funcs are skipped.
type CameraCallbackFuncs struct {
	Finish func()
	Cancel func()
}

func (f CameraCallbackFuncs) OnFinish() {
	if f.Finish != nil {
		f.Finish()
	}
}

func (f CameraCallbackFuncs) OnCancel() {
	if f.Cancel != nil {
		f.Cancel()
	}
}

// Animation is the handle of one animate call. It resolves exactly once, to either
// AnimationFinished or AnimationCancelled.
type Animation struct {
	id     string
	target domain.CameraState
	cb     ports.CameraCallback
	result domain.AnimationResult
	done   chan domain.AnimationResult
}

func newAnimation(target domain.CameraState, cb ports.CameraCallback) *Animation {
	return &Animation{
		id:     uuid.NewString(),
		target: target,
		cb:     cb,
		done:   make(chan domain.AnimationResult, 1),
	}
}

// ID identifies the animation in logs and published events.
func (a *Animation) ID() string { return a.id }

// Target is the clamped pose the animation heads to.
func (a *Animation) Target() domain.CameraState { return a.target }

// Done delivers the terminal result once. Safe to wait on from any goroutine.
func (a *Animation) Done() <-chan domain.AnimationResult { return a.done }

// Result returns the terminal result, or AnimationPending. Owning thread only.
func (a *Animation) Result() domain.AnimationResult { return a.result }

func (a *Animation) resolve(r domain.AnimationResult) bool {
	if a.result != domain.AnimationPending {
		return false
	}
	a.result = r
	a.done <- r
	if a.cb == nil {
		return true
	}
	if r == domain.AnimationFinished {
		a.cb.OnFinish()
	} else {
		a.cb.OnCancel()
	}
	return true
}

// CameraControllerConfig configures a CameraController.
type CameraControllerConfig struct {
	Initial           domain.CameraState
	Constraints       domain.CameraConstraints
	AnimationDuration time.Duration
	TileSize          float64
}

// CameraController owns the committed camera pose and the Idle -> Animating -> Idle state machine.
//
// The committed pose only changes on move, on animation finish, and on cancellation. A
// cancelled animation commits the pose the engine reports it stopped at.
type CameraController struct {
	engine   ports.MapEngine
	enforcer *ConstraintEnforcer
	fitter   *BoundsFitter
	duration time.Duration
	log      *slog.Logger

	pose   domain.CameraState
	active *Animation
	closed bool
}

// NewCameraController validates cfg and pushes the clamped initial pose to the engine.
func NewCameraController(engine ports.MapEngine, cfg CameraControllerConfig, log *slog.Logger) (*CameraController, error) {
	if err := cfg.Initial.Center.Validate(); err != nil {
		return nil, err
	}
	enforcer, err := NewConstraintEnforcer(cfg.Constraints)
	if err != nil {
		return nil, err
	}
	if cfg.AnimationDuration <= 0 {
		cfg.AnimationDuration = DefaultAnimationDuration
	}
	if log == nil {
		log = slog.Default()
	}

	c := &CameraController{
		engine:   engine,
		enforcer: enforcer,
		fitter:   NewBoundsFitter(cfg.TileSize),
		duration: cfg.AnimationDuration,
		log:      log,
		pose:     enforcer.Clamp(cfg.Initial),
	}
	engine.SetCamera(c.pose)
	return c, nil
}

// MoveCamera replaces the pose immediately. An in-flight animation is cancelled first.
func (c *CameraController) MoveCamera(center domain.LatLng, zoom domain.ZoomOption) error {
	if c.closed {
		return domain.ErrControllerClosed
	}
	if err := validateTarget(center, zoom); err != nil {
		return err
	}

	c.cancelActive()
	c.pose = c.enforcer.Clamp(domain.CameraState{Center: center, Zoom: zoom.Or(c.pose.Zoom)})
	c.engine.SetCamera(c.pose)
	return nil
}

// AnimateCamera starts a transition to the target pose. An in-flight animation is cancelled
// before the new one starts; animations never queue. On a closed controller the returned
// handle is already cancelled.
func (c *CameraController) AnimateCamera(center domain.LatLng, zoom domain.ZoomOption, cb ports.CameraCallback) (*Animation, error) {
	if err := validateTarget(center, zoom); err != nil {
		return nil, err
	}
	if c.closed {
		return c.rejected(cb), nil
	}

	c.cancelActive()
	target := c.enforcer.Clamp(domain.CameraState{Center: center, Zoom: zoom.Or(c.pose.Zoom)})
	return c.begin(target, cb), nil
}

// AnimateCameraToBounds frames bbox with padding pixels on every side, then animates there.
func (c *CameraController) AnimateCameraToBounds(bbox domain.BoundingBox, padding int, cb ports.CameraCallback) (*Animation, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if padding < 0 {
		return nil, domain.Invalid("padding", "must not be negative")
	}
	if c.closed {
		return c.rejected(cb), nil
	}

	c.cancelActive()
	fitted := c.fitter.Fit(bbox, c.engine.Viewport(), float64(padding), c.enforcer.Constraints())
	return c.begin(c.enforcer.Clamp(fitted), cb), nil
}

// SetBoundsForCameraTarget restricts where the camera target may go. Nil lifts the restriction.
func (c *CameraController) SetBoundsForCameraTarget(bbox *domain.BoundingBox) error {
	return c.enforcer.SetTargetBounds(bbox)
}

// SetMinZoom updates the lower zoom limit.
func (c *CameraController) SetMinZoom(z float64) error {
	return c.enforcer.SetMinZoom(z)
}

// SetMaxZoom updates the upper zoom limit.
func (c *CameraController) SetMaxZoom(z float64) error {
	return c.enforcer.SetMaxZoom(z)
}

// SetZoomRange updates both zoom limits atomically.
func (c *CameraController) SetZoomRange(minZoom, maxZoom float64) error {
	return c.enforcer.SetZoomRange(minZoom, maxZoom)
}

func (c *CameraController) Camera() domain.CameraState { return c.pose }
func (c *CameraController) CameraCenter() domain.LatLng { return c.pose.Center }
func (c *CameraController) Zoom() float64 { return c.pose.Zoom }
func (c *CameraController) MinZoom() float64 { return c.enforcer.Constraints().MinZoom }
func (c *CameraController) MaxZoom() float64 { return c.enforcer.Constraints().MaxZoom }
func (c *CameraController) IsAnimating() bool { return c.active != nil }
func (c *CameraController) Closed() bool { return c.closed }
func (c *CameraController) Constraints() domain.CameraConstraints {
	return c.enforcer.Constraints()
}

// VisibleBounds asks the engine to project the committed pose over its viewport.
func (c *CameraController) VisibleBounds() domain.BoundingBox {
	return c.engine.VisibleBounds(c.pose)
}

// Close destroys the controller. An in-flight animation is cancelled.
func (c *CameraController) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancelActive()
}

func (c *CameraController) begin(target domain.CameraState, cb ports.CameraCallback) *Animation {
	// a cancel callback may itself have started an animation
	c.cancelActive()

	anim := newAnimation(target, cb)
	c.active = anim
	c.log.Debug("camera animation started",
		"animation_id", anim.id,
		"lat", target.Center.Lat, "lng", target.Center.Lng, "zoom", target.Zoom)
	c.engine.AnimateCamera(target, c.duration, func() { c.complete(anim) })
	return anim
}

func (c *CameraController) complete(anim *Animation) {
	if c.active != anim {
		// superseded or cancelled already
		return
	}
	c.active = nil
	c.pose = anim.target
	c.log.Debug("camera animation finished", "animation_id", anim.id)
	anim.resolve(domain.AnimationFinished)
}

func (c *CameraController) cancelActive() {
	for c.active != nil {
		anim := c.active
		c.active = nil
		c.pose = c.engine.CancelAnimation()
		c.log.Debug("camera animation cancelled", "animation_id", anim.id)
		anim.resolve(domain.AnimationCancelled)
	}
}

func (c *CameraController) rejected(cb ports.CameraCallback) *Animation {
	anim := newAnimation(c.pose, cb)
	anim.resolve(domain.AnimationCancelled)
	return anim
}

func validateTarget(center domain.LatLng, zoom domain.ZoomOption) error {
	if err := center.Validate(); err != nil {
		return err
	}
	return zoom.Validate()
}
