package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/wavemap/internal/adapters/http"
	"github.com/samirrijal/wavemap/internal/adapters/headless"
	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/usecases"
	"github.com/samirrijal/wavemap/internal/pkg/mainloop"
)

// ---- Mock repositories ----

type mockAreaRepo struct {
	areas  map[string]domain.EventArea
	getErr error
}

func (m *mockAreaRepo) Upsert(ctx context.Context, a *domain.EventArea) error {
	if m.areas == nil {
		m.areas = map[string]domain.EventArea{}
	}
	m.areas[a.ID] = *a
	return nil
}

func (m *mockAreaRepo) GetByID(ctx context.Context, id string) (*domain.EventArea, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.areas[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *mockAreaRepo) List(ctx context.Context) ([]domain.EventArea, error) {
	var out []domain.EventArea
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if a, ok := m.areas[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	events chan *domain.MapEvent
}

func (p *recordingPublisher) PublishMapEvent(ctx context.Context, e *domain.MapEvent) error {
	p.events <- e
	return nil
}

// ---- Test environment ----

type testEnv struct {
	app    *fiber.App
	loop   *mainloop.Loop
	clock  *headless.ManualClock
	engine *headless.Engine
	ctrl   *usecases.MapControl
	deps   *handler.Dependencies
}

var epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, styles headless.StyleLoader, opts ...func(*handler.Dependencies)) *testEnv {
	t.Helper()

	loop := mainloop.New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	clock := headless.NewManualClock(epoch)
	engine := headless.New(headless.Config{Width: 800, Height: 600}, loop, clock, styles, nil)

	var ctrl *usecases.MapControl
	err := loop.Do(ctx, func() error {
		var err error
		ctrl, err = usecases.NewMapControl(engine, usecases.CameraControllerConfig{
			Initial:           domain.CameraState{Center: domain.LatLng{Lat: 43.26, Lng: -2.93}, Zoom: 12},
			Constraints:       domain.CameraConstraints{MinZoom: 2, MaxZoom: 18},
			AnimationDuration: 500 * time.Millisecond,
		}, nil, nil)
		return err
	})
	if err != nil {
		t.Fatalf("new map control: %v", err)
	}

	deps := &handler.Dependencies{Map: ctrl, Loop: loop, Tapper: engine}
	for _, o := range opts {
		o(deps)
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps, handler.RouterConfig{})
	return &testEnv{app: app, loop: loop, clock: clock, engine: engine, ctrl: ctrl, deps: deps}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (e *testEnv) onLoop(t *testing.T, fn func()) {
	t.Helper()
	if err := e.loop.Do(context.Background(), func() error { fn(); return nil }); err != nil {
		t.Fatal(err)
	}
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, b)
	}
}

func expectAPIError(t *testing.T, resp *http.Response, status int, code string) handler.APIError {
	t.Helper()
	expectStatus(t, resp, status)
	var apiErr handler.APIError
	decode(t, resp, &apiErr)
	if apiErr.Code != code {
		t.Errorf("expected code %s, got %s", code, apiErr.Code)
	}
	return apiErr
}

func triangle(lat, lng float64) domain.WavePolygon {
	return domain.WavePolygon{Vertices: []domain.LatLng{
		{Lat: lat, Lng: lng}, {Lat: lat + 0.01, Lng: lng}, {Lat: lat, Lng: lng + 0.01},
	}}
}

// ---- Camera ----

func TestGetCamera(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "GET", "/v1/camera", nil)
	expectStatus(t, resp, 200)
	if etag := resp.Header.Get("ETag"); etag != "" {
		t.Errorf("live camera pose must not carry an ETag, got %q", etag)
	}

	var view handler.CameraView
	decode(t, resp, &view)
	if view.Zoom != 12 || view.MinZoom != 2 || view.MaxZoom != 18 {
		t.Errorf("unexpected zoom state %+v", view)
	}
	if view.Viewport.Width != 800 || view.Viewport.Height != 600 {
		t.Errorf("unexpected viewport %+v", view.Viewport)
	}
	if !view.VisibleBounds.Contains(view.Center) {
		t.Errorf("visible bounds %+v must contain the centre %+v", view.VisibleBounds, view.Center)
	}
}

func TestMoveCamera_ClampsZoom(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/v1/camera/move", map[string]float64{"lat": 10, "lng": 20, "zoom": 25})
	expectStatus(t, resp, 200)

	var view handler.CameraView
	decode(t, resp, &view)
	if view.Center != (domain.LatLng{Lat: 10, Lng: 20}) || view.Zoom != 18 {
		t.Errorf("expected (10,20)@18, got %+v@%v", view.Center, view.Zoom)
	}
}

func TestMoveCamera_KeepsZoomWhenOmitted(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/v1/camera/move", map[string]float64{"lat": 1, "lng": 2})
	expectStatus(t, resp, 200)

	var view handler.CameraView
	decode(t, resp, &view)
	if view.Zoom != 12 {
		t.Errorf("expected zoom kept at 12, got %v", view.Zoom)
	}
}

func TestMoveCamera_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	apiErr := expectAPIError(t, env.do(t, "POST", "/v1/camera/move", map[string]float64{"lng": 2}), 400, "validation_error")
	if apiErr.Field != "lat" {
		t.Errorf("expected field lat, got %q", apiErr.Field)
	}

	expectAPIError(t, env.do(t, "POST", "/v1/camera/move", map[string]float64{"lat": 91, "lng": 2}), 400, "validation_error")
}

func TestAnimateCamera_AcceptedThenLands(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/v1/camera/animate", map[string]float64{"lat": 40, "lng": -3, "zoom": 10})
	expectStatus(t, resp, 202)

	var anim handler.AnimationView
	decode(t, resp, &anim)
	if anim.AnimationID == "" || anim.Result != "pending" {
		t.Fatalf("unexpected animation %+v", anim)
	}

	env.clock.Advance(500 * time.Millisecond)

	var view handler.CameraView
	decode(t, env.do(t, "GET", "/v1/camera", nil), &view)
	if view.Animating {
		t.Error("animation should have landed")
	}
	if view.Center != (domain.LatLng{Lat: 40, Lng: -3}) || view.Zoom != 10 {
		t.Errorf("expected committed target, got %+v@%v", view.Center, view.Zoom)
	}
}

func TestAnimateCamera_WaitBlocksUntilResolved(t *testing.T) {
	pub := &recordingPublisher{events: make(chan *domain.MapEvent, 4)}
	env := newTestEnv(t, nil, func(d *handler.Dependencies) { d.Events = pub })

	go func() {
		for env.clock.Pending() == 0 {
			time.Sleep(time.Millisecond)
		}
		env.clock.Advance(time.Second)
	}()

	resp := env.do(t, "POST", "/v1/camera/animate?wait=true", map[string]float64{"lat": 5, "lng": 5})
	expectStatus(t, resp, 200)

	var anim handler.AnimationView
	decode(t, resp, &anim)
	if anim.Result != "finished" {
		t.Errorf("expected finished, got %s", anim.Result)
	}

	select {
	case e := <-pub.events:
		if e.Type != domain.MapEventAnimation || e.AnimationID != anim.AnimationID || e.Result != "finished" {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("animation event was not published")
	}
}

func TestAnimateBounds_InvalidBox(t *testing.T) {
	env := newTestEnv(t, nil)

	body := map[string]interface{}{
		"bounds": map[string]interface{}{
			"sw": map[string]float64{"lat": 10, "lng": 0},
			"ne": map[string]float64{"lat": 5, "lng": 1},
		},
	}
	expectAPIError(t, env.do(t, "POST", "/v1/camera/animate-bounds", body), 400, "validation_error")
}

func TestAnimateBounds_Accepted(t *testing.T) {
	env := newTestEnv(t, nil)

	body := map[string]interface{}{
		"bounds": map[string]interface{}{
			"sw": map[string]float64{"lat": 43.2, "lng": -3.0},
			"ne": map[string]float64{"lat": 43.3, "lng": -2.9},
		},
		"padding": 20,
	}
	resp := env.do(t, "POST", "/v1/camera/animate-bounds", body)
	expectStatus(t, resp, 202)

	var anim handler.AnimationView
	decode(t, resp, &anim)
	if anim.Target.Center.Lat < 43.2 || anim.Target.Center.Lat > 43.3 {
		t.Errorf("target centre %+v outside the box", anim.Target.Center)
	}
}

func TestConstraints(t *testing.T) {
	env := newTestEnv(t, nil)

	expectAPIError(t, env.do(t, "PUT", "/v1/camera/constraints", map[string]float64{"min_zoom": 10, "max_zoom": 5}), 400, "validation_error")

	body := map[string]interface{}{
		"min_zoom": 4,
		"max_zoom": 14,
		"target_bounds": map[string]interface{}{
			"sw": map[string]float64{"lat": 43, "lng": -3},
			"ne": map[string]float64{"lat": 44, "lng": -2},
		},
	}
	resp := env.do(t, "PUT", "/v1/camera/constraints", body)
	expectStatus(t, resp, 200)

	var cons domain.CameraConstraints
	decode(t, resp, &cons)
	if cons.MinZoom != 4 || cons.MaxZoom != 14 || cons.TargetBounds == nil {
		t.Errorf("unexpected constraints %+v", cons)
	}

	resp = env.do(t, "PUT", "/v1/camera/constraints", map[string]bool{"clear_target_bounds": true})
	expectStatus(t, resp, 200)
	cons = domain.CameraConstraints{}
	decode(t, resp, &cons)
	if cons.TargetBounds != nil {
		t.Errorf("expected target bounds cleared, got %+v", cons.TargetBounds)
	}
}

// ---- Style ----

func TestSetStyle_Success(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/v1/style", map[string]string{"url": "https://tiles.example.com/style.json"})
	expectStatus(t, resp, 200)

	var view handler.CameraView
	decode(t, env.do(t, "GET", "/v1/camera", nil), &view)
	if view.StyleURL != "https://tiles.example.com/style.json" {
		t.Errorf("expected style url recorded, got %q", view.StyleURL)
	}
}

func TestSetStyle_LoadFailure(t *testing.T) {
	env := newTestEnv(t, headless.StaticStyleLoader{Err: errors.New("status 404")})

	expectAPIError(t, env.do(t, "POST", "/v1/style", map[string]string{"url": "https://tiles.example.com/missing.json"}), 502, "style_load_failed")
}

func TestSetStyle_InvalidURL(t *testing.T) {
	env := newTestEnv(t, nil)

	expectAPIError(t, env.do(t, "POST", "/v1/style", map[string]string{"url": "not a url"}), 400, "validation_error")
}

// ---- Overlays ----

func TestOverlays_AddReplaceListClear(t *testing.T) {
	env := newTestEnv(t, nil)

	add := func(clear bool, polys ...domain.WavePolygon) int {
		resp := env.do(t, "POST", "/v1/overlays", domain.WaveBatch{Polygons: polys, ClearExisting: clear})
		expectStatus(t, resp, 200)
		var out struct {
			Count int `json:"count"`
		}
		decode(t, resp, &out)
		return out.Count
	}

	if n := add(false, triangle(0, 0), triangle(1, 1)); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	if n := add(true, triangle(2, 2)); n != 1 {
		t.Errorf("expected 1 after replace, got %d", n)
	}

	resp := env.do(t, "GET", "/v1/overlays", nil)
	expectStatus(t, resp, 200)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Error("expected an ETag on the overlay list")
	}
	var view handler.OverlayView
	decode(t, resp, &view)
	if view.Count != 1 || view.Polygons[0].Vertices[0] != (domain.LatLng{Lat: 2, Lng: 2}) {
		t.Errorf("unexpected overlays %+v", view)
	}

	req := httptest.NewRequest("GET", "/v1/overlays", nil)
	req.Header.Set("If-None-Match", etag)
	cached, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if cached.StatusCode != 304 {
		t.Errorf("expected 304 for matching ETag, got %d", cached.StatusCode)
	}

	expectStatus(t, env.do(t, "DELETE", "/v1/overlays", nil), 204)

	var engineCount int
	env.onLoop(t, func() { engineCount = len(env.engine.Polygons()) })
	if engineCount != 0 {
		t.Errorf("engine still draws %d polygons", engineCount)
	}
}

func TestOverlays_RejectsBadPolygonAtomically(t *testing.T) {
	env := newTestEnv(t, nil)

	bad := domain.WavePolygon{Vertices: []domain.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}}
	expectAPIError(t, env.do(t, "POST", "/v1/overlays", domain.WaveBatch{Polygons: []domain.WavePolygon{triangle(0, 0), bad}}), 400, "validation_error")

	var count int
	env.onLoop(t, func() { count = env.ctrl.OverlayCount() })
	if count != 0 {
		t.Errorf("expected nothing added, got %d", count)
	}
}

func TestOverrideBbox(t *testing.T) {
	env := newTestEnv(t, nil)

	bbox := domain.BoundingBox{SW: domain.LatLng{Lat: 1, Lng: 1}, NE: domain.LatLng{Lat: 2, Lng: 2}}
	expectStatus(t, env.do(t, "PUT", "/v1/overlays/override-bbox", bbox), 200)

	var got domain.BoundingBox
	var ok bool
	env.onLoop(t, func() { got, ok = env.engine.OverrideBbox() })
	if !ok || got != bbox {
		t.Errorf("expected override %+v drawn, got %+v (%v)", bbox, got, ok)
	}

	expectAPIError(t, env.do(t, "PUT", "/v1/overlays/override-bbox", domain.BoundingBox{SW: bbox.NE, NE: bbox.SW}), 400, "validation_error")
}

func TestAttributionMargins(t *testing.T) {
	env := newTestEnv(t, nil)

	in := domain.Insets{Left: 8, Bottom: 24}
	expectStatus(t, env.do(t, "PUT", "/v1/attribution-margins", in), 200)

	var got domain.Insets
	env.onLoop(t, func() { got = env.engine.Margins() })
	if got != in {
		t.Errorf("expected %+v, got %+v", in, got)
	}

	expectAPIError(t, env.do(t, "PUT", "/v1/attribution-margins", domain.Insets{Left: -1}), 400, "validation_error")
}

// ---- Areas ----

func withAreas(repo *mockAreaRepo) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		d.Areas = usecases.NewAreaService(repo, d.Loop, d.Map)
	}
}

func TestAreas_NotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)

	expectAPIError(t, env.do(t, "GET", "/v1/areas", nil), 503, "unavailable")
	expectAPIError(t, env.do(t, "POST", "/v1/areas/x/focus", nil), 503, "unavailable")
}

func TestAreas_UpsertListFocus(t *testing.T) {
	repo := &mockAreaRepo{}
	env := newTestEnv(t, nil, withAreas(repo))

	area := domain.EventArea{
		Name:    "Bilbao",
		Bounds:  domain.BoundingBox{SW: domain.LatLng{Lat: 43.2, Lng: -3.0}, NE: domain.LatLng{Lat: 43.3, Lng: -2.9}},
		MinZoom: 10,
		MaxZoom: 16,
	}
	expectStatus(t, env.do(t, "PUT", "/v1/areas/a", area), 200)
	if _, ok := repo.areas["a"]; !ok {
		t.Fatal("area not stored")
	}

	resp := env.do(t, "GET", "/v1/areas?limit=10", nil)
	expectStatus(t, resp, 200)
	var list struct {
		Data       []domain.EventArea `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	decode(t, resp, &list)
	if list.Pagination.Total != 1 || len(list.Data) != 1 || list.Data[0].ID != "a" {
		t.Errorf("unexpected list %+v", list)
	}

	resp = env.do(t, "POST", "/v1/areas/a/focus", map[string]int{"padding": 10})
	expectStatus(t, resp, 202)

	var cons domain.CameraConstraints
	env.onLoop(t, func() { cons = env.ctrl.Constraints() })
	if cons.MinZoom != 10 || cons.MaxZoom != 16 || cons.TargetBounds == nil || *cons.TargetBounds != area.Bounds {
		t.Errorf("area constraints not applied: %+v", cons)
	}
}

func TestAreas_FocusUnknown(t *testing.T) {
	env := newTestEnv(t, nil, withAreas(&mockAreaRepo{}))

	expectAPIError(t, env.do(t, "POST", "/v1/areas/nope/focus", nil), 404, "not_found")
}

func TestAreas_UpsertInvalid(t *testing.T) {
	env := newTestEnv(t, nil, withAreas(&mockAreaRepo{}))

	area := domain.EventArea{
		Bounds:  domain.BoundingBox{SW: domain.LatLng{Lat: 1, Lng: 1}, NE: domain.LatLng{Lat: 2, Lng: 2}},
		MinZoom: 12,
		MaxZoom: 3,
	}
	expectAPIError(t, env.do(t, "PUT", "/v1/areas/bad", area), 400, "validation_error")
}

// ---- Taps and lifecycle ----

func TestSimulateTap_DeliversClick(t *testing.T) {
	env := newTestEnv(t, nil)

	clicks := make(chan domain.LatLng, 1)
	env.onLoop(t, func() {
		env.ctrl.SetOnMapClickListener(func(lat, lng float64) { clicks <- domain.LatLng{Lat: lat, Lng: lng} })
	})

	expectStatus(t, env.do(t, "POST", "/v1/simulate/tap", map[string]float64{"x": 400, "y": 300}), 202)

	select {
	case got := <-clicks:
		if d := got.Lat - 43.26; d > 1e-6 || d < -1e-6 {
			t.Errorf("expected tap at the centre latitude, got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("click listener not called")
	}
}

func TestClosedControl_ReturnsUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.onLoop(t, env.ctrl.Close)

	expectAPIError(t, env.do(t, "POST", "/v1/camera/move", map[string]float64{"lat": 1, "lng": 1}), 503, "unavailable")
	expectAPIError(t, env.do(t, "DELETE", "/v1/overlays", nil), 503, "unavailable")

	resp := env.do(t, "POST", "/v1/camera/animate", map[string]float64{"lat": 1, "lng": 1})
	expectStatus(t, resp, 202)
	var anim handler.AnimationView
	decode(t, resp, &anim)
	if anim.Result != "cancelled" {
		t.Errorf("animate on a closed map must resolve cancelled, got %s", anim.Result)
	}

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	resp = env.do(t, "GET", "/v1/ready", nil)
	expectStatus(t, resp, 503)
	decode(t, resp, &ready)
	if ready.Checks["map"] != "closed" {
		t.Errorf("expected map check closed, got %q", ready.Checks["map"])
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	expectStatus(t, env.do(t, "GET", "/v1/health", nil), 200)
	expectStatus(t, env.do(t, "GET", "/v1/ready", nil), 200)
}

// ---- GraphQL ----

func TestGraphQL_CameraAndOverlays(t *testing.T) {
	env := newTestEnv(t, nil)
	env.onLoop(t, func() {
		if err := env.ctrl.AddWavePolygons([]domain.WavePolygon{triangle(1, 1)}, false); err != nil {
			t.Error(err)
		}
	})

	resp := env.do(t, "POST", "/graphql", map[string]string{
		"query": `{ camera { zoom center { lat lng } } overlays { count } constraints { max_zoom } }`,
	})
	expectStatus(t, resp, 200)

	var out struct {
		Data struct {
			Camera struct {
				Zoom   float64       `json:"zoom"`
				Center domain.LatLng `json:"center"`
			} `json:"camera"`
			Overlays struct {
				Count int `json:"count"`
			} `json:"overlays"`
			Constraints struct {
				MaxZoom float64 `json:"max_zoom"`
			} `json:"constraints"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	decode(t, resp, &out)
	if len(out.Errors) > 0 {
		t.Fatalf("graphql errors: %v", out.Errors)
	}
	if out.Data.Camera.Zoom != 12 || out.Data.Overlays.Count != 1 || out.Data.Constraints.MaxZoom != 18 {
		t.Errorf("unexpected data %+v", out.Data)
	}
}

func TestGraphQL_MoveCamera(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/graphql", map[string]string{
		"query": `mutation { moveCamera(lat: 1.5, lng: 2.5, zoom: 30) { zoom } }`,
	})
	expectStatus(t, resp, 200)

	var out struct {
		Data struct {
			MoveCamera struct {
				Zoom float64 `json:"zoom"`
			} `json:"moveCamera"`
		} `json:"data"`
	}
	decode(t, resp, &out)
	if out.Data.MoveCamera.Zoom != 18 {
		t.Errorf("expected zoom clamped to 18, got %v", out.Data.MoveCamera.Zoom)
	}
}
