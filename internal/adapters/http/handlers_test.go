package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"

	handler "github.com/depowered/culvertvision/internal/adapters/http"
	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/core/usecases"
)

// ---- Mocks ----

type mockIndex struct {
	crsFn  func(ctx context.Context) (domain.CRS, error)
	loadFn func(ctx context.Context, within *orb.Bound) (*domain.TileIndex, error)
}

func (m *mockIndex) CRS(ctx context.Context) (domain.CRS, error) {
	if m.crsFn != nil {
		return m.crsFn(ctx)
	}
	return domain.EPSG(6344), nil
}

func (m *mockIndex) Load(ctx context.Context, within *orb.Bound) (*domain.TileIndex, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, within)
	}
	return testIndex(), nil
}

type mockResolver struct {
	resolveFn func(ctx context.Context, workunit string) (domain.EPTData, error)
}

func (m *mockResolver) Resolve(ctx context.Context, workunit string) (domain.EPTData, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, workunit)
	}
	return domain.EPTData{
		Workunit:   workunit,
		CRS:        domain.EPSG(6344),
		EPTJSONURL: "https://example.test/" + workunit + "/ept.json",
	}, nil
}

type mockExecutor struct{}

func (mockExecutor) Execute(ctx context.Context, p domain.Pipeline) error { return nil }

type mockStarter struct {
	startFn func(ctx context.Context, aoi []byte, force bool) (string, string, error)
}

func (m *mockStarter) StartRun(ctx context.Context, aoi []byte, force bool) (string, string, error) {
	return m.startFn(ctx, aoi, force)
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

func square(x, y, size float64) orb.Polygon {
	return orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x + size, y + size}}.ToPolygon()
}

func testIndex() *domain.TileIndex {
	return &domain.TileIndex{
		CRS: domain.EPSG(6344),
		Records: []domain.TileRecord{
			{TileName: "t1", Workunit: "MN_A", Geometry: square(0, 0, 10)},
			{TileName: "t2", Workunit: "MN_A", Geometry: square(10, 0, 10)},
			{TileName: "t3", Workunit: "MN_B", Geometry: square(20, 0, 10)},
		},
	}
}

const pointAOI = `{"type":"Feature","crs":{"type":"name","properties":{"name":"EPSG:6344"}},` +
	`"properties":{},"geometry":{"type":"Point","coordinates":[5,5]}}`

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	index := &mockIndex{}
	resolver := &mockResolver{}
	d := &handler.Dependencies{
		Index: index,
		EPT:   resolver,
		Runs: usecases.NewRunService(index, resolver, mockExecutor{}, nil, usecases.RunOptions{
			Resolution: 1,
			OutputDir:  "/data/rasters",
		}),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())
	status, _ := do(t, app, "GET", "/v1/health", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name string
		opt  func(*handler.Dependencies)
		want int
	}{
		{"index only", func(d *handler.Dependencies) {}, 200},
		{"index missing", func(d *handler.Dependencies) {
			d.Index = &mockIndex{crsFn: func(context.Context) (domain.CRS, error) {
				return domain.CRS{}, fmt.Errorf("tile index: %w", domain.ErrNotFound)
			}}
		}, 503},
		{"database down", func(d *handler.Dependencies) { d.DB = mockPinger{err: errors.New("refused")} }, 503},
		{"cache ok", func(d *handler.Dependencies) { d.Cache = mockPinger{} }, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(makeDeps(tt.opt))
			status, body := do(t, app, "GET", "/v1/ready", "")
			if status != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, status, body)
			}
		})
	}
}

// ---- Tiles ----

func TestListTiles_Pagination(t *testing.T) {
	app := setupApp(makeDeps())
	status, body := do(t, app, "GET", "/v1/tiles?offset=1&limit=1", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result struct {
		Data       []handler.TileJSON `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 3 {
		t.Errorf("expected total 3, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 1 || result.Data[0].TileName != "t2" {
		t.Errorf("expected page [t2], got %+v", result.Data)
	}
	if result.Data[0].BBox != [4]float64{10, 0, 20, 10} {
		t.Errorf("unexpected bbox %v", result.Data[0].BBox)
	}
}

func TestListTiles_WorkunitAndBBox(t *testing.T) {
	var gotBound *orb.Bound
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Index = &mockIndex{loadFn: func(_ context.Context, within *orb.Bound) (*domain.TileIndex, error) {
			gotBound = within
			return testIndex(), nil
		}}
	})
	app := setupApp(deps)

	status, body := do(t, app, "GET", "/v1/tiles?workunit=MN_B&bbox=0,0,100,100", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if gotBound == nil || gotBound.Max != (orb.Point{100, 100}) {
		t.Errorf("bbox not passed to repository: %v", gotBound)
	}
	var result struct {
		Data []handler.TileJSON `json:"data"`
	}
	json.Unmarshal(body, &result)
	if len(result.Data) != 1 || result.Data[0].TileName != "t3" {
		t.Errorf("expected [t3], got %+v", result.Data)
	}
}

func TestListTiles_BadBBox(t *testing.T) {
	app := setupApp(makeDeps())
	status, body := do(t, app, "GET", "/v1/tiles?bbox=1,2,3", "")
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	var apiErr handler.APIError
	json.Unmarshal(body, &apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request, got %q", apiErr.Code)
	}
}

func TestSelectTiles(t *testing.T) {
	app := setupApp(makeDeps())
	status, body := do(t, app, "POST", "/v1/tiles/select", pointAOI)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var result handler.SelectionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 || result.Tiles[0].TileName != "t1" {
		t.Errorf("expected [t1], got %+v", result.Tiles)
	}
	if result.CRS.EPSG != 6344 {
		t.Errorf("expected crs 6344, got %d", result.CRS.EPSG)
	}
}

func TestSelectTiles_Errors(t *testing.T) {
	app := setupApp(makeDeps())
	if status, _ := do(t, app, "POST", "/v1/tiles/select", "{not json"); status != 400 {
		t.Errorf("invalid body: expected 400, got %d", status)
	}

	deps := makeDeps(func(d *handler.Dependencies) {
		d.Index = &mockIndex{crsFn: func(context.Context) (domain.CRS, error) {
			return domain.CRS{}, fmt.Errorf("tile index: %w", domain.ErrNotFound)
		}}
	})
	if status, _ := do(t, setupApp(deps), "POST", "/v1/tiles/select", pointAOI); status != 404 {
		t.Errorf("missing index: expected 404, got %d", status)
	}
}

// ---- Pipelines ----

func TestPipelines(t *testing.T) {
	app := setupApp(makeDeps())
	status, body := do(t, app, "POST", "/v1/pipelines", pointAOI)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var plan struct {
		TilesSelected int `json:"tiles_selected"`
		Workunits     []struct {
			EPT       domain.EPTData    `json:"ept"`
			Pipelines []domain.Pipeline `json:"pipelines"`
		} `json:"workunits"`
	}
	if err := json.Unmarshal(body, &plan); err != nil {
		t.Fatal(err)
	}
	if plan.TilesSelected != 1 || len(plan.Workunits) != 1 {
		t.Fatalf("unexpected plan: %s", body)
	}
	p := plan.Workunits[0].Pipelines[0]
	if p.TileName != "t1" {
		t.Errorf("expected pipeline for t1, got %q", p.TileName)
	}
	if len(p.Outputs) != 1 || !strings.HasSuffix(p.Outputs[0], "dem_t1.tif") {
		t.Errorf("unexpected outputs %v", p.Outputs)
	}
}

func TestPipelines_UpstreamFailure(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		resolver := &mockResolver{resolveFn: func(context.Context, string) (domain.EPTData, error) {
			return domain.EPTData{}, fmt.Errorf("stac: %w", domain.ErrUpstreamUnavailable)
		}}
		d.EPT = resolver
		d.Runs = usecases.NewRunService(d.Index, resolver, mockExecutor{}, nil, usecases.RunOptions{Resolution: 1})
	})
	status, body := do(t, setupApp(deps), "POST", "/v1/pipelines", pointAOI)
	if status != 502 {
		t.Fatalf("expected 502, got %d: %s", status, body)
	}
}

// ---- Runs ----

func TestStartRun_NotConfigured(t *testing.T) {
	status, _ := do(t, setupApp(makeDeps()), "POST", "/v1/runs", `{"aoi":`+pointAOI+`}`)
	if status != 501 {
		t.Fatalf("expected 501, got %d", status)
	}
}

func TestStartRun(t *testing.T) {
	var gotForce bool
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Starter = &mockStarter{startFn: func(_ context.Context, aoi []byte, force bool) (string, string, error) {
			gotForce = force
			if !json.Valid(aoi) {
				t.Errorf("aoi is not JSON: %s", aoi)
			}
			return "rasterize-1", "abc", nil
		}}
	})
	app := setupApp(deps)

	status, body := do(t, app, "POST", "/v1/runs", `{"aoi":`+pointAOI+`,"force":true}`)
	if status != 202 {
		t.Fatalf("expected 202, got %d: %s", status, body)
	}
	if !gotForce {
		t.Error("force flag not passed through")
	}
	var out map[string]string
	json.Unmarshal(body, &out)
	if out["workflow_id"] != "rasterize-1" || out["run_id"] != "abc" {
		t.Errorf("unexpected response %v", out)
	}

	if status, _ := do(t, app, "POST", "/v1/runs", `{"force":true}`); status != 400 {
		t.Errorf("missing aoi: expected 400, got %d", status)
	}
}

// ---- GraphQL ----

func TestGraphQL_Tiles(t *testing.T) {
	app := setupApp(makeDeps())
	status, body := do(t, app, "POST", "/graphql", `{"query":"{ tileIndexEPSG tiles(workunit: \"MN_A\") { tile_name maxx } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result struct {
		Data struct {
			TileIndexEPSG int `json:"tileIndexEPSG"`
			Tiles         []struct {
				TileName string  `json:"tile_name"`
				MaxX     float64 `json:"maxx"`
			} `json:"tiles"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if result.Data.TileIndexEPSG != 6344 {
		t.Errorf("expected 6344, got %d", result.Data.TileIndexEPSG)
	}
	if len(result.Data.Tiles) != 2 || result.Data.Tiles[1].MaxX != 20 {
		t.Errorf("unexpected tiles %+v", result.Data.Tiles)
	}
}

func TestGraphQL_EPT(t *testing.T) {
	app := setupApp(makeDeps())
	status, body := do(t, app, "POST", "/graphql", `{"query":"{ ept(workunit: \"MN_B\") { epsg ept_json_url } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), "https://example.test/MN_B/ept.json") {
		t.Errorf("unexpected body %s", body)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	status, _ := do(t, setupApp(makeDeps()), "GET", "/ws", "")
	if status != fiber.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", status)
	}
}
