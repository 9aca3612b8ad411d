package http

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"

	"github.com/depowered/culvertvision/internal/adapters/vectorfile"
	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/core/usecases"
)

// TileJSON is the wire form of a tile index record.
type TileJSON struct {
	TileName string     `json:"tile_name"`
	Workunit string     `json:"workunit"`
	BBox     [4]float64 `json:"bbox"`
}

func toTileJSON(recs []domain.TileRecord) []TileJSON {
	out := make([]TileJSON, len(recs))
	for i, r := range recs {
		b := r.Geometry.Bound()
		out[i] = TileJSON{
			TileName: r.TileName,
			Workunit: r.Workunit,
			BBox:     [4]float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()},
		}
	}
	return out
}

// parseBBox reads "minx,miny,maxx,maxy".
func parseBBox(s string) (*orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, &domain.ValidationError{Field: "bbox", Reason: "must be minx,miny,maxx,maxy"}
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, &domain.ValidationError{Field: "bbox", Reason: "must be numeric"}
		}
		v[i] = f
	}
	if v[2] < v[0] || v[3] < v[1] {
		return nil, &domain.ValidationError{Field: "bbox", Reason: "max is less than min"}
	}
	return &orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// ListTilesHandler returns tile index records, optionally filtered by
// workunit and by a bbox in the index CRS.
func ListTilesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var within *orb.Bound
		if q := c.Query("bbox"); q != "" {
			b, err := parseBBox(q)
			if err != nil {
				return errFrom(c, err)
			}
			within = b
		}

		index, err := deps.Index.Load(c.UserContext(), within)
		if err != nil {
			return errFrom(c, err)
		}

		recs := index.Records
		if wu := c.Query("workunit"); wu != "" {
			recs = domain.Selection{Tiles: recs}.ByWorkunit(wu).Tiles
		}

		page, pg := paginate(c, recs, 100, 1000)
		SetLinkHeaders(c, pg)
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(PaginatedResponse{Data: toTileJSON(page), Pagination: pg})
	}
}

// SelectionResponse is returned by the tile selection endpoint.
type SelectionResponse struct {
	CRS   domain.CRS `json:"crs"`
	Count int        `json:"count"`
	Tiles []TileJSON `json:"tiles"`
}

// SelectTilesHandler selects the tiles intersecting a GeoJSON AOI body.
func SelectTilesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		aoi, err := vectorfile.ParseAOI(c.Body())
		if err != nil {
			return errFrom(c, err)
		}
		ctx := c.UserContext()

		crs, err := deps.Index.CRS(ctx)
		if err != nil {
			return errFrom(c, err)
		}
		var within *orb.Bound
		if len(aoi.Geometries) > 0 {
			b, err := usecases.AOIBoundIn(aoi, crs)
			if err != nil {
				return errFrom(c, err)
			}
			within = &b
		}
		index, err := deps.Index.Load(ctx, within)
		if err != nil {
			return errFrom(c, err)
		}
		sel, err := usecases.SelectTilesByLocation(aoi, index)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(SelectionResponse{CRS: crs, Count: sel.Len(), Tiles: toTileJSON(sel.Tiles)})
	}
}

// PipelinesHandler plans a run for a GeoJSON AOI body without executing it.
func PipelinesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		aoi, err := vectorfile.ParseAOI(c.Body())
		if err != nil {
			return errFrom(c, err)
		}
		plan, err := deps.Runs.Plan(c.UserContext(), usecases.RunRequest{AOI: aoi})
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(plan)
	}
}

// StartRunRequest is the body of POST /v1/runs.
type StartRunRequest struct {
	AOI   json.RawMessage `json:"aoi"`
	Force bool            `json:"force"`
}

// StartRunHandler starts a durable rasterize run.
func StartRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Starter == nil {
			return errNotImplemented(c, "durable runs are not configured")
		}
		var req StartRunRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.AOI) == 0 {
			return errBadRequest(c, "aoi is required")
		}

		workflowID, runID, err := deps.Starter.StartRun(c.UserContext(), req.AOI, req.Force)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("start run failed", "error", err)
			return errFrom(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"workflow_id": workflowID,
			"run_id":      runID,
		})
	}
}
