package usecases

import (
	"fmt"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/pkg/geospatial"
)

// DefaultBufferDistance is the outward buffer, in index CRS units, applied to
// each tile footprint before querying the point-cloud source.
const DefaultBufferDistance = 10.0

// TileDataOptions tune GenerateTileData.
type TileDataOptions struct {
	BufferDistance float64 // zero selects DefaultBufferDistance
	MitreLimit     float64
}

// GenerateTileData converts selected tiles into TileData records, one per
// tile in input order. Any record failing the schema aborts the batch.
func GenerateTileData(sel domain.Selection, ept domain.EPTData, opts TileDataOptions) ([]domain.TileData, error) {
	if len(sel.Tiles) == 0 {
		return nil, nil
	}
	if sel.CRS.IsZero() {
		return nil, &domain.ValidationError{Field: "crs", Reason: "selection has no CRS"}
	}
	if ept.CRS.IsZero() {
		return nil, &domain.ValidationError{Record: ept.Workunit, Field: "crs", Reason: "ept source has no CRS"}
	}
	dist := opts.BufferDistance
	if dist == 0 {
		dist = DefaultBufferDistance
	}
	limit := opts.MitreLimit
	if limit == 0 {
		limit = geospatial.DefaultMitreLimit
	}

	tr, err := geospatial.NewTransformer(sel.CRS.EPSG, ept.CRS.EPSG)
	if err != nil {
		return nil, fmt.Errorf("generate tile data: %w", err)
	}

	out := make([]domain.TileData, 0, len(sel.Tiles))
	for _, rec := range sel.Tiles {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		b := rec.Geometry.Bound()

		buffered, err := geospatial.MitreBuffer(rec.Geometry, dist, limit)
		if err != nil {
			return nil, &domain.ValidationError{Record: rec.TileName, Field: "geometry", Reason: err.Error()}
		}
		filter, err := tr.Geometry(buffered)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", rec.TileName, err)
		}

		td := domain.TileData{
			TileName:     rec.TileName,
			MinX:         b.Min[0],
			MinY:         b.Min[1],
			MaxX:         b.Max[0],
			MaxY:         b.Max[1],
			CRS:          sel.CRS,
			EPTFilterWKT: wkt.MarshalString(filter),
		}
		if err := td.Validate(); err != nil {
			return nil, err
		}
		out = append(out, td)
	}
	return out, nil
}
