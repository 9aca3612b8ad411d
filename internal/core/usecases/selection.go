package usecases

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/pkg/geospatial"
)

// SelectTilesByLocation returns every index record that intersects at least
// one AOI geometry. Touching boundaries count. An AOI that misses the index
// yields an empty selection, not an error.
func SelectTilesByLocation(aoi domain.AOI, index *domain.TileIndex) (domain.Selection, error) {
	if index == nil {
		return domain.Selection{}, fmt.Errorf("select tiles: %w", &domain.ValidationError{Field: "index", Reason: "is required"})
	}
	sel := domain.Selection{CRS: index.CRS}
	if len(aoi.Geometries) == 0 || len(index.Records) == 0 {
		return sel, nil
	}

	geoms, err := reprojectAOI(aoi, index.CRS)
	if err != nil {
		return domain.Selection{}, err
	}

	for i, rec := range index.Records {
		if err := rec.Validate(); err != nil {
			return domain.Selection{}, fmt.Errorf("tile index row %d: %w", i, err)
		}
		for _, g := range geoms {
			if geospatial.Intersects(rec.Geometry, g) {
				sel.Tiles = append(sel.Tiles, domain.TileRecord{
					TileName: rec.TileName,
					Workunit: rec.Workunit,
					Geometry: rec.Geometry,
				})
				break
			}
		}
	}
	return sel, nil
}

func reprojectAOI(aoi domain.AOI, to domain.CRS) ([]orb.Geometry, error) {
	from := aoi.CRS
	if from.IsZero() {
		from = domain.EPSG(4326)
	}
	tr, err := geospatial.NewTransformer(from.EPSG, to.EPSG)
	if err != nil {
		return nil, fmt.Errorf("reproject aoi: %w", err)
	}
	out := make([]orb.Geometry, 0, len(aoi.Geometries))
	for _, g := range aoi.Geometries {
		if g == nil {
			continue
		}
		pg, err := tr.Geometry(g)
		if err != nil {
			return nil, fmt.Errorf("reproject aoi: %w", err)
		}
		out = append(out, pg)
	}
	return out, nil
}

// AOIBoundIn returns the AOI bounding box in another CRS, for prefiltering
// repository reads.
func AOIBoundIn(aoi domain.AOI, to domain.CRS) (orb.Bound, error) {
	geoms, err := reprojectAOI(aoi, to)
	if err != nil {
		return orb.Bound{}, err
	}
	return domain.AOI{CRS: to, Geometries: geoms}.Bound(), nil
}
