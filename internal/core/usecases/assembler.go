package usecases

import (
	"fmt"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// GeneratePipelines builds one pipeline per tile using vendor ground points
// and the default DEM product.
func GeneratePipelines(tiles []domain.TileData, ept domain.EPTData, resolution float64, outputDir string) ([]domain.Pipeline, error) {
	dem := DelauneyMeshDEM{Options: DefaultDEMOptions(resolution, outputDir)}
	return AssemblePipelines(tiles, ept, VendorGroundSource{}, []Product{dem})
}

// AssemblePipelines concatenates the point source stages with each product's
// stages, per tile. Products without an explicit input tag read from the
// source's final stage.
func AssemblePipelines(tiles []domain.TileData, ept domain.EPTData, source PointSource, products []Product) ([]domain.Pipeline, error) {
	if len(tiles) == 0 {
		return nil, nil
	}
	if source == nil {
		return nil, &domain.ValidationError{Field: "source", Reason: "is required"}
	}
	if len(products) == 0 {
		return nil, &domain.ValidationError{Field: "products", Reason: "at least one is required"}
	}

	out := make([]domain.Pipeline, 0, len(tiles))
	for _, tile := range tiles {
		p := domain.Pipeline{
			TileName: tile.TileName,
			Stages:   source.Stages(ept, tile),
		}
		for _, prod := range products {
			stages, err := prod.Stages(tile, source.Tag())
			if err != nil {
				return nil, fmt.Errorf("tile %s: %w", tile.TileName, err)
			}
			p.Stages = append(p.Stages, stages...)
			p.Outputs = append(p.Outputs, prod.Outputs(tile)...)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
