package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/core/ports"
	"github.com/depowered/culvertvision/internal/pkg/config"
	"github.com/depowered/culvertvision/internal/pkg/geospatial"
)

// TileIndexService builds the unified tile index from per-workunit sources.
type TileIndexService struct {
	shapes ports.TileShapeReader
}

// NewTileIndexService creates a new TileIndexService.
func NewTileIndexService(shapes ports.TileShapeReader) *TileIndexService {
	return &TileIndexService{shapes: shapes}
}

// Build reads every configured source, tags its records with the workunit,
// reprojects them into the target CRS and concatenates them in config order.
func (s *TileIndexService) Build(ctx context.Context, cfg config.TileIndexBuildConfig) (*domain.TileIndex, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	target := domain.EPSG(cfg.TargetEPSG())
	index := &domain.TileIndex{CRS: target}

	for _, src := range cfg.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := cfg.SourcePath(src)
		recs, err := s.shapes.ReadTiles(ctx, path, src.TileNameField)
		if err != nil {
			return nil, fmt.Errorf("workunit %s: %w", src.Workunit, err)
		}
		tr, err := geospatial.NewTransformer(src.EPSG, target.EPSG)
		if err != nil {
			return nil, fmt.Errorf("workunit %s: %w", src.Workunit, err)
		}
		for _, rec := range recs {
			g, err := tr.Geometry(rec.Geometry)
			if err != nil {
				return nil, fmt.Errorf("workunit %s tile %s: %w", src.Workunit, rec.TileName, err)
			}
			rec.Workunit = src.Workunit
			rec.Geometry = g
			if err := rec.Validate(); err != nil {
				return nil, fmt.Errorf("workunit %s: %w", src.Workunit, err)
			}
			index.Records = append(index.Records, rec)
		}
		slog.Info("tile index source read", "workunit", src.Workunit, "tiles", len(recs), "path", path)
	}
	return index, nil
}

// Publish writes the index to every destination in order.
func (s *TileIndexService) Publish(ctx context.Context, index *domain.TileIndex, dests ...ports.TileIndexWriter) error {
	for _, d := range dests {
		if err := d.ReplaceAll(ctx, index); err != nil {
			return err
		}
	}
	return nil
}
