package ports

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// TileIndexRepository reads the unified tile index.
type TileIndexRepository interface {
	// CRS returns the CRS the index geometries are stored in.
	CRS(ctx context.Context) (domain.CRS, error)
	// Load returns index records. A non-nil within restricts the result to
	// records whose bounding box overlaps it; the bound is in the index CRS.
	Load(ctx context.Context, within *orb.Bound) (*domain.TileIndex, error)
}

// TileIndexWriter replaces the stored tile index.
type TileIndexWriter interface {
	ReplaceAll(ctx context.Context, index *domain.TileIndex) error
}

// TileShapeReader reads tile footprints from one workunit's source file.
// Records come back with TileName and Geometry set and Workunit empty.
type TileShapeReader interface {
	ReadTiles(ctx context.Context, path, tileNameField string) ([]domain.TileRecord, error)
}
