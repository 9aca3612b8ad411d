package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/core/usecases"
	"github.com/depowered/culvertvision/internal/pkg/config"
)

type recordingWriter struct {
	got *domain.TileIndex
}

func (w *recordingWriter) ReplaceAll(ctx context.Context, index *domain.TileIndex) error {
	w.got = index
	return nil
}

func TestTileIndexService_Build(t *testing.T) {
	shapes := &mockShapes{byPath: map[string][]domain.TileRecord{
		"/src/a.zip": {
			{TileName: "15TXN689290", Geometry: box(689000, 5290000, 690000, 5291000)},
			{TileName: "15TXN690290", Geometry: box(690000, 5290000, 691000, 5291000)},
		},
		"/src/b.zip": {
			{TileName: "equator", Geometry: box(-93.01, -0.01, -92.99, 0.01)},
		},
	}}
	cfg := config.TileIndexBuildConfig{
		SourceDir:  "/src",
		OutputPath: "/out/tile_index.geojson",
		Sources: []config.TileIndexSource{
			{Workunit: "MN_A", ZippedShapefile: "a.zip", TileNameField: "Name", EPSG: 6344},
			{Workunit: "MN_B", ZippedShapefile: "b.zip", TileNameField: "TILE", EPSG: 4326},
		},
	}

	svc := usecases.NewTileIndexService(shapes)
	index, err := svc.Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index.CRS != domain.EPSG(6344) {
		t.Errorf("expected first source CRS, got %s", index.CRS)
	}
	if len(index.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(index.Records))
	}
	if index.Records[0].Workunit != "MN_A" || index.Records[2].Workunit != "MN_B" {
		t.Errorf("workunits not assigned: %+v", index.Records)
	}
	c := index.Records[2].Geometry.Bound().Center()
	if abs(c[0]-500000) > 1 || abs(c[1]) > 1 {
		t.Errorf("second source should be reprojected to UTM 15N, center %v", c)
	}

	w := &recordingWriter{}
	if err := svc.Publish(context.Background(), index, w); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if w.got != index {
		t.Error("writer did not receive the index")
	}
}

func TestTileIndexService_Build_MissingSource(t *testing.T) {
	cfg := config.TileIndexBuildConfig{
		SourceDir:  "/src",
		OutputPath: "/out/x.geojson",
		Sources:    []config.TileIndexSource{{Workunit: "W", ZippedShapefile: "missing.zip", TileNameField: "Name", EPSG: 6344}},
	}
	_, err := usecases.NewTileIndexService(&mockShapes{}).Build(context.Background(), cfg)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTileIndexService_Build_InvalidConfig(t *testing.T) {
	_, err := usecases.NewTileIndexService(&mockShapes{}).Build(context.Background(), config.TileIndexBuildConfig{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
