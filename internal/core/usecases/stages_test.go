package usecases_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/depowered/culvertvision/internal/core/domain"
	"github.com/depowered/culvertvision/internal/core/usecases"
)

func testTile() domain.TileData {
	return domain.TileData{
		TileName:     "15TXN689291",
		MinX:         1,
		MinY:         2,
		MaxX:         11,
		MaxY:         22,
		CRS:          domain.EPSG(6344),
		EPTFilterWKT: "POLYGON((0 0,0 10,10 10,10 0,0 0))",
	}
}

func testEPT() domain.EPTData {
	return domain.EPTData{
		Workunit:   "MN_RainyLake_1_2020",
		CRS:        domain.EPSG(3857),
		EPTJSONURL: "https://fake.com/ept.json",
	}
}

func TestTileData_WidthHeight(t *testing.T) {
	tile := testTile()
	if w, h := tile.Width(1), tile.Height(1); w != 10 || h != 20 {
		t.Errorf("resolution 1: expected 10x20, got %dx%d", w, h)
	}
	// partial cells round up
	if w, h := tile.Width(0.3), tile.Height(0.3); w != 34 || h != 67 {
		t.Errorf("resolution 0.3: expected 34x67, got %dx%d", w, h)
	}
	if tile.OriginX() != 1 || tile.OriginY() != 2 {
		t.Errorf("unexpected origin (%v, %v)", tile.OriginX(), tile.OriginY())
	}
}

func TestVendorClassifiedGroundPoints(t *testing.T) {
	got := usecases.VendorClassifiedGroundPoints(testEPT(), testTile())

	want := []domain.Stage{
		{
			Tag:  "raw_points",
			Type: "readers.ept",
			Options: map[string]any{
				"filename": "https://fake.com/ept.json",
				"polygon":  "POLYGON((0 0,0 10,10 10,10 0,0 0))",
			},
		},
		{
			Tag:     "ground_only",
			Type:    "filters.range",
			Inputs:  []string{"raw_points"},
			Options: map[string]any{"limits": "Classification[2:2]"},
		},
		{
			Tag:     "vendor_classified_ground_points",
			Type:    "filters.reprojection",
			Inputs:  []string{"ground_only"},
			Options: map[string]any{"out_srs": "EPSG:6344"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	if got[len(got)-1].Tag != usecases.VendorClassifiedGroundPointsTag {
		t.Errorf("last stage tag should be the exported constant")
	}
}

func TestDelauneyMeshDEMStages(t *testing.T) {
	opts := usecases.DefaultDEMOptions(1, "/out")
	got, err := usecases.DelauneyMeshDEMStages(testTile(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.Stage{
		{
			Tag:    "delaunay_mesh",
			Type:   "filters.delaunay",
			Inputs: []string{"vendor_classified_ground_points"},
		},
		{
			Tag:    "faceraster",
			Type:   "filters.faceraster",
			Inputs: []string{"delaunay_mesh"},
			Options: map[string]any{
				"resolution": 1.0,
				"width":      10,
				"height":     20,
				"origin_x":   1.0,
				"origin_y":   2.0,
			},
		},
		{
			Tag:    "write_raster",
			Type:   "writers.raster",
			Inputs: []string{"faceraster"},
			Options: map[string]any{
				"filename":   filepath.Join("/out", "dem_15TXN689291.tif"),
				"gdaldriver": "GTiff",
				"gdalopts":   "COMPRESS=DEFLATE",
				"data_type":  "float32",
				"nodata":     -999999.0,
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestDelauneyMeshDEMStages_CustomNaming(t *testing.T) {
	opts := usecases.DefaultDEMOptions(0.5, "rasters")
	opts.Prefix = "bare_earth_"
	opts.Postfix = "_v2"
	opts.InputTag = "smrf_ground"

	got, err := usecases.DelauneyMeshDEMStages(testTile(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Inputs[0] != "smrf_ground" {
		t.Errorf("expected custom input tag, got %v", got[0].Inputs)
	}
	if fn := got[2].Options["filename"]; fn != filepath.Join("rasters", "bare_earth_15TXN689291_v2.tif") {
		t.Errorf("unexpected filename %v", fn)
	}
	if w := got[1].Options["width"]; w != 20 {
		t.Errorf("expected width 20 at 0.5 resolution, got %v", w)
	}
}

func TestDelauneyMeshDEMStages_BadResolution(t *testing.T) {
	_, err := usecases.DelauneyMeshDEMStages(testTile(), usecases.DefaultDEMOptions(0, "/out"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIntensityRasterStages(t *testing.T) {
	got, err := usecases.IntensityRasterStages(testTile(), usecases.DefaultIntensityOptions(2, "/out"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(got))
	}
	st := got[0]
	if st.Tag != "intensity_raster" || st.Type != "writers.gdal" {
		t.Errorf("unexpected stage %s/%s", st.Tag, st.Type)
	}
	checks := map[string]any{
		"filename":    filepath.Join("/out", "intensity_15TXN689291.tif"),
		"width":       5,
		"height":      10,
		"dimension":   "Intensity",
		"output_type": "all",
		"data_type":   "uint16",
		"nodata":      65535,
	}
	for k, v := range checks {
		if st.Options[k] != v {
			t.Errorf("option %s: expected %v, got %v", k, v, st.Options[k])
		}
	}
}

func TestPointDensity_NotImplemented(t *testing.T) {
	_, err := usecases.PointDensity{}.Stages(testTile(), usecases.VendorClassifiedGroundPointsTag)
	if !errors.Is(err, domain.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestProductsFor(t *testing.T) {
	products, err := usecases.ProductsFor([]string{"delauney_mesh_dem", "Intensity_Raster"}, 1, "/out")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].Kind() != domain.ProductDelauneyMeshDEM || products[1].Kind() != domain.ProductIntensityRaster {
		t.Errorf("unexpected kinds %v, %v", products[0].Kind(), products[1].Kind())
	}

	if _, err := usecases.ProductsFor([]string{"hillshade"}, 1, "/out"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for unknown product, got %v", err)
	}
}

func TestGeneratePipelines(t *testing.T) {
	pipelines, err := usecases.GeneratePipelines([]domain.TileData{testTile()}, testEPT(), 1, "/out")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pipelines) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(pipelines))
	}
	p := pipelines[0]
	wantTags := []string{"raw_points", "ground_only", "vendor_classified_ground_points", "delaunay_mesh", "faceraster", "write_raster"}
	if diff := cmp.Diff(wantTags, p.Tags()); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{filepath.Join("/out", "dem_15TXN689291.tif")}, p.Outputs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestGeneratePipelines_Deterministic(t *testing.T) {
	a, _ := usecases.GeneratePipelines([]domain.TileData{testTile()}, testEPT(), 1, "/out")
	b, _ := usecases.GeneratePipelines([]domain.TileData{testTile()}, testEPT(), 1, "/out")
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("pipelines differ between calls:\n%s", diff)
	}
}

func TestGeneratePipelines_Empty(t *testing.T) {
	pipelines, err := usecases.GeneratePipelines(nil, testEPT(), 1, "/out")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pipelines) != 0 {
		t.Errorf("expected no pipelines, got %d", len(pipelines))
	}
}

func TestAssemblePipelines_MultipleProducts(t *testing.T) {
	products := []usecases.Product{
		usecases.DelauneyMeshDEM{Options: usecases.DefaultDEMOptions(1, "/out")},
		usecases.IntensityRaster{Options: usecases.DefaultIntensityOptions(1, "/out")},
	}
	pipelines, err := usecases.AssemblePipelines([]domain.TileData{testTile()}, testEPT(), usecases.VendorGroundSource{}, products)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := pipelines[0]
	if len(p.Stages) != 7 {
		t.Errorf("expected 7 stages, got %d", len(p.Stages))
	}
	if len(p.Outputs) != 2 {
		t.Errorf("expected 2 outputs, got %v", p.Outputs)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("assembled pipeline should validate: %v", err)
	}
}

func TestAssemblePipelines_PointDensityFails(t *testing.T) {
	_, err := usecases.AssemblePipelines([]domain.TileData{testTile()}, testEPT(), usecases.VendorGroundSource{}, []usecases.Product{usecases.PointDensity{}})
	if !errors.Is(err, domain.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestAssemblePipelines_DanglingInput(t *testing.T) {
	opts := usecases.DefaultDEMOptions(1, "/out")
	opts.InputTag = "missing"
	_, err := usecases.AssemblePipelines([]domain.TileData{testTile()}, testEPT(), usecases.VendorGroundSource{}, []usecases.Product{usecases.DelauneyMeshDEM{Options: opts}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
