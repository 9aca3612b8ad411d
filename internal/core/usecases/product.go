package usecases

import (
	"fmt"
	"path/filepath"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// Product is a raster product built on top of a point source. The set of
// products is closed; see DelauneyMeshDEM, IntensityRaster and PointDensity.
type Product interface {
	Kind() domain.ProductKind
	// Stages returns the product stages reading from inputTag.
	Stages(tile domain.RasterBoundary, inputTag string) ([]domain.Stage, error)
	// Outputs lists the files the product writes for a tile.
	Outputs(tile domain.RasterBoundary) []string
	sealed()
}

// DEMOptions configure the Delaunay mesh DEM product.
type DEMOptions struct {
	Resolution float64
	OutputDir  string
	InputTag   string
	Prefix     string
	Postfix    string
	Extension  string
	GDALDriver string
	GDALOpts   string
	DataType   string
	NoData     float64
}

// DefaultDEMOptions returns the DEM defaults for a resolution and output dir.
// InputTag is left empty so the product follows the pipeline's point source.
func DefaultDEMOptions(resolution float64, outputDir string) DEMOptions {
	return DEMOptions{
		Resolution: resolution,
		OutputDir:  outputDir,
		Prefix:     "dem_",
		Extension:  ".tif",
		GDALDriver: "GTiff",
		GDALOpts:   "COMPRESS=DEFLATE",
		DataType:   "float32",
		NoData:     -999999,
	}
}

// IntensityOptions configure the intensity raster product.
type IntensityOptions struct {
	Resolution float64
	OutputDir  string
	InputTag   string
	Prefix     string
	Postfix    string
	Extension  string
	GDALDriver string
	GDALOpts   string
}

// DefaultIntensityOptions returns the intensity raster defaults.
func DefaultIntensityOptions(resolution float64, outputDir string) IntensityOptions {
	return IntensityOptions{
		Resolution: resolution,
		OutputDir:  outputDir,
		Prefix:     "intensity_",
		Extension:  ".tif",
		GDALDriver: "GTiff",
		GDALOpts:   "COMPRESS=DEFLATE",
	}
}

// OutputFilename joins the output dir with prefix+tile+postfix+extension.
func OutputFilename(dir, prefix, tileName, postfix, ext string) string {
	return filepath.Join(dir, prefix+tileName+postfix+ext)
}

// DelauneyMeshDEM triangulates ground points and rasterises the mesh.
type DelauneyMeshDEM struct {
	Options DEMOptions
}

func (DelauneyMeshDEM) Kind() domain.ProductKind { return domain.ProductDelauneyMeshDEM }
func (DelauneyMeshDEM) sealed()                  {}

func (p DelauneyMeshDEM) Stages(tile domain.RasterBoundary, inputTag string) ([]domain.Stage, error) {
	opts := p.Options
	if opts.InputTag == "" {
		opts.InputTag = inputTag
	}
	return DelauneyMeshDEMStages(tile, opts)
}

func (p DelauneyMeshDEM) Outputs(tile domain.RasterBoundary) []string {
	o := p.Options
	return []string{OutputFilename(o.OutputDir, o.Prefix, tile.Name(), o.Postfix, o.Extension)}
}

// DelauneyMeshDEMStages returns the delaunay, faceraster and raster writer
// stages for one tile.
func DelauneyMeshDEMStages(tile domain.RasterBoundary, opts DEMOptions) ([]domain.Stage, error) {
	if opts.Resolution <= 0 {
		return nil, &domain.ValidationError{Record: tile.Name(), Field: "resolution", Reason: "must be positive"}
	}
	if opts.InputTag == "" {
		opts.InputTag = VendorClassifiedGroundPointsTag
	}
	return []domain.Stage{
		{
			Tag:    "delaunay_mesh",
			Type:   "filters.delaunay",
			Inputs: []string{opts.InputTag},
		},
		{
			Tag:    "faceraster",
			Type:   "filters.faceraster",
			Inputs: []string{"delaunay_mesh"},
			Options: map[string]any{
				"resolution": opts.Resolution,
				"width":      tile.Width(opts.Resolution),
				"height":     tile.Height(opts.Resolution),
				"origin_x":   tile.OriginX(),
				"origin_y":   tile.OriginY(),
			},
		},
		{
			Tag:    "write_raster",
			Type:   "writers.raster",
			Inputs: []string{"faceraster"},
			Options: map[string]any{
				"filename":   OutputFilename(opts.OutputDir, opts.Prefix, tile.Name(), opts.Postfix, opts.Extension),
				"gdaldriver": opts.GDALDriver,
				"gdalopts":   opts.GDALOpts,
				"data_type":  opts.DataType,
				"nodata":     opts.NoData,
			},
		},
	}, nil
}

// IntensityRaster grids the mean return intensity of the input points.
type IntensityRaster struct {
	Options IntensityOptions
}

func (IntensityRaster) Kind() domain.ProductKind { return domain.ProductIntensityRaster }
func (IntensityRaster) sealed()                  {}

func (p IntensityRaster) Stages(tile domain.RasterBoundary, inputTag string) ([]domain.Stage, error) {
	opts := p.Options
	if opts.InputTag == "" {
		opts.InputTag = inputTag
	}
	return IntensityRasterStages(tile, opts)
}

func (p IntensityRaster) Outputs(tile domain.RasterBoundary) []string {
	o := p.Options
	return []string{OutputFilename(o.OutputDir, o.Prefix, tile.Name(), o.Postfix, o.Extension)}
}

// IntensityRasterStages returns the single GDAL writer stage of the
// intensity product.
func IntensityRasterStages(tile domain.RasterBoundary, opts IntensityOptions) ([]domain.Stage, error) {
	if opts.Resolution <= 0 {
		return nil, &domain.ValidationError{Record: tile.Name(), Field: "resolution", Reason: "must be positive"}
	}
	if opts.InputTag == "" {
		opts.InputTag = VendorClassifiedGroundPointsTag
	}
	return []domain.Stage{{
		Tag:    "intensity_raster",
		Type:   "writers.gdal",
		Inputs: []string{opts.InputTag},
		Options: map[string]any{
			"filename":    OutputFilename(opts.OutputDir, opts.Prefix, tile.Name(), opts.Postfix, opts.Extension),
			"resolution":  opts.Resolution,
			"width":       tile.Width(opts.Resolution),
			"height":      tile.Height(opts.Resolution),
			"origin_x":    tile.OriginX(),
			"origin_y":    tile.OriginY(),
			"dimension":   "Intensity",
			"output_type": "all",
			"data_type":   "uint16",
			"nodata":      65535,
			"gdaldriver":  opts.GDALDriver,
			"gdalopts":    opts.GDALOpts,
		},
	}}, nil
}

// PointDensity is reserved; building it always fails.
type PointDensity struct{}

func (PointDensity) Kind() domain.ProductKind { return domain.ProductPointDensity }
func (PointDensity) sealed()                  {}

func (PointDensity) Stages(domain.RasterBoundary, string) ([]domain.Stage, error) {
	return nil, fmt.Errorf("point density product: %w", domain.ErrNotImplemented)
}

func (PointDensity) Outputs(domain.RasterBoundary) []string { return nil }

// ProductsFor builds the configured products. Names are resolved here, at the
// configuration boundary, and never past it.
func ProductsFor(names []string, resolution float64, outputDir string) ([]Product, error) {
	if len(names) == 0 {
		names = []string{domain.ProductDelauneyMeshDEM.String()}
	}
	out := make([]Product, 0, len(names))
	for _, n := range names {
		kind, err := domain.ParseProductKind(n)
		if err != nil {
			return nil, err
		}
		switch kind {
		case domain.ProductDelauneyMeshDEM:
			out = append(out, DelauneyMeshDEM{Options: DefaultDEMOptions(resolution, outputDir)})
		case domain.ProductIntensityRaster:
			out = append(out, IntensityRaster{Options: DefaultIntensityOptions(resolution, outputDir)})
		case domain.ProductPointDensity:
			out = append(out, PointDensity{})
		default:
			return nil, fmt.Errorf("product %s: %w", kind, domain.ErrNotImplemented)
		}
	}
	return out, nil
}
