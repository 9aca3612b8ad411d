package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// TileIndexBuildConfig describes how to assemble the unified tile index from
// per-workunit zipped shapefiles.
type TileIndexBuildConfig struct {
	SourceDir  string            `toml:"tile_index_source_dir"`
	OutputPath string            `toml:"output_filepath"`
	OutputEPSG int               `toml:"output_epsg"`
	Sources    []TileIndexSource `toml:"tile_index_configs"`
}

// TileIndexSource is one workunit's tile shapefile.
type TileIndexSource struct {
	Workunit        string `toml:"workunit"`
	ZippedShapefile string `toml:"zipped_shapefile"`
	TileNameField   string `toml:"tile_name_field"`
	EPSG            int    `toml:"epsg"`
	EPTJSONURL      string `toml:"ept_json_url"`
}

// SourcePath is the absolute location of a source shapefile.
func (c TileIndexBuildConfig) SourcePath(src TileIndexSource) string {
	return filepath.Join(c.SourceDir, src.ZippedShapefile)
}

// TargetEPSG is output_epsg, or the first source's EPSG when unset.
func (c TileIndexBuildConfig) TargetEPSG() int {
	if c.OutputEPSG != 0 || len(c.Sources) == 0 {
		return c.OutputEPSG
	}
	return c.Sources[0].EPSG
}

// LoadTileIndexBuild parses a TOML build file. Relative directories resolve
// against dataDir.
func LoadTileIndexBuild(path, dataDir string) (TileIndexBuildConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TileIndexBuildConfig{}, fmt.Errorf("read tile index config: %w", err)
	}

	var cfg TileIndexBuildConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return TileIndexBuildConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if !filepath.IsAbs(cfg.SourceDir) {
		cfg.SourceDir = filepath.Join(dataDir, cfg.SourceDir)
	}
	if cfg.OutputPath != "" && !filepath.IsAbs(cfg.OutputPath) {
		cfg.OutputPath = filepath.Join(dataDir, cfg.OutputPath)
	}

	if err := cfg.Validate(); err != nil {
		return TileIndexBuildConfig{}, err
	}
	return cfg, nil
}

// Validate checks the build file for missing fields.
func (c TileIndexBuildConfig) Validate() error {
	var errs []string
	if c.OutputPath == "" {
		errs = append(errs, "output_filepath is required")
	}
	if len(c.Sources) == 0 {
		errs = append(errs, "tile_index_configs must list at least one source")
	}
	for i, s := range c.Sources {
		if s.Workunit == "" {
			errs = append(errs, fmt.Sprintf("tile_index_configs[%d].workunit is required", i))
		}
		if s.ZippedShapefile == "" {
			errs = append(errs, fmt.Sprintf("tile_index_configs[%d].zipped_shapefile is required", i))
		}
		if s.TileNameField == "" {
			errs = append(errs, fmt.Sprintf("tile_index_configs[%d].tile_name_field is required", i))
		}
		if s.EPSG <= 0 {
			errs = append(errs, fmt.Sprintf("tile_index_configs[%d].epsg is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("tile index config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
