package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(DataDirEnv, "/srv/culvert")
	chdir(t, t.TempDir())

	cfg, err := Load("culvert-test")
	require.NoError(t, err)

	assert.Equal(t, "/srv/culvert", cfg.Pipeline.DataDir)
	assert.Equal(t, "file", cfg.Pipeline.TileIndexSource)
	assert.Equal(t, 1.0, cfg.Pipeline.Resolution)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.TileTimeout)
	assert.Equal(t, DefaultSTACCatalog, cfg.Pipeline.STACCatalogURL)
	assert.Equal(t, []string{"delauney_mesh_dem"}, cfg.Pipeline.Products)
	assert.Equal(t, "/srv/culvert/tile_index/tile_index.geojson", cfg.Pipeline.TileIndexFile())
	assert.Equal(t, "/srv/culvert/rasters", cfg.Pipeline.RasterDir())
	assert.Equal(t, "culvert-test", cfg.Telemetry.ServiceName)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CULVERT_PIPELINE_WORKERS", "3")
	t.Setenv("CULVERT_PIPELINE_TILE_TIMEOUT", "90s")

	cfg, err := Load("culvert-test")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.TileTimeout)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 0, ReadTimeout: 1, WriteTimeout: 1},
		Pipeline: PipelineConfig{TileIndexSource: "s3", DataDir: "d", Workers: 1, TileTimeout: time.Second, STACCatalogURL: "x", Products: []string{"p"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "tile_index_source")
	assert.Contains(t, err.Error(), "pipeline.resolution")
}

func TestValidate_PostgresNeedsDatabase(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 1, WriteTimeout: 1},
		Pipeline: PipelineConfig{TileIndexSource: "postgres", DataDir: "d", Resolution: 1, Workers: 1, TileTimeout: time.Second, STACCatalogURL: "x", Products: []string{"p"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")
}

func TestValidate_BufferDistanceMustBePositive(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080, ReadTimeout: 1, WriteTimeout: 1},
			Pipeline: PipelineConfig{TileIndexSource: "file", DataDir: "d", Resolution: 1, Workers: 1, TileTimeout: time.Second, STACCatalogURL: "x", BufferDistance: 10, Products: []string{"p"}},
		}
	}
	require.NoError(t, valid().Validate())

	for _, d := range []float64{0, -1} {
		cfg := valid()
		cfg.Pipeline.BufferDistance = d
		err := cfg.Validate()
		require.Error(t, err, "buffer_distance %v", d)
		assert.Contains(t, err.Error(), "pipeline.buffer_distance")
	}
}

func TestLoad_RejectsZeroBufferDistance(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CULVERT_PIPELINE_BUFFER_DISTANCE", "0")

	_, err := Load("culvert-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.buffer_distance")
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
