package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSTACCatalog is the USGS 3DEP EPT catalog.
const DefaultSTACCatalog = "https://usgs-lidar-stac.s3-us-west-2.amazonaws.com/ept/catalog.json"

// DataDirEnv names the data directory in the environment.
const DataDirEnv = "CULVERT_VISION_DATA_DIR"

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig    `mapstructure:"server"`
	Database      DatabaseConfig  `mapstructure:"database"`
	NATS          NATSConfig      `mapstructure:"nats"`
	Valkey        ValkeyConfig    `mapstructure:"valkey"`
	Telemetry     TelemetryConfig `mapstructure:"telemetry"`
	Temporal      TemporalConfig  `mapstructure:"temporal"`
	Log           LogConfig       `mapstructure:"log"`
	Pipeline      PipelineConfig  `mapstructure:"pipeline"`
	VectorSources []VectorSource  `mapstructure:"vector_sources"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PipelineConfig drives tile selection and raster production.
type PipelineConfig struct {
	DataDir         string        `mapstructure:"data_dir"`
	TileIndexPath   string        `mapstructure:"tile_index_path"`
	TileIndexSource string        `mapstructure:"tile_index_source"` // file | postgres
	OutputDir       string        `mapstructure:"output_dir"`
	Resolution      float64       `mapstructure:"resolution"`
	Workers         int           `mapstructure:"workers"`
	TileTimeout     time.Duration `mapstructure:"tile_timeout"`
	PDALBinary      string        `mapstructure:"pdal_binary"`
	STACCatalogURL  string        `mapstructure:"stac_catalog_url"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	BufferDistance  float64       `mapstructure:"buffer_distance"`
	EPTCacheTTL     time.Duration `mapstructure:"ept_cache_ttl"`
	Products        []string      `mapstructure:"products"`
}

// TileIndexFile is the GeoJSON tile index location.
func (p PipelineConfig) TileIndexFile() string {
	if p.TileIndexPath != "" {
		return p.TileIndexPath
	}
	return filepath.Join(p.DataDir, "tile_index", "tile_index.geojson")
}

// RasterDir is where products are written.
func (p PipelineConfig) RasterDir() string {
	if p.OutputDir != "" {
		return p.OutputDir
	}
	return filepath.Join(p.DataDir, "rasters")
}

// VectorSource is a remote dataset mirrored into the data directory.
type VectorSource struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Filename string `mapstructure:"filename"`
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	dataDir := os.Getenv(DataDirEnv)
	if dataDir == "" {
		dataDir = "./data"
	}

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "culvert")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "culvertvision")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "rasterize-queue")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.data_dir", dataDir)
	v.SetDefault("pipeline.tile_index_source", "file")
	v.SetDefault("pipeline.resolution", 1.0)
	v.SetDefault("pipeline.workers", runtime.NumCPU())
	v.SetDefault("pipeline.tile_timeout", "30m")
	v.SetDefault("pipeline.pdal_binary", "pdal")
	v.SetDefault("pipeline.stac_catalog_url", DefaultSTACCatalog)
	v.SetDefault("pipeline.http_timeout", "30s")
	v.SetDefault("pipeline.buffer_distance", 10.0)
	v.SetDefault("pipeline.ept_cache_ttl", "24h")
	v.SetDefault("pipeline.products", []string{"delauney_mesh_dem"})

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CULVERT_PIPELINE_WORKERS → pipeline.workers
	v.SetEnvPrefix("CULVERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	p := c.Pipeline
	switch p.TileIndexSource {
	case "file":
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required for a postgres tile index")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required for a postgres tile index")
		}
	default:
		errs = append(errs, fmt.Sprintf("pipeline.tile_index_source must be file or postgres, got %q", p.TileIndexSource))
	}
	if p.DataDir == "" {
		errs = append(errs, "pipeline.data_dir is required")
	}
	if p.Resolution <= 0 {
		errs = append(errs, "pipeline.resolution must be positive")
	}
	if p.Workers <= 0 {
		errs = append(errs, "pipeline.workers must be positive")
	}
	if p.TileTimeout <= 0 {
		errs = append(errs, "pipeline.tile_timeout must be positive")
	}
	// tile data substitutes its default for zero
	if p.BufferDistance <= 0 {
		errs = append(errs, "pipeline.buffer_distance must be positive")
	}
	if p.STACCatalogURL == "" {
		errs = append(errs, "pipeline.stac_catalog_url is required")
	}
	if len(p.Products) == 0 {
		errs = append(errs, "pipeline.products must name at least one product")
	}
	for i, src := range c.VectorSources {
		if src.Name == "" || src.URL == "" {
			errs = append(errs, fmt.Sprintf("vector_sources[%d] needs name and url", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
