// Package config provides the configuration for the cifstore tools.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/arkilian/cifstore/internal/cache"
	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/internal/storage"
	"github.com/arkilian/cifstore/pkg/cif"
	"github.com/arkilian/cifstore/pkg/validator"
)

// Storage types.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "CIFSTORE_"

// Config holds the configuration for loading, checking and writing documents.
type Config struct {
	// Strict makes every validation problem fatal
	Strict bool `json:"strict" yaml:"strict"`

	// Verbosity is the diagnostic level of the engine; zero is silent
	Verbosity int `json:"verbosity" yaml:"verbosity"`

	// Dictionary configuration
	Dictionary DictionaryConfig `json:"dictionary" yaml:"dictionary"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Download cache configuration
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Document IO configuration
	IO IOConfig `json:"io" yaml:"io"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`
}

// DictionaryConfig holds dictionary configuration.
type DictionaryConfig struct {
	// Path is a DDL (.dic, .cif) or resolved YAML dictionary, optionally compressed
	Path string `json:"path" yaml:"path"`
}

// StorageConfig holds document storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage root (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// Prefix is prepended to every document key
	Prefix string `json:"prefix" yaml:"prefix"`
}

// CacheConfig holds the download cache configuration. The cache is off
// when Dir is empty.
type CacheConfig struct {
	// Dir is the cache directory
	Dir string `json:"dir" yaml:"dir"`

	// MaxBytes bounds the cache size
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`
}

// IOConfig holds document encoding and loading configuration.
type IOConfig struct {
	// Compression is none, gzip, snappy or auto (by key extension)
	Compression string `json:"compression" yaml:"compression"`

	// MaxParallelLoads bounds concurrent document loads
	MaxParallelLoads int `json:"max_parallel_loads" yaml:"max_parallel_loads"`
}

// OutputConfig holds output configuration.
type OutputConfig struct {
	// LineWidth is the width at which loop rows wrap
	LineWidth int `json:"line_width" yaml:"line_width"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Type: StorageLocal,
			Path: ".",
		},
		Cache: CacheConfig{
			MaxBytes: cache.DefaultMaxBytes,
		},
		IO: IOConfig{
			Compression:      string(storage.CompressionAuto),
			MaxParallelLoads: storage.DefaultMaxParallelLoads,
		},
		Output: OutputConfig{
			LineWidth: cif.DefaultLineWidth,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Verbosity, validation.Min(0)),
	); err != nil {
		return cerrors.NewConfigError("invalid configuration", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return cerrors.NewConfigError("invalid storage configuration", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return cerrors.NewConfigError("invalid cache configuration", err)
	}
	if err := c.IO.Validate(); err != nil {
		return cerrors.NewConfigError("invalid io configuration", err)
	}
	if err := c.Output.Validate(); err != nil {
		return cerrors.NewConfigError("invalid output configuration", err)
	}
	return nil
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Type, validation.Required, validation.In(StorageLocal, StorageS3)),
		validation.Field(&c.Path, validation.When(c.Type == StorageLocal, validation.Required)),
		validation.Field(&c.S3, validation.When(c.Type == StorageS3, validation.By(func(interface{}) error {
			return c.S3.Validate()
		}))),
	)
}

// Validate validates the S3 configuration.
func (c *S3Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Bucket, validation.Required),
	)
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxBytes, validation.When(c.Dir != "", validation.Required, validation.Min(int64(1)))),
	)
}

// Validate validates the io configuration.
func (c *IOConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Compression, validation.In(
			string(storage.CompressionNone), string(storage.CompressionGzip),
			string(storage.CompressionSnappy), string(storage.CompressionAuto),
		)),
		validation.Field(&c.MaxParallelLoads, validation.Min(0), validation.Max(256)),
	)
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LineWidth, validation.Min(0), validation.Max(2048)),
	)
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewConfigError("failed to read config file", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, cerrors.NewConfigError("failed to parse YAML config", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, cerrors.NewConfigError("failed to parse JSON config", err)
		}
	default:
		return nil, cerrors.NewConfigError(fmt.Sprintf("unsupported config file format: %s", ext), nil)
	}

	return cfg, nil
}

// LoadFromEnv overrides cfg with CIFSTORE_ environment variables. Values
// that do not parse are reported.
func LoadFromEnv(cfg *Config) error {
	var errs []string
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num64 := func(name string, dst *int64) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, EnvPrefix+name)
				return
			}
			*dst = n
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name)
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name)
				return
			}
			*dst = b
		}
	}

	flag("STRICT", &cfg.Strict)
	num("VERBOSITY", &cfg.Verbosity)
	str("DICTIONARY", &cfg.Dictionary.Path)

	str("STORAGE_TYPE", &cfg.Storage.Type)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("S3_BUCKET", &cfg.Storage.S3.Bucket)
	str("S3_REGION", &cfg.Storage.S3.Region)
	str("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	str("S3_PREFIX", &cfg.Storage.S3.Prefix)
	flag("S3_PATH_STYLE", &cfg.Storage.S3.UsePathStyle)

	str("CACHE_DIR", &cfg.Cache.Dir)
	num64("CACHE_MAX_BYTES", &cfg.Cache.MaxBytes)

	str("COMPRESSION", &cfg.IO.Compression)
	num("MAX_PARALLEL_LOADS", &cfg.IO.MaxParallelLoads)
	num("LINE_WIDTH", &cfg.Output.LineWidth)

	if len(errs) > 0 {
		return cerrors.NewConfigError("invalid environment value for "+strings.Join(errs, ", "), nil)
	}
	return nil
}

// Load reads the file at path, when set, then applies the environment and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidatorOptions returns the dictionary options implied by the configuration.
func (c *Config) ValidatorOptions() []validator.Option {
	return []validator.Option{
		validator.WithStrict(c.Strict),
		validator.WithVerbosity(c.Verbosity),
	}
}

// CIFOptions returns the engine options implied by the configuration.
func (c *Config) CIFOptions() []cif.Option {
	return []cif.Option{
		cif.WithVerbosity(c.Verbosity),
		cif.WithLineWidth(c.Output.LineWidth),
	}
}

// OpenStorage returns the configured object storage.
func (c *Config) OpenStorage(ctx context.Context) (storage.ObjectStorage, error) {
	switch c.Storage.Type {
	case StorageS3:
		s3cfg := storage.DefaultS3Config()
		if c.Storage.S3.Region != "" {
			s3cfg.Region = c.Storage.S3.Region
		}
		s3cfg.Endpoint = c.Storage.S3.Endpoint
		s3cfg.UsePathStyle = c.Storage.S3.UsePathStyle
		s3cfg.Prefix = c.Storage.S3.Prefix
		return storage.NewS3Storage(ctx, c.Storage.S3.Bucket, s3cfg)
	case StorageLocal, "":
		return storage.NewLocalStorage(c.Storage.Path)
	default:
		return nil, cerrors.NewConfigError(fmt.Sprintf("invalid storage type: %s", c.Storage.Type), nil)
	}
}

// DocumentsOptions returns the document store options implied by the
// configuration.
func (c *Config) DocumentsOptions() ([]storage.DocumentsOption, error) {
	compression, err := storage.ParseCompression(c.IO.Compression)
	if err != nil {
		return nil, err
	}
	return []storage.DocumentsOption{
		storage.WithCompression(compression),
		storage.WithMaxParallelLoads(c.IO.MaxParallelLoads),
		storage.WithCIFOptions(c.CIFOptions()...),
	}, nil
}

// OpenCache returns the configured download cache, or nil when caching is
// off.
func (c *Config) OpenCache(logger *slog.Logger) (*cache.DiskCache, error) {
	if c.Cache.Dir == "" {
		return nil, nil
	}
	return cache.New(c.Cache.Dir, c.Cache.MaxBytes, logger)
}
