// Package config resolves runtime settings from the environment, optionally
// primed from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/roach88/golfkpi/internal/archive"
	"github.com/roach88/golfkpi/internal/classify"
	"github.com/roach88/golfkpi/internal/store"
)

// Environment variable names.
const (
	EnvDBDriver     = "GOLFKPI_DB_DRIVER"
	EnvDBDSN        = "GOLFKPI_DB_DSN"
	EnvBusyTimeout  = "GOLFKPI_BUSY_TIMEOUT_MS"
	EnvMinSample    = "GOLFKPI_MIN_SAMPLE"
	EnvValidSample  = "GOLFKPI_VALID_SAMPLE"
	EnvArchive      = "GOLFKPI_ARCHIVE"
	EnvArchiveDir   = "GOLFKPI_ARCHIVE_DIR"
	EnvS3Bucket     = "GOLFKPI_S3_BUCKET"
	EnvS3Region     = "GOLFKPI_S3_REGION"
	EnvS3Endpoint   = "GOLFKPI_S3_ENDPOINT"
	EnvS3PathStyle  = "GOLFKPI_S3_PATH_STYLE"
	EnvHTTPAddr     = "GOLFKPI_HTTP_ADDR"
	EnvSeedDir      = "GOLFKPI_SEED_DIR"
	EnvLogLevel     = "GOLFKPI_LOG_LEVEL"
	DefaultEnvFile  = ".env"
	DefaultDSN      = "golfkpi.db"
	DefaultHTTPAddr = "127.0.0.1:8080"
)

// Config is the resolved runtime configuration.
type Config struct {
	DBDriver      string
	DBDSN         string
	BusyTimeoutMS int
	Thresholds    classify.Thresholds

	// Archive is "", "fs" or "s3"; empty disables archiving.
	Archive    archive.Driver
	ArchiveDir string
	S3         archive.S3Config

	HTTPAddr string
	SeedDir  string
	LogLevel string
}

// Load reads envFile into the process environment when it exists, without
// overriding variables already set, then resolves Config from the
// environment. A missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv resolves Config through getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	th := classify.DefaultThresholds()
	cfg := &Config{
		DBDriver:   orDefault(getenv(EnvDBDriver), store.DriverSQLite3),
		DBDSN:      orDefault(getenv(EnvDBDSN), DefaultDSN),
		HTTPAddr:   orDefault(getenv(EnvHTTPAddr), DefaultHTTPAddr),
		SeedDir:    getenv(EnvSeedDir),
		LogLevel:   orDefault(strings.ToLower(getenv(EnvLogLevel)), "info"),
		Archive:    archive.Driver(strings.ToLower(getenv(EnvArchive))),
		ArchiveDir: getenv(EnvArchiveDir),
		S3: archive.S3Config{
			Bucket:   getenv(EnvS3Bucket),
			Region:   getenv(EnvS3Region),
			Endpoint: getenv(EnvS3Endpoint),
		},
	}

	var err error
	if cfg.BusyTimeoutMS, err = intVar(getenv, EnvBusyTimeout, 5000); err != nil {
		return nil, err
	}
	if th.MinSample, err = intVar(getenv, EnvMinSample, th.MinSample); err != nil {
		return nil, err
	}
	if th.ValidSample, err = intVar(getenv, EnvValidSample, th.ValidSample); err != nil {
		return nil, err
	}
	cfg.Thresholds = th

	if v := getenv(EnvS3PathStyle); v != "" {
		if cfg.S3.PathStyle, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvS3PathStyle, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case store.DriverSQLite3, store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("%s: unsupported driver %q", EnvDBDriver, c.DBDriver)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("sample thresholds: %w", err)
	}
	switch c.Archive {
	case "":
	case archive.DriverFilesystem:
		if c.ArchiveDir == "" {
			return fmt.Errorf("%s is required when %s=fs", EnvArchiveDir, EnvArchive)
		}
	case archive.DriverS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("%s is required when %s=s3", EnvS3Bucket, EnvArchive)
		}
	default:
		return fmt.Errorf("%s: unsupported archive %q", EnvArchive, c.Archive)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s: unsupported level %q", EnvLogLevel, c.LogLevel)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
