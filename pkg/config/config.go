// Package config loads daemon settings from env files and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAppEnv       = "APP_ENV"
	EnvAddr         = "FILEHOST_ADDR"
	EnvUploadDir    = "FILEHOST_UPLOAD_DIR"
	EnvMaxFileSize  = "FILEHOST_MAX_FILE_SIZE"
	EnvMaxFileCount = "FILEHOST_MAX_FILE_COUNT"
	EnvDBDriver     = "FILEHOST_DB_DRIVER"
	EnvDatabaseURL  = "FILEHOST_DATABASE_URL"
)

// Defaults.
const (
	DefaultEnv          = "development"
	DefaultAddr         = ":8080"
	DefaultUploadDir    = "uploads"
	DefaultMaxFileSize  = 10 << 20
	DefaultMaxFileCount = 5
	DefaultDBDriver     = "sqlite"
	DefaultDatabaseURL  = "filehost.db"
)

var (
	// ErrInvalidConfig is returned for values that parse but make no sense.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds the daemon settings.
type Config struct {
	Env          string
	Addr         string
	UploadDir    string
	MaxFileSize  int64
	MaxFileCount int
	DBDriver     string
	DatabaseURL  string
	// Files lists the env files that were actually read.
	Files []string
}

// Load reads .env.<env>.local, .env.<env> and .env from dir, in that order of precedence,
// then builds a Config from the environment. Variables already set in the process win over
// every file. An empty env falls back to APP_ENV, then to "development".
func Load(dir, env string) (*Config, error) {
	if env == "" {
		env = os.Getenv(EnvAppEnv)
	}
	if env == "" {
		env = DefaultEnv
	}

	cfg := &Config{Env: env}

	candidates := []string{".env." + env + ".local", ".env." + env, ".env"}
	for _, name := range candidates {
		path := name
		if dir != "" {
			path = dir + string(os.PathSeparator) + name
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// godotenv.Load never overrides a variable that is already set, so the
		// first file to define a key wins and the real environment beats them all.
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
		cfg.Files = append(cfg.Files, path)
	}

	var err error
	cfg.Addr = getenvDefault(EnvAddr, DefaultAddr)
	cfg.UploadDir = getenvDefault(EnvUploadDir, DefaultUploadDir)
	cfg.DBDriver = strings.ToLower(getenvDefault(EnvDBDriver, DefaultDBDriver))
	cfg.DatabaseURL = getenvDefault(EnvDatabaseURL, DefaultDatabaseURL)

	if cfg.MaxFileSize, err = getenvInt64(EnvMaxFileSize, DefaultMaxFileSize); err != nil {
		return nil, err
	}

	count, err := getenvInt64(EnvMaxFileCount, DefaultMaxFileCount)
	if err != nil {
		return nil, err
	}
	cfg.MaxFileCount = int(count)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects limits and drivers the daemon cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, EnvAddr)
	case c.UploadDir == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, EnvUploadDir)
	case c.MaxFileSize <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, EnvMaxFileSize)
	case c.MaxFileCount <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, EnvMaxFileCount)
	case c.DBDriver != "sqlite" && c.DBDriver != "pgx":
		return fmt.Errorf("%w: unsupported %s %q", ErrInvalidConfig, EnvDBDriver, c.DBDriver)
	case c.DatabaseURL == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, EnvDatabaseURL)
	}
	return nil
}

// IsProduction reports whether the daemon runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
	}
	return n, nil
}
