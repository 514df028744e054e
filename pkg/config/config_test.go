package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

var managedKeys = []string{
	EnvAppEnv, EnvAddr, EnvUploadDir, EnvMaxFileSize, EnvMaxFileCount, EnvDBDriver, EnvDatabaseURL,
}

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	// t.Setenv restores the previous value; unset afterwards so godotenv sees an empty slot.
	for _, key := range managedKeys {
		s.T().Setenv(key, "")
		os.Unsetenv(key)
	}
}

func (s *ConfigTestSuite) writeEnv(name, content string) {
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0600))
}

func (s *ConfigTestSuite) TestDefaults() {
	cfg, err := Load(s.dir, "")
	s.Require().NoError(err)

	s.Equal(DefaultEnv, cfg.Env)
	s.Equal(":8080", cfg.Addr)
	s.Equal("uploads", cfg.UploadDir)
	s.Equal(int64(10<<20), cfg.MaxFileSize)
	s.Equal(5, cfg.MaxFileCount)
	s.Equal("sqlite", cfg.DBDriver)
	s.Equal("filehost.db", cfg.DatabaseURL)
	s.Empty(cfg.Files)
	s.False(cfg.IsProduction())
}

func (s *ConfigTestSuite) TestEnvFilePrecedence() {
	s.writeEnv(".env", "FILEHOST_ADDR=:1000\nFILEHOST_UPLOAD_DIR=base\nFILEHOST_MAX_FILE_COUNT=2\n")
	s.writeEnv(".env.staging", "FILEHOST_ADDR=:2000\nFILEHOST_UPLOAD_DIR=staging\n")
	s.writeEnv(".env.staging.local", "FILEHOST_ADDR=:3000\n")

	cfg, err := Load(s.dir, "staging")
	s.Require().NoError(err)

	s.Equal(":3000", cfg.Addr)
	s.Equal("staging", cfg.UploadDir)
	s.Equal(2, cfg.MaxFileCount)
	s.Len(cfg.Files, 3)
}

func (s *ConfigTestSuite) TestProcessEnvironmentWins() {
	s.writeEnv(".env", "FILEHOST_MAX_FILE_SIZE=100\n")
	s.T().Setenv(EnvMaxFileSize, "200")

	cfg, err := Load(s.dir, "")
	s.Require().NoError(err)
	s.Equal(int64(200), cfg.MaxFileSize)
}

func (s *ConfigTestSuite) TestAppEnvSelectsFiles() {
	s.writeEnv(".env.production", "FILEHOST_DB_DRIVER=PGX\nFILEHOST_DATABASE_URL=postgres://db/filehost\n")
	s.T().Setenv(EnvAppEnv, "production")

	cfg, err := Load(s.dir, "")
	s.Require().NoError(err)
	s.Equal("production", cfg.Env)
	s.True(cfg.IsProduction())
	s.Equal("pgx", cfg.DBDriver)
	s.Equal("postgres://db/filehost", cfg.DatabaseURL)
}

func (s *ConfigTestSuite) TestInvalidNumber() {
	s.T().Setenv(EnvMaxFileSize, "ten")

	_, err := Load(s.dir, "")
	s.ErrorIs(err, ErrInvalidConfig)
}

func (s *ConfigTestSuite) TestValidate() {
	valid := Config{
		Addr: ":8080", UploadDir: "u", MaxFileSize: 1, MaxFileCount: 1, DBDriver: "sqlite", DatabaseURL: "x.db",
	}
	s.NoError(valid.Validate())

	broken := []func(c *Config){
		func(c *Config) { c.Addr = "" },
		func(c *Config) { c.UploadDir = "" },
		func(c *Config) { c.MaxFileSize = 0 },
		func(c *Config) { c.MaxFileCount = -1 },
		func(c *Config) { c.DBDriver = "mysql" },
		func(c *Config) { c.DatabaseURL = "" },
	}
	for i, mutate := range broken {
		cfg := valid
		mutate(&cfg)
		s.ErrorIs(cfg.Validate(), ErrInvalidConfig, "case %d", i)
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
