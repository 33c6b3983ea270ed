package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointPathsAt redirects every configured directory into dir so Load
// never creates directories next to the test binary.
func pointPathsAt(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("P3DH_PATHS_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("P3DH_PATHS_DOWNLOADS_DIR", filepath.Join(dir, "data", "downloads"))
	t.Setenv("P3DH_PATHS_MAPPING_DIR", filepath.Join(dir, "data", "mapping"))
	t.Setenv("P3DH_PATHS_LOGS_DIR", filepath.Join(dir, "logs"))
	t.Setenv("P3DH_PATHS_DB_FILE", filepath.Join(dir, "data", "p3dh.db"))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, DefaultDBFile, cfg.Paths.DBFile)
}

func TestLoadDefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	pointPathsAt(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.DirExists(t, filepath.Join(dir, "data", "downloads"))
	assert.DirExists(t, filepath.Join(dir, "data", "mapping"))
	assert.DirExists(t, filepath.Join(dir, "logs"))

	paths, err := cfg.ResolvedPaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "p3dh.db"), paths.DBFile)
	assert.Equal(t, filepath.Join(dir, "logs", DefaultLogFile), cfg.Logging.FilePath,
		"relative log file resolves under the logs dir")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	pointPathsAt(t, dir)

	file := filepath.Join(dir, "config.yaml")
	yamlBody := `
server:
  port: 9000
logging:
  level: debug
security:
  allowed_origins:
    - https://reports.example.com
`
	require.NoError(t, os.WriteFile(file, []byte(yamlBody), 0o644))
	t.Setenv("P3DH_CONFIG", file)
	t.Setenv("P3DH_SERVER_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "environment beats the file")
	assert.Equal(t, "debug", cfg.Logging.Level, "file beats the defaults")
	assert.Equal(t, []string{"https://reports.example.com"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout, "untouched keys keep defaults")
}

func TestLoadParsesDurationsFromEnv(t *testing.T) {
	pointPathsAt(t, t.TempDir())
	t.Setenv("P3DH_SERVER_READ_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	pointPathsAt(t, t.TempDir())
	t.Setenv("P3DH_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		envKey  string
		envVal  string
		errPart string
	}{
		{name: "port out of range", envKey: "P3DH_SERVER_PORT", envVal: "70000", errPart: "Server.Port"},
		{name: "port zero", envKey: "P3DH_SERVER_PORT", envVal: "0", errPart: "Server.Port"},
		{name: "unknown log level", envKey: "P3DH_LOGGING_LEVEL", envVal: "verbose", errPart: "Logging.Level"},
		{name: "unknown output mode", envKey: "P3DH_LOGGING_OUTPUT", envVal: "syslog", errPart: "Logging.Output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pointPathsAt(t, t.TempDir())
			t.Setenv(tt.envKey, tt.envVal)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestValidateRejectsEmptyOrigins(t *testing.T) {
	cfg := Default()
	cfg.Security.AllowedOrigins = nil

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AllowedOrigins")
}

func TestLoadFromFileKeepsAbsentKeys(t *testing.T) {
	cfg := Default()
	file := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 8081\n"), 0o644))

	require.NoError(t, loadFromFile(file, cfg))
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, DefaultDataDir, cfg.Paths.DataDir)
}

func TestLoadFromFileRejectsGarbage(t *testing.T) {
	cfg := Default()
	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server: [not a map"), 0o644))

	require.Error(t, loadFromFile(file, cfg))
}
