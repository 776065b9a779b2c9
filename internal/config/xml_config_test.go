package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quick-analysis/backend/internal/staging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	n, err := cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), n)

	timeline := cfg.AnalysisTimeline()
	assert.Equal(t, 5*time.Second, timeline.CompletionDelay)
	assert.Equal(t, 5*time.Second, timeline.RotationInterval)

	assert.Equal(t, staging.ResetIfNonEmpty, cfg.ResetPolicy())
	assert.False(t, cfg.Analysis.AllowStartOver)
	assert.Equal(t, staging.DefaultRules(), cfg.StagingRules())
	assert.Equal(t, "0.0.0.0:8089", cfg.GetServerAddr())
}

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.GetUploadDir())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<QuickAnalysis>")
	assert.Contains(t, string(data), "<CompletionDelayMs>5000</CompletionDelayMs>")
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")

	cfg := DefaultConfig()
	cfg.Analysis.CompletionDelayMs = 10000
	cfg.Analysis.ErrorResetPolicy = "always"
	cfg.Analysis.AllowStartOver = true
	cfg.Storage.MaxFileSize = "2 MB"
	cfg.Storage.AllowedExtensions = "png, dicom"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, loaded.AnalysisTimeline().CompletionDelay)
	assert.Equal(t, staging.ResetAlways, loaded.ResetPolicy())
	assert.True(t, loaded.Analysis.AllowStartOver)

	rules := loaded.StagingRules()
	assert.Equal(t, int64(2000000), rules.MaxFileSize)
	assert.Equal(t, []string{".png", ".dicom"}, rules.AllowedExtensions)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ANALYSIS_DELAY_MS", "10000")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_BUCKET", "scans")
	t.Setenv("MINIO_USE_SSL", "true")
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.xml"))
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.Equal(t, 10000, cfg.Analysis.CompletionDelayMs)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(dataDir, "uploads"), cfg.GetUploadDir())

	m := cfg.MinioSettings()
	assert.Equal(t, "minio:9000", m.Endpoint)
	assert.Equal(t, "scans", m.Bucket)
	assert.True(t, m.UseSSL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"bad backend", func(c *AppConfig) { c.Storage.Backend = "ftp" }, "Backend"},
		{"bad size", func(c *AppConfig) { c.Storage.MaxFileSize = "lots" }, "MaxFileSize"},
		{"bad policy", func(c *AppConfig) { c.Analysis.ErrorResetPolicy = "sometimes" }, "ErrorResetPolicy"},
		{"zero delay", func(c *AppConfig) { c.Analysis.CompletionDelayMs = 0 }, "CompletionDelayMs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.xml")
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.NoError(t, cfg.Save(path))

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte("<QuickAnalysis><Server>"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = filepath.Join(base, "data")
	cfg.Storage.UploadsDirectory = filepath.Join(base, "data", "uploads")

	require.NoError(t, cfg.EnsureDirectories())
	_, err := os.Stat(cfg.Storage.UploadsDirectory)
	assert.NoError(t, err)
}

func TestAllowOriginList(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []string{"*"}, cfg.AllowOriginList())

	cfg.Server.AllowOrigins = "http://a.test, http://b.test"
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowOriginList())

	cfg.Server.AllowOrigins = ""
	assert.Equal(t, []string{"*"}, cfg.AllowOriginList())
}
