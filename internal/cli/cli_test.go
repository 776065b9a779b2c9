package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quick-analysis/backend/internal/config"
	"github.com/quick-analysis/backend/internal/storage"
)

func withFlags(t *testing.T, cfg, env string) {
	t.Helper()
	oldCfg, oldEnv := cfgFile, envFile
	cfgFile, envFile = cfg, env
	t.Cleanup(func() { cfgFile, envFile = oldCfg, oldEnv })
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand("1.2.3", "2026-10-01")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "quickscan 1.2.3 built 2026-10-01")
	assert.Contains(t, out.String(), "Go version:")
}

func TestVersionCommand_DevBuild(t *testing.T) {
	root := NewRootCommand("dev", "unknown")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "quickscan development built local-build")
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand("dev", "unknown")
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "demo", "version"})
}

func TestLoadConfig_WithEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("ANALYSIS_DELAY_MS=7000\n"), 0644))
	withFlags(t, filepath.Join(dir, "quickscan.config.xml"), envPath)
	t.Cleanup(func() { os.Unsetenv("ANALYSIS_DELAY_MS") })

	cfg, path, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfgFile, path)
	assert.Equal(t, 7000, cfg.Analysis.CompletionDelayMs)
}

func TestLoadEnvironment_MissingFile(t *testing.T) {
	withFlags(t, "", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, loadEnvironment())
}

func TestNewStore_Local(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.UploadsDirectory = filepath.Join(t.TempDir(), "uploads")

	store, err := newStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStore{}, store)
}

func TestNewSessionManager_UsesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.DefaultLocale = "日"
	cfg.Session.MaxSessions = 1

	m := newSessionManager(cfg, nil)
	defer m.Close()

	f, err := m.CreateSession("", false)
	require.NoError(t, err)
	assert.Equal(t, "日", f.Snapshot().Locale)
}

func TestCandidatesFromPaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(file, make([]byte, 2048), 0644))

	got, err := candidatesFromPaths([]string{file})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "scan.png", got[0].Name)
	assert.Equal(t, int64(2048), got[0].Size)

	_, err = candidatesFromPaths([]string{dir})
	assert.ErrorContains(t, err, "is a directory")

	_, err = candidatesFromPaths([]string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}
