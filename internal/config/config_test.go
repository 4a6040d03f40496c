package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8400, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Perception.CaptureFPS)
	assert.True(t, cfg.VisionAPI.Enabled)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Server.Port = 9000
	cfg.Reasoning.Provider = "anthropic"

	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, loaded.Server.Port)
	assert.Equal(t, "anthropic", loaded.Reasoning.Provider)
}

func TestLoadInterpolatesEnvVars(t *testing.T) {
	os.Setenv("PHYSICAL_MCP_TEST_KEY", "secret-123")
	defer os.Unsetenv("PHYSICAL_MCP_TEST_KEY")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reasoning:\n  api_key: \"${PHYSICAL_MCP_TEST_KEY}\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-123", cfg.Reasoning.APIKey)
}

func TestLoadMissingEnvVarInterpolatesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reasoning:\n  api_key: \"${DEFINITELY_NOT_SET_VAR}\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Reasoning.APIKey)
}

func TestLoadMalformedYAMLReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
