package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hexwave.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
ranks = 3
cells = [6, 5, 9]
length = [2.0, 1.0, 3.0]
quad_order = 3
coeff = 2.5
check_dense = true
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Ranks)
	assert.Equal(t, 6, cfg.Nx)
	assert.Equal(t, 5, cfg.Ny)
	assert.Equal(t, 9, cfg.Nz)
	assert.Equal(t, [3]float64{2, 1, 3}, cfg.Length)
	assert.Equal(t, 3, cfg.QuadOrder)
	assert.Equal(t, 2.5, cfg.Coeff)
	assert.True(t, cfg.CheckDense)
}

func TestLoadConfigKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `ranks = 4`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Ranks)
	assert.Equal(t, 4, cfg.Nx)
	assert.Equal(t, 2, cfg.QuadOrder)
	assert.Equal(t, 1.0, cfg.Coeff)
	assert.False(t, cfg.CheckDense)
}

func TestLoadConfigRejectsBadShapes(t *testing.T) {
	path := writeConfig(t, `cells = [1, 2]`)
	_, err := loadConfig(path)
	assert.Error(t, err)

	path = writeConfig(t, `length = [1.0]`)
	_, err = loadConfig(path)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
