package serverconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8888", cfg.ListenAddr)
	assert.Equal(t, 8192, cfg.BufferSize)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "awsd.ini")
	contents := "[server]\n" +
		"listen_addr = 127.0.0.1:9999\n" +
		"static_root = /srv/static\n" +
		"buffer_size = 4096\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, "/srv/static", cfg.StaticRoot)
	assert.Equal(t, 4096, cfg.BufferSize)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "/dynamic/", cfg.DynamicPrefix)
}

func TestLoadFileWithoutServerSectionKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.ini")
	require.NoError(t, os.WriteFile(path, []byte("[other]\nkey = value\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}
