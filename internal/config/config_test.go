package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, MatchModeNew, cfg.Worker.MatchMode)
	assert.Equal(t, 60*time.Second, cfg.Worker.Interval)
	assert.Equal(t, 200, cfg.Worker.CandidateLimit)
	assert.NotEmpty(t, cfg.Source.SearchURL("uk"))
	assert.NotEmpty(t, cfg.Source.SearchURL("US"))
	assert.False(t, cfg.SMTP.Enabled())
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
worker:
  region: us
  match_mode: all
  interval: 5m
smtp:
  host: smtp.example.com
  from: alerts@example.com
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "us", cfg.Worker.Region)
	assert.Equal(t, MatchModeAll, cfg.Worker.MatchMode)
	assert.Equal(t, 5*time.Minute, cfg.Worker.Interval)
	assert.True(t, cfg.SMTP.Enabled())
}

func TestLoadRejectsUnknownMatchMode(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker:\n  match_mode: blended\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match_mode")
}

func TestDatabaseDSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "/tmp/a.db"}
	assert.Equal(t, "/tmp/a.db?_busy_timeout=5000", sqlite.DSN())

	pg := DatabaseConfig{Driver: "postgres", URL: "postgres://u:p@h/db"}
	assert.Equal(t, "postgres://u:p@h/db", pg.DSN())
}
