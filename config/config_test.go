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

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":4000", c.HTTPAddr)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 5, c.DBConnectRetries)
	assert.Equal(t, 2*time.Second, c.DBRetryDelay)
	assert.Equal(t, "*", c.AllowedOrigin)
	assert.Equal(t, "http://localhost:4000/api", c.APIURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "docsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":9000\"\nlog_level: debug\ndb_retry_delay: 500ms\n"), 0o644))
	t.Setenv("DOCSYNC_LOG_LEVEL", "warn")
	t.Setenv("DOCSYNC_DB_CONNECT_RETRIES", "0")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.HTTPAddr)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, 500*time.Millisecond, c.DBRetryDelay)
	assert.Equal(t, 1, c.DBConnectRetries)
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
