package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.True(t, cfg.SSL)
	assert.Equal(t, "cert.pem", cfg.CertFile)
	assert.Equal(t, "key.pem", cfg.KeyFile)
	assert.False(t, cfg.ReadOnly)
	assert.Empty(t, cfg.PersistDir)
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "localhost:3193", cfg.ListenAddr())

	cfg.AnyInterface = true
	cfg.Port = 8080
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cvld.yaml")
	content := `
read_only: true
persist: /var/lib/cvld
port: 4000
timeseries:
  - /data/lakes.db
  - /data/rivers.db
ssl: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, "/var/lib/cvld", cfg.PersistDir)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, []string{"/data/lakes.db", "/data/rivers.db"}, cfg.Timeseries)
	assert.False(t, cfg.SSL)
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.LoadFile("/nonexistent/cvld.yaml"))
}

func TestValidateTLSMissingCredentials(t *testing.T) {
	cfg := Default()
	cfg.CertFile = filepath.Join(t.TempDir(), "missing-cert.pem")
	cfg.KeyFile = filepath.Join(t.TempDir(), "missing-key.pem")

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openssl req")
}

func TestValidateTLSDisabled(t *testing.T) {
	cfg := Default()
	cfg.SSL = false
	assert.NoError(t, cfg.Validate())
}

func TestValidateTLSWithCredentials(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0644))
	require.NoError(t, os.WriteFile(key, []byte("key"), 0600))

	cfg := Default()
	cfg.CertFile = cert
	cfg.KeyFile = key
	assert.NoError(t, cfg.Validate())
}

func TestValidateBadPort(t *testing.T) {
	cfg := Default()
	cfg.SSL = false
	cfg.Port = -1
	assert.Error(t, cfg.Validate())
}
