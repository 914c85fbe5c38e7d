package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "rtinode", cfg.ServerName)
	assert.True(t, cfg.PermitTimeRegulation)
	assert.False(t, cfg.EnableZLibCompression)
	assert.Empty(t, cfg.Listen)
}

func TestLoadLiteralXML(t *testing.T) {
	cfg, err := Load(`<rtinode>
  <enableZLibCompression>true</enableZLibCompression>
  <permitTimeRegulation>false</permitTimeRegulation>
  <parentServer url="rti://root.example.org:14321"/>
  <listen url="rti://0.0.0.0:14321"/>
  <listen url="pipe:///var/run/rtinode.sock"/>
</rtinode>`)
	require.NoError(t, err)
	assert.True(t, cfg.EnableZLibCompression)
	assert.False(t, cfg.PermitTimeRegulation)
	assert.Equal(t, "rti://root.example.org:14321", cfg.ParentServer)
	assert.Equal(t, []string{"rti://0.0.0.0:14321", "pipe:///var/run/rtinode.sock"}, cfg.Listen)
}

func TestLoadXMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<rtinode><listen url="rti://127.0.0.1:9999"/></rtinode>`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"rti://127.0.0.1:9999"}, cfg.Listen)
}

func TestLoadInvalidXML(t *testing.T) {
	_, err := Load(`<rtinode><listen`)
	assert.Error(t, err)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_name: edge-1
permit_time_regulation: false
listen:
  - rti://0.0.0.0:14321
logging:
  level: DEBUG
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "edge-1", cfg.ServerName)
	assert.False(t, cfg.PermitTimeRegulation)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_name = "edge-2"
enable_zlib_compression = true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "edge-2", cfg.ServerName)
	assert.True(t, cfg.EnableZLibCompression)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("RTINODE_SERVER_NAME", "from-env")
	t.Setenv("RTINODE_PERMIT_TIME_REGULATION", "false")

	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_name: from-file
permit_time_regulation: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ServerName)
	assert.False(t, cfg.PermitTimeRegulation)
}

func TestValidationRejectsIncompleteAdmin(t *testing.T) {
	cfg := Default()
	cfg.Admin.Enabled = true
	assert.Error(t, Validate(cfg))

	cfg.Admin.ListenAddress = "127.0.0.1:8316"
	cfg.Admin.JWTSecret = "secret"
	assert.NoError(t, Validate(cfg))
}

func TestUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=y"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
