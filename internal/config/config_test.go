package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leelynne/gbusiness-httpsig/session"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "dev", c.Log.Env)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, ":8081", c.Proxy.Addr)
	assert.Equal(t, "file", c.Store.Backend)
	assert.NotEmpty(t, c.Store.Path)
	assert.Equal(t, "sandbox", c.Provider.Environment)
	assert.Equal(t, 30*time.Second, c.Timeout())
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout())
	assert.False(t, c.Log.Redact)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  env: prod
  redact: true
http:
  timeout: 5s
store:
  backend: memory
provider:
  environment: production
  endpoints:
    sandbox: http://127.0.0.1:9999
`), 0o600))

	t.Setenv("GBUSINESS_SERVER_ADDR", ":9090")
	t.Setenv("GBUSINESS_ENDPOINT_PRODUCTION", "http://127.0.0.1:9998")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", c.Log.Env)
	assert.True(t, c.Log.Redact)
	assert.Equal(t, 5*time.Second, c.Timeout())
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.Equal(t, map[session.Environment]string{
		session.Sandbox:    "http://127.0.0.1:9999",
		session.Production: "http://127.0.0.1:9998",
	}, c.Endpoints())
}

func TestLoadInvalid(t *testing.T) {
	testcases := []struct {
		Name string
		YAML string
	}{
		{Name: "bad timeout", YAML: "http:\n  timeout: soon\n"},
		{Name: "bad environment", YAML: "provider:\n  environment: moon\n"},
		{Name: "bad endpoint key", YAML: "provider:\n  endpoints:\n    moon: http://x\n"},
		{Name: "bad backend", YAML: "store:\n  backend: keychain\n"},
		{Name: "not yaml", YAML: "log: [\n"},
	}
	for _, tc := range testcases {
		t.Run(tc.Name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.YAML), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GBUSINESS_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("GBUSINESS_TEST_DOTENV") })
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("GBUSINESS_TEST_DOTENV"))
}
