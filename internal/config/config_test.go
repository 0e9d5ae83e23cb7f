package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV=test\nCORS_ALLOW_ORIGIN=https://a.io, https://b.io\nPROVIDER_PRIMARY_URL=http://p1\n"), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"APP_ENV", "CORS_ALLOW_ORIGIN", "PROVIDER_PRIMARY_URL"} {
			_ = os.Unsetenv(k)
		}
	})

	require.NoError(t, Load(path))
	c := Get()

	assert.Equal(t, "test", c.AppEnv)
	assert.Equal(t, 8*time.Hour, c.JwtAccessTTL)
	assert.Equal(t, 24*time.Hour, c.JwtRefreshTTL)
	assert.Equal(t, 5, c.LoginMaxFails)
	assert.Equal(t, int64(10485760), c.DocumentMaxSize)
	assert.Equal(t, "@every 15m", c.DashboardRefreshSpec)
	assert.NotEmpty(t, c.JwtSecret)
	assert.Equal(t, []string{"https://a.io", "https://b.io"}, c.CorsOrigins())
	assert.Equal(t, []string{"http://p1"}, c.Providers())
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestArgEnvPath(t *testing.T) {
	assert.Equal(t, "/etc/app.env", ArgEnvPath([]string{"api", "--env=/etc/app.env"}))
	assert.Equal(t, "", ArgEnvPath([]string{"api"}))
}

func TestConnectionSettings(t *testing.T) {
	c := &Config{
		PostgresReadHost:      "replica",
		PostgresReadDatabase:  "lending",
		PostgresWriteHost:     "primary",
		PostgresWriteDatabase: "lending",
		PostgresSSLMode:       "require",
		RedisAddr:             "r1:6379,r2:6379",
		RedisDatabase:         2,
	}
	assert.Equal(t, "replica", c.PostgresRead().Host)
	assert.Equal(t, "primary", c.PostgresWrite().Host)
	assert.Equal(t, "require", c.PostgresWrite().SSLMode)

	o := c.Redis("api")
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, o.Addrs)
	assert.Equal(t, "api", o.ClientName)
	assert.Equal(t, 2, o.DB)
}
