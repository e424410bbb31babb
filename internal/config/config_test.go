package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000},
		"backend": {"url": "postgres://portal@db:5432/portal?sslmode=disable"},
		"cache": {"ttl": 10000000000},
		"portal": {"strict_status_transitions": false}
	}`), 0o600))

	t.Setenv("BACKEND_KEY", "s3cret")
	t.Setenv("PORTAL_STRICT_STATUS_TRANSITIONS", "TRUE")
	t.Setenv("EXPORT_BUCKET", "portal-exports")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.GetServerAddr())
	assert.Equal(t, 10*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.Portal.StrictStatusTransitions)
	assert.False(t, cfg.Backend.FixtureMode())
	assert.Equal(t, "postgres://portal@db:5432/portal?sslmode=disable&password=s3cret", cfg.Backend.GetDatabaseURL())
	assert.Equal(t, 7*24*time.Hour, cfg.Portal.InvitationTTL)
	assert.Equal(t, "portal-exports", cfg.AWS.ExportBucket)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "0 */15 * * * *", cfg.Jobs.InvitationSweep)
}

func TestLoadConfigRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":`), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestFixtureMode(t *testing.T) {
	tests := []struct {
		name    string
		backend BackendConfig
		want    bool
	}{
		{"both set", BackendConfig{URL: "postgres://db", Key: "k"}, false},
		{"missing key", BackendConfig{URL: "postgres://db"}, true},
		{"missing url", BackendConfig{Key: "k"}, true},
		{"blank", BackendConfig{URL: "  ", Key: " "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.backend.FixtureMode())
		})
	}
}

func TestGetDatabaseURL(t *testing.T) {
	b := BackendConfig{URL: "postgres://portal@db/portal", Key: "k"}
	assert.Equal(t, "postgres://portal@db/portal?password=k", b.GetDatabaseURL())

	b = BackendConfig{URL: "host=db user=portal password=x", Key: "k"}
	assert.Equal(t, "host=db user=portal password=x", b.GetDatabaseURL())
}

func TestNewLogger(t *testing.T) {
	logger, err := (&LoggingConfig{Level: "debug", Development: true}).NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = (&LoggingConfig{Level: "loud"}).NewLogger()
	assert.Error(t, err)
}
