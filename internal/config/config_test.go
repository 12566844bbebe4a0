package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable FromEnv reads so ambient shell state
// cannot leak into the assertions. t.Setenv registers the restore before
// the unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"QUIZBOX_HOST", "QUIZBOX_PORT", "QUIZBOX_TLS_CERT", "QUIZBOX_TLS_KEY",
		"SKIP_AUTH", "TWITCH_CLIENT_ID", "TWITCH_CLIENT_SECRET",
		"QUIZBOX_ADMIN_SESSION", "QUIZBOX_DB", "QUIZBOX_BLOB_DIR",
		"DEVELOPMENT_MODE", "OPTIMIZE_ASSETS", "ALLOWED_ORIGINS",
		"RATE_LIMIT_WS_IP", "RATE_LIMIT_BLOB_UPLOAD", "OTEL_COLLECTOR_ADDR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SKIP_AUTH", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "games.db", cfg.DatabasePath)
	assert.Equal(t, "blobs", cfg.BlobDir)
	assert.Equal(t, "100-M", cfg.RateLimitWsIP)
	assert.Equal(t, "30-M", cfg.RateLimitBlobUpload)
	assert.True(t, cfg.SkipAuth)
	assert.False(t, cfg.TLS())
	assert.Empty(t, cfg.TracingCollectorAddr)
}

func TestFromEnvRequiresOAuthWithoutSkipAuth(t *testing.T) {
	clearEnv(t)

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TWITCH_CLIENT_ID")
	assert.Contains(t, err.Error(), "TWITCH_CLIENT_SECRET")

	t.Setenv("TWITCH_CLIENT_ID", "abc")
	t.Setenv("TWITCH_CLIENT_SECRET", "def")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.OAuthClientID)
}

func TestFromEnvInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("SKIP_AUTH", "true")

	for _, port := range []string{"nope", "0", "70000"} {
		t.Setenv("QUIZBOX_PORT", port)
		_, err := FromEnv()
		assert.ErrorContains(t, err, "QUIZBOX_PORT", "port %q", port)
	}
}

func TestFromEnvTLSPairing(t *testing.T) {
	clearEnv(t)
	t.Setenv("SKIP_AUTH", "true")
	t.Setenv("QUIZBOX_TLS_CERT", "/etc/certs/fullchain.pem")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "must be set together")

	t.Setenv("QUIZBOX_TLS_KEY", "/etc/certs/privkey.pem")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.TLS())
}

func TestFromEnvCollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUIZBOX_PORT", "bad")
	t.Setenv("QUIZBOX_TLS_CERT", "cert-only")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUIZBOX_PORT")
	assert.Contains(t, err.Error(), "set together")
	assert.Contains(t, err.Error(), "TWITCH_CLIENT_ID")
}

func TestExternalAndSocketURLs(t *testing.T) {
	cfg := &Config{Host: "quiz.example", Port: "8080"}
	assert.Equal(t, "http://quiz.example:8080/login", cfg.ExternalURL("/login"))
	assert.Equal(t, "ws://quiz.example:8080/ws/ABCD", cfg.SocketURL("ABCD"))

	cfg = &Config{Host: "quiz.example", Port: "443", TLSCert: "c", TLSKey: "k"}
	assert.Equal(t, "https://quiz.example/login", cfg.ExternalURL("/login"))
	assert.Equal(t, "wss://quiz.example/ws/ABCD", cfg.SocketURL("ABCD"))

	// Default ports drop from the host, non-default ports stay.
	cfg = &Config{Host: "quiz.example", Port: "80"}
	assert.Equal(t, "http://quiz.example/", cfg.ExternalURL("/"))
}

func TestOrigins(t *testing.T) {
	cfg := &Config{}
	defaults := []string{"http://localhost:8080"}
	assert.Equal(t, defaults, cfg.Origins(defaults))

	cfg.AllowedOrigins = "https://a.example,https://b.example"
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins(defaults))
}
