package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration.
type Config struct {
	// Public endpoint the server advertises in room and socket URLs.
	Host string
	Port string

	// TLS. When both paths are set the server terminates TLS itself and
	// advertises wss:// socket URLs.
	TLSCert string
	TLSKey  string

	// Twitch OAuth code-flow credentials.
	OAuthClientID     string
	OAuthClientSecret string

	// Optional pre-seeded admin session cookie (operator backdoor).
	AdminSession string

	// Paths to the durable store.
	DatabasePath string
	BlobDir      string

	// Optional behaviour flags.
	DevelopmentMode bool
	OptimizeAssets  bool
	SkipAuth        bool
	AllowedOrigins  string

	// Rate limits in ulule/limiter notation (M = minute, H = hour).
	RateLimitWsIP       string
	RateLimitBlobUpload string

	// Optional OTLP trace collector address. Tracing is disabled when empty.
	TracingCollectorAddr string
}

// FromEnv validates all required environment variables and returns a Config.
// Returns an error listing every missing or invalid variable.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Host = os.Getenv("QUIZBOX_HOST")
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}

	cfg.Port = os.Getenv("QUIZBOX_PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
	} else if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("QUIZBOX_PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.TLSCert = os.Getenv("QUIZBOX_TLS_CERT")
	cfg.TLSKey = os.Getenv("QUIZBOX_TLS_KEY")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		errs = append(errs, "QUIZBOX_TLS_CERT and QUIZBOX_TLS_KEY must be set together")
	}

	cfg.SkipAuth = os.Getenv("SKIP_AUTH") == "true"
	cfg.OAuthClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.OAuthClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	if !cfg.SkipAuth {
		if cfg.OAuthClientID == "" {
			errs = append(errs, "TWITCH_CLIENT_ID is required when SKIP_AUTH is not set")
		}
		if cfg.OAuthClientSecret == "" {
			errs = append(errs, "TWITCH_CLIENT_SECRET is required when SKIP_AUTH is not set")
		}
	}

	cfg.AdminSession = os.Getenv("QUIZBOX_ADMIN_SESSION")

	cfg.DatabasePath = getEnvOrDefault("QUIZBOX_DB", "games.db")
	cfg.BlobDir = getEnvOrDefault("QUIZBOX_BLOB_DIR", "blobs")

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.OptimizeAssets = os.Getenv("OPTIMIZE_ASSETS") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitBlobUpload = getEnvOrDefault("RATE_LIMIT_BLOB_UPLOAD", "30-M")

	cfg.TracingCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// TLS reports whether the server should terminate TLS itself.
func (c *Config) TLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// ExternalURL builds an absolute URL for a path on the public endpoint.
func (c *Config) ExternalURL(path string) string {
	scheme := "http"
	if c.TLS() {
		scheme = "https"
	}
	return scheme + "://" + c.hostPort() + path
}

// SocketURL builds the duplex-channel URL for a room or endpoint code.
func (c *Config) SocketURL(code string) string {
	scheme := "ws"
	if c.TLS() {
		scheme = "wss"
	}
	return scheme + "://" + c.hostPort() + "/ws/" + code
}

func (c *Config) hostPort() string {
	if (c.TLS() && c.Port == "443") || (!c.TLS() && c.Port == "80") {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

// Origins splits the allowed-origins list, falling back to the given
// defaults for local development.
func (c *Config) Origins(defaults []string) []string {
	if c.AllowedOrigins == "" {
		return defaults
	}
	return strings.Split(c.AllowedOrigins, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
