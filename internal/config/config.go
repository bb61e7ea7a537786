package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is used when DISCOVERY_API_BASE_URL is not provided. In
// production this falls back with a one-time warning, never a failure.
const DefaultBaseURL = "http://localhost:3001"

// DefaultTimeout bounds each backend call unless overridden.
const DefaultTimeout = 30 * time.Second

// Config aggregates everything resolved from the environment at startup.
type Config struct {
	Server      ServerConfig
	Backend     BackendConfig
	Environment string
}

// Production reports whether the console runs in production mode.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// ServerConfig describes the console's own HTTP listener.
type ServerConfig struct {
	Addr string
}

// BackendConfig describes how to reach the Director API. UsedDefaultURL is
// set when no base URL was configured, so main can warn once in production.
type BackendConfig struct {
	BaseURL        string
	Timeout        time.Duration
	UsedDefaultURL bool
}

// Load reads configuration from environment variables. It is called once at
// startup; nothing reads the environment afterwards.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:      server,
		Backend:     backend,
		Environment: getEnvOrDefault("APP_ENV", "development"),
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func loadBackendConfig() (BackendConfig, error) {
	baseURL := strings.TrimSpace(os.Getenv("DISCOVERY_API_BASE_URL"))
	usedDefault := baseURL == ""
	if usedDefault {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return BackendConfig{}, fmt.Errorf("invalid DISCOVERY_API_BASE_URL value: %q", baseURL)
	}

	timeout := DefaultTimeout
	if seconds, err := parseOptionalIntEnv("DISCOVERY_API_TIMEOUT"); err != nil {
		return BackendConfig{}, err
	} else if seconds != nil {
		if *seconds < 1 {
			return BackendConfig{}, fmt.Errorf("DISCOVERY_API_TIMEOUT must be at least 1 second, got %d", *seconds)
		}
		timeout = time.Duration(*seconds) * time.Second
	}

	return BackendConfig{
		BaseURL:        baseURL,
		Timeout:        timeout,
		UsedDefaultURL: usedDefault,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
