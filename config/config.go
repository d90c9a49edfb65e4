package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all proxy server configuration
type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Epicor    EpicorConfig
	Drive     DriveConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// EpicorConfig carries everything needed to reach the ERP function library.
// Credentials are injected server-side; clients only ever send the env name.
type EpicorConfig struct {
	URLTest  string
	URLPilot string
	URLLive  string
	APIKey   string
	Username string
	Password string
	Company  string
}

type DriveConfig struct {
	CredentialsPath string
	FolderID        string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8004"),
			Host:        getEnv("HOST", "0.0.0.0"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "dev-secret-key"),
			Expiration: parseDuration(getEnv("JWT_EXPIRATION", "3h"), 3*time.Hour),
		},
		Epicor: EpicorConfig{
			URLTest:  getEnv("EPICOR_URL_TEST", ""),
			URLPilot: getEnv("EPICOR_URL_PILOT", ""),
			URLLive:  getEnv("EPICOR_URL_LIVE", ""),
			APIKey:   getEnv("EPICOR_API_KEY", ""),
			Username: getEnv("EPICOR_USERNAME", ""),
			Password: getEnv("EPICOR_PASSWORD", ""),
			Company:  getEnv("EPICOR_COMPANY", "SGI"),
		},
		Drive: DriveConfig{
			CredentialsPath: getEnv("DRIVE_CREDENTIALS_PATH", "./credentials/service-account.json"),
			FolderID:        getEnv("DRIVE_FOLDER_ID", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "*")),
		},
		RateLimit: RateLimitConfig{
			Requests: parseInt(getEnv("RATE_LIMIT_REQUESTS", "100"), 100),
			Window:   parseDuration(getEnv("RATE_LIMIT_WINDOW", "60"), 60*time.Second),
		},
	}
}

// URLFor maps an environment selector to its ERP base URL. Unknown or empty
// selectors fall back to live: a stale non-production target must never win
// by default.
func (c *EpicorConfig) URLFor(env string) string {
	switch env {
	case "test":
		if c.URLTest != "" {
			return c.URLTest
		}
	case "pilot":
		if c.URLPilot != "" {
			return c.URLPilot
		}
	}
	return c.URLLive
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, defaultValue int) int {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	// A bare number means seconds
	if i, err := strconv.Atoi(s); err == nil {
		return time.Duration(i) * time.Second
	}
	return defaultValue
}

func parseStringSlice(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) Validate() {
	if c.JWT.Secret == "dev-secret-key" && c.IsProduction() {
		log.Fatal("JWT_SECRET must be set in production")
	}
	if c.Epicor.URLLive == "" {
		log.Fatal("EPICOR_URL_LIVE must be set")
	}
	if c.Epicor.APIKey == "" || c.Epicor.Username == "" {
		log.Fatal("EPICOR_API_KEY and EPICOR_USERNAME must be set")
	}
}
