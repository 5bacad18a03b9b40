package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Database DatabaseConfig
	Topology TopologyConfig
	HTTP     HTTPConfig
	Logging  LoggingConfig
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// TopologyConfig says where the network comes from and how it is refreshed
type TopologyConfig struct {
	File                 string // local JSON topology or GTFS zip
	LinesFile            string // line -> station names, used to backfill lines
	ColorsFile           string // line colour table for clients
	URL                  string // remote source polled by the scheduler
	CheckInterval        time.Duration
	DownloadDir          string
	KeepInactiveVersions int
}

type HTTPConfig struct {
	Addr            string
	AllowedOrigins  []string
	CacheTTL        time.Duration
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level      string
	FilePath   string
	DiscordURL string
}

func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Enabled:  getBoolEnv("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "metroroute"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Topology: TopologyConfig{
			File:                 getEnv("TOPOLOGY_FILE", ""),
			LinesFile:            getEnv("TOPOLOGY_LINES_FILE", ""),
			ColorsFile:           getEnv("TOPOLOGY_COLORS_FILE", ""),
			URL:                  getEnv("TOPOLOGY_URL", ""),
			CheckInterval:        getDurationEnv("TOPOLOGY_CHECK_INTERVAL", 30*time.Minute),
			DownloadDir:          getEnv("TOPOLOGY_DOWNLOAD_DIR", "/tmp/metroroute"),
			KeepInactiveVersions: getIntEnv("TOPOLOGY_KEEP_INACTIVE_VERSIONS", 1),
		},
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			AllowedOrigins:  getListEnv("HTTP_ALLOWED_ORIGINS", []string{"*"}),
			CacheTTL:        getDurationEnv("HTTP_ROUTE_CACHE_TTL", 10*time.Minute),
			ShutdownTimeout: getDurationEnv("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE", "metroroute.log"),
			DiscordURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Topology.Validate(c.Database.Enabled); err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	if c.HTTP.Addr == "" {
		return errors.New("http: HTTP_ADDR must not be empty")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Host == "" || c.Port == "" || c.User == "" || c.DBName == "" {
		return errors.New("host, port, user and name are required when the database is enabled")
	}
	return nil
}

func (c *TopologyConfig) Validate(databaseEnabled bool) error {
	if c.File == "" && c.URL == "" && !databaseEnabled {
		return errors.New("one of TOPOLOGY_FILE, TOPOLOGY_URL or DB_ENABLED is required")
	}
	if c.URL != "" && c.CheckInterval <= 0 {
		return errors.New("check interval must be positive")
	}
	if c.KeepInactiveVersions < 0 {
		return errors.New("keep inactive versions must not be negative")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
