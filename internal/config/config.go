package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvConfigPath names the variable holding the path of the TOML config file
const EnvConfigPath = "CONSENT_CONFIG"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Election ElectionConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
	Host string
	Env  string // "development" or "production"
}

// ElectionConfig holds election-related configuration
type ElectionConfig struct {
	IDLength         int
	MaxElections     int // 0 means unlimited
	SubscriberBuffer int
	KeepAlive        time.Duration
	IdleTimeout      time.Duration // 0 keeps elections for the process lifetime
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// fileConfig is the TOML layout of the config file
type fileConfig struct {
	Port             string `toml:"port"`
	Host             string `toml:"host"`
	Env              string `toml:"env"`
	LogLevel         string `toml:"log_level"`
	LogFormat        string `toml:"log_format"`
	IDLength         int    `toml:"election_id_length"`
	MaxElections     int    `toml:"max_elections"`
	SubscriberBuffer int    `toml:"subscriber_buffer"`
	KeepAlive        string `toml:"keep_alive"`
	IdleTimeout      string `toml:"idle_timeout"`
}

// Load builds the configuration. A .env file in the working directory is
// loaded first if present, then environment variables with defaults are
// read, then the TOML file at path (or $CONSENT_CONFIG) overrides whatever
// keys it defines.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := FromEnv()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// FromEnv loads configuration from environment variables with defaults
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Election: ElectionConfig{
			IDLength:         getEnvInt("ELECTION_ID_LENGTH", 16),
			MaxElections:     getEnvInt("MAX_ELECTIONS", 0),
			SubscriberBuffer: getEnvInt("SUBSCRIBER_BUFFER", 16),
			KeepAlive:        time.Duration(getEnvInt("KEEP_ALIVE_SECONDS", 600)) * time.Second,
			IdleTimeout:      time.Duration(getEnvInt("IDLE_TIMEOUT_SECONDS", 0)) * time.Second,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

func (c *Config) loadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if meta.IsDefined("port") {
		c.Server.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("host") {
		c.Server.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("env") {
		c.Server.Env = strings.TrimSpace(raw.Env)
	}
	if meta.IsDefined("log_level") {
		c.Logging.Level = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_format") {
		c.Logging.Format = strings.TrimSpace(raw.LogFormat)
	}
	if meta.IsDefined("election_id_length") {
		c.Election.IDLength = raw.IDLength
	}
	if meta.IsDefined("max_elections") {
		c.Election.MaxElections = raw.MaxElections
	}
	if meta.IsDefined("subscriber_buffer") {
		c.Election.SubscriberBuffer = raw.SubscriberBuffer
	}
	if meta.IsDefined("keep_alive") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.KeepAlive))
		if err != nil {
			return fmt.Errorf("parse keep_alive: %w", err)
		}
		c.Election.KeepAlive = d
	}
	if meta.IsDefined("idle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IdleTimeout))
		if err != nil {
			return fmt.Errorf("parse idle_timeout: %w", err)
		}
		c.Election.IdleTimeout = d
	}

	return nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch {
	case c.Server.Port == "":
		return errors.New("port must not be empty")
	case c.Election.IDLength < 8:
		return fmt.Errorf("election id length must be at least 8, got %d", c.Election.IDLength)
	case c.Election.MaxElections < 0:
		return fmt.Errorf("max elections must not be negative, got %d", c.Election.MaxElections)
	case c.Election.SubscriberBuffer <= 0:
		return fmt.Errorf("subscriber buffer must be positive, got %d", c.Election.SubscriberBuffer)
	case c.Election.KeepAlive <= 0:
		return fmt.Errorf("keep-alive interval must be positive, got %s", c.Election.KeepAlive)
	case c.Election.IdleTimeout < 0:
		return fmt.Errorf("idle timeout must not be negative, got %s", c.Election.IdleTimeout)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
