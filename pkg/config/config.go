package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Documents DocumentsConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	Logging   LoggingConfig
	Startup   StartupConfig

	// EnvFileLoaded reports whether Load found a .env file
	EnvFileLoaded bool `ignored:"true"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string   `envconfig:"PORT" default:"8080"`
	Host            string   `envconfig:"HOST" default:"0.0.0.0"`
	Environment     string   `envconfig:"ENVIRONMENT" default:"development"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout int      `envconfig:"SHUTDOWN_TIMEOUT" default:"10"`
}

// LLMConfig points at an OpenAI-compatible completion server (LM Studio by default)
type LLMConfig struct {
	BaseURL      string        `envconfig:"LLM_BASE_URL" default:"http://localhost:1234/v1"`
	APIKey       string        `envconfig:"LLM_API_KEY" default:"lm-studio"`
	Model        string        `envconfig:"LLM_MODEL" default:"local-model"`
	ProbeTimeout time.Duration `envconfig:"LLM_PROBE_TIMEOUT" default:"2s"`
	Language     string        `envconfig:"LLM_LANGUAGE" default:"en"`
}

// DocumentsConfig selects where meeting and company documents live
type DocumentsConfig struct {
	Backend string `envconfig:"DOCUMENTS_BACKEND" default:"file"` // "file" or "postgres"
	DataDir string `envconfig:"DATA_DIR" default:"./data"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"meeting_copilot"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"2"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled       bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host          string `envconfig:"REDIS_HOST" default:"localhost"`
	Port          string `envconfig:"REDIS_PORT" default:"6379"`
	Password      string `envconfig:"REDIS_PASSWORD" default:""`
	DB            int    `envconfig:"REDIS_DB" default:"0"`
	ChannelPrefix string `envconfig:"REDIS_CHANNEL_PREFIX" default:"copilot:events"`
}

// KafkaConfig holds the optional kafka event sink configuration
type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"meeting-copilot.events"`
}

// StorageConfig holds audio artifact storage configuration
type StorageConfig struct {
	Type            string `envconfig:"STORAGE_TYPE" default:"local"` // "local" or "minio"
	Endpoint        string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"STORAGE_BUCKET" default:"meeting-copilot"`
	UseSSL          bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// StartupConfig bounds how long external dependencies are waited for at boot
type StartupConfig struct {
	ConnectMaxElapsed time.Duration `envconfig:"CONNECT_MAX_ELAPSED" default:"30s"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional; the process environment wins over it
	envErr := godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.EnvFileLoaded = envErr == nil

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv populates a Config from the process environment without touching .env
func FromEnv() (*Config, error) {
	cfg := &Config{}
	sections := []interface{}{
		&cfg.Server, &cfg.LLM, &cfg.Documents, &cfg.Database, &cfg.Redis,
		&cfg.Kafka, &cfg.Storage, &cfg.Logging, &cfg.Startup,
	}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}
	cfg.LLM.BaseURL = strings.TrimRight(cfg.LLM.BaseURL, "/")
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Documents.Backend {
	case "file", "postgres":
	default:
		return fmt.Errorf("DOCUMENTS_BACKEND must be file or postgres, got %q", c.Documents.Backend)
	}
	switch c.Storage.Type {
	case "local", "minio":
	default:
		return fmt.Errorf("STORAGE_TYPE must be local or minio, got %q", c.Storage.Type)
	}
	switch c.LLM.Language {
	case "en", "fr":
	default:
		return fmt.Errorf("LLM_LANGUAGE must be en or fr, got %q", c.LLM.Language)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL is required")
	}
	if c.LLM.ProbeTimeout <= 0 {
		return fmt.Errorf("LLM_PROBE_TIMEOUT must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
