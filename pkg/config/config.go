package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is process configuration assembled from environment
// variables. The Redis/Postgres/Mongo sections are all optional: a
// zero-value section simply means that ambient backend is not wired.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Gateway  GatewayConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	MongoDB  MongoDBConfig
	Logger   LoggerConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

// ServerConfig configures the HTTP transport front-end.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// GatewayConfig configures the federation core itself.
type GatewayConfig struct {
	ManifestPath   string
	UpstreamTimeout time.Duration
	StrictSchemas  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
}

type PostgresConfig struct {
	Enabled            bool
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	SSLMode            string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnectionMaxAge   time.Duration
}

type MongoDBConfig struct {
	Enabled  bool
	URI      string
	Database string
	Timeout  time.Duration
}

type LoggerConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load assembles Config from the environment, loading a .env file
// first if one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("warning: .env file not found: %v\n", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "federation-gateway"),
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
		},
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Gateway: GatewayConfig{
			ManifestPath:    getEnv("GATEWAY_MANIFEST_PATH", "./schemas/supergraph.yaml"),
			UpstreamTimeout: getEnvAsDuration("GATEWAY_UPSTREAM_TIMEOUT", 30*time.Second),
			StrictSchemas:   getEnvAsBool("GATEWAY_STRICT_SCHEMAS", false),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_INVALIDATION_CHANNEL", "gateway:schema-invalidation"),
		},
		Postgres: PostgresConfig{
			Enabled:            getEnvAsBool("POSTGRES_ENABLED", false),
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvAsInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", ""),
			DBName:             getEnv("DB_NAME", "gateway"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConnections: getEnvAsInt("DB_MAX_OPEN_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 25),
			ConnectionMaxAge:   getEnvAsDuration("DB_CONNECTION_MAX_AGE", 5*time.Minute),
		},
		MongoDB: MongoDBConfig{
			Enabled:  getEnvAsBool("MONGO_ENABLED", false),
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "gateway"),
			Timeout:  getEnvAsDuration("MONGO_TIMEOUT", 10*time.Second),
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT_PATH", "stdout"),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
