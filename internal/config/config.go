package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config respira-data (HTTP ingestion API) configuration
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Storage  StorageConfig
	MQTT     MQTTConfig
	Analysis AnalysisConfig
}

// DatabaseConfig postgres connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// StorageConfig object store (GCS) settings for ECG artifacts
type StorageConfig struct {
	Bucket          string // artifact bucket name
	CredentialsFile string // service-account JSON path ("" = ADC)
}

// MQTTConfig message-bus settings for config push / acknowledgments.
// Leaving Broker empty disables outbound publishing entirely; telemetry
// ingestion itself keeps working.
type MQTTConfig struct {
	Broker   string // e.g. "tcp://localhost:1883", "" = disabled
	ClientID string
	Username string // optional
	Password string // optional
	QoS      int    // publish QoS (default 1)
}

// AnalysisConfig downstream ECG analysis service.
// Empty HttpAddress disables the new-record notification.
type AnalysisConfig struct {
	HttpAddress string
	AuthToken   string // bearer token, optional
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true for local dev: if DB is unavailable, respira-data will
	// fall back to in-memory repositories instead of refusing to start.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "respira")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Storage.Bucket = getEnv("STORAGE_BUCKET", "respira-ecg-data")
	cfg.Storage.CredentialsFile = getEnv("STORAGE_CREDENTIALS_FILE", "")

	// MQTT side channel (config push + acks); disabled unless a broker is set
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "respira-data")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = parseInt(getEnv("MQTT_QOS", "1"), 1)

	// ECG analysis service notification (best-effort, disabled by default)
	cfg.Analysis.HttpAddress = getEnv("ANALYSIS_HTTP_ADDRESS", "")
	cfg.Analysis.AuthToken = getEnv("ANALYSIS_AUTH_TOKEN", "")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
