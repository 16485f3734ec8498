// Package config loads the core's runtime configuration from environment
// variables (optionally via a .env file), in the teacher's getEnv/fallback
// idiom.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-sourced setting the core needs to boot.
type Config struct {
	// Process
	LogLevel    string
	Environment string

	// Storage
	StoreDriver string // "memory" or "sqlite"
	SQLitePath  string

	// Event bus
	BusDriver    string // "memory" or "kafka"
	KafkaBrokers []string
	KafkaGroupID string
	KafkaTopics  []string

	// Snapshot / backup
	SnapshotEnabled     bool
	SnapshotBucket      string
	SnapshotInterval    time.Duration
	SnapshotRetention   time.Duration
	SnapshotMinKeep     int
	S3Endpoint          string
	S3Region            string
	S3AccessKeyID       string
	S3SecretAccessKey   string

	// Ingress dispatcher tuning
	IngressWorkerCount   int
	IngressHighWatermark int
	IngressLowWatermark  int

	// Locate workflow
	LocateExpirySweepCron string
}

// Load reads configuration from the environment, loading a .env file first
// if one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:    getEnv("IMS_LOG_LEVEL", "info"),
		Environment: getEnv("IMS_ENVIRONMENT", "development"),

		StoreDriver: getEnv("IMS_STORE_DRIVER", "memory"),
		SQLitePath:  getEnv("IMS_SQLITE_PATH", "./data/ims.db"),

		BusDriver:    getEnv("IMS_BUS_DRIVER", "memory"),
		KafkaBrokers: getEnvAsList("IMS_KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("IMS_KAFKA_GROUP_ID", "ims-core"),
		KafkaTopics:  getEnvAsList("IMS_KAFKA_TOPICS", []string{"ims-events"}),

		SnapshotEnabled:   getEnvAsBool("IMS_SNAPSHOT_ENABLED", false),
		SnapshotBucket:    getEnv("IMS_SNAPSHOT_BUCKET", ""),
		SnapshotInterval:  getEnvAsDuration("IMS_SNAPSHOT_INTERVAL", 15*time.Minute),
		SnapshotRetention: getEnvAsDuration("IMS_SNAPSHOT_RETENTION", 30*24*time.Hour),
		SnapshotMinKeep:   getEnvAsInt("IMS_SNAPSHOT_MIN_KEEP", 3),
		S3Endpoint:        getEnv("IMS_S3_ENDPOINT", ""),
		S3Region:          getEnv("IMS_S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("IMS_S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("IMS_S3_SECRET_ACCESS_KEY", ""),

		IngressWorkerCount:   getEnvAsInt("IMS_INGRESS_WORKERS", 0),
		IngressHighWatermark: getEnvAsInt("IMS_INGRESS_HIGH_WATERMARK", 10000),
		IngressLowWatermark:  getEnvAsInt("IMS_INGRESS_LOW_WATERMARK", 2500),

		LocateExpirySweepCron: getEnv("IMS_LOCATE_EXPIRY_SWEEP_CRON", "0 */10 * * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints Load's defaults can't guarantee
// on their own (e.g. an explicit, non-default store/bus driver choice that
// requires further configuration).
func (c *Config) Validate() error {
	if c.StoreDriver != "memory" && c.StoreDriver != "sqlite" {
		return fmt.Errorf("IMS_STORE_DRIVER must be \"memory\" or \"sqlite\", got %q", c.StoreDriver)
	}
	if c.BusDriver != "memory" && c.BusDriver != "kafka" {
		return fmt.Errorf("IMS_BUS_DRIVER must be \"memory\" or \"kafka\", got %q", c.BusDriver)
	}
	if c.SnapshotEnabled && c.SnapshotBucket == "" {
		return fmt.Errorf("IMS_SNAPSHOT_BUCKET is required when IMS_SNAPSHOT_ENABLED=true")
	}
	if c.IngressLowWatermark >= c.IngressHighWatermark {
		return fmt.Errorf("IMS_INGRESS_LOW_WATERMARK (%d) must be less than IMS_INGRESS_HIGH_WATERMARK (%d)", c.IngressLowWatermark, c.IngressHighWatermark)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
