package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	originals := make(map[string]string, len(keys))
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			present[k] = true
		}
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			if present[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	})
}

func TestLoadUsesDefaultsWhenUnset(t *testing.T) {
	clearEnv(t, "IMS_STORE_DRIVER", "IMS_BUS_DRIVER", "IMS_INGRESS_HIGH_WATERMARK", "IMS_INGRESS_LOW_WATERMARK")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "memory", cfg.BusDriver)
	assert.Equal(t, 10000, cfg.IngressHighWatermark)
	assert.Equal(t, 2500, cfg.IngressLowWatermark)
}

func TestLoadRejectsUnknownStoreDriver(t *testing.T) {
	clearEnv(t, "IMS_STORE_DRIVER")
	os.Setenv("IMS_STORE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMS_STORE_DRIVER")
}

func TestLoadDefaultsSQLitePathWhenDriverIsSQLite(t *testing.T) {
	clearEnv(t, "IMS_STORE_DRIVER", "IMS_SQLITE_PATH")
	os.Setenv("IMS_STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "./data/ims.db", cfg.SQLitePath)
}

func TestLoadRequiresSnapshotBucketWhenSnapshotEnabled(t *testing.T) {
	clearEnv(t, "IMS_SNAPSHOT_ENABLED", "IMS_SNAPSHOT_BUCKET")
	os.Setenv("IMS_SNAPSHOT_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMS_SNAPSHOT_BUCKET")
}

func TestLoadRejectsLowWatermarkAtOrAboveHighWatermark(t *testing.T) {
	clearEnv(t, "IMS_INGRESS_LOW_WATERMARK", "IMS_INGRESS_HIGH_WATERMARK")
	os.Setenv("IMS_INGRESS_LOW_WATERMARK", "10000")
	os.Setenv("IMS_INGRESS_HIGH_WATERMARK", "10000")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaultsSnapshotRetentionAndMinKeep(t *testing.T) {
	clearEnv(t, "IMS_SNAPSHOT_RETENTION", "IMS_SNAPSHOT_MIN_KEEP")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, cfg.SnapshotRetention)
	assert.Equal(t, 3, cfg.SnapshotMinKeep)
}

func TestLoadParsesKafkaBrokerList(t *testing.T) {
	clearEnv(t, "IMS_KAFKA_BROKERS")
	os.Setenv("IMS_KAFKA_BROKERS", "broker1:9092, broker2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}
