package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "0.0.0.0:50051", cfg.GRPCAddr())
	assert.Equal(t, 10*time.Second, cfg.GRPCRequestTimeout)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.True(t, cfg.MigrateOnStart)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "booking.events", cfg.KafkaTopic)
	assert.Equal(t, 5*time.Minute, cfg.NextBookingTTL)
	assert.False(t, cfg.TracingEnabled)
	assert.Equal(t, 100, cfg.RateLimitBurst)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOOKING_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("BOOKING_STORE_DRIVER", "Memory")
	t.Setenv("BOOKING_STORE_MEMORY_PATIENT_IDS", "1, 2,3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BOOKING_REDIS_NEXT_BOOKING_TTL", "90s")
	t.Setenv("BOOKING_TRACING_ENABLED", "true")
	t.Setenv("BOOKING_RATELIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.GRPCAddr())
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, []int64{1, 2, 3}, cfg.MemoryPatientIDs)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Second, cfg.NextBookingTTL)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "duration", key: "BOOKING_SHUTDOWN_TIMEOUT", val: "soon"},
		{name: "driver", key: "BOOKING_STORE_DRIVER", val: "sqlite"},
		{name: "patient ids", key: "BOOKING_STORE_MEMORY_PATIENT_IDS", val: "1,x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
