package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "product-service")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ServiceProduct, cfg.Server.Service)
	assert.Equal(t, "product-service-group", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, "product-service", cfg.Kafka.ClientID)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, PolicyLog, cfg.Outbox.Policy)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadExplicitGroup(t *testing.T) {
	t.Setenv("SERVICE_NAME", "order")
	t.Setenv("KAFKA_CONSUMER_GROUP", "orders-blue")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "orders-blue", cfg.Kafka.ConsumerGroup)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Service: ServiceOrder},
			Database: DatabaseConfig{Driver: DriverMemory},
			Kafka:    KafkaConfig{Brokers: []string{"localhost:9092"}},
			Outbox:   OutboxConfig{Policy: PolicyLog},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown service", func(c *Config) { c.Server.Service = "payment" }, "SERVICE_NAME"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, "STORAGE_DRIVER"},
		{"postgres without url", func(c *Config) { c.Database.Driver = DriverPostgres }, "DATABASE_URL"},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }, "KAFKA_BROKERS"},
		{"unknown policy", func(c *Config) { c.Outbox.Policy = "drop" }, "OUTBOX_POLICY"},
		{"outbox without batch", func(c *Config) { c.Outbox.Policy = PolicyOutbox }, "positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMaskedDatabaseURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{URL: "postgres://app:secret@db:5432/app?sslmode=disable"}}
	assert.Equal(t, "postgres://app:xxxxx@db:5432/app?sslmode=disable", cfg.MaskedDatabaseURL())

	cfg.Database.URL = "postgres://app:p%40ss:word@db:5432/app"
	assert.Equal(t, "postgres://app:xxxxx@db:5432/app", cfg.MaskedDatabaseURL())

	cfg.Database.URL = "postgres://db:5432/app"
	assert.Equal(t, "postgres://db:5432/app", cfg.MaskedDatabaseURL())

	cfg.Database.URL = "host=db user=app password=secret dbname=app"
	assert.Equal(t, "***", cfg.MaskedDatabaseURL())
}
