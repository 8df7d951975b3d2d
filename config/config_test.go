package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{
		"DATABASE_URL":                  "postgresql://localhost/test",
		"DB_DRIVER":                     "",
		"STORAGE_PROVIDER":              "",
		"AUTH_PROVIDER":                 "",
		"ORDER_TRANSITION_MODE":         "",
		"PAYMENT_FAILURE_CANCELS_ORDER": "",
		"CHAT_RATE_PER_MINUTE":          "",
		"DOWNLOAD_STAGGER":              "",
		"KAFKA_BROKERS":                 "",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "local", cfg.StorageProvider)
	assert.Equal(t, "auth0", cfg.AuthProvider)
	assert.Equal(t, "permissive", cfg.OrderTransitionMode)
	assert.True(t, cfg.PaymentFailureCancelsOrder)
	assert.Equal(t, 20, cfg.ChatRatePerMinute)
	assert.Equal(t, 300*time.Millisecond, cfg.DownloadStagger)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Same(t, cfg, GetConfig(), "Load should publish the config")
}

func TestLoadOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"DB_DRIVER":                     "sqlite",
		"DATABASE_URL":                  "",
		"ORDER_TRANSITION_MODE":         "strict",
		"PAYMENT_FAILURE_CANCELS_ORDER": "false",
		"CHAT_RATE_PER_MINUTE":          "5",
		"DOWNLOAD_STAGGER":              "1s",
		"KAFKA_BROKERS":                 "kafka-1:9092, kafka-2:9092",
		"CORS_ALLOWED_ORIGINS":          "https://portal.example.com",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "strict", cfg.OrderTransitionMode)
	assert.False(t, cfg.PaymentFailureCancelsOrder)
	assert.Equal(t, 5, cfg.ChatRatePerMinute)
	assert.Equal(t, time.Second, cfg.DownloadStagger)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://portal.example.com"}, cfg.CORSAllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DBDriver:            "postgres",
			DatabaseURL:         "postgresql://localhost/test",
			StorageProvider:     "local",
			AuthProvider:        "auth0",
			OrderTransitionMode: "permissive",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"postgres without url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL is required"},
		{"firestore without project", func(c *Config) { c.DBDriver = "firestore" }, "FIREBASE_PROJECT_ID"},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "unsupported DB_DRIVER"},
		{"s3 without bucket", func(c *Config) { c.StorageProvider = "s3" }, "AWS_S3_BUCKET"},
		{"gcs without bucket", func(c *Config) { c.StorageProvider = "gcs" }, "GCS_BUCKET"},
		{"unknown auth", func(c *Config) { c.AuthProvider = "ldap" }, "unsupported AUTH_PROVIDER"},
		{"unknown transition mode", func(c *Config) { c.OrderTransitionMode = "loose" }, "ORDER_TRANSITION_MODE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	c := &Config{GoEnv: "test"}
	assert.True(t, c.IsTest())
	assert.False(t, c.IsProduction())
	assert.False(t, c.IsDevelopment())

	c.AuthProvider = "firebase"
	assert.True(t, c.UsesFirebase())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{GoEnv: "production", LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "debug should be disabled at warn level")

	logger, err = NewLogger(&Config{GoEnv: "development", LogLevel: "nonsense"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestGoogleClientOptions(t *testing.T) {
	withEnv(t, map[string]string{"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64": ""})

	opts, err := GoogleClientOptions(&Config{})
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = GoogleClientOptions(&Config{GoogleCredentials: "/tmp/creds.json"})
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	withEnv(t, map[string]string{"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64": "%%%"})
	_, err = GoogleClientOptions(&Config{})
	assert.Error(t, err)
}
