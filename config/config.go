package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string
	DBDriver           string
	Port               string
	GoEnv              string
	AuthProvider       string
	Auth0Domain        string
	Auth0Audience      string
	FirebaseProjectID  string
	GoogleCredentials  string
	StorageProvider    string
	UploadDir          string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	GCSBucket          string
	KafkaBrokers       []string
	KafkaOrderTopic    string
	LogLevel           string
	CORSAllowedOrigins []string

	// Order workflow
	OrderTransitionMode        string
	PaymentFailureCancelsOrder bool
	DestructiveConfirmation    string
	ChatRatePerMinute          int
	DownloadStagger            time.Duration
}

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In production, environment variables are set directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	config := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBDriver:           getEnv("DB_DRIVER", "postgres"),
		Port:               getEnv("PORT", "8080"),
		GoEnv:              getEnv("GO_ENV", "development"),
		AuthProvider:       getEnv("AUTH_PROVIDER", "auth0"),
		Auth0Domain:        getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:      getEnv("AUTH0_AUDIENCE", ""),
		FirebaseProjectID:  getEnv("FIREBASE_PROJECT_ID", ""),
		GoogleCredentials:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		StorageProvider:    getEnv("STORAGE_PROVIDER", "local"),
		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaOrderTopic:    getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		OrderTransitionMode:        getEnv("ORDER_TRANSITION_MODE", "permissive"),
		PaymentFailureCancelsOrder: getEnvBool("PAYMENT_FAILURE_CANCELS_ORDER", true),
		DestructiveConfirmation:    getEnv("DESTRUCTIVE_CONFIRMATION_CODE", "DELETE"),
		ChatRatePerMinute:          getEnvInt("CHAT_RATE_PER_MINUTE", 20),
		DownloadStagger:            getEnvDuration("DOWNLOAD_STAGGER", 300*time.Millisecond),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	SetConfig(config)
	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "sqlite":
	case "firestore":
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required when DB_DRIVER=firestore")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.StorageProvider {
	case "local":
	case "s3":
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when STORAGE_PROVIDER=s3")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when STORAGE_PROVIDER=gcs")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.StorageProvider)
	}

	switch c.AuthProvider {
	case "auth0", "firebase":
	default:
		return fmt.Errorf("unsupported AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.OrderTransitionMode != "permissive" && c.OrderTransitionMode != "strict" {
		return fmt.Errorf("ORDER_TRANSITION_MODE must be permissive or strict")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// GetDatabaseURL returns the database URL
func (c *Config) GetDatabaseURL() string {
	return c.DatabaseURL
}

// UsesFirebase reports whether any Firebase product is configured
func (c *Config) UsesFirebase() bool {
	return c.DBDriver == "firestore" || c.AuthProvider == "firebase"
}

// GetConfig returns the configuration set by the last Load or SetConfig
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// SetConfig replaces the package configuration (used by tests)
func SetConfig(c *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = c
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
