package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	App         AppConfig
	HTTP        ServerConfig
	MySQL       MySQLConfig
	Log         LogConfig
	PayPal      PayPalConfig
	Settlements SettlementsConfig
	Jobs        JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Mode         string
	BaseURL      string
	BrandName    string
	HTTPTimeout  time.Duration
}

type SettlementsConfig struct {
	Currency       string
	CommissionRate decimal.Decimal

	// Public base URL the provider redirects the buyer back to after the
	// approval context closes.
	ApprovalRedirectBaseURL string

	ApprovalPollInterval time.Duration
	ApprovalTimeout      time.Duration

	PayoutMaxAttempts   int32
	PayoutRetryInterval time.Duration
	JobBatchSize        int32
}

type JobsConfig struct {
	PayoutRetryInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	commissionRate, err := decimal.NewFromString(getEnv("SETTLEMENTS_COMMISSION_RATE", "0.20"))
	if err != nil {
		return nil, errors.New("SETTLEMENTS_COMMISSION_RATE must be a decimal value")
	}
	if commissionRate.Sign() < 0 || commissionRate.GreaterThan(decimal.New(1, 0)) {
		return nil, errors.New("SETTLEMENTS_COMMISSION_RATE must be within [0, 1]")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "settlements-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		PayPal: PayPalConfig{
			ClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
			ClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
			Mode:         getEnv("PAYPAL_MODE", "sandbox"),
			BaseURL:      getEnv("PAYPAL_BASE_URL", ""),
			BrandName:    getEnv("PAYPAL_BRAND_NAME", "Digital Emporium Genesis Hub"),
			HTTPTimeout:  getSecondsEnv("PAYPAL_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Settlements: SettlementsConfig{
			Currency:                getEnv("SETTLEMENTS_CURRENCY", "USD"),
			CommissionRate:          commissionRate,
			ApprovalRedirectBaseURL: getEnv("SETTLEMENTS_APPROVAL_REDIRECT_BASE_URL", "http://localhost:8080"),
			ApprovalPollInterval:    getSecondsEnv("SETTLEMENTS_APPROVAL_POLL_INTERVAL_SECONDS", time.Second),
			ApprovalTimeout:         getMinutesEnv("SETTLEMENTS_APPROVAL_TIMEOUT_MINUTES", 10*time.Minute),
			PayoutMaxAttempts:       int32(getIntEnv("SETTLEMENTS_PAYOUT_MAX_ATTEMPTS", 10)),
			PayoutRetryInterval:     getMinutesEnv("SETTLEMENTS_PAYOUT_RETRY_INTERVAL_MINUTES", 5*time.Minute),
			JobBatchSize:            int32(getIntEnv("SETTLEMENTS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			PayoutRetryInterval: getMinutesEnv("SETTLEMENTS_PAYOUT_RETRY_JOB_INTERVAL_MINUTES", 2*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
