package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configEnv lists every variable a test may set, so each subtest starts clean
var configEnv = []string{
	"ERP_APP_NAME", "ERP_APP_ENV", "ERP_APP_PORT",
	"ERP_DATABASE_DRIVER", "ERP_DATABASE_HOST", "ERP_DATABASE_PORT", "ERP_DATABASE_PASSWORD",
	"ERP_DATABASE_SSLMODE", "ERP_DATABASE_MAX_OPEN_CONNS", "ERP_DATABASE_MAX_IDLE_CONNS",
	"ERP_REDIS_ENABLED",
	"ERP_WOOCOMMERCE_BASE_URL", "ERP_WOOCOMMERCE_CONSUMER_KEY", "ERP_WOOCOMMERCE_CONSUMER_SECRET",
	"ERP_WOOCOMMERCE_WEBHOOK_SECRET", "ERP_WOOCOMMERCE_TIMEOUT",
	"ERP_BARCODE_PROVIDERS", "ERP_BARCODE_PROVIDER_TIMEOUT",
	"ERP_SALES_MIXED_PAYMENT_TOLERANCE",
	"ERP_IDEMPOTENCY_BACKEND", "ERP_ARCHIVE_ENABLED", "ERP_ARCHIVE_BUCKET",
	"ERP_TELEMETRY_SAMPLING_RATIO", "ERP_TELEMETRY_DB_LOG_FULL_SQL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "wooerp", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)

		assert.False(t, cfg.WooCommerce.IsConfigured())
		assert.Equal(t, 10*time.Second, cfg.WooCommerce.Timeout)
		assert.Equal(t, 100, cfg.WooCommerce.PageSize)
		assert.Equal(t, "WC-", cfg.WooCommerce.OrderNumberPrefix)
		assert.Equal(t, "online", cfg.WooCommerce.ClientType)

		assert.Equal(t, []string{"openfoodfacts", "upcitemdb", "openbeautyfacts"}, cfg.Barcode.Providers)
		assert.Equal(t, 3*time.Second, cfg.Barcode.ProviderTimeout)
		assert.Equal(t, 5*time.Second, cfg.Barcode.ResolveTimeout)
		assert.Equal(t, 65536, cfg.Barcode.MaxRawPayloadBytes)

		assert.True(t, cfg.Sales.MixedPaymentTolerance.Equal(decimal.RequireFromString("0.01")))
		assert.Equal(t, int64(1<<20), cfg.HTTP.WebhookMaxPayload)
		assert.Equal(t, 30*time.Second, cfg.HTTP.IngestTimeout)

		assert.Equal(t, 5*time.Minute, cfg.Sync.RetryInterval)
		assert.Equal(t, 50, cfg.Sync.RetryBatchSize)
		assert.Equal(t, 5, cfg.Sync.RetryMaxAttempts)
		assert.Equal(t, 10*time.Minute, cfg.Sync.StalePendingAfter)

		assert.Equal(t, "memory", cfg.Idempotency.Backend)
		assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	})

	t.Run("loads values from environment variables with ERP prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_APP_PORT", "9000")
		t.Setenv("ERP_DATABASE_DRIVER", "sqlite")
		t.Setenv("ERP_WOOCOMMERCE_BASE_URL", "https://shop.example.com/")
		t.Setenv("ERP_WOOCOMMERCE_CONSUMER_KEY", "ck_test")
		t.Setenv("ERP_WOOCOMMERCE_CONSUMER_SECRET", "cs_test")
		t.Setenv("ERP_WOOCOMMERCE_TIMEOUT", "4s")
		t.Setenv("ERP_BARCODE_PROVIDERS", "upcitemdb, OpenFoodFacts")
		t.Setenv("ERP_SALES_MIXED_PAYMENT_TOLERANCE", "0.05")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.True(t, cfg.WooCommerce.IsConfigured())
		assert.Equal(t, "https://shop.example.com", cfg.WooCommerce.BaseURL)
		assert.Equal(t, 4*time.Second, cfg.WooCommerce.Timeout)
		assert.Equal(t, []string{"upcitemdb", "openfoodfacts"}, cfg.Barcode.Providers)
		assert.True(t, cfg.Sales.MixedPaymentTolerance.Equal(decimal.RequireFromString("0.05")))
	})

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "idle connections above open connections",
			env:  map[string]string{"ERP_DATABASE_MAX_OPEN_CONNS": "10", "ERP_DATABASE_MAX_IDLE_CONNS": "20"},
			want: "cannot exceed",
		},
		{
			name: "unknown database driver",
			env:  map[string]string{"ERP_DATABASE_DRIVER": "mysql"},
			want: "database.driver",
		},
		{
			name: "negative tolerance",
			env:  map[string]string{"ERP_SALES_MIXED_PAYMENT_TOLERANCE": "-0.01"},
			want: "mixed_payment_tolerance cannot be negative",
		},
		{
			name: "malformed tolerance",
			env:  map[string]string{"ERP_SALES_MIXED_PAYMENT_TOLERANCE": "one cent"},
			want: "sales.mixed_payment_tolerance",
		},
		{
			name: "unknown barcode provider",
			env:  map[string]string{"ERP_BARCODE_PROVIDERS": "openfoodfacts,barcodelookup"},
			want: `unknown provider "barcodelookup"`,
		},
		{
			name: "sampling ratio out of range",
			env:  map[string]string{"ERP_TELEMETRY_SAMPLING_RATIO": "1.5"},
			want: "sampling_ratio",
		},
		{
			name: "redis idempotency without redis",
			env:  map[string]string{"ERP_IDEMPOTENCY_BACKEND": "redis"},
			want: "requires redis.enabled",
		},
		{
			name: "archive without bucket",
			env:  map[string]string{"ERP_ARCHIVE_ENABLED": "true"},
			want: "archive.bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_APP_ENV", "production")
		t.Setenv("ERP_DATABASE_PASSWORD", "secure-password")
		t.Setenv("ERP_DATABASE_SSLMODE", "require")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ERP_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("sqlite needs no database password", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ERP_APP_ENV", "production")
		t.Setenv("ERP_DATABASE_DRIVER", "sqlite")

		_, err := Load()
		require.NoError(t, err)
	})

	t.Run("requires webhook secret when storefront is configured", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ERP_WOOCOMMERCE_BASE_URL", "https://shop.example.com")
		t.Setenv("ERP_WOOCOMMERCE_CONSUMER_KEY", "ck")
		t.Setenv("ERP_WOOCOMMERCE_CONSUMER_SECRET", "cs")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "webhook_secret")

		t.Setenv("ERP_WOOCOMMERCE_WEBHOOK_SECRET", "whsec")
		_, err = Load()
		require.NoError(t, err)
	})

	t.Run("full SQL logging is rejected in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ERP_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
