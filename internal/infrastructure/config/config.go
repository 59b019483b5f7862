package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// KnownBarcodeProviders lists the provider names accepted in barcode.providers
var KnownBarcodeProviders = []string{"openfoodfacts", "upcitemdb", "openbeautyfacts"}

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	WooCommerce WooCommerceConfig
	Barcode     BarcodeConfig
	Sales       SalesConfig
	Sync        SyncConfig
	Idempotency IdempotencyConfig
	Archive     ArchiveConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	WebhookMaxPayload int64
	IngestTimeout     time.Duration
	TrustedProxies    []string
}

// WooCommerceConfig holds the storefront REST credentials
type WooCommerceConfig struct {
	BaseURL           string
	ConsumerKey       string
	ConsumerSecret    string
	WebhookSecret     string
	Timeout           time.Duration
	PageSize          int
	OrderNumberPrefix string
	ClientType        string
}

// IsConfigured reports whether the storefront can be called
func (w WooCommerceConfig) IsConfigured() bool {
	return w.BaseURL != "" && w.ConsumerKey != "" && w.ConsumerSecret != ""
}

// BarcodeConfig holds barcode provider settings
type BarcodeConfig struct {
	Providers          []string
	ProviderTimeout    time.Duration
	ResolveTimeout     time.Duration
	UPCItemDBKey       string
	MaxRawPayloadBytes int
	// LookupRateLimit caps lookups per client per LookupRateWindow. Zero disables it.
	LookupRateLimit  int
	LookupRateWindow time.Duration
}

// SalesConfig holds point-of-sale settings
type SalesConfig struct {
	MixedPaymentTolerance decimal.Decimal
}

// SyncConfig holds the outbound sync retry scheduler settings
type SyncConfig struct {
	RetryEnabled      bool
	RetryInterval     time.Duration
	RetryBatchSize    int
	RetryMaxAttempts  int
	StalePendingAfter time.Duration
}

// IdempotencyConfig holds webhook delivery dedup settings
type IdempotencyConfig struct {
	Backend string // memory, redis
	TTL     time.Duration
}

// ArchiveConfig holds raw webhook payload archive settings
type ArchiveConfig struct {
	Enabled      bool
	Bucket       string
	Region       string
	Prefix       string
	Endpoint     string // empty for AWS, set for MinIO and other S3-compatible stores
	AccessKey    string // empty uses the default AWS credential chain
	SecretKey    string
	UsePathStyle bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	// Database tracing options
	DBTraceEnabled    bool
	DBLogFullSQL      bool // dev only
	DBSlowQueryThresh time.Duration
	// Continuous profiling
	ProfilingEnabled bool
	ProfilingServer  string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ERP_ prefix (e.g., ERP_WOOCOMMERCE_CONSUMER_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	tolerance, err := parseTolerance(v.GetString("sales.mixed_payment_tolerance"))
	if err != nil {
		return nil, fmt.Errorf("sales.mixed_payment_tolerance: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			WebhookMaxPayload: v.GetInt64("http.webhook_max_payload"),
			IngestTimeout:     v.GetDuration("http.ingest_timeout"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		WooCommerce: WooCommerceConfig{
			BaseURL:           strings.TrimRight(v.GetString("woocommerce.base_url"), "/"),
			ConsumerKey:       v.GetString("woocommerce.consumer_key"),
			ConsumerSecret:    v.GetString("woocommerce.consumer_secret"),
			WebhookSecret:     v.GetString("woocommerce.webhook_secret"),
			Timeout:           v.GetDuration("woocommerce.timeout"),
			PageSize:          v.GetInt("woocommerce.page_size"),
			OrderNumberPrefix: v.GetString("woocommerce.order_number_prefix"),
			ClientType:        v.GetString("woocommerce.client_type"),
		},
		Barcode: BarcodeConfig{
			Providers:          splitList(v.GetStringSlice("barcode.providers")),
			ProviderTimeout:    v.GetDuration("barcode.provider_timeout"),
			ResolveTimeout:     v.GetDuration("barcode.resolve_timeout"),
			UPCItemDBKey:       v.GetString("barcode.upcitemdb_key"),
			MaxRawPayloadBytes: v.GetInt("barcode.max_raw_payload_bytes"),
			LookupRateLimit:    v.GetInt("barcode.lookup_rate_limit"),
			LookupRateWindow:   v.GetDuration("barcode.lookup_rate_window"),
		},
		Sales: SalesConfig{
			MixedPaymentTolerance: tolerance,
		},
		Sync: SyncConfig{
			RetryEnabled:      v.GetBool("sync.retry_enabled"),
			RetryInterval:     v.GetDuration("sync.retry_interval"),
			RetryBatchSize:    v.GetInt("sync.retry_batch_size"),
			RetryMaxAttempts:  v.GetInt("sync.retry_max_attempts"),
			StalePendingAfter: v.GetDuration("sync.stale_pending_after"),
		},
		Idempotency: IdempotencyConfig{
			Backend: v.GetString("idempotency.backend"),
			TTL:     v.GetDuration("idempotency.ttl"),
		},
		Archive: ArchiveConfig{
			Enabled:      v.GetBool("archive.enabled"),
			Bucket:       v.GetString("archive.bucket"),
			Region:       v.GetString("archive.region"),
			Prefix:       v.GetString("archive.prefix"),
			Endpoint:     v.GetString("archive.endpoint"),
			AccessKey:    v.GetString("archive.access_key"),
			SecretKey:    v.GetString("archive.secret_key"),
			UsePathStyle: v.GetBool("archive.use_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "wooerp"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "erp"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "erp.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 45 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.WebhookMaxPayload == 0 {
		cfg.HTTP.WebhookMaxPayload = 1 << 20 // 1MB
	}
	if cfg.HTTP.IngestTimeout == 0 {
		cfg.HTTP.IngestTimeout = 30 * time.Second
	}
	if cfg.WooCommerce.Timeout == 0 {
		cfg.WooCommerce.Timeout = 10 * time.Second
	}
	if cfg.WooCommerce.PageSize == 0 {
		cfg.WooCommerce.PageSize = 100
	}
	if cfg.WooCommerce.OrderNumberPrefix == "" {
		cfg.WooCommerce.OrderNumberPrefix = "WC-"
	}
	if cfg.WooCommerce.ClientType == "" {
		cfg.WooCommerce.ClientType = "online"
	}
	if len(cfg.Barcode.Providers) == 0 {
		cfg.Barcode.Providers = append([]string(nil), KnownBarcodeProviders...)
	}
	if cfg.Barcode.ProviderTimeout == 0 {
		cfg.Barcode.ProviderTimeout = 3 * time.Second
	}
	if cfg.Barcode.ResolveTimeout == 0 {
		cfg.Barcode.ResolveTimeout = 5 * time.Second
	}
	if cfg.Barcode.MaxRawPayloadBytes == 0 {
		cfg.Barcode.MaxRawPayloadBytes = 64 << 10 // 64KB
	}
	if cfg.Barcode.LookupRateWindow == 0 {
		cfg.Barcode.LookupRateWindow = time.Minute
	}
	if cfg.Sync.RetryInterval == 0 {
		cfg.Sync.RetryInterval = 5 * time.Minute
	}
	if cfg.Sync.RetryBatchSize == 0 {
		cfg.Sync.RetryBatchSize = 50
	}
	if cfg.Sync.RetryMaxAttempts == 0 {
		cfg.Sync.RetryMaxAttempts = 5
	}
	if cfg.Sync.StalePendingAfter == 0 {
		cfg.Sync.StalePendingAfter = 10 * time.Minute
	}
	if cfg.Idempotency.Backend == "" {
		cfg.Idempotency.Backend = "memory"
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "webhooks/"
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "wooerp"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilingServer == "" {
		cfg.Telemetry.ProfilingServer = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sales.MixedPaymentTolerance.IsNegative() {
		return fmt.Errorf("sales.mixed_payment_tolerance cannot be negative")
	}
	for _, name := range c.Barcode.Providers {
		if !isKnownProvider(name) {
			return fmt.Errorf("barcode.providers: unknown provider %q (known: %s)",
				name, strings.Join(KnownBarcodeProviders, ", "))
		}
	}
	if c.Idempotency.Backend != "memory" && c.Idempotency.Backend != "redis" {
		return fmt.Errorf("idempotency.backend must be memory or redis, got %q", c.Idempotency.Backend)
	}
	if c.Idempotency.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("idempotency.backend=redis requires redis.enabled=true")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive is enabled")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		if c.WooCommerce.IsConfigured() && c.WooCommerce.WebhookSecret == "" {
			return fmt.Errorf("woocommerce.webhook_secret is required in production when woocommerce is configured")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func isKnownProvider(name string) bool {
	for _, known := range KnownBarcodeProviders {
		if name == known {
			return true
		}
	}
	return false
}

// splitList accepts both TOML arrays and comma separated env values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseTolerance reads the mixed payment tolerance, 0.01 when unset
func parseTolerance(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.New(1, -2), nil
	}
	return decimal.NewFromString(s)
}
