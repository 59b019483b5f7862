package woocommerce

import (
	"errors"
	"strings"
	"time"

	"github.com/erp/wooerp/internal/infrastructure/config"
)

// DefaultAPIPath is the REST namespace of WooCommerce v3
const DefaultAPIPath = "/wp-json/wc/v3"

// Errors for WooCommerce configuration
var (
	ErrConfigMissingBaseURL        = errors.New("woocommerce: base url is required")
	ErrConfigMissingConsumerKey    = errors.New("woocommerce: consumer key is required")
	ErrConfigMissingConsumerSecret = errors.New("woocommerce: consumer secret is required")
)

// Config holds configuration for the WooCommerce REST API
type Config struct {
	// BaseURL is the store root, e.g. https://shop.example.com
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	// APIPath is appended to BaseURL; defaults to DefaultAPIPath
	APIPath string
	Timeout time.Duration
}

// ConfigFromSettings builds a client configuration from application settings
func ConfigFromSettings(cfg config.WooCommerceConfig) Config {
	return Config{
		BaseURL:        cfg.BaseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		Timeout:        cfg.Timeout,
	}
}

// IsConfigured reports whether all credentials are present
func (c *Config) IsConfigured() bool {
	return c.Validate() == nil
}

// Validate checks the credentials and fills defaults
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.ConsumerKey == "" {
		return ErrConfigMissingConsumerKey
	}
	if c.ConsumerSecret == "" {
		return ErrConfigMissingConsumerSecret
	}
	if c.APIPath == "" {
		c.APIPath = DefaultAPIPath
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return nil
}

// endpoint joins the REST namespace and a resource path
func (c *Config) endpoint(path string) string {
	return c.BaseURL + c.APIPath + path
}
