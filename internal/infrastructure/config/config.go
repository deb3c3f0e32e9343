package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds all client configuration
type Config struct {
	Billing   BillingConfig
	Service   ServiceConfig
	Callback  CallbackConfig
	Publisher PublisherConfig
	Sentry    SentryConfig
	Log       LogConfig
}

// BillingConfig holds the processor settings
type BillingConfig struct {
	PackageName string
	PublicKey   string
	APIVersion  int
	BindTimeout time.Duration
}

// ServiceConfig locates the billing daemon
type ServiceConfig struct {
	URL     string
	Timeout time.Duration
}

// CallbackConfig is where the daemon reports confirmation results
type CallbackConfig struct {
	Addr string
}

// PublisherConfig holds Play Developer API credentials
type PublisherConfig struct {
	CredentialsFile string
	Endpoint        string
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Environment string
	Level       string
}

// Load reads configuration from the environment and an optional env file.
// An empty path looks for .env in the working directory and its parents.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
	} else {
		v.SetConfigName(".env")
		v.SetConfigType("env")
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath("../..")
	}
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// the env file is optional when only environment variables are used
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Billing: BillingConfig{
			PackageName: v.GetString("iab_package_name"),
			PublicKey:   v.GetString("iab_public_key"),
			APIVersion:  v.GetInt("iab_api_version"),
			BindTimeout: v.GetDuration("iab_bind_timeout"),
		},
		Service: ServiceConfig{
			URL:     v.GetString("iab_service_url"),
			Timeout: v.GetDuration("iab_http_timeout"),
		},
		Callback: CallbackConfig{
			Addr: v.GetString("iab_callback_addr"),
		},
		Publisher: PublisherConfig{
			CredentialsFile: v.GetString("iab_publisher_credentials"),
			Endpoint:        v.GetString("iab_publisher_endpoint"),
		},
		Sentry: SentryConfig{
			DSN:         v.GetString("sentry_dsn"),
			Environment: v.GetString("sentry_environment"),
			Release:     v.GetString("sentry_release"),
		},
		Log: LogConfig{
			Environment: v.GetString("log_environment"),
			Level:       v.GetString("log_level"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("iab_api_version", 3)
	v.SetDefault("iab_bind_timeout", 10*time.Second)
	v.SetDefault("iab_service_url", "http://127.0.0.1:8765")
	v.SetDefault("iab_http_timeout", 15*time.Second)
	v.SetDefault("iab_callback_addr", "127.0.0.1:8766")
	v.SetDefault("sentry_environment", "production")
	v.SetDefault("log_environment", "production")
	v.SetDefault("log_level", "info")
}

func validate(cfg *Config) error {
	if cfg.Billing.PackageName == "" {
		return fmt.Errorf("IAB_PACKAGE_NAME is required")
	}
	if cfg.Billing.PublicKey == "" {
		return fmt.Errorf("IAB_PUBLIC_KEY is required")
	}
	if cfg.Billing.APIVersion != 3 && cfg.Billing.APIVersion != 5 {
		return fmt.Errorf("IAB_API_VERSION must be 3 or 5, got %d", cfg.Billing.APIVersion)
	}
	if cfg.Billing.BindTimeout <= 0 {
		return fmt.Errorf("IAB_BIND_TIMEOUT must be positive")
	}
	u, err := url.Parse(cfg.Service.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("IAB_SERVICE_URL must be an absolute url, got %q", cfg.Service.URL)
	}
	return nil
}
