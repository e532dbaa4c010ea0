package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Remote       RemoteConfig
	Images       ImagesConfig
	Connectivity ConnectivityConfig
	Log          LogConfig
	Telemetry    TelemetryConfig
	DevServer    DevServerConfig
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
}

// StoreConfig holds the local SQLite store settings
type StoreConfig struct {
	Path          string
	BusyTimeoutMS int
	LogLevel      string // silent, error, warn, info
	SlowThreshold time.Duration
}

// RemoteConfig holds the sync server settings
type RemoteConfig struct {
	BaseURL          string
	RPCPath          string
	Timeout          time.Duration
	MaxResponseBytes int64
	HistoryLimit     int
}

// ImagesConfig holds the product image cache settings
type ImagesConfig struct {
	Dir           string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	MaxBytes      int64
}

// ConnectivityConfig holds the network reachability probe settings
type ConnectivityConfig struct {
	ProbeURL string
	Interval time.Duration
	Timeout  time.Duration
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	SamplingRatio     float64
	ExportInterval    time.Duration
	ExportLogs        bool
	ServiceName       string
}

// DevServerConfig holds settings for the local contract server
type DevServerConfig struct {
	Port           string
	TokenSecret    string
	TokenTTL       time.Duration
	VendorUsername string
	VendorPassword string
	Seed           uint64 // 0 seeds randomly
	SeedProducts   int
	SeedClients    int
	UseRedis       bool
	Redis          RedisConfig
	IdempotencyTTL time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with VENDORSYNC_ prefix (e.g., VENDORSYNC_REMOTE_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.vendorsync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

// LoadFile loads configuration from an explicit file path plus environment
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("VENDORSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Store: StoreConfig{
			Path:          v.GetString("store.path"),
			BusyTimeoutMS: v.GetInt("store.busy_timeout_ms"),
			LogLevel:      v.GetString("store.log_level"),
			SlowThreshold: v.GetDuration("store.slow_threshold"),
		},
		Remote: RemoteConfig{
			BaseURL:          v.GetString("remote.base_url"),
			RPCPath:          v.GetString("remote.rpc_path"),
			Timeout:          v.GetDuration("remote.timeout"),
			MaxResponseBytes: v.GetInt64("remote.max_response_bytes"),
			HistoryLimit:     v.GetInt("remote.history_limit"),
		},
		Images: ImagesConfig{
			Dir:           v.GetString("images.dir"),
			RatePerSecond: v.GetFloat64("images.rate_per_second"),
			Burst:         v.GetInt("images.burst"),
			Timeout:       v.GetDuration("images.timeout"),
			MaxBytes:      v.GetInt64("images.max_bytes"),
		},
		Connectivity: ConnectivityConfig{
			ProbeURL: v.GetString("connectivity.probe_url"),
			Interval: v.GetDuration("connectivity.interval"),
			Timeout:  v.GetDuration("connectivity.timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			Insecure:          v.GetBool("telemetry.insecure"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
			ServiceName:       v.GetString("telemetry.service_name"),
		},
		DevServer: DevServerConfig{
			Port:           v.GetString("devserver.port"),
			TokenSecret:    v.GetString("devserver.token_secret"),
			TokenTTL:       v.GetDuration("devserver.token_ttl"),
			VendorUsername: v.GetString("devserver.vendor_username"),
			VendorPassword: v.GetString("devserver.vendor_password"),
			Seed:           v.GetUint64("devserver.seed"),
			SeedProducts:   v.GetInt("devserver.seed_products"),
			SeedClients:    v.GetInt("devserver.seed_clients"),
			UseRedis:       v.GetBool("devserver.use_redis"),
			Redis: RedisConfig{
				Host:     v.GetString("devserver.redis.host"),
				Port:     v.GetInt("devserver.redis.port"),
				Password: v.GetString("devserver.redis.password"),
				DB:       v.GetInt("devserver.redis.db"),
			},
			IdempotencyTTL: v.GetDuration("devserver.idempotency_ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with every default applied and no file
// or environment input. Used by tests and embedders.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "vendorsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "vendedor_offline.db"
	}
	if cfg.Store.BusyTimeoutMS == 0 {
		cfg.Store.BusyTimeoutMS = 5000
	}
	if cfg.Store.LogLevel == "" {
		cfg.Store.LogLevel = "warn"
	}
	if cfg.Store.SlowThreshold == 0 {
		cfg.Store.SlowThreshold = 200 * time.Millisecond
	}
	if cfg.Remote.BaseURL == "" {
		cfg.Remote.BaseURL = "http://localhost:8080"
	}
	if cfg.Remote.RPCPath == "" {
		cfg.Remote.RPCPath = "/api/trpc"
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
	if cfg.Remote.MaxResponseBytes == 0 {
		cfg.Remote.MaxResponseBytes = 32 << 20 // 32MB
	}
	if cfg.Remote.HistoryLimit == 0 {
		cfg.Remote.HistoryLimit = 100
	}
	if cfg.Images.Dir == "" {
		cfg.Images.Dir = "product_images"
	}
	if cfg.Images.RatePerSecond == 0 {
		cfg.Images.RatePerSecond = 8
	}
	if cfg.Images.Burst == 0 {
		cfg.Images.Burst = 4
	}
	if cfg.Images.Timeout == 0 {
		cfg.Images.Timeout = 20 * time.Second
	}
	if cfg.Images.MaxBytes == 0 {
		cfg.Images.MaxBytes = 10 << 20 // 10MB
	}
	if cfg.Connectivity.Interval == 0 {
		cfg.Connectivity.Interval = 10 * time.Second
	}
	if cfg.Connectivity.Timeout == 0 {
		cfg.Connectivity.Timeout = 5 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "vendorsync"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.DevServer.Port == "" {
		cfg.DevServer.Port = "8080"
	}
	if cfg.DevServer.TokenTTL == 0 {
		cfg.DevServer.TokenTTL = 12 * time.Hour
	}
	if cfg.DevServer.VendorUsername == "" {
		cfg.DevServer.VendorUsername = "vendedor"
	}
	if cfg.DevServer.VendorPassword == "" {
		cfg.DevServer.VendorPassword = "vendedor123"
	}
	if cfg.DevServer.SeedProducts == 0 {
		cfg.DevServer.SeedProducts = 40
	}
	if cfg.DevServer.SeedClients == 0 {
		cfg.DevServer.SeedClients = 10
	}
	if cfg.DevServer.Redis.Host == "" {
		cfg.DevServer.Redis.Host = "localhost"
	}
	if cfg.DevServer.Redis.Port == 0 {
		cfg.DevServer.Redis.Port = 6379
	}
	if cfg.DevServer.IdempotencyTTL == 0 {
		cfg.DevServer.IdempotencyTTL = 7 * 24 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("remote.base_url must be an absolute URL, got %q", c.Remote.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("remote.base_url scheme must be http or https, got %q", u.Scheme)
	}
	if !strings.HasPrefix(c.Remote.RPCPath, "/") {
		return fmt.Errorf("remote.rpc_path must start with '/', got %q", c.Remote.RPCPath)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout cannot be negative")
	}
	if c.Remote.MaxResponseBytes < 0 {
		return fmt.Errorf("remote.max_response_bytes cannot be negative")
	}
	if c.Images.RatePerSecond < 0 {
		return fmt.Errorf("images.rate_per_second cannot be negative")
	}
	if c.Images.Burst < 0 {
		return fmt.Errorf("images.burst cannot be negative")
	}
	if c.Connectivity.Interval < time.Second {
		return fmt.Errorf("connectivity.interval must be at least 1s, got %s", c.Connectivity.Interval)
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be within [0, 1], got %v", c.Telemetry.SamplingRatio)
	}
	if c.Connectivity.ProbeURL != "" {
		if p, err := url.Parse(c.Connectivity.ProbeURL); err != nil || p.Host == "" {
			return fmt.Errorf("connectivity.probe_url must be an absolute URL, got %q", c.Connectivity.ProbeURL)
		}
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if u.Scheme != "https" {
			return fmt.Errorf("remote.base_url must use https in production")
		}
		if c.DevServer.TokenSecret != "" && len(c.DevServer.TokenSecret) < 32 {
			return fmt.Errorf("devserver.token_secret must be at least 32 characters in production")
		}
	}

	return nil
}

// ProbeTarget returns the URL the connectivity probe should hit. When no
// probe URL is configured the sync server itself is probed.
func (c *Config) ProbeTarget() string {
	if c.Connectivity.ProbeURL != "" {
		return c.Connectivity.ProbeURL
	}
	return strings.TrimRight(c.Remote.BaseURL, "/")
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
