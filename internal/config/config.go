package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anstrom/portscope/internal/errors"
	"github.com/anstrom/portscope/internal/logging"
	"github.com/anstrom/portscope/internal/probe"
)

// Registry backends.
const (
	RegistryMemory = "memory"
	RegistryRedis  = "redis"
)

// DefaultPort is the API listen port used when nothing else is configured.
const DefaultPort = 5000

// Config represents the complete portscope configuration
type Config struct {
	// API server configuration
	API APIConfig `yaml:"api" json:"api"`

	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Cancellation registry configuration
	Registry RegistryConfig `yaml:"registry" json:"registry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds API server settings
type APIConfig struct {
	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	// CORS settings
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Server read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// Server write timeout. Zero means none; scans can take a long time.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// Keep-alive idle timeout
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// Per-request timeout. Zero disables it. A request that times out
	// cancels its scan.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Maximum request size
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	// Enable CORS
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Allowed origins
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// Allowed methods
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`

	// Allowed headers
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// ScanningConfig holds scanning-related settings
type ScanningConfig struct {
	// Per-probe timeout when a request does not set one
	DefaultTimeout time.Duration `yaml:"default_timeout" json:"default_timeout"`

	// Worker count when a request does not set one
	DefaultThreads int `yaml:"default_threads" json:"default_threads"`

	// Upper bound for the worker count of a single scan
	MaxThreads int `yaml:"max_threads" json:"max_threads"`

	// Ceiling for the UDP reply wait, at most 300ms
	UDPWait time.Duration `yaml:"udp_wait" json:"udp_wait"`

	// Banner grab connect and read timeout
	BannerTimeout time.Duration `yaml:"banner_timeout" json:"banner_timeout"`

	// Services database merged over the built-in table
	ServicesFile string `yaml:"services_file" json:"services_file"`

	// DNS server used to resolve targets. Empty uses the system resolver.
	DNSServer string `yaml:"dns_server" json:"dns_server"`

	// Target resolution timeout
	ResolveTimeout time.Duration `yaml:"resolve_timeout" json:"resolve_timeout"`

	// How often a running scan checks for cancellation between completions
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// RegistryConfig selects where cancellation flags are kept
type RegistryConfig struct {
	// Backend is "memory" or "redis"
	Backend string `yaml:"backend" json:"backend"`

	// Redis settings, used by the redis backend
	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Include source locations
	AddSource bool `yaml:"add_source" json:"add_source"`

	// Enable request logging for API
	RequestLogging bool `yaml:"request_logging" json:"request_logging"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		API: APIConfig{
			ListenAddr: "0.0.0.0",
			Port:       DefaultPort,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			},
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  0,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestSize:  1024 * 1024, // 1MB
		},
		Scanning: ScanningConfig{
			DefaultTimeout: time.Second,
			DefaultThreads: 50,
			MaxThreads:     1000,
			UDPWait:        300 * time.Millisecond,
			BannerTimeout:  time.Second,
			ServicesFile:   "/etc/services",
			DNSServer:      "",
			ResolveTimeout: 5 * time.Second,
			PollInterval:   100 * time.Millisecond,
		},
		Registry: RegistryConfig{
			Backend: RegistryMemory,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				TTL:  time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			Output:         "stderr",
			RequestLogging: true,
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Start with defaults
	config := Default()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil // Return defaults if no config file
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// YAML is a superset of JSON, so one decoder serves both.
	switch filepath.Ext(path) {
	case ".json":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return invalid("api.port", c.API.Port, "API port must be between 1 and 65535")
	}
	if c.API.ListenAddr == "" {
		return errors.ErrConfigMissing("api.listen_addr")
	}
	if c.API.ReadTimeout < 0 || c.API.WriteTimeout < 0 || c.API.RequestTimeout < 0 {
		return invalid("api", nil, "API timeouts must not be negative")
	}

	if c.Scanning.DefaultTimeout <= 0 {
		return invalid("scanning.default_timeout", c.Scanning.DefaultTimeout, "default timeout must be positive")
	}
	if c.Scanning.DefaultThreads <= 0 {
		return invalid("scanning.default_threads", c.Scanning.DefaultThreads, "default threads must be positive")
	}
	if c.Scanning.MaxThreads < c.Scanning.DefaultThreads {
		return invalid("scanning.max_threads", c.Scanning.MaxThreads,
			"max threads must be at least default threads")
	}
	if c.Scanning.UDPWait <= 0 || c.Scanning.UDPWait > probe.DefaultUDPWait {
		return invalid("scanning.udp_wait", c.Scanning.UDPWait,
			fmt.Sprintf("UDP wait must be positive and at most %s", probe.DefaultUDPWait))
	}
	if c.Scanning.BannerTimeout <= 0 {
		return invalid("scanning.banner_timeout", c.Scanning.BannerTimeout, "banner timeout must be positive")
	}
	if c.Scanning.PollInterval <= 0 {
		return invalid("scanning.poll_interval", c.Scanning.PollInterval, "poll interval must be positive")
	}

	switch c.Registry.Backend {
	case RegistryMemory:
	case RegistryRedis:
		if c.Registry.Redis.Addr == "" {
			return errors.ErrConfigMissing("registry.redis.addr")
		}
	default:
		return invalid("registry.backend", c.Registry.Backend,
			fmt.Sprintf("invalid registry backend: %s", c.Registry.Backend))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return invalid("logging.level", c.Logging.Level, fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return invalid("logging.format", c.Logging.Format, fmt.Sprintf("invalid log format: %s", c.Logging.Format))
	}

	return nil
}

func invalid(field string, value interface{}, message string) error {
	return errors.NewConfigFieldError(errors.CodeValidation, message, field, value)
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.API.ListenAddr, strconv.Itoa(c.API.Port))
}

// GetLoggingConfig converts the logging section for internal/logging.
func (c *Config) GetLoggingConfig() logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(c.Logging.Level),
		Format:    logging.LogFormat(c.Logging.Format),
		Output:    c.Logging.Output,
		AddSource: c.Logging.AddSource,
	}
}

// UsesRedis returns true if cancellation flags are kept in Redis
func (c *Config) UsesRedis() bool {
	return c.Registry.Backend == RegistryRedis
}
