// Package cli provides command-line interface commands for portscope.
// This package implements the Cobra-based CLI structure with commands for
// running scans locally or against a server, cancelling scans and serving
// the HTTP API.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/portscope/internal/api/handlers"
	"github.com/anstrom/portscope/internal/config"
	"github.com/anstrom/portscope/internal/logging"
)

// envPrefix namespaces environment overrides, e.g. PORTSCOPE_API_PORT.
const envPrefix = "PORTSCOPE"

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "portscope",
	Short: "TCP and UDP port scanner",
	Long: `portscope scans a single host for open TCP or UDP ports, names the
services it finds and grabs their banners. Scans run locally from the
command line or through the HTTP API started with 'portscope serve'.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	// Bind flags to viper
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
	if err := viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind log-level flag: %v\n", err)
	}
}

// initConfig wires viper to the config file and environment.
func initConfig() {
	configureViper(viper.GetViper())

	// Initialize structured logging after config is resolved
	initLogging()
}

// configureViper points v at the config file and binds the environment
// overrides. PORT is honoured without prefix for container platforms.
func configureViper(v *viper.Viper) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("api.port", envPrefix+"_API_PORT", "PORT")
	_ = v.BindEnv("api.listen_addr", envPrefix+"_API_LISTEN_ADDR")
	_ = v.BindEnv("registry.backend", envPrefix+"_REGISTRY_BACKEND")
	_ = v.BindEnv("registry.redis.addr", envPrefix+"_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("registry.redis.password", envPrefix+"_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("scanning.dns_server", envPrefix+"_DNS_SERVER")
	_ = v.BindEnv("logging.level", envPrefix+"_LOG_LEVEL")
	_ = v.BindEnv("logging.format", envPrefix+"_LOG_FORMAT")
}

// configFilePath returns the config file to load, or "" for defaults.
func configFilePath(v *viper.Viper) string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

// loadConfig loads the YAML config and applies environment and flag
// overrides on top of it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := configFilePath(v); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		cfg = loaded
	}

	applyOverrides(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies every key set in v onto cfg.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if v.IsSet("api.port") && v.GetInt("api.port") > 0 {
		cfg.API.Port = v.GetInt("api.port")
	}
	if s := v.GetString("api.listen_addr"); s != "" {
		cfg.API.ListenAddr = s
	}
	if s := v.GetString("registry.backend"); s != "" {
		cfg.Registry.Backend = s
	}
	if s := v.GetString("registry.redis.addr"); s != "" {
		cfg.Registry.Redis.Addr = s
	}
	if s := v.GetString("registry.redis.password"); s != "" {
		cfg.Registry.Redis.Password = s
	}
	if s := v.GetString("scanning.dns_server"); s != "" {
		cfg.Scanning.DNSServer = s
	}
	if s := v.GetString("logging.level"); s != "" {
		cfg.Logging.Level = s
	}
	if s := v.GetString("logging.format"); s != "" {
		cfg.Logging.Format = s
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
	handlers.SetBuildInfo(v, c, bt)
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		// If config loading fails, use default logging
		logging.SetDefault(logging.NewDefault())
		return
	}

	logConfig := cfg.GetLoggingConfig()
	if verbose && logConfig.Level == logging.LevelInfo {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		// Fall back to default if creation fails
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	logging.SetDefault(logger)

	if verbose {
		logging.Info("Structured logging initialized", "level", logConfig.Level, "format", logConfig.Format)
	}
}
