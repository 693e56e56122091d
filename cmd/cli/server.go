// This file implements the serve command, which runs the HTTP API in the
// foreground until interrupted.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/portscope/internal/api"
	"github.com/anstrom/portscope/internal/config"
	"github.com/anstrom/portscope/internal/logging"
	"github.com/anstrom/portscope/internal/metrics"
)

// Timeout constants.
const (
	serverStartupTimeout     = 5 * time.Second
	serverHealthCheckRetries = 5
	serverHealthCheckDelay   = 200 * time.Millisecond
	metricsUpdateInterval    = 15 * time.Second
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server", "api"},
	Short:   "Run the portscope API server",
	Long: `Run the portscope REST API server in the foreground.

The server provides:
  - POST /api/scan and POST /api/scan/cancel
  - Health, liveness and version endpoints under /api/v1
  - Prometheus metrics at /metrics
  - Swagger documentation at /swagger/

The listen port comes from --port, PORTSCOPE_API_PORT, PORT or the config
file, in that order, and defaults to 5000.`,
	Example: `  portscope serve
  portscope serve --port 8080
  PORT=8080 portscope serve
  portscope serve --registry redis --redis-addr localhost:6379`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "API server listen address (overrides config)")
	serveCmd.Flags().Int("port", 0, "API server port (overrides config)")
	serveCmd.Flags().String("registry", "", "cancellation registry backend: memory or redis")
	serveCmd.Flags().String("redis-addr", "", "Redis address for the redis registry")

	bindFlag("api.listen_addr", serveCmd, "host")
	bindFlag("api.port", serveCmd, "port")
	bindFlag("registry.backend", serveCmd, "registry")
	bindFlag("registry.redis.addr", serveCmd, "redis-addr")
}

// bindFlag binds a command flag to a viper key.
func bindFlag(key string, cmd *cobra.Command, name string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", name, err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logging.Default())
}

// serve runs the API server until ctx is cancelled or the server fails.
func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	pm := metrics.NewPrometheusMetrics()
	go pm.StartPeriodicUpdates(ctx, metricsUpdateInterval)

	eng, err := buildEngine(ctx, cfg, pm, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := eng.close(); closeErr != nil {
			logger.Error("Failed to close registry connection", "error", closeErr)
		}
	}()

	deps := api.Dependencies{
		Scanner: eng.orchestrator,
		Metrics: pm,
		Logger:  logger.Logger,
	}
	if eng.redis != nil {
		deps.Registry = eng.redis
	}

	apiServer, err := api.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	logger.Info("Starting portscope API server",
		"version", version,
		"commit", commit,
		"build_time", buildTime,
		"address", cfg.GetAPIAddress(),
		"registry", cfg.Registry.Backend)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- apiServer.Start(ctx)
	}()

	if err := waitForStartup(ctx, apiServer, serverErrChan); err != nil {
		return err
	}

	address := apiServer.GetAddress()
	fmt.Printf("API server listening on %s\n", address)
	fmt.Printf("Health check: http://%s/api/v1/health\n", address)
	fmt.Printf("API documentation: http://%s/swagger/\n", address)

	if err := <-serverErrChan; err != nil {
		logger.Error("API server error", "error", err)
		return fmt.Errorf("API server error: %w", err)
	}

	logger.Info("API server stopped")
	return nil
}

// waitForStartup blocks until the server answers its liveness endpoint.
func waitForStartup(ctx context.Context, apiServer *api.Server, serverErrChan chan error) error {
	deadline := time.Now().Add(serverStartupTimeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-serverErrChan:
			if err == nil {
				err = errors.New("server exited during startup")
			}
			return fmt.Errorf("API server failed to start: %w", err)
		case <-ctx.Done():
			return nil
		default:
		}

		if apiServer.IsRunning() {
			if err := checkServerLiveness(apiServer.GetAddress()); err == nil {
				return nil
			}
		}
		time.Sleep(serverHealthCheckDelay)
	}
	return fmt.Errorf("API server did not become ready within %s", serverStartupTimeout)
}

// checkServerLiveness performs a quick liveness check against the server.
func checkServerLiveness(address string) error {
	url := fmt.Sprintf("http://%s/api/v1/liveness", address)

	for i := 0; i < serverHealthCheckRetries; i++ {
		resp, err := http.Get(url) //nolint:gosec // URL is constructed from config, not user input
		if err == nil && resp.StatusCode == http.StatusOK {
			_ = resp.Body.Close()
			return nil
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		time.Sleep(serverHealthCheckDelay)
	}

	return fmt.Errorf("server liveness check failed after %d retries", serverHealthCheckRetries)
}
