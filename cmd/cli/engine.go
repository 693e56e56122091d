package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anstrom/portscope/internal/config"
	"github.com/anstrom/portscope/internal/logging"
	"github.com/anstrom/portscope/internal/metrics"
	"github.com/anstrom/portscope/internal/resolver"
	"github.com/anstrom/portscope/internal/scanning"
	"github.com/anstrom/portscope/internal/services"
)

const registryPingTimeout = 5 * time.Second

// engine is a scan orchestrator together with the resources it holds.
type engine struct {
	orchestrator *scanning.Orchestrator
	// redis is set when the Redis registry backend is in use.
	redis *scanning.RedisRegistry
	close func() error
}

// buildEngine assembles the resolver, service detector and cancellation
// registry described by cfg into an orchestrator.
func buildEngine(ctx context.Context, cfg *config.Config, recorder metrics.Recorder, logger *logging.Logger) (*engine, error) {
	table := services.NewTable()
	if cfg.Scanning.ServicesFile != "" {
		n, err := table.MergeFile(cfg.Scanning.ServicesFile)
		if err != nil {
			logger.Warn("Services file not loaded, using built-in names",
				"path", cfg.Scanning.ServicesFile, "error", err)
		} else {
			logger.Debug("Loaded services file", "path", cfg.Scanning.ServicesFile, "entries", n)
		}
	}
	detector := services.NewDetector(table, &services.BannerGrabber{Timeout: cfg.Scanning.BannerTimeout})

	e := &engine{close: func() error { return nil }}

	var registry scanning.Registry
	if cfg.UsesRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Registry.Redis.Addr,
			Password: cfg.Registry.Redis.Password,
			DB:       cfg.Registry.Redis.DB,
		})
		redisRegistry := scanning.NewRedisRegistry(client, cfg.Registry.Redis.TTL)

		pingCtx, cancel := context.WithTimeout(ctx, registryPingTimeout)
		defer cancel()
		if err := redisRegistry.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis registry at %s: %w", cfg.Registry.Redis.Addr, err)
		}
		logger.Info("Using Redis cancellation registry", "addr", cfg.Registry.Redis.Addr)

		registry = redisRegistry
		e.redis = redisRegistry
		e.close = client.Close
	} else {
		registry = scanning.NewMemoryRegistry()
	}

	if recorder == nil {
		recorder = metrics.Nop{}
	}

	e.orchestrator = scanning.NewOrchestrator(registry,
		scanning.WithResolver(resolver.New(cfg.Scanning.DNSServer, cfg.Scanning.ResolveTimeout)),
		scanning.WithDetector(detector),
		scanning.WithRecorder(recorder),
		scanning.WithPollInterval(cfg.Scanning.PollInterval),
		scanning.WithUDPWait(cfg.Scanning.UDPWait),
		scanning.WithLogger(logger.WithComponent("scanning")),
	)
	return e, nil
}
