package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lightningdb/chililog/internal/logger"
	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/config"
	"github.com/lightningdb/chililog/pkg/errors"
	"github.com/lightningdb/chililog/pkg/gateway"
	"github.com/lightningdb/chililog/pkg/providers/memory"
	"github.com/lightningdb/chililog/pkg/providers/mongo"
	"github.com/lightningdb/chililog/pkg/providers/nats"
	"github.com/lightningdb/chililog/pkg/repository"
	"github.com/lightningdb/chililog/pkg/serverutil"
	"github.com/lightningdb/chililog/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

func serveCommand(registry *prometheus.Registry) *cobra.Command {
	var configPath string
	serveCommand := &cobra.Command{
		Use:   "serve",
		Short: "Run the repositories and the publish gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return xerrors.Errorf("unable to load config: %w", err)
			}
			return runServer(cmd.Context(), cfg, registry)
		},
	}
	serveCommand.Flags().StringVar(&configPath, "config", "./chililog.yaml", "path to yaml file with server configuration")
	return serveCommand
}

func openBroker(ctx context.Context, cfg *config.Server) (abstract.Broker, error) {
	switch cfg.Transport {
	case config.TransportMemory:
		return memory.NewBroker(cfg.NATS.MaxDeliver), nil
	default:
		broker, err := nats.NewBroker(ctx, &cfg.NATS, logger.Log)
		if err != nil {
			return nil, err
		}
		return broker, nil
	}
}

func openStore(ctx context.Context, cfg *config.Server) (abstract.EntryStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), nil
	default:
		store, err := mongo.NewStore(ctx, &cfg.Mongo, logger.Log)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func runServer(ctx context.Context, cfg *config.Server, registry *prometheus.Registry) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Log.Info("starting chililog", log.Any("config", cfg), log.String("version", buildInfo()))

	go serveMetrics(registry, cfg.MetricsPort)

	broker, err := openBroker(ctx, cfg)
	if err != nil {
		return xerrors.Errorf("unable to open broker: %w", err)
	}
	defer broker.Close()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return xerrors.Errorf("unable to open store: %w", err)
	}
	defer store.Close(context.Background())

	service := repository.NewService(broker, store, cfg.Workers, logger.Log, stats.NewMetrics(registry))
	if err := service.Load(cfg.Repositories); err != nil {
		return xerrors.Errorf("unable to load repositories: %w", err)
	}
	if err := service.Start(ctx); err != nil {
		errors.LogError(logger.Log, "repository did not start", err)
	}

	health, err := serverutil.NewServer("tcp", fmt.Sprintf(":%d", cfg.HealthPort), func() (map[string]any, error) {
		return map[string]any{
			"online":       service.Online(),
			"repositories": len(service.Repositories()),
		}, nil
	}, logger.Log)
	if err != nil {
		_ = service.Stop()
		return xerrors.Errorf("unable to start health check: %w", err)
	}
	go func() {
		if err := health.Serve(); err != nil {
			logger.Log.Error("health check stopped", log.Error(err))
		}
	}()
	defer health.Close()

	gw := gateway.New(cfg.Gateway, service, config.NewUsers(cfg.Users), logger.Log, stats.NewGatewayStats(registry))
	serveErr := gw.Serve(ctx)
	logger.Log.Info("shutting down")
	return multierr.Combine(serveErr, service.Stop())
}
