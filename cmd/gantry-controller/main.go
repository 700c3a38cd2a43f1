// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gantry-project/gantry/backend/kubernetes"
	"github.com/gantry-project/gantry/controller"
	"github.com/gantry-project/gantry/lib/cartridgedef"
	"github.com/gantry-project/gantry/lib/config"
	"github.com/gantry-project/gantry/lib/metrics"
	"github.com/gantry-project/gantry/lib/payload"
	"github.com/gantry-project/gantry/lib/process"
	"github.com/gantry-project/gantry/lib/schema"
	"github.com/gantry-project/gantry/lib/socket"
	"github.com/gantry-project/gantry/lib/version"
	"github.com/gantry-project/gantry/messaging"
	"github.com/gantry-project/gantry/registry"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the master config (default: $GANTRY_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("gantry-controller %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := cfg.ParseLogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	durations, err := cfg.ParseTimeouts()
	if err != nil {
		return err
	}

	catalog, err := cartridgedef.ReadFile(cfg.CartridgeCatalog)
	if err != nil {
		return fmt.Errorf("loading cartridge catalog: %w", err)
	}
	if issues := cartridgedef.Validate(catalog); len(issues) > 0 {
		return fmt.Errorf("cartridge catalog %s is invalid:\n  %s",
			cfg.CartridgeCatalog, strings.Join(issues, "\n  "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := registry.Open(registry.Config{
		Driver:      cfg.Registry.Driver,
		Path:        cfg.Registry.Path,
		Compression: cfg.Registry.Compression,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer store.Close()

	state := controller.NewStateStore(controller.StateStoreConfig{
		Registry: store,
		Logger:   logger,
	})
	if err := state.Restore(ctx); err != nil {
		return fmt.Errorf("restoring state: %w", err)
	}

	publisher := buildPublisher(cfg, logger)
	defer publisher.Close()

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	backendClusters := make([]controller.BackendClusterConfig, 0, len(cfg.BackendClusters))
	for _, bc := range cfg.BackendClusters {
		backendClusters = append(backendClusters, controller.BackendClusterConfig{
			ID:         bc.ID,
			MasterHost: bc.MasterHost,
			MasterPort: bc.MasterPort,
			PortLower:  bc.PortRange.Lower,
			PortUpper:  bc.PortRange.Upper,
		})
	}
	partitions := make([]schema.Partition, 0, len(cfg.Partitions))
	for _, p := range cfg.Partitions {
		partitions = append(partitions, schema.Partition{
			ID:               p.ID,
			BackendClusterID: p.BackendCluster,
		})
	}

	ctrl, err := controller.New(controller.Config{
		State:               state,
		Backends:            kubernetes.NewFactory(nil, logger),
		Catalog:             catalog,
		BackendClusters:     backendClusters,
		Partitions:          partitions,
		Publisher:           publisher,
		BasePayload:         payload.Parse(cfg.BasePayload),
		PostTerminationHook: terminationEventHook(publisher, logger),
		Logger:              logger,
		ProvisioningPoll:    durations.ProvisioningPoll,
		ProvisioningTimeout: durations.Provisioning,
		WatchInitialDelay:   durations.WatchInitialDelay,
		WatchInterval:       durations.WatchInterval,
		WatchCeiling:        durations.WatchCeiling,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	server := socket.NewServer(cfg.SocketPath, logger)
	registerActions(server, ctrl)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- server.Serve(ctx)
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddress, logger)

	status := ctrl.Status()
	logger.Info("controller running",
		"socket", cfg.SocketPath,
		"backend_clusters", len(backendClusters),
		"partitions", len(partitions),
		"members", status.Members,
		"clusters", status.Clusters,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	// Wait for the socket server to drain active connections.
	if err := <-socketDone; err != nil {
		logger.Error("socket server error", "error", err)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
	}

	return nil
}

// buildPublisher assembles the event publisher: always the log, plus
// Redis when an address is configured.
func buildPublisher(cfg *config.Config, logger *slog.Logger) messaging.Publisher {
	logPublisher := messaging.NewLogPublisher(logger)
	if cfg.Events.RedisAddress == "" {
		return logPublisher
	}

	redisPublisher, err := messaging.NewRedisPublisher(messaging.RedisConfig{
		Addr:          cfg.Events.RedisAddress,
		Password:      cfg.Events.RedisPassword,
		DB:            cfg.Events.RedisDB,
		ChannelPrefix: cfg.Events.ChannelPrefix,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("redis publisher unavailable, events go to the log only",
			"address", cfg.Events.RedisAddress,
			"error", err,
		)
		return logPublisher
	}
	return messaging.NewMulti(logPublisher, redisPublisher)
}

// terminationEventHook publishes the member-terminated event after a
// member's workload has been deleted.
func terminationEventHook(publisher messaging.Publisher, logger *slog.Logger) func(context.Context, *schema.Member) error {
	return func(ctx context.Context, member *schema.Member) error {
		event, err := messaging.NewEvent(schema.EventTypeMemberTerminated, schema.MemberTerminatedContent{
			ApplicationID: member.ApplicationID,
			CartridgeType: member.CartridgeType,
			ClusterID:     member.ClusterID,
			MemberID:      member.MemberID,
		})
		if err != nil {
			return err
		}
		metrics.EventsPublished.WithLabelValues(schema.EventTypeMemberTerminated).Inc()
		if err := publisher.Publish(ctx, event); err != nil {
			return err
		}
		logger.Debug("member terminated event published", "member", member.MemberID)
		return nil
	}
}

// startMetricsServer serves Prometheus metrics on /metrics when an
// address is configured. Returns nil when disabled.
func startMetricsServer(address string, logger *slog.Logger) *http.Server {
	if address == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: address, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics listening", "address", address)
	return server
}
