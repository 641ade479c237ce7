// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // ORG_TIMEZONE must resolve in scratch images

	"github.com/tomtom215/presence/internal/api"
	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/cache"
	"github.com/tomtom215/presence/internal/config"
	"github.com/tomtom215/presence/internal/device"
	"github.com/tomtom215/presence/internal/isup"
	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/notify"
	"github.com/tomtom215/presence/internal/store"
	"github.com/tomtom215/presence/internal/supervisor"
	"github.com/tomtom215/presence/internal/supervisor/services"
	ws "github.com/tomtom215/presence/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Presence exited with error")
	}
}

//nolint:gocyclo // Sequential setup steps
func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	loc, err := cfg.Attendance.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}
	isupPolicy, err := attendance.ParsePolicy(cfg.Device.UnknownPersonPolicy)
	if err != nil {
		return err
	}
	webhookPolicy, err := attendance.ParsePolicy(cfg.Webhook.UnknownPersonPolicy)
	if err != nil {
		return err
	}

	logging.Info().
		Str("version", version).
		Str("timezone", loc.String()).
		Bool("isup_enabled", cfg.Device.Enabled).
		Bool("webhook_enabled", cfg.Webhook.Enabled).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting Presence")

	// === STORE ===

	st, err := store.Open(store.Config{
		Path:           cfg.Store.Path,
		InMemory:       cfg.Store.InMemory,
		SyncWrites:     cfg.Store.SyncWrites,
		Compression:    true,
		GCDiscardRatio: cfg.Store.GCDiscardRatio,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	if cfg.Directory.SeedFile != "" {
		if err := seedDirectory(st, cfg.Directory.SeedFile, cfg.Attendance.DefaultRole); err != nil {
			return err
		}
	}

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// === NOTIFICATION SINKS ===

	wsHub := ws.NewHub()
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))

	sinks := []attendance.Notifier{wsHub}
	if natsPub := initNATS(cfg, tree); natsPub != nil {
		sinks = append(sinks, natsPub)
	}
	fanout := notify.NewFanout(sinks...)

	// === RECONCILIATION ===

	registry := device.NewRegistry()
	processor := attendance.NewProcessor(attendance.Config{
		Location:           loc,
		Deduplicate:        cfg.Attendance.Deduplicate,
		HonorDirectionHint: cfg.Attendance.HonorDirectionHint,
		DefaultRole:        cfg.Attendance.DefaultRole,
		DefaultDepartment:  cfg.Attendance.DefaultDepartment,
	}, st, st, fanout)

	// === INGRESS ===

	if cfg.Device.Enabled {
		isupServer := isup.NewServer(isup.Config{
			Addr:                fmt.Sprintf("%s:%d", cfg.Device.Host, cfg.Device.Port),
			DefaultDeviceID:     cfg.Device.DefaultDeviceID,
			ServerID:            cfg.Device.ServerID,
			KeepAliveInterval:   cfg.Device.KeepAliveInterval,
			MaxFrameBytes:       cfg.Device.MaxFrameBytes,
			IdleTimeout:         cfg.Device.IdleTimeout,
			EnvelopeRate:        cfg.Device.EnvelopeRate,
			EnvelopeBurst:       cfg.Device.EnvelopeBurst,
			UnknownPersonPolicy: isupPolicy,
			Location:            loc,
			ProcessTimeout:      cfg.Device.ProcessTimeout,
		}, registry, processor)
		tree.AddIngressService(isupServer)
	} else {
		logging.Info().Msg("ISUP listener disabled (ISUP_ENABLED=false)")
	}

	var dedup *cache.DedupCache
	if cfg.Webhook.DedupTTL > 0 {
		dedup = cache.NewDedupCache(cfg.Webhook.DedupCapacity, cfg.Webhook.DedupTTL)
	}

	handler := api.NewHandler(api.HandlerConfig{
		WebhookEnabled:        cfg.Webhook.Enabled,
		WebhookPolicy:         webhookPolicy,
		WebhookMaxBodyBytes:   cfg.Webhook.MaxBodyBytes,
		DeviceListenerEnabled: cfg.Device.Enabled,
		DevicePort:            cfg.Device.Port,
		Version:               version,
	}, processor, st, registry, wsHub, dedup)

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Security.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Security.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Security.RateLimitDisabled
	mwCfg.WebhookRateLimitRequests = cfg.Security.WebhookRateLimitReqs
	mwCfg.WebhookRateLimitWindow = cfg.Security.WebhookRateLimitWindow
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	router := api.NewRouter(handler, api.NewChiMiddleware(mwCfg), ws.Handler(wsHub, cfg.Security.CORSOrigins))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddIngressService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	// === DATA MAINTENANCE ===

	if !cfg.Store.InMemory {
		tree.AddDataService(services.NewStoreGCService(st, cfg.Store.GCInterval))
	}

	// === RUN ===

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("http_addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// ServeBackground sends exactly once and never closes the channel.
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping services")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	stop()

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree stopped with error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Presence stopped")
	return nil
}

// seedDirectory loads the people file and upserts it into the directory.
func seedDirectory(st *store.Store, path, defaultRole string) error {
	people, err := store.LoadSeedFile(path, defaultRole)
	if err != nil {
		return fmt.Errorf("load directory seed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, _, err := st.Seed(ctx, people); err != nil {
		return fmt.Errorf("seed directory: %w", err)
	}
	return nil
}
