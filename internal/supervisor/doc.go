// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

/*
Package supervisor runs every long-lived component of the service under a
suture v4 supervisor tree.

# Overview

Services are grouped into three layers so that a failure in one does not
restart the others:

	RootSupervisor ("presence")
	├── DataSupervisor ("data-layer")
	│   └── StoreGCService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService
	│   ├── NATSPublisher (if NATS_ENABLED, build tag: nats)
	│   └── NATSServerService (if NATS_EMBEDDED_SERVER)
	└── IngressSupervisor ("ingress-layer")
	    ├── isup.Server (if ISUP_ENABLED)
	    └── HTTPServerService

A crashed ISUP listener is restarted with backoff while the webhook keeps
accepting events, and a NATS outage never reaches either ingress path.

# Usage

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}

	tree.AddDataService(services.NewStoreGCService(st, cfg.Store.GCInterval))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddIngressService(isupServer)
	tree.AddIngressService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

Every service implements suture.Service: Serve blocks until its context is
canceled and returns ctx.Err(), or returns early with an error to request a
restart. String names the service in the supervisor's slog events.

# See Also

  - internal/supervisor/services: adapters for components that do not
    implement suture.Service themselves
  - github.com/thejerf/suture/v4
  - github.com/thejerf/sutureslog
*/
package supervisor
