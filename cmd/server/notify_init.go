// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package main

import (
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/tomtom215/presence/internal/config"
	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/notify"
	"github.com/tomtom215/presence/internal/supervisor"
	"github.com/tomtom215/presence/internal/supervisor/services"
)

// initNATS starts the embedded broker (if configured) and the publisher,
// and adds both to the messaging layer. It returns nil when NATS is
// disabled or unavailable; attendance ingestion never depends on it.
func initNATS(cfg *config.Config, tree *supervisor.SupervisorTree) *notify.NATSPublisher {
	if !cfg.NATS.Enabled {
		return nil
	}

	publishURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		host, port := embeddedListenAddr(cfg.NATS.URL)
		srv, err := notify.NewEmbeddedServer(notify.EmbeddedServerConfig{
			Host:     host,
			Port:     port,
			StoreDir: cfg.NATS.StoreDir,
		})
		if err != nil {
			logNATSUnavailable(err, "Embedded NATS server failed to start, publishing disabled")
			return nil
		}
		publishURL = srv.ClientURL()
		tree.AddMessagingService(services.NewNATSServerService(srv, cfg.Server.ShutdownTimeout))
		logging.Info().Str("url", publishURL).Msg("Embedded NATS server started")
	}

	pub, err := notify.NewNATSPublisher(notify.NATSConfig{
		URL:     publishURL,
		Subject: cfg.NATS.Subject,
	})
	if err != nil {
		logNATSUnavailable(err, "NATS publisher unavailable, publishing disabled")
		return nil
	}
	tree.AddMessagingService(pub)

	logging.Info().
		Str("url", publishURL).
		Str("subject", cfg.NATS.Subject).
		Msg("NATS publisher added to supervisor tree")
	return pub
}

func logNATSUnavailable(err error, msg string) {
	if errors.Is(err, notify.ErrNATSUnavailable) {
		logging.Warn().Msg("NATS_ENABLED=true but NATS support not compiled (build with -tags nats)")
		return
	}
	logging.Error().Err(err).Msg(msg)
}

// embeddedListenAddr derives the embedded server's listen address from
// NATS_URL, falling back to 127.0.0.1:4222.
func embeddedListenAddr(rawURL string) (string, int) {
	host, port := "127.0.0.1", 4222

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return host, port
	}
	h, p, err := net.SplitHostPort(u.Host)
	if err != nil {
		return u.Host, port
	}
	if h != "" {
		host = h
	}
	if n, err := strconv.Atoi(p); err == nil && n > 0 && n < 65536 {
		port = n
	}
	return host, port
}
