// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/presence/internal/logging"
)

// EmbeddedNATS is satisfied by *notify.EmbeddedServer.
type EmbeddedNATS interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// NATSServerService ties the embedded NATS server's lifetime to the
// supervisor. The server is started before the tree so publishers can
// connect at construction; this service only shuts it down.
type NATSServerService struct {
	server          EmbeddedNATS
	shutdownTimeout time.Duration
	name            string
}

// NewNATSServerService wraps server. A non-positive shutdownTimeout
// defaults to 10s.
func NewNATSServerService(server EmbeddedNATS, shutdownTimeout time.Duration) *NATSServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &NATSServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-server",
	}
}

// Serve implements suture.Service. A server that is no longer running
// cannot be restarted from here, so Serve then asks not to be restarted.
func (s *NATSServerService) Serve(ctx context.Context) error {
	if !s.server.IsRunning() {
		logging.Error().Msg("Embedded NATS server is not running")
		return suture.ErrDoNotRestart
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("embedded NATS shutdown failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *NATSServerService) String() string {
	return s.name
}
