// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

//go:build !nats

package notify

import (
	"context"
	"time"

	"github.com/tomtom215/presence/internal/models"
)

// NATSConfig configures the publisher.
type NATSConfig struct {
	URL           string
	Subject       string
	QueueSize     int
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSPublisher is a stub without the nats tag.
type NATSPublisher struct{}

// NewNATSPublisher returns ErrNATSUnavailable.
func NewNATSPublisher(NATSConfig) (*NATSPublisher, error) {
	return nil, ErrNATSUnavailable
}

func (p *NATSPublisher) AttendanceUpdated(context.Context, models.AttendanceUpdate) {}

func (p *NATSPublisher) PersonRegistered(context.Context, models.PersonRegistered) {}

// Serve blocks until ctx is canceled.
func (p *NATSPublisher) Serve(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *NATSPublisher) String() string { return "nats-publisher" }

func (p *NATSPublisher) Close() error { return nil }

// EmbeddedServerConfig configures the in-process broker.
type EmbeddedServerConfig struct {
	Host     string
	Port     int
	StoreDir string
}

// EmbeddedServer is a stub without the nats tag.
type EmbeddedServer struct{}

// NewEmbeddedServer returns ErrNATSUnavailable.
func NewEmbeddedServer(EmbeddedServerConfig) (*EmbeddedServer, error) {
	return nil, ErrNATSUnavailable
}

func (s *EmbeddedServer) ClientURL() string { return "" }

func (s *EmbeddedServer) IsRunning() bool { return false }

func (s *EmbeddedServer) Shutdown(context.Context) error { return nil }
