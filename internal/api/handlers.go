// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package api

import (
	"context"
	"time"

	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/cache"
	"github.com/tomtom215/presence/internal/models"
)

// EventProcessor is the part of *attendance.Processor the handlers use.
type EventProcessor interface {
	Process(ctx context.Context, ev models.SeenEvent, policy attendance.UnknownPersonPolicy) (*attendance.Result, error)
	Location() *time.Location
	Today() string
}

// Store is the read side of the badger store.
type Store interface {
	ListByDate(ctx context.Context, date string) ([]models.AttendanceRecord, error)
	ListPeople(ctx context.Context) ([]models.Person, error)
	Ping() error
}

// DeviceRegistry exposes connected terminal sessions.
type DeviceRegistry interface {
	Snapshot(now time.Time) []models.DeviceStatus
}

// ClientCounter reports connected WebSocket observers.
type ClientCounter interface {
	GetClientCount() int
}

// HandlerConfig holds the settings handlers need at request time.
type HandlerConfig struct {
	WebhookEnabled      bool
	WebhookPolicy       attendance.UnknownPersonPolicy
	WebhookMaxBodyBytes int64

	DeviceListenerEnabled bool
	DevicePort            int

	Version string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct and constructor (this file)
//   - handlers_helpers.go: response helpers
//   - handlers_health.go: health probes
//   - handlers_webhook.go: Hikvision webhook ingress
//   - handlers_core.go: devices, attendance and people queries
type Handler struct {
	cfg       HandlerConfig
	processor EventProcessor
	store     Store
	registry  DeviceRegistry
	wsHub     ClientCounter
	dedup     *cache.DedupCache
	startTime time.Time
	now       func() time.Time
}

// NewHandler creates a Handler. wsHub and dedup may be nil; a nil dedup
// disables webhook re-delivery suppression.
func NewHandler(cfg HandlerConfig, processor EventProcessor, store Store, registry DeviceRegistry, wsHub ClientCounter, dedup *cache.DedupCache) *Handler {
	if cfg.WebhookPolicy == "" {
		cfg.WebhookPolicy = attendance.PolicyRegister
	}
	if cfg.WebhookMaxBodyBytes <= 0 {
		cfg.WebhookMaxBodyBytes = 1 << 20
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Handler{
		cfg:       cfg,
		processor: processor,
		store:     store,
		registry:  registry,
		wsHub:     wsHub,
		dedup:     dedup,
		startTime: time.Now(),
		now:       time.Now,
	}
}
