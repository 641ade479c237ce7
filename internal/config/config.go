// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

// Package config loads Presence configuration from built-in defaults, an
// optional YAML file and environment variables, in that order of precedence.
//
// Use LoadWithKoanf from main; the returned Config has already been validated.
package config

import (
	"time"
)

// Config is the root configuration object.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Device     DeviceConfig     `koanf:"device"`
	Webhook    WebhookConfig    `koanf:"webhook"`
	Attendance AttendanceConfig `koanf:"attendance"`
	Store      StoreConfig      `koanf:"store"`
	Directory  DirectoryConfig  `koanf:"directory"`
	NATS       NATSConfig       `koanf:"nats"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DeviceConfig holds settings for the ISUP TCP listener that terminals
// connect to.
type DeviceConfig struct {
	// Enabled starts the TCP listener. Cloud deployments that cannot expose
	// a raw port rely on the webhook ingress only.
	Enabled bool `koanf:"enabled"`

	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// DefaultDeviceID is used when a Register body carries no DeviceID.
	DefaultDeviceID string `koanf:"default_device_id"`

	// ServerID and KeepAliveInterval (seconds) are sent back in the Register reply.
	ServerID          string `koanf:"server_id"`
	KeepAliveInterval int    `koanf:"keepalive_interval"`

	// MaxFrameBytes bounds the per-connection reassembly buffer.
	MaxFrameBytes int `koanf:"max_frame_bytes"`

	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero keeps connections open indefinitely.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// EnvelopeRate and EnvelopeBurst throttle envelopes per connection.
	// A rate of zero disables throttling.
	EnvelopeRate  float64 `koanf:"envelope_rate"`
	EnvelopeBurst int     `koanf:"envelope_burst"`

	// UnknownPersonPolicy is "drop" or "register".
	UnknownPersonPolicy string `koanf:"unknown_person_policy"`

	// ProcessTimeout bounds reconciliation of one EventNotification.
	ProcessTimeout time.Duration `koanf:"process_timeout"`
}

// WebhookConfig holds settings for the HTTP webhook ingress.
type WebhookConfig struct {
	Enabled bool `koanf:"enabled"`

	// UnknownPersonPolicy is "drop" or "register".
	UnknownPersonPolicy string `koanf:"unknown_person_policy"`

	// DedupTTL suppresses re-delivery of the same (person, timestamp) pair.
	// Zero disables suppression.
	DedupTTL      time.Duration `koanf:"dedup_ttl"`
	DedupCapacity int           `koanf:"dedup_capacity"`

	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// AttendanceConfig holds reconciliation settings shared by both ingress paths.
type AttendanceConfig struct {
	// Timezone is the IANA name of the organization's timezone. Dates and
	// HH:MM times on attendance records are expressed in it.
	Timezone string `koanf:"timezone"`

	// Deduplicate drops an event whose timestamp already exists in the record.
	// Off by default: a re-delivered event is appended like any other.
	Deduplicate bool `koanf:"deduplicate"`

	// HonorDirectionHint lets an explicit IN/OUT from the transport override
	// alternation.
	HonorDirectionHint bool `koanf:"honor_direction_hint"`

	// DefaultRole and DefaultDepartment are assigned to auto-registered people.
	DefaultRole       string `koanf:"default_role"`
	DefaultDepartment string `koanf:"default_department"`
}

// Location resolves Timezone.
func (a AttendanceConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

// StoreConfig holds badger settings.
type StoreConfig struct {
	Path           string        `koanf:"path"`
	InMemory       bool          `koanf:"in_memory"`
	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
	SyncWrites     bool          `koanf:"sync_writes"`
}

// DirectoryConfig holds person directory settings.
type DirectoryConfig struct {
	// SeedFile is an optional YAML file of people loaded at startup.
	SeedFile string `koanf:"seed_file"`
}

// NATSConfig holds change-notification publishing settings.
// Publishing only happens in binaries built with the nats tag.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	Subject        string `koanf:"subject"`
}

// SecurityConfig holds HTTP hardening settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// Webhook limits apply per terminal IP. Limited deliveries are still
	// answered 200.
	WebhookRateLimitReqs   int           `koanf:"webhook_rate_limit_reqs"`
	WebhookRateLimitWindow time.Duration `koanf:"webhook_rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}
