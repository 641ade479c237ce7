// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package config

import (
	"fmt"
	"strings"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	if err := c.validateAttendance(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func validatePort(port int, envVar string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", envVar, port)
	}
	return nil
}

func validatePolicy(policy, envVar string) error {
	switch policy {
	case "drop", "register":
		return nil
	default:
		return fmt.Errorf("%s must be 'drop' or 'register', got %q", envVar, policy)
	}
}

func (c *Config) validateServer() error {
	if err := validatePort(c.Server.Port, "HTTP_PORT"); err != nil {
		return err
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateDevice() error {
	if !c.Device.Enabled {
		return nil
	}
	if err := validatePort(c.Device.Port, "ISUP_PORT"); err != nil {
		return err
	}
	if c.Server.Port == c.Device.Port && c.Server.Host == c.Device.Host {
		return fmt.Errorf("ISUP_PORT and HTTP_PORT must differ, both are %d", c.Device.Port)
	}
	if strings.TrimSpace(c.Device.DefaultDeviceID) == "" {
		return fmt.Errorf("ISUP_DEFAULT_DEVICE_ID must not be empty")
	}
	if c.Device.KeepAliveInterval < 1 {
		return fmt.Errorf("ISUP_KEEPALIVE_INTERVAL must be at least 1 second, got %d", c.Device.KeepAliveInterval)
	}
	if c.Device.MaxFrameBytes < 1024 {
		return fmt.Errorf("ISUP_MAX_FRAME_BYTES must be at least 1024, got %d", c.Device.MaxFrameBytes)
	}
	if c.Device.IdleTimeout < 0 {
		return fmt.Errorf("ISUP_IDLE_TIMEOUT must not be negative, got %v", c.Device.IdleTimeout)
	}
	if c.Device.EnvelopeRate < 0 {
		return fmt.Errorf("ISUP_ENVELOPE_RATE must not be negative, got %v", c.Device.EnvelopeRate)
	}
	if c.Device.EnvelopeRate > 0 && c.Device.EnvelopeBurst < 1 {
		return fmt.Errorf("ISUP_ENVELOPE_BURST must be at least 1 when ISUP_ENVELOPE_RATE is set, got %d", c.Device.EnvelopeBurst)
	}
	if c.Device.ProcessTimeout <= 0 {
		return fmt.Errorf("ISUP_PROCESS_TIMEOUT must be positive, got %v", c.Device.ProcessTimeout)
	}
	return validatePolicy(c.Device.UnknownPersonPolicy, "ISUP_UNKNOWN_PERSON_POLICY")
}

func (c *Config) validateWebhook() error {
	if !c.Webhook.Enabled {
		return nil
	}
	if c.Webhook.DedupTTL < 0 {
		return fmt.Errorf("WEBHOOK_DEDUP_TTL must not be negative, got %v", c.Webhook.DedupTTL)
	}
	if c.Webhook.DedupTTL > 0 && c.Webhook.DedupCapacity < 1 {
		return fmt.Errorf("WEBHOOK_DEDUP_CAPACITY must be at least 1 when WEBHOOK_DEDUP_TTL is set, got %d", c.Webhook.DedupCapacity)
	}
	if c.Webhook.MaxBodyBytes < 1024 {
		return fmt.Errorf("WEBHOOK_MAX_BODY_BYTES must be at least 1024, got %d", c.Webhook.MaxBodyBytes)
	}
	return validatePolicy(c.Webhook.UnknownPersonPolicy, "WEBHOOK_UNKNOWN_PERSON_POLICY")
}

func (c *Config) validateAttendance() error {
	if _, err := c.Attendance.Location(); err != nil {
		return fmt.Errorf("ORG_TIMEZONE %q is not a valid IANA timezone: %w", c.Attendance.Timezone, err)
	}
	if strings.TrimSpace(c.Attendance.DefaultRole) == "" {
		return fmt.Errorf("ATTENDANCE_DEFAULT_ROLE must not be empty")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("BADGER_PATH is required unless BADGER_IN_MEMORY=true")
	}
	if c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1 {
		return fmt.Errorf("BADGER_GC_DISCARD_RATIO must be between 0 and 1 exclusive, got %v", c.Store.GCDiscardRatio)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Security.RateLimitWindow)
	}
	if c.Security.WebhookRateLimitReqs < 1 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.WebhookRateLimitReqs)
	}
	if c.Security.WebhookRateLimitWindow <= 0 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT_WINDOW must be positive, got %v", c.Security.WebhookRateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}
}
