// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/presence/config.yaml",
	"/etc/presence/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Device: DeviceConfig{
			Enabled:             true,
			Host:                "0.0.0.0",
			Port:                5200,
			DefaultDeviceID:     "001",
			ServerID:            "1",
			KeepAliveInterval:   60,
			MaxFrameBytes:       1 << 20, // 1MB
			IdleTimeout:         0,
			EnvelopeRate:        50,
			EnvelopeBurst:       100,
			UnknownPersonPolicy: "drop",
			ProcessTimeout:      10 * time.Second,
		},
		Webhook: WebhookConfig{
			Enabled:             true,
			UnknownPersonPolicy: "register",
			DedupTTL:            10 * time.Second,
			DedupCapacity:       10000,
			MaxBodyBytes:        1 << 20,
		},
		Attendance: AttendanceConfig{
			Timezone:           "Asia/Tashkent",
			Deduplicate:        false,
			HonorDirectionHint: false,
			DefaultRole:        "staff",
			DefaultDepartment:  "IT",
		},
		Store: StoreConfig{
			Path:           "/data/presence",
			InMemory:       false,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
			SyncWrites:     true,
		},
		Directory: DirectoryConfig{
			SeedFile: "",
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			Subject:        "presence.attendance",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,

			WebhookRateLimitReqs:   1200,
			WebhookRateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
//
// Later layers override earlier ones. The result is validated before return.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first existing
// default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so the process environment cannot leak
// into configuration by accident.
var envMappings = map[string]string{
	// HTTP server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	// ISUP device listener
	"isup_enabled":               "device.enabled",
	"isup_host":                  "device.host",
	"isup_port":                  "device.port",
	"isup_default_device_id":     "device.default_device_id",
	"isup_server_id":             "device.server_id",
	"isup_keepalive_interval":    "device.keepalive_interval",
	"isup_max_frame_bytes":       "device.max_frame_bytes",
	"isup_idle_timeout":          "device.idle_timeout",
	"isup_envelope_rate":         "device.envelope_rate",
	"isup_envelope_burst":        "device.envelope_burst",
	"isup_unknown_person_policy": "device.unknown_person_policy",
	"isup_process_timeout":       "device.process_timeout",

	// Webhook ingress
	"webhook_enabled":               "webhook.enabled",
	"webhook_unknown_person_policy": "webhook.unknown_person_policy",
	"webhook_dedup_ttl":             "webhook.dedup_ttl",
	"webhook_dedup_capacity":        "webhook.dedup_capacity",
	"webhook_max_body_bytes":        "webhook.max_body_bytes",

	// Reconciliation
	"org_timezone":                    "attendance.timezone",
	"attendance_deduplicate":          "attendance.deduplicate",
	"attendance_honor_direction_hint": "attendance.honor_direction_hint",
	"attendance_default_role":         "attendance.default_role",
	"attendance_default_department":   "attendance.default_department",

	// Storage
	"badger_path":             "store.path",
	"badger_in_memory":        "store.in_memory",
	"badger_gc_interval":      "store.gc_interval",
	"badger_gc_discard_ratio": "store.gc_discard_ratio",
	"badger_sync_writes":      "store.sync_writes",

	// Directory
	"directory_seed_file": "directory.seed_file",

	// NATS
	"nats_enabled":         "nats.enabled",
	"nats_url":             "nats.url",
	"nats_embedded_server": "nats.embedded_server",
	"nats_store_dir":       "nats.store_dir",
	"nats_subject":         "nats.subject",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"webhook_rate_limit_requests": "security.webhook_rate_limit_reqs",
	"webhook_rate_limit_window":   "security.webhook_rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to a koanf path.
//
//   - ISUP_PORT -> device.port
//   - ORG_TIMEZONE -> attendance.timezone
//   - BADGER_PATH -> store.path
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
