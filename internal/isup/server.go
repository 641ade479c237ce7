// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package isup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/device"
	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/metrics"
	"github.com/tomtom215/presence/internal/models"
)

// Config holds listener settings.
type Config struct {
	// Addr is the TCP listen address, e.g. ":5200".
	Addr string

	// DefaultDeviceID is used when a Register body carries no device id.
	DefaultDeviceID string

	// ServerID and KeepAliveInterval are returned in the Register reply.
	ServerID          string
	KeepAliveInterval int

	// MaxFrameBytes bounds the per-connection reassembly buffer.
	MaxFrameBytes int

	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables the read deadline.
	IdleTimeout time.Duration

	// WriteTimeout bounds each reply write.
	WriteTimeout time.Duration

	// EnvelopeRate and EnvelopeBurst throttle envelope handling per
	// connection. A rate of zero disables throttling.
	EnvelopeRate  float64
	EnvelopeBurst int

	// UnknownPersonPolicy applies to EventNotification for unknown people.
	UnknownPersonPolicy attendance.UnknownPersonPolicy

	// Location interprets event times that carry no offset.
	Location *time.Location

	// ProcessTimeout bounds one Processor call.
	ProcessTimeout time.Duration
}

// DefaultConfig returns listener defaults.
func DefaultConfig() Config {
	return Config{
		Addr:                ":5200",
		DefaultDeviceID:     "001",
		ServerID:            "1",
		KeepAliveInterval:   60,
		MaxFrameBytes:       DefaultMaxFrameBytes,
		IdleTimeout:         5 * time.Minute,
		WriteTimeout:        10 * time.Second,
		EnvelopeRate:        50,
		EnvelopeBurst:       100,
		UnknownPersonPolicy: attendance.PolicyDrop,
		Location:            time.UTC,
		ProcessTimeout:      10 * time.Second,
	}
}

// DeviceRegistry is the part of device.Registry the listener uses.
type DeviceRegistry interface {
	Register(s device.Session) bool
	Touch(connID string, at time.Time) int
	RemoveByConn(connID string) []string
	Len() int
}

// EventProcessor reconciles seen events. Satisfied by *attendance.Processor.
type EventProcessor interface {
	Process(ctx context.Context, ev models.SeenEvent, policy attendance.UnknownPersonPolicy) (*attendance.Result, error)
}

// Server accepts terminal connections and runs one session goroutine per
// connection. It implements suture.Service.
type Server struct {
	cfg       Config
	registry  DeviceRegistry
	processor EventProcessor
	now       func() time.Time

	mu      sync.Mutex
	conns   map[string]net.Conn
	closing bool
	wg      sync.WaitGroup
}

// NewServer creates a listener. Zero-valued config fields take defaults.
func NewServer(cfg Config, registry DeviceRegistry, processor EventProcessor) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.DefaultDeviceID == "" {
		cfg.DefaultDeviceID = def.DefaultDeviceID
	}
	if cfg.ServerID == "" {
		cfg.ServerID = def.ServerID
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = def.KeepAliveInterval
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = def.MaxFrameBytes
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.UnknownPersonPolicy == "" {
		cfg.UnknownPersonPolicy = def.UnknownPersonPolicy
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = def.ProcessTimeout
	}
	return &Server{
		cfg:       cfg,
		registry:  registry,
		processor: processor,
		now:       time.Now,
		conns:     make(map[string]net.Conn),
	}
}

// Serve implements suture.Service. It listens on cfg.Addr until ctx is
// canceled.
func (s *Server) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("isup listen %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener accepts connections on ln until ctx is canceled. On return
// the listener and every live connection are closed and all session
// goroutines have exited.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	log := logging.WithComponent("isup")
	log.Info().Str("addr", ln.Addr().String()).Msg("ISUP listener started")

	s.mu.Lock()
	s.closing = false
	s.mu.Unlock()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
		s.closeAll()
	}()

	defer func() {
		close(stop)
		s.wg.Wait()
		log.Info().Msg("ISUP listener stopped")
	}()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				log.Warn().Err(err).Dur("retry_in", backoff).Msg("Accept error")
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			metrics.RecordISUPConnectionError("accept")
			return fmt.Errorf("isup accept: %w", err)
		}
		backoff = 0

		id := uuid.NewString()
		if !s.track(id, conn) {
			// Accepted while shutting down, after closeAll ran.
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(id)
			newSession(s, id, conn).run(ctx)
		}()
	}
}

// String implements fmt.Stringer for suture logging.
func (s *Server) String() string {
	return "isup-listener"
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// track registers conn for shutdown. It reports false once closeAll has
// run.
func (s *Server) track(id string, conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[id] = conn
	return true
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for _, c := range s.conns {
		_ = c.Close()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
