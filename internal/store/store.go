// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

// Package store persists people and attendance records in BadgerDB.
//
// Keys:
//
//	person:<deviceIdentifier>          -> models.Person (JSON)
//	attendance:<YYYY-MM-DD>:<personID> -> models.AttendanceRecord (JSON)
//
// Placing the date before the person ID keeps one day's records contiguous,
// so listing a date is a single prefix scan.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/metrics"
)

const (
	prefixPerson     = "person:"
	prefixAttendance = "attendance:"
)

// maxTxnRetries bounds retries of an optimistic transaction that hit
// badger.ErrConflict.
const maxTxnRetries = 3

// ErrClosed is returned after Close.
var ErrClosed = errors.New("store is closed")

// Config holds Badger settings.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Compression enables Snappy block compression.
	Compression bool

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration
}

// Store is the Badger-backed implementation of attendance.AttendanceStore
// and attendance.IdentityResolver.
type Store struct {
	db  *badger.DB
	cfg Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
		cfg.GCDiscardRatio = 0.5
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Store opened")

	return &Store{db: db, cfg: cfg}, nil
}

// Close closes the database, giving up after CloseTimeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Store closed")
		return nil
	case <-time.After(s.cfg.CloseTimeout):
		return fmt.Errorf("badgerdb close timeout after %v", s.cfg.CloseTimeout)
	}
}

// Ping reports whether the store can serve requests.
func (s *Store) Ping() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// RunGC rewrites value-log files until Badger reports nothing left to
// reclaim. It returns whether at least one file was rewritten.
func (s *Store) RunGC() (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if s.cfg.InMemory {
		return false, nil
	}

	rewrote := false
	for {
		err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			metrics.StoreGCRuns.WithLabelValues("error").Inc()
			return rewrote, fmt.Errorf("run value log GC: %w", err)
		}
		rewrote = true
	}

	if rewrote {
		metrics.StoreGCRuns.WithLabelValues("rewritten").Inc()
	} else {
		metrics.StoreGCRuns.WithLabelValues("noop").Inc()
	}
	return rewrote, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}
