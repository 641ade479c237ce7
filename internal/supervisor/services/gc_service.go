// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package services

import (
	"context"
	"time"

	"github.com/tomtom215/presence/internal/logging"
)

// GarbageCollector is satisfied by *store.Store.
type GarbageCollector interface {
	RunGC() (bool, error)
}

// StoreGCService reclaims badger value-log space on a fixed interval.
// GC failures are logged and retried on the next tick; they never restart
// the service.
type StoreGCService struct {
	gc       GarbageCollector
	interval time.Duration
	name     string
}

// NewStoreGCService wraps gc. A non-positive interval defaults to 10m.
func NewStoreGCService(gc GarbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{
		gc:       gc,
		interval: interval,
		name:     "store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	log := logging.WithComponent("store-gc")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			rewrote, err := s.gc.RunGC()
			if err != nil {
				log.Warn().Err(err).Msg("Value log GC failed")
				continue
			}
			log.Debug().
				Bool("rewrote", rewrote).
				Dur("duration", time.Since(start)).
				Msg("Value log GC pass complete")
		}
	}
}

// String implements fmt.Stringer.
func (s *StoreGCService) String() string {
	return s.name
}
