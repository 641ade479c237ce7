// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/presence/internal/store"
)

type fakeGC struct {
	calls atomic.Int32
	err   error
}

func (f *fakeGC) RunGC() (bool, error) {
	f.calls.Add(1)
	return f.err == nil, f.err
}

func TestStoreGCServiceRunsOnInterval(t *testing.T) {
	var _ suture.Service = (*StoreGCService)(nil)
	var _ GarbageCollector = (*store.Store)(nil)

	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"failures keep running", errors.New("value log busy")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gc := &fakeGC{err: tt.err}
			svc := NewStoreGCService(gc, 5*time.Millisecond)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Serve() error = %v", err)
			}
			if gc.calls.Load() < 2 {
				t.Errorf("RunGC calls = %d, want at least 2", gc.calls.Load())
			}
		})
	}
}

func TestNewStoreGCServiceDefaults(t *testing.T) {
	svc := NewStoreGCService(&fakeGC{}, 0)
	if svc.interval != 10*time.Minute {
		t.Errorf("interval = %v, want 10m", svc.interval)
	}
	if svc.String() != "store-gc" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestStoreGCServiceInMemoryStore(t *testing.T) {
	st, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := NewStoreGCService(st, 5*time.Millisecond).Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v", err)
	}
}
