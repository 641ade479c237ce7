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

	"github.com/tomtom215/presence/internal/websocket"
)

type fakeHub struct {
	runs atomic.Int32
	err  error
}

func (f *fakeHub) RunWithContext(ctx context.Context) error {
	f.runs.Add(1)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService(t *testing.T) {
	var _ suture.Service = (*WebSocketHubService)(nil)
	var _ ContextHub = (*websocket.Hub)(nil)

	hub := &fakeHub{}
	svc := NewWebSocketHubService(hub)
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v", err)
	}
	if hub.runs.Load() != 1 {
		t.Errorf("runs = %d", hub.runs.Load())
	}
}

func TestWebSocketHubServicePropagatesError(t *testing.T) {
	boom := errors.New("hub crashed")
	svc := NewWebSocketHubService(&fakeHub{err: boom})
	if err := svc.Serve(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Serve() error = %v, want %v", err, boom)
	}
}

func TestWebSocketHubServiceRealHub(t *testing.T) {
	hub := websocket.NewHub()
	svc := NewWebSocketHubService(hub)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}
