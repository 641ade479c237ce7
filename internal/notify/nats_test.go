// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

//go:build nats

package notify

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/presence/internal/models"
)

func startEmbedded(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := NewEmbeddedServer(EmbeddedServerConfig{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	if !srv.IsRunning() {
		t.Fatal("embedded server not running")
	}
	return srv
}

func TestNATSPublisherPublishesAttendanceUpdates(t *testing.T) {
	srv := startEmbedded(t)

	sub, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()

	received := make(chan *natsgo.Msg, 4)
	if _, err := sub.ChanSubscribe("presence.test", received); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	pub, err := NewNATSPublisher(NATSConfig{URL: srv.ClientURL(), Subject: "presence.test"})
	if err != nil {
		t.Fatalf("NewNATSPublisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Serve(ctx) }()

	pub.AttendanceUpdated(ctx, models.AttendanceUpdate{
		PersonID:  "emp-1",
		Name:      "Bob",
		EventType: models.DirectionIn,
		Date:      "2026-03-02",
	})

	select {
	case msg := <-received:
		var env struct {
			Type string                  `json:"type"`
			Data models.AttendanceUpdate `json:"data"`
		}
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			t.Fatalf("unmarshal: %v (payload %q)", err, msg.Data)
		}
		if env.Type != MessageTypeAttendanceUpdated {
			t.Errorf("type = %q, want %q", env.Type, MessageTypeAttendanceUpdated)
		}
		if env.Data.PersonID != "emp-1" || env.Data.EventType != models.DirectionIn {
			t.Errorf("data = %+v", env.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestNATSPublisherDropsAfterClose(t *testing.T) {
	srv := startEmbedded(t)

	pub, err := NewNATSPublisher(NATSConfig{URL: srv.ClientURL(), QueueSize: 1})
	if err != nil {
		t.Fatalf("NewNATSPublisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	pub.PersonRegistered(context.Background(), models.PersonRegistered{PersonID: "p"})
	if len(pub.queue) != 0 {
		t.Errorf("queue len = %d after close, want 0", len(pub.queue))
	}
}
