// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package device

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestRegistryRegisterAndSnapshot(t *testing.T) {
	r := NewRegistry()

	replaced := r.Register(Session{DeviceID: "002", ConnID: "c2", ConnectedAt: t0})
	if replaced {
		t.Error("first Register reported a replacement")
	}
	r.Register(Session{DeviceID: "001", ConnID: "c1", ConnectedAt: t0.Add(-90 * time.Second), Info: map[string]string{"Model": "DS-K1T"}})

	snap := r.Snapshot(t0.Add(30 * time.Second))
	if len(snap) != 2 {
		t.Fatalf("len(Snapshot) = %d, want 2", len(snap))
	}
	if snap[0].DeviceID != "001" || snap[1].DeviceID != "002" {
		t.Errorf("Snapshot order = %s,%s, want 001,002", snap[0].DeviceID, snap[1].DeviceID)
	}
	if snap[0].UptimeSeconds != 120 {
		t.Errorf("UptimeSeconds = %d, want 120", snap[0].UptimeSeconds)
	}
	if snap[0].DeviceInfo["Model"] != "DS-K1T" {
		t.Errorf("DeviceInfo = %v, want Model=DS-K1T", snap[0].DeviceInfo)
	}
	if !snap[1].LastSeenAt.Equal(t0) {
		t.Errorf("LastSeenAt = %v, want ConnectedAt when unset", snap[1].LastSeenAt)
	}
}

func TestRegistryRemoveByConn(t *testing.T) {
	r := NewRegistry()
	r.Register(Session{DeviceID: "001", ConnID: "c1", ConnectedAt: t0})
	r.Register(Session{DeviceID: "009", ConnID: "c1", ConnectedAt: t0})
	r.Register(Session{DeviceID: "002", ConnID: "c2", ConnectedAt: t0})

	removed := r.RemoveByConn("c1")
	if fmt.Sprint(removed) != "[001 009]" {
		t.Errorf("RemoveByConn = %v, want [001 009]", removed)
	}
	if _, err := r.Get("001"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get(001) error = %v, want ErrDeviceNotFound", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	if removed := r.RemoveByConn("unknown"); len(removed) != 0 {
		t.Errorf("RemoveByConn(unknown) = %v, want none", removed)
	}
}

func TestRegistryReRegisterFromNewConnection(t *testing.T) {
	r := NewRegistry()
	r.Register(Session{DeviceID: "001", ConnID: "old", ConnectedAt: t0})
	if !r.Register(Session{DeviceID: "001", ConnID: "new", ConnectedAt: t0.Add(time.Minute)}) {
		t.Error("second Register should report replacement")
	}

	// The stale connection closing must not evict the live one.
	if removed := r.RemoveByConn("old"); len(removed) != 0 {
		t.Errorf("RemoveByConn(old) = %v, want none", removed)
	}
	s, err := r.Get("001")
	if err != nil {
		t.Fatalf("Get(001) error = %v", err)
	}
	if s.ConnID != "new" {
		t.Errorf("ConnID = %q, want new", s.ConnID)
	}
}

func TestRegistryTouch(t *testing.T) {
	r := NewRegistry()
	r.Register(Session{DeviceID: "001", ConnID: "c1", ConnectedAt: t0})

	later := t0.Add(5 * time.Minute)
	if n := r.Touch("c1", later); n != 1 {
		t.Errorf("Touch = %d, want 1", n)
	}
	if n := r.Touch("c2", later); n != 0 {
		t.Errorf("Touch(unknown) = %d, want 0", n)
	}
	s, _ := r.Get("001")
	if !s.LastSeenAt.Equal(later) {
		t.Errorf("LastSeenAt = %v, want %v", s.LastSeenAt, later)
	}
}

func TestRegistryInfoIsCopied(t *testing.T) {
	r := NewRegistry()
	info := map[string]string{"Model": "A"}
	r.Register(Session{DeviceID: "001", ConnID: "c1", ConnectedAt: t0, Info: info})
	info["Model"] = "B"

	snap := r.Snapshot(t0)
	if snap[0].DeviceInfo["Model"] != "A" {
		t.Errorf("registry shares caller map: Model = %q", snap[0].DeviceInfo["Model"])
	}
	snap[0].DeviceInfo["Model"] = "C"
	if s, _ := r.Get("001"); s.Info["Model"] != "A" {
		t.Errorf("snapshot shares registry map: Model = %q", s.Info["Model"])
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			r.Register(Session{DeviceID: fmt.Sprintf("%03d", i), ConnID: conn, ConnectedAt: t0})
			r.Touch(conn, t0.Add(time.Second))
			_ = r.Snapshot(t0)
			r.RemoveByConn(conn)
		}(i)
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len = %d after all connections closed, want 0", r.Len())
	}
}
