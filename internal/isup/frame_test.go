// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package isup

import (
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

const (
	registerEnvelope  = `<?xml version="1.0" encoding="UTF-8"?><Message><Header><Command>Register</Command></Header><Body><deviceID>001</deviceID></Body></Message>`
	heartbeatEnvelope = `<Message><Header><Command>Heartbeat</Command></Header></Message>`
	eventEnvelope     = `<Message><Header><Command>EventNotification</Command></Header><Body><AccessControllerEvent><employeeNoString>1001</employeeNoString></AccessControllerEvent><time>2026-03-02T08:05:00+05:00</time></Body></Message>`
)

func TestAssemblerSingleFeed(t *testing.T) {
	a := NewAssembler(0)
	stream := registerEnvelope + "\r\n" + heartbeatEnvelope + eventEnvelope + "<Message><Hea"

	got, err := a.Feed([]byte(stream))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	want := []string{registerEnvelope, heartbeatEnvelope, eventEnvelope}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Feed() = %q, want %q", got, want)
	}
	if a.Buffered() != len("<Message><Hea") {
		t.Errorf("Buffered() = %d, want %d", a.Buffered(), len("<Message><Hea"))
	}

	got, err = a.Feed([]byte("der><Command>Heartbeat</Command></Header></Message>"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(got) != 1 || got[0] != heartbeatEnvelope {
		t.Errorf("Feed() = %q, want the completed heartbeat", got)
	}
	if a.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", a.Buffered())
	}
}

// Splitting a stream into arbitrary reads must yield the same envelopes as a
// single read.
func TestAssemblerArbitrarySplits(t *testing.T) {
	stream := strings.Repeat(registerEnvelope+"\n"+eventEnvelope+heartbeatEnvelope, 5)

	whole, err := NewAssembler(0).Feed([]byte(stream))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(whole) != 15 {
		t.Fatalf("single feed produced %d envelopes, want 15", len(whole))
	}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		a := NewAssembler(0)
		var got []string
		data := []byte(stream)
		for len(data) > 0 {
			n := 1 + rng.Intn(40)
			if n > len(data) {
				n = len(data)
			}
			out, err := a.Feed(data[:n])
			if err != nil {
				t.Fatalf("trial %d: Feed() error = %v", trial, err)
			}
			got = append(got, out...)
			data = data[n:]
		}
		if !reflect.DeepEqual(got, whole) {
			t.Fatalf("trial %d: split feed differs from single feed", trial)
		}
	}
}

func TestAssemblerByteAtATime(t *testing.T) {
	a := NewAssembler(0)
	var got []string
	for i := 0; i < len(eventEnvelope); i++ {
		out, err := a.Feed([]byte{eventEnvelope[i]})
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		got = append(got, out...)
	}
	if len(got) != 1 || got[0] != eventEnvelope {
		t.Errorf("got %q, want one event envelope", got)
	}
}

func TestAssemblerOverflow(t *testing.T) {
	a := NewAssembler(64)

	got, err := a.Feed([]byte(heartbeatEnvelope + strings.Repeat("x", 100)))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Feed() error = %v, want ErrFrameTooLarge", err)
	}
	if len(got) != 1 || got[0] != heartbeatEnvelope {
		t.Errorf("envelopes before the overflow should still be returned, got %q", got)
	}
	if a.Buffered() != 0 {
		t.Errorf("Buffered() = %d after overflow, want 0", a.Buffered())
	}
}
