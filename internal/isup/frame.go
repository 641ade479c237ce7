// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package isup

import (
	"bytes"
	"errors"
)

// MessageTerminator closes every envelope. The protocol has no length
// prefix, so framing is by delimiter only.
const MessageTerminator = "</Message>"

// DefaultMaxFrameBytes bounds the reassembly buffer when no limit is configured.
const DefaultMaxFrameBytes = 1 << 20

// ErrFrameTooLarge is returned when the buffered partial envelope grows past
// the configured limit. The buffer is discarded.
var ErrFrameTooLarge = errors.New("isup: envelope exceeds maximum frame size")

var terminator = []byte(MessageTerminator)

// Assembler reassembles envelopes from a TCP byte stream. It is not safe for
// concurrent use; each connection owns one.
type Assembler struct {
	buf      []byte
	scanFrom int
	max      int
}

// NewAssembler creates an Assembler that buffers at most maxBytes of an
// incomplete envelope. A non-positive maxBytes selects DefaultMaxFrameBytes.
func NewAssembler(maxBytes int) *Assembler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	return &Assembler{
		buf: make([]byte, 0, 4096),
		max: maxBytes,
	}
}

// Feed appends p and returns every envelope completed by it, in arrival
// order. Bytes after the last terminator stay buffered for the next call.
// Leading whitespace between envelopes is dropped.
//
// Envelopes completed before an overflow are still returned alongside
// ErrFrameTooLarge.
func (a *Assembler) Feed(p []byte) ([]string, error) {
	a.buf = append(a.buf, p...)

	var envelopes []string
	start := 0
	for {
		idx := bytes.Index(a.buf[a.scanFrom:], terminator)
		if idx < 0 {
			break
		}
		end := a.scanFrom + idx + len(terminator)
		if env := bytes.TrimLeft(a.buf[start:end], " \t\r\n\x00"); len(env) > 0 {
			envelopes = append(envelopes, string(env))
		}
		start = end
		a.scanFrom = end
	}

	// Compact the remainder to the front so the buffer does not grow without bound.
	rest := len(a.buf) - start
	if start > 0 {
		copy(a.buf, a.buf[start:])
		a.buf = a.buf[:rest]
	}

	// The terminator may straddle this feed and the next one.
	a.scanFrom = rest - len(terminator) + 1
	if a.scanFrom < 0 {
		a.scanFrom = 0
	}

	if rest > a.max {
		a.Reset()
		return envelopes, ErrFrameTooLarge
	}
	return envelopes, nil
}

// Buffered returns the number of bytes held for an incomplete envelope.
func (a *Assembler) Buffered() int {
	return len(a.buf)
}

// Reset discards any buffered bytes.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.scanFrom = 0
}
