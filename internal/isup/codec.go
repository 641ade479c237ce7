// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package isup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Command names understood by the listener.
const (
	CommandRegister          = "Register"
	CommandHeartbeat         = "Heartbeat"
	CommandEventNotification = "EventNotification"
	CommandAlarm             = "Alarm"
)

// Result codes.
const (
	ResultOK    = "OK"
	ResultError = "ERROR"
)

// ProtocolVersion is written into every reply header.
const ProtocolVersion = "1.0"

// Command is a decoded envelope.
type Command struct {
	Name    string
	Version string
	Result  string
	Time    string

	// Fields holds the Body leaves keyed by local element name. Nested
	// elements are flattened; the first occurrence of a name wins.
	Fields map[string]string
}

// Field returns the first non-empty value among names.
func (c *Command) Field(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(c.Fields[n]); v != "" {
			return v
		}
	}
	return ""
}

// ErrMissingCommand is wrapped by Decode when the header has no command name.
var ErrMissingCommand = errors.New("isup: envelope has no Header/Command")

// ProtocolDecodeError reports a malformed envelope. The connection survives
// it; the envelope is dropped.
type ProtocolDecodeError struct {
	Envelope string
	Err      error
}

func (e *ProtocolDecodeError) Error() string {
	return fmt.Sprintf("isup: decode envelope: %v", e.Err)
}

func (e *ProtocolDecodeError) Unwrap() error {
	return e.Err
}

// Excerpt returns at most n bytes of the offending envelope for logging.
func (e *ProtocolDecodeError) Excerpt(n int) string {
	if len(e.Envelope) <= n {
		return e.Envelope
	}
	return e.Envelope[:n] + "..."
}

type element struct {
	name     string
	text     strings.Builder
	hasChild bool
}

// Decode parses one envelope. Errors are always *ProtocolDecodeError.
func Decode(envelope string) (*Command, error) {
	cmd, err := decode(envelope)
	if err != nil {
		return nil, &ProtocolDecodeError{Envelope: envelope, Err: err}
	}
	return cmd, nil
}

func decode(envelope string) (*Command, error) {
	d := xml.NewDecoder(strings.NewReader(envelope))
	// Terminals declare assorted charsets but only send ASCII element names
	// and digits in practice, so the bytes are read as-is.
	d.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	cmd := &Command{Fields: make(map[string]string)}
	var stack []*element
	sawRoot := false

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				if sawRoot {
					return nil, errors.New("more than one root element")
				}
				if t.Name.Local != "Message" {
					return nil, fmt.Errorf("unexpected root element <%s>", t.Name.Local)
				}
				sawRoot = true
			} else {
				stack[len(stack)-1].hasChild = true
			}
			stack = append(stack, &element{name: t.Name.Local})

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("unbalanced end element")
			}
			el := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !el.hasChild && len(stack) >= 2 {
				cmd.assign(stack[1].name, el.name, strings.TrimSpace(el.text.String()))
			}
		}
	}

	if !sawRoot {
		return nil, errors.New("no <Message> element")
	}
	if len(stack) != 0 {
		return nil, io.ErrUnexpectedEOF
	}
	if cmd.Name == "" {
		return nil, ErrMissingCommand
	}
	return cmd, nil
}

// assign stores a leaf found under the top-level section (Header or Body).
func (c *Command) assign(section, name, value string) {
	switch section {
	case "Header":
		switch name {
		case "Command":
			c.Name = value
		case "Version":
			c.Version = value
		case "Result":
			c.Result = value
		case "Time":
			c.Time = value
		}
	case "Body":
		if _, exists := c.Fields[name]; !exists {
			c.Fields[name] = value
		}
	}
}

// Encode builds a reply envelope stamped with the current time.
func Encode(command, result string, fields map[string]string) []byte {
	return EncodeAt(command, result, fields, time.Now())
}

// EncodeAt builds a reply envelope stamped with now. Body fields are written
// in key order; keys that are not valid XML names are skipped so that
// encoding cannot fail.
func EncodeAt(command, result string, fields map[string]string, now time.Time) []byte {
	var b bytes.Buffer
	b.Grow(256 + 32*len(fields))

	b.WriteString(xml.Header)
	b.WriteString("<Message><Header><Version>")
	b.WriteString(ProtocolVersion)
	b.WriteString("</Version><Command>")
	escape(&b, command)
	b.WriteString("</Command><Result>")
	escape(&b, result)
	b.WriteString("</Result><Time>")
	b.WriteString(now.UTC().Format(time.RFC3339))
	b.WriteString("</Time></Header><Body>")

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if validName(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('<')
		b.WriteString(k)
		b.WriteByte('>')
		escape(&b, fields[k])
		b.WriteString("</")
		b.WriteString(k)
		b.WriteByte('>')
	}

	b.WriteString("</Body></Message>")
	return b.Bytes()
}

func escape(b *bytes.Buffer, s string) {
	_ = xml.EscapeText(b, []byte(s)) // bytes.Buffer writes do not fail
}

// validName accepts the ASCII subset of XML names used by the protocol.
func validName(s string) bool {
	if s == "" || strings.HasPrefix(strings.ToLower(s), "xml") {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}
