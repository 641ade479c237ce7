// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package webhook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// ErrUnsupportedContentType is returned for bodies that are neither JSON
// nor a form.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// maxPartBytes caps a single multipart file part that is read as text.
const maxPartBytes = 256 << 10

// ParseRequest reads a webhook body into a flat field map. JSON objects
// keep their structure; form values are strings. Multipart file parts with
// a JSON or text content type are read as string fields; picture parts are
// ignored.
//
// The caller bounds the body size with http.MaxBytesReader.
func ParseRequest(r *http.Request, maxMemory int64) (map[string]any, error) {
	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, ct)
		}
		mediaType = mt
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return parseJSONBody(r.Body)

	case mediaType == "multipart/form-data":
		return parseMultipart(r, maxMemory)

	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		fields := make(map[string]any, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		return fields, nil

	default:
		// Some firmware omits the header or sends text/plain with JSON.
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
			return parseJSONBody(bytes.NewReader(trimmed))
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, mediaType)
	}
}

func parseJSONBody(r io.Reader) (map[string]any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	fields := make(map[string]any)
	if len(bytes.TrimSpace(body)) == 0 {
		return fields, nil
	}
	if err := decodeJSON(body, &fields); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}
	return fields, nil
}

func parseMultipart(r *http.Request, maxMemory int64) (map[string]any, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	form := r.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	fields := make(map[string]any, len(form.Value))
	for k, v := range form.Value {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	for name, headers := range form.File {
		if _, exists := fields[name]; exists || len(headers) == 0 {
			continue
		}
		fh := headers[0]
		ct := fh.Header.Get("Content-Type")
		if !strings.Contains(ct, "json") && !strings.HasPrefix(ct, "text/") {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %q: %w", name, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxPartBytes))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read part %q: %w", name, err)
		}
		fields[name] = string(data)
	}
	return fields, nil
}

// decodeJSON decodes with json.Number so long employee numbers survive.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
