// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/models"
	"github.com/tomtom215/presence/internal/validation"
)

// LoadSeedFile reads a YAML directory file of the form
//
//	people:
//	  - name: Alice Karimova
//	    role: teacher
//	    department: Math
//	    device_identifier: "1001"
//
// Missing roles take defaultRole and missing IDs are generated. Every entry
// is validated; the first invalid entry fails the whole file.
func LoadSeedFile(path, defaultRole string) ([]models.Person, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load seed file %s: %w", path, err)
	}

	var people []models.Person
	if err := k.Unmarshal("people", &people); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	seen := make(map[string]int, len(people))
	for i := range people {
		p := &people[i]
		p.Name = strings.TrimSpace(p.Name)
		p.DeviceIdentifier = strings.TrimSpace(p.DeviceIdentifier)
		if p.Role == "" {
			p.Role = defaultRole
		}
		if verr := validation.ValidateStruct(p); verr != nil {
			return nil, fmt.Errorf("seed entry %d: %s", i, verr.Error())
		}
		if prev, dup := seen[p.DeviceIdentifier]; dup {
			return nil, fmt.Errorf("seed entries %d and %d share device identifier %q", prev, i, p.DeviceIdentifier)
		}
		seen[p.DeviceIdentifier] = i
	}
	return people, nil
}

// Seed writes people into the directory. Existing entries keep their ID and
// creation time so attendance keys stay stable; their other fields are
// replaced.
func (s *Store) Seed(ctx context.Context, people []models.Person) (created, updated int, err error) {
	now := time.Now()
	for i := range people {
		p := people[i]

		existing, lerr := s.Lookup(ctx, p.DeviceIdentifier)
		switch {
		case lerr == nil:
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
			updated++
		case errors.Is(lerr, attendance.ErrPersonNotFound):
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			p.CreatedAt = now
			created++
		default:
			return created, updated, lerr
		}
		p.AutoRegistered = false

		if err := s.SavePerson(ctx, &p); err != nil {
			return created, updated, fmt.Errorf("seed person %q: %w", p.DeviceIdentifier, err)
		}
	}

	logging.Info().
		Int("created", created).
		Int("updated", updated).
		Msg("Directory seeded")
	return created, updated, nil
}
