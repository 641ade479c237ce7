// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

// Package attendance reconciles seen events into daily attendance records.
//
// Both ingress paths call Processor.Process. For each (person, local date)
// the processor keeps one record whose events alternate IN, OUT, IN, ...;
// alternation is the only direction signal terminals provide. Updates for
// the same key are serialized inside the processor, so concurrent delivery
// from the TCP listener and the webhook cannot lose events.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/metrics"
	"github.com/tomtom215/presence/internal/models"
	"github.com/tomtom215/presence/internal/validation"
)

// Date and time-of-day layouts used on records.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// IdentityResolver maps terminal-reported identifiers to people.
type IdentityResolver interface {
	// Lookup returns ErrPersonNotFound for an unknown identifier.
	Lookup(ctx context.Context, identifier string) (*models.Person, error)

	// Register stores p unless a person with the same DeviceIdentifier
	// already exists, in which case the existing person is returned with
	// created=false.
	Register(ctx context.Context, p *models.Person) (stored *models.Person, created bool, err error)
}

// AttendanceStore persists records keyed by (person ID, date).
type AttendanceStore interface {
	// FindByKey returns ErrRecordNotFound when no record exists.
	FindByKey(ctx context.Context, personID, date string) (*models.AttendanceRecord, error)

	// Upsert creates or replaces the record for its (PersonID, Date).
	Upsert(ctx context.Context, rec *models.AttendanceRecord) error
}

// Notifier receives change notifications after a successful write.
// Implementations must not block.
type Notifier interface {
	AttendanceUpdated(ctx context.Context, update models.AttendanceUpdate)
	PersonRegistered(ctx context.Context, person models.PersonRegistered)
}

// Config controls reconciliation.
type Config struct {
	// Location is the organization's timezone.
	Location *time.Location

	// Deduplicate rejects an event whose timestamp already exists in the record.
	Deduplicate bool

	// HonorDirectionHint lets an explicit IN/OUT on the event override
	// alternation for every event after the first of the day.
	HonorDirectionHint bool

	// DefaultRole and DefaultDepartment are given to auto-registered people.
	DefaultRole       string
	DefaultDepartment string
}

// Result describes the outcome of one Process call.
type Result struct {
	Record           *models.AttendanceRecord
	Person           *models.Person
	Event            models.AttendanceEvent
	Created          bool
	PersonRegistered bool
}

// Processor is the reconciliation core shared by every ingress path.
type Processor struct {
	cfg      Config
	resolver IdentityResolver
	store    AttendanceStore
	notifier Notifier
	locks    *keyLock
	now      func() time.Time
}

// NewProcessor creates a Processor. notifier may be nil.
func NewProcessor(cfg Config, resolver IdentityResolver, store AttendanceStore, notifier Notifier) *Processor {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = "staff"
	}
	return &Processor{
		cfg:      cfg,
		resolver: resolver,
		store:    store,
		notifier: notifier,
		locks:    newKeyLock(),
		now:      time.Now,
	}
}

// Location returns the organization timezone.
func (p *Processor) Location() *time.Location {
	return p.cfg.Location
}

// Today returns the organization-local date for now.
func (p *Processor) Today() string {
	return p.now().In(p.cfg.Location).Format(DateLayout)
}

// Process reconciles ev into the person's record for the event's local date.
//
// Errors: ErrInvalidEvent, ErrUnknownPerson (policy drop), ErrDuplicateEvent
// (the existing record is still returned in Result), and ErrStoreWrite for
// persistence failures. Lookup failures are returned wrapped as-is.
func (p *Processor) Process(ctx context.Context, ev models.SeenEvent, policy UnknownPersonPolicy) (*Result, error) {
	start := p.now()

	if verr := validation.ValidateStruct(&ev); verr != nil {
		metrics.RecordProcessError(ev.Source, "invalid")
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, verr.Error())
	}

	person, registered, err := p.resolve(ctx, ev, policy)
	if err != nil {
		return nil, err
	}

	local := ev.Timestamp.In(p.cfg.Location)
	date := local.Format(DateLayout)
	clock := local.Format(TimeLayout)

	unlock, err := p.locks.Lock(ctx, person.ID+"|"+date)
	if err != nil {
		metrics.RecordProcessError(ev.Source, "lock")
		return nil, fmt.Errorf("wait for %s/%s: %w", person.ID, date, err)
	}
	defer unlock()

	rec, err := p.store.FindByKey(ctx, person.ID, date)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		rec = nil
	case err != nil:
		metrics.RecordProcessError(ev.Source, "lookup")
		return nil, fmt.Errorf("find attendance %s/%s: %w", person.ID, date, err)
	}

	result := &Result{Person: person, PersonRegistered: registered}

	if rec != nil && p.cfg.Deduplicate && rec.HasTimestamp(ev.Timestamp) {
		metrics.RecordProcessError(ev.Source, "duplicate")
		logging.Ctx(ctx).Debug().
			Str("person_id", person.ID).
			Str("date", date).
			Time("timestamp", ev.Timestamp).
			Msg("Duplicate attendance event ignored")
		result.Record = rec
		return result, ErrDuplicateEvent
	}

	now := p.now()
	event := models.AttendanceEvent{
		Time:      clock,
		Timestamp: ev.Timestamp,
		Source:    ev.Source,
		DeviceID:  ev.DeviceID,
	}

	if rec == nil {
		event.Direction = models.DirectionIn
		rec = &models.AttendanceRecord{
			PersonID:   person.ID,
			PersonName: person.Name,
			Role:       person.Role,
			Department: person.Department,
			Date:       date,
			Events:     []models.AttendanceEvent{event},
			FirstSeen:  clock,
			LastSeen:   clock,
			Status:     models.StatusPresent,
			CreatedAt:  now,
		}
		result.Created = true
	} else {
		event.Direction = p.nextDirection(rec, ev)
		rec.Events = append(rec.Events, event)
		if event.Direction == models.DirectionOut {
			rec.LastSeen = clock
			rec.DurationMinutes = minutesBetween(rec.FirstSeen, rec.LastSeen)
		}
		rec.Status = statusAfter(event.Direction)
		refreshPerson(rec, person)
	}
	rec.UpdatedAt = now

	if err := p.store.Upsert(ctx, rec); err != nil {
		metrics.RecordProcessError(ev.Source, "store")
		return nil, fmt.Errorf("%w: upsert %s/%s: %w", ErrStoreWrite, person.ID, date, err)
	}

	result.Record = rec
	result.Event = event

	metrics.RecordAttendanceEvent(ev.Source, string(event.Direction), p.now().Sub(start))
	logging.Ctx(ctx).Info().
		Str("person_id", person.ID).
		Str("name", person.Name).
		Str("date", date).
		Str("time", clock).
		Str("direction", string(event.Direction)).
		Str("source", ev.Source).
		Msg("Attendance event recorded")

	p.publish(ctx, result, ev)
	return result, nil
}

// statusAfter derives the record status from its latest event: present
// while checked in, partial once checked out.
func statusAfter(d models.Direction) models.Status {
	if d == models.DirectionIn {
		return models.StatusPresent
	}
	return models.StatusPartial
}

// refreshPerson copies directory changes made since the record was created.
func refreshPerson(rec *models.AttendanceRecord, person *models.Person) {
	if person.Name != "" {
		rec.PersonName = person.Name
	}
	if person.Role != "" {
		rec.Role = person.Role
	}
	if person.Department != "" {
		rec.Department = person.Department
	}
}

// nextDirection alternates on the last event. SEEN counts as OUT.
func (p *Processor) nextDirection(rec *models.AttendanceRecord, ev models.SeenEvent) models.Direction {
	if p.cfg.HonorDirectionHint && (ev.Direction == models.DirectionIn || ev.Direction == models.DirectionOut) {
		return ev.Direction
	}
	if last := rec.LastEvent(); last != nil && last.Direction == models.DirectionIn {
		return models.DirectionOut
	}
	return models.DirectionIn
}

func (p *Processor) resolve(ctx context.Context, ev models.SeenEvent, policy UnknownPersonPolicy) (*models.Person, bool, error) {
	person, err := p.resolver.Lookup(ctx, ev.PersonID)
	if err == nil {
		return person, false, nil
	}
	if !errors.Is(err, ErrPersonNotFound) {
		metrics.RecordProcessError(ev.Source, "lookup")
		return nil, false, fmt.Errorf("lookup person %q: %w", ev.PersonID, err)
	}

	if policy != PolicyRegister {
		metrics.RecordProcessError(ev.Source, "unknown_person")
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownPerson, ev.PersonID)
	}

	name := ev.Name
	if name == "" {
		name = models.UnknownPersonName
	}
	candidate := &models.Person{
		ID:               uuid.NewString(),
		Name:             name,
		Role:             p.cfg.DefaultRole,
		Department:       p.cfg.DefaultDepartment,
		DeviceIdentifier: ev.PersonID,
		AutoRegistered:   true,
		CreatedAt:        p.now(),
	}

	stored, created, err := p.resolver.Register(ctx, candidate)
	if err != nil {
		metrics.RecordProcessError(ev.Source, "store")
		return nil, false, fmt.Errorf("%w: register person %q: %w", ErrStoreWrite, ev.PersonID, err)
	}
	if created {
		metrics.PeopleAutoRegistered.WithLabelValues(ev.Source).Inc()
		logging.Ctx(ctx).Info().
			Str("person_id", stored.ID).
			Str("identifier", stored.DeviceIdentifier).
			Str("name", stored.Name).
			Msg("Auto-registered unknown person")
	}
	return stored, created, nil
}

func (p *Processor) publish(ctx context.Context, result *Result, ev models.SeenEvent) {
	if p.notifier == nil {
		return
	}

	person, rec := result.Person, result.Record
	p.notifier.AttendanceUpdated(ctx, models.AttendanceUpdate{
		PersonID:         person.ID,
		Name:             person.Name,
		DeviceIdentifier: person.DeviceIdentifier,
		Department:       person.Department,
		Role:             person.Role,
		Date:             rec.Date,
		CheckInTime:      rec.FirstSeen,
		CheckOutTime:     checkOutTime(rec),
		Status:           rec.Status,
		EventType:        result.Event.Direction,
		Source:           ev.Source,
		Timestamp:        p.now(),
		IsNewEmployee:    result.PersonRegistered,
	})

	if result.PersonRegistered {
		p.notifier.PersonRegistered(ctx, models.PersonRegistered{
			PersonID:         person.ID,
			Name:             person.Name,
			DeviceIdentifier: person.DeviceIdentifier,
			Department:       person.Department,
			Role:             person.Role,
			Avatar:           person.Initials(),
		})
	}
}

// checkOutTime is empty until the record has an OUT event.
func checkOutTime(rec *models.AttendanceRecord) string {
	for i := range rec.Events {
		if rec.Events[i].Direction == models.DirectionOut {
			return rec.LastSeen
		}
	}
	return ""
}
