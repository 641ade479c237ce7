// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package attendance

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/models"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

var tashkent = time.FixedZone("UTC+5", 5*60*60)

// memResolver is an in-memory IdentityResolver.
type memResolver struct {
	mu     sync.Mutex
	people map[string]*models.Person
}

func newMemResolver(people ...*models.Person) *memResolver {
	r := &memResolver{people: make(map[string]*models.Person)}
	for _, p := range people {
		r.people[p.DeviceIdentifier] = p
	}
	return r
}

func (r *memResolver) Lookup(_ context.Context, id string) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.people[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, ErrPersonNotFound
}

func (r *memResolver) Register(_ context.Context, p *models.Person) (*models.Person, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.people[p.DeviceIdentifier]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *p
	r.people[p.DeviceIdentifier] = &cp
	return p, true, nil
}

// memStore is an in-memory AttendanceStore that copies on read and write,
// like a real persistence layer, so lost updates are observable.
type memStore struct {
	mu      sync.Mutex
	records map[string]models.AttendanceRecord
	writes  int
	failErr error
	delay   time.Duration
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]models.AttendanceRecord)}
}

func (s *memStore) FindByKey(_ context.Context, personID, date string) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	rec, ok := s.records[personID+"|"+date]
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if !ok {
		return nil, ErrRecordNotFound
	}
	rec.Events = append([]models.AttendanceEvent(nil), rec.Events...)
	return &rec, nil
}

func (s *memStore) Upsert(_ context.Context, rec *models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	cp := *rec
	cp.Events = append([]models.AttendanceEvent(nil), rec.Events...)
	s.records[rec.PersonID+"|"+rec.Date] = cp
	s.writes++
	return nil
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu         sync.Mutex
	updates    []models.AttendanceUpdate
	registered []models.PersonRegistered
}

func (n *recordingNotifier) AttendanceUpdated(_ context.Context, u models.AttendanceUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, u)
}

func (n *recordingNotifier) PersonRegistered(_ context.Context, p models.PersonRegistered) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.registered = append(n.registered, p)
}

func alice() *models.Person {
	return &models.Person{ID: "p-1", Name: "Alice Karimova", Role: "teacher", Department: "Math", DeviceIdentifier: "1001"}
}

func setupProcessor(t *testing.T, cfg Config, people ...*models.Person) (*Processor, *memStore, *memResolver, *recordingNotifier) {
	t.Helper()
	if cfg.Location == nil {
		cfg.Location = tashkent
	}
	store := newMemStore()
	resolver := newMemResolver(people...)
	notifier := &recordingNotifier{}
	p := NewProcessor(cfg, resolver, store, notifier)
	p.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	return p, store, resolver, notifier
}

func seen(id string, ts time.Time, source string) models.SeenEvent {
	return models.SeenEvent{PersonID: id, Timestamp: ts, Source: source}
}

func TestProcessAlternatesDirection(t *testing.T) {
	p, store, _, notifier := setupProcessor(t, Config{Deduplicate: true}, alice())
	ctx := context.Background()

	// 03:05Z is 08:05 in UTC+5
	first := time.Date(2026, 3, 2, 3, 5, 0, 0, time.UTC)

	res, err := p.Process(ctx, seen("1001", first, models.SourceISUP), PolicyDrop)
	if err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	if !res.Created {
		t.Error("first event should create the record")
	}
	rec := res.Record
	if rec.Date != "2026-03-02" || rec.FirstSeen != "08:05" || rec.LastSeen != "08:05" {
		t.Errorf("record = %s %s-%s, want 2026-03-02 08:05-08:05", rec.Date, rec.FirstSeen, rec.LastSeen)
	}
	if rec.Status != models.StatusPresent {
		t.Errorf("Status = %q, want present", rec.Status)
	}
	if len(rec.Events) != 1 || rec.Events[0].Direction != models.DirectionIn {
		t.Fatalf("Events = %+v, want one IN", rec.Events)
	}

	res, err = p.Process(ctx, seen("1001", first.Add(8*time.Hour+25*time.Minute), models.SourceISUP), PolicyDrop)
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	rec = res.Record
	if len(rec.Events) != 2 || rec.Events[1].Direction != models.DirectionOut {
		t.Fatalf("Events = %+v, want IN,OUT", rec.Events)
	}
	if rec.LastSeen != "16:30" {
		t.Errorf("LastSeen = %q, want 16:30", rec.LastSeen)
	}
	if rec.DurationMinutes != 505 {
		t.Errorf("DurationMinutes = %d, want 505", rec.DurationMinutes)
	}

	res, err = p.Process(ctx, seen("1001", first.Add(9*time.Hour), models.SourceISUP), PolicyDrop)
	if err != nil {
		t.Fatalf("third Process() error = %v", err)
	}
	rec = res.Record
	if len(rec.Events) != 3 || rec.Events[2].Direction != models.DirectionIn {
		t.Fatalf("Events = %+v, want IN,OUT,IN", rec.Events)
	}
	if rec.LastSeen != "16:30" || rec.DurationMinutes != 505 {
		t.Errorf("IN must not move LastSeen: got %s / %d", rec.LastSeen, rec.DurationMinutes)
	}

	for i := 1; i < len(rec.Events); i++ {
		if rec.Events[i].Direction == rec.Events[i-1].Direction {
			t.Errorf("events %d and %d share direction %s", i-1, i, rec.Events[i].Direction)
		}
	}
	if store.writes != 3 {
		t.Errorf("store writes = %d, want 3", store.writes)
	}
	if len(notifier.updates) != 3 {
		t.Errorf("notifications = %d, want 3", len(notifier.updates))
	}
	if notifier.updates[1].CheckOutTime != "16:30" || notifier.updates[0].CheckOutTime != "" {
		t.Errorf("CheckOutTime = %q,%q, want \"\",16:30", notifier.updates[0].CheckOutTime, notifier.updates[1].CheckOutTime)
	}
}

func TestProcessLocalDateBoundary(t *testing.T) {
	p, _, _, _ := setupProcessor(t, Config{}, alice())

	// 20:30Z on the 1st is 01:30 on the 2nd in UTC+5
	res, err := p.Process(context.Background(), seen("1001", time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC), models.SourceISUP), PolicyDrop)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Record.Date != "2026-03-02" || res.Record.FirstSeen != "01:30" {
		t.Errorf("record = %s %s, want 2026-03-02 01:30", res.Record.Date, res.Record.FirstSeen)
	}
}

func TestProcessUnknownPersonPolicies(t *testing.T) {
	ts := time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)

	t.Run("drop", func(t *testing.T) {
		p, store, _, notifier := setupProcessor(t, Config{})
		_, err := p.Process(context.Background(), seen("9999", ts, models.SourceISUP), PolicyDrop)
		if !errors.Is(err, ErrUnknownPerson) {
			t.Fatalf("Process() error = %v, want ErrUnknownPerson", err)
		}
		if store.writes != 0 {
			t.Errorf("store writes = %d, want 0", store.writes)
		}
		if len(notifier.updates) != 0 {
			t.Errorf("notifications = %d, want 0", len(notifier.updates))
		}
	})

	t.Run("register", func(t *testing.T) {
		p, store, resolver, notifier := setupProcessor(t, Config{DefaultRole: "staff", DefaultDepartment: "IT"})
		ev := seen("9999", ts, models.SourceWebhook)
		ev.Name = "Bobur Aliyev"

		res, err := p.Process(context.Background(), ev, PolicyRegister)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if !res.PersonRegistered || !res.Created {
			t.Errorf("PersonRegistered=%v Created=%v, want both true", res.PersonRegistered, res.Created)
		}
		person, err := resolver.Lookup(context.Background(), "9999")
		if err != nil {
			t.Fatalf("person was not registered: %v", err)
		}
		if person.Name != "Bobur Aliyev" || person.Role != "staff" || person.Department != "IT" || !person.AutoRegistered {
			t.Errorf("registered person = %+v", person)
		}
		if store.writes != 1 {
			t.Errorf("store writes = %d, want 1", store.writes)
		}
		if len(notifier.registered) != 1 || notifier.registered[0].Avatar != "BO" {
			t.Errorf("registered notifications = %+v, want one with avatar BO", notifier.registered)
		}
		if !notifier.updates[0].IsNewEmployee {
			t.Error("update should flag the new employee")
		}
	})

	t.Run("register without name", func(t *testing.T) {
		p, _, resolver, _ := setupProcessor(t, Config{})
		if _, err := p.Process(context.Background(), seen("7", ts, models.SourceWebhook), PolicyRegister); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		person, _ := resolver.Lookup(context.Background(), "7")
		if person.Name != models.UnknownPersonName {
			t.Errorf("Name = %q, want %q", person.Name, models.UnknownPersonName)
		}
	})
}

func TestProcessDeduplicate(t *testing.T) {
	ts := time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)

	p, store, _, _ := setupProcessor(t, Config{Deduplicate: true}, alice())
	if _, err := p.Process(context.Background(), seen("1001", ts, models.SourceISUP), PolicyDrop); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	res, err := p.Process(context.Background(), seen("1001", ts, models.SourceWebhook), PolicyDrop)
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("Process() error = %v, want ErrDuplicateEvent", err)
	}
	if res == nil || len(res.Record.Events) != 1 {
		t.Errorf("duplicate should return the unchanged record")
	}
	if store.writes != 1 {
		t.Errorf("store writes = %d, want 1", store.writes)
	}

	p, store, _, _ = setupProcessor(t, Config{Deduplicate: false}, alice())
	for i := 0; i < 2; i++ {
		if _, err := p.Process(context.Background(), seen("1001", ts, models.SourceISUP), PolicyDrop); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	rec, _ := store.FindByKey(context.Background(), "p-1", "2026-03-02")
	if len(rec.Events) != 2 {
		t.Errorf("without dedup, events = %d, want 2", len(rec.Events))
	}
}

func TestProcessDirectionHint(t *testing.T) {
	ts := time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		honor bool
		hint  models.Direction
		want  models.Direction
	}{
		{"ignored by default", false, models.DirectionIn, models.DirectionOut},
		{"honored IN", true, models.DirectionIn, models.DirectionIn},
		{"honored OUT", true, models.DirectionOut, models.DirectionOut},
		{"SEEN falls back to alternation", true, models.DirectionSeen, models.DirectionOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _, _ := setupProcessor(t, Config{HonorDirectionHint: tt.honor}, alice())
			if _, err := p.Process(context.Background(), seen("1001", ts, models.SourceWebhook), PolicyDrop); err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			ev := seen("1001", ts.Add(time.Hour), models.SourceWebhook)
			ev.Direction = tt.hint
			res, err := p.Process(context.Background(), ev, PolicyDrop)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if res.Event.Direction != tt.want {
				t.Errorf("Direction = %s, want %s", res.Event.Direction, tt.want)
			}
		})
	}
}

func TestProcessStoreWriteError(t *testing.T) {
	p, store, _, notifier := setupProcessor(t, Config{}, alice())
	store.failErr = errors.New("disk full")

	_, err := p.Process(context.Background(), seen("1001", time.Now(), models.SourceISUP), PolicyDrop)
	if !errors.Is(err, ErrStoreWrite) {
		t.Fatalf("Process() error = %v, want ErrStoreWrite", err)
	}
	if len(notifier.updates) != 0 {
		t.Error("failed write must not notify")
	}
}

func TestProcessInvalidEvent(t *testing.T) {
	p, _, _, _ := setupProcessor(t, Config{}, alice())

	tests := []struct {
		name string
		ev   models.SeenEvent
	}{
		{"empty person", models.SeenEvent{Timestamp: time.Now(), Source: models.SourceISUP}},
		{"zero time", models.SeenEvent{PersonID: "1001", Source: models.SourceISUP}},
		{"bad source", models.SeenEvent{PersonID: "1001", Timestamp: time.Now(), Source: "carrier-pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Process(context.Background(), tt.ev, PolicyRegister); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Process() error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

// Two transports delivering for the same (person, date) at the same time
// must both land in the record.
func TestProcessConcurrentSameKey(t *testing.T) {
	p, store, _, _ := setupProcessor(t, Config{Deduplicate: true}, alice())
	store.delay = 5 * time.Millisecond

	base := time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i, source := range []string{models.SourceISUP, models.SourceWebhook} {
		wg.Add(1)
		go func(i int, source string) {
			defer wg.Done()
			_, err := p.Process(context.Background(), seen("1001", base.Add(time.Duration(i)*time.Minute), source), PolicyDrop)
			errs <- err
		}(i, source)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	rec, err := store.FindByKey(context.Background(), "p-1", "2026-03-02")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if len(rec.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(rec.Events))
	}
	if rec.Events[0].Direction != models.DirectionIn || rec.Events[1].Direction != models.DirectionOut {
		t.Errorf("directions = %s,%s, want IN,OUT", rec.Events[0].Direction, rec.Events[1].Direction)
	}
	if p.locks.size() != 0 {
		t.Errorf("key locks leaked: %d", p.locks.size())
	}
}

// With the default config a re-delivered instant is appended, so the same
// instant arriving over both transports at once lands twice.
func TestProcessConcurrentSameInstantDefaultConfig(t *testing.T) {
	p, store, _, _ := setupProcessor(t, Config{}, alice())
	store.delay = 5 * time.Millisecond

	ts := time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, source := range []string{models.SourceISUP, models.SourceWebhook} {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			_, err := p.Process(context.Background(), seen("1001", ts, source), PolicyDrop)
			errs <- err
		}(source)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	rec, err := store.FindByKey(context.Background(), "p-1", "2026-03-02")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if len(rec.Events) != 2 {
		t.Errorf("events = %d, want 2", len(rec.Events))
	}
}

func TestProcessLockWaitHonorsContext(t *testing.T) {
	p, store, _, _ := setupProcessor(t, Config{}, alice())

	unlock, err := p.locks.Lock(context.Background(), "p-1|2026-03-02")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Process(ctx, seen("1001", time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC), models.SourceISUP), PolicyDrop)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Process() error = %v, want context.DeadlineExceeded", err)
	}
	if store.writes != 0 {
		t.Errorf("store writes = %d, want 0", store.writes)
	}
}

func TestProcessStatusFollowsLastEvent(t *testing.T) {
	p, _, _, _ := setupProcessor(t, Config{}, alice())
	base := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

	want := []models.Status{models.StatusPresent, models.StatusPartial, models.StatusPresent, models.StatusPartial}
	for i, status := range want {
		res, err := p.Process(context.Background(), seen("1001", base.Add(time.Duration(i)*time.Hour), models.SourceISUP), PolicyDrop)
		if err != nil {
			t.Fatalf("event %d: Process() error = %v", i, err)
		}
		if res.Record.Status != status {
			t.Errorf("event %d (%s): Status = %q, want %q", i, res.Event.Direction, res.Record.Status, status)
		}
	}
}

func TestProcessRefreshesDirectoryFields(t *testing.T) {
	p, store, resolver, _ := setupProcessor(t, Config{}, alice())
	ts := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

	if _, err := p.Process(context.Background(), seen("1001", ts, models.SourceISUP), PolicyDrop); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	resolver.mu.Lock()
	resolver.people["1001"].Role = "director"
	resolver.people["1001"].Department = "Administration"
	resolver.mu.Unlock()

	if _, err := p.Process(context.Background(), seen("1001", ts.Add(time.Hour), models.SourceISUP), PolicyDrop); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	rec, _ := store.FindByKey(context.Background(), "p-1", "2026-03-02")
	if rec.Role != "director" || rec.Department != "Administration" {
		t.Errorf("record role/department = %q/%q, want director/Administration", rec.Role, rec.Department)
	}
	if rec.PersonName != "Alice Karimova" {
		t.Errorf("PersonName = %q", rec.PersonName)
	}
}
