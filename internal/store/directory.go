// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/models"
)

func personKey(identifier string) []byte {
	return []byte(prefixPerson + identifier)
}

// Lookup returns the person whose DeviceIdentifier is identifier, or
// attendance.ErrPersonNotFound.
func (s *Store) Lookup(ctx context.Context, identifier string) (*models.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var p models.Person
	err := s.db.View(func(txn *badger.Txn) error {
		return getPerson(txn, identifier, &p)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, attendance.ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person %q: %w", identifier, err)
	}
	return &p, nil
}

// Register stores p unless its DeviceIdentifier is taken, in which case the
// existing person is returned with created=false. The check and the write
// happen in one transaction.
func (s *Store) Register(ctx context.Context, p *models.Person) (*models.Person, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	if p.DeviceIdentifier == "" || p.ID == "" {
		return nil, false, errors.New("person needs id and device identifier")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, false, fmt.Errorf("marshal person: %w", err)
	}

	var (
		existing models.Person
		found    bool
	)
	err = s.update(func(txn *badger.Txn) error {
		found = false
		err := getPerson(txn, p.DeviceIdentifier, &existing)
		switch {
		case err == nil:
			found = true
			return nil
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(personKey(p.DeviceIdentifier), data)
	})
	if err != nil {
		return nil, false, fmt.Errorf("register person %q: %w", p.DeviceIdentifier, err)
	}
	if found {
		return &existing, false, nil
	}
	stored := *p
	return &stored, true, nil
}

// SavePerson creates or replaces a person unconditionally.
func (s *Store) SavePerson(ctx context.Context, p *models.Person) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal person: %w", err)
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(personKey(p.DeviceIdentifier), data)
	})
}

// ListPeople returns every person ordered by name.
func (s *Store) ListPeople(ctx context.Context) ([]models.Person, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	people := make([]models.Person, 0)
	prefix := []byte(prefixPerson)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var p models.Person
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			people = append(people, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}

	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people, nil
}

func getPerson(txn *badger.Txn, identifier string, p *models.Person) error {
	item, err := txn.Get(personKey(identifier))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, p)
	})
}
