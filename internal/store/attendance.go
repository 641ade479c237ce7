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
	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/models"
)

func attendanceKey(date, personID string) []byte {
	return []byte(prefixAttendance + date + ":" + personID)
}

// FindByKey returns the record for (personID, date) or
// attendance.ErrRecordNotFound.
func (s *Store) FindByKey(ctx context.Context, personID, date string) (*models.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var rec models.AttendanceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(attendanceKey(date, personID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, attendance.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance %s/%s: %w", personID, date, err)
	}
	return &rec, nil
}

// Upsert writes rec under its (PersonID, Date) in one transaction.
func (s *Store) Upsert(ctx context.Context, rec *models.AttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	if rec.PersonID == "" || rec.Date == "" {
		return errors.New("attendance record needs person id and date")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal attendance record: %w", err)
	}

	return s.update(func(txn *badger.Txn) error {
		return txn.Set(attendanceKey(rec.Date, rec.PersonID), data)
	})
}

// ListByDate returns every record for date ordered by first-seen time,
// then person name.
func (s *Store) ListByDate(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	records := make([]models.AttendanceRecord, 0)
	prefix := []byte(prefixAttendance + date + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()

			var rec models.AttendanceRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable attendance record")
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list attendance for %s: %w", date, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].FirstSeen != records[j].FirstSeen {
			return records[i].FirstSeen < records[j].FirstSeen
		}
		return records[i].PersonName < records[j].PersonName
	})
	return records, nil
}
