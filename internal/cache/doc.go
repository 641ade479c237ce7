// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

/*
Package cache provides the in-memory duplicate-delivery cache used by the
webhook.

Hikvision terminals retry webhook deliveries they consider unacknowledged,
and several firmware versions post the same event twice in quick
succession. DedupCache records a key per (person, event time) and reports
repeats within a short TTL:

	dedup := cache.NewDedupCache(10000, 10*time.Second)
	if dedup.IsDuplicate(personID + "|" + ts.Format(time.RFC3339)) {
	    // answer success without reprocessing
	}

Entries expire lazily and are also evicted least-recently-used once the
cache reaches capacity, so memory stays bounded under a flood of distinct
keys.

# Thread Safety

All methods are safe for concurrent use.
*/
package cache
