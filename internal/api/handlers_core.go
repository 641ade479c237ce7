// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/presence/internal/models"
)

// AttendanceQuery holds the query parameters of GET /api/v1/attendance.
type AttendanceQuery struct {
	Date string `json:"date" validate:"omitempty,isodate"`
}

// AttendanceList is the body of GET /api/v1/attendance. Present counts
// everyone who arrived, whether or not they have left.
type AttendanceList struct {
	Date    string                    `json:"date"`
	Count   int                       `json:"count"`
	Present int                       `json:"present"`
	Records []models.AttendanceRecord `json:"records"`
}

// AbsentPerson is a directory entry with no record for the date.
type AbsentPerson struct {
	PersonID         string        `json:"employeeId"`
	Name             string        `json:"name"`
	DeviceIdentifier string        `json:"hikvisionEmployeeId"`
	Department       string        `json:"department"`
	Role             string        `json:"role"`
	Status           models.Status `json:"status"`
}

// AbsentList is the body of GET /api/v1/attendance/absent.
type AbsentList struct {
	Date   string         `json:"date"`
	Count  int            `json:"count"`
	People []AbsentPerson `json:"people"`
}

// PeopleList is the body of GET /api/v1/people.
type PeopleList struct {
	Count  int             `json:"count"`
	People []models.Person `json:"people"`
}

// Devices returns connected terminal sessions.
// GET /api/v1/devices
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, h.deviceStatus(), start)
}

func (h *Handler) deviceStatus() models.DeviceStatusResponse {
	resp := models.DeviceStatusResponse{Devices: []models.DeviceStatus{}}
	if h.cfg.DeviceListenerEnabled {
		resp.Port = h.cfg.DevicePort
	}
	if h.registry != nil {
		resp.Devices = h.registry.Snapshot(h.now())
	}
	resp.ConnectedDevices = len(resp.Devices)
	return resp
}

// Attendance lists records for one organization-local date, defaulting to
// today.
// GET /api/v1/attendance?date=YYYY-MM-DD
func (h *Handler) Attendance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	date, ok := h.queryDate(w, r)
	if !ok {
		return
	}

	records, err := h.store.ListByDate(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeStoreError, "Failed to list attendance", err)
		return
	}

	present := 0
	for i := range records {
		if records[i].Status == models.StatusPresent || records[i].Status == models.StatusPartial {
			present++
		}
	}

	respondSuccess(w, AttendanceList{
		Date:    date,
		Count:   len(records),
		Present: present,
		Records: records,
	}, start)
}

// Absent lists directory people with no record for one organization-local
// date, defaulting to today.
// GET /api/v1/attendance/absent?date=YYYY-MM-DD
func (h *Handler) Absent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	date, ok := h.queryDate(w, r)
	if !ok {
		return
	}

	records, err := h.store.ListByDate(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeStoreError, "Failed to list attendance", err)
		return
	}
	people, err := h.store.ListPeople(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeStoreError, "Failed to list people", err)
		return
	}

	seen := make(map[string]struct{}, len(records))
	for i := range records {
		seen[records[i].PersonID] = struct{}{}
	}

	absent := make([]AbsentPerson, 0, len(people))
	for _, p := range people {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		absent = append(absent, AbsentPerson{
			PersonID:         p.ID,
			Name:             p.Name,
			DeviceIdentifier: p.DeviceIdentifier,
			Department:       p.Department,
			Role:             p.Role,
			Status:           models.StatusAbsent,
		})
	}

	respondSuccess(w, AbsentList{Date: date, Count: len(absent), People: absent}, start)
}

// queryDate validates the date query parameter and defaults it to today.
// It writes the error response and reports false when the date is invalid.
func (h *Handler) queryDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := AttendanceQuery{Date: r.URL.Query().Get("date")}
	if apiErr := validateRequest(&q); apiErr != nil {
		respondValidationError(w, apiErr)
		return "", false
	}
	if q.Date == "" {
		q.Date = h.processor.Today()
	}
	return q.Date, true
}

// People lists the person directory ordered by name.
// GET /api/v1/people
func (h *Handler) People(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	people, err := h.store.ListPeople(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeStoreError, "Failed to list people", err)
		return
	}

	respondSuccess(w, PeopleList{Count: len(people), People: people}, start)
}
