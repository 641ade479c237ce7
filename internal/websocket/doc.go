// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

/*
Package websocket pushes attendance changes to dashboard clients.

The Hub implements attendance.Notifier: every recorded event becomes an
"attendance:updated" message and every auto-registration an
"employee:registered" message, both shaped as {"type": ..., "data": ...}.

Broadcasting never blocks the caller. Messages are queued on a buffered
channel drained by RunWithContext, which runs under the supervisor's
messaging layer. Clients whose send buffer fills are dropped.

Clients may send {"type":"ping"} and receive {"type":"pong"}; the server
also sends protocol-level pings every 54 seconds.
*/
package websocket
