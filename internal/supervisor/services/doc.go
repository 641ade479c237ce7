// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

/*
Package services adapts components with other lifecycles to suture.Service.

Each wrapper translates one pattern into Serve(ctx) error:

  - HTTPServerService: ListenAndServe/Shutdown of *http.Server
  - WebSocketHubService: websocket.Hub.RunWithContext
  - StoreGCService: a ticker around the store's value-log GC
  - NATSServerService: lifetime of the embedded NATS server

Components that already implement suture.Service, such as isup.Server and
notify.NATSPublisher, are added to the tree directly.

The wrappers depend on small interfaces rather than on the wrapped
packages, so they can be tested with fakes and never import the
components they supervise.
*/
package services
