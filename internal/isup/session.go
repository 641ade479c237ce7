// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package isup

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/presence/internal/attendance"
	"github.com/tomtom215/presence/internal/device"
	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/metrics"
	"github.com/tomtom215/presence/internal/models"
)

const readBufferSize = 4096

// session is the per-connection state machine:
// Connected -> Registered -> (EventNotification | Heartbeat | Alarm)* -> Closed.
// No command is rejected for arriving out of order.
type session struct {
	srv         *Server
	id          string
	conn        net.Conn
	remote      string
	connectedAt time.Time
	assembler   *Assembler
	limiter     *rate.Limiter

	// deviceID is the most recent id this connection registered.
	deviceID string
}

func newSession(srv *Server, id string, conn net.Conn) *session {
	limit := rate.Inf
	if srv.cfg.EnvelopeRate > 0 {
		limit = rate.Limit(srv.cfg.EnvelopeRate)
	}
	burst := srv.cfg.EnvelopeBurst
	if burst <= 0 {
		burst = 1
	}
	return &session{
		srv:         srv,
		id:          id,
		conn:        conn,
		remote:      conn.RemoteAddr().String(),
		connectedAt: srv.now(),
		assembler:   NewAssembler(srv.cfg.MaxFrameBytes),
		limiter:     rate.NewLimiter(limit, burst),
	}
}

func (s *session) run(ctx context.Context) {
	ctx = logging.ContextWithConnectionID(ctx, s.id)
	log := logging.Ctx(ctx).With().Str("component", "isup").Str("remote", s.remote).Logger()

	metrics.ISUPConnectionsActive.Inc()
	log.Info().Msg("Device connected")

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordISUPConnectionError("panic")
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Panic in device session")
		}
		s.close(&log)
	}()

	buf := make([]byte, readBufferSize)
	for {
		if s.srv.cfg.IdleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.srv.cfg.IdleTimeout))
		}
		n, readErr := s.conn.Read(buf)
		if n > 0 {
			envelopes, frameErr := s.assembler.Feed(buf[:n])
			for _, env := range envelopes {
				if err := s.limiter.Wait(ctx); err != nil {
					return
				}
				if err := s.handle(ctx, &log, env); err != nil {
					metrics.RecordISUPConnectionError("write")
					log.Warn().Err(err).Msg("Reply write failed, closing connection")
					return
				}
			}
			if frameErr != nil {
				metrics.RecordISUPConnectionError("frame_too_large")
				log.Warn().Err(frameErr).Int("max_bytes", s.srv.cfg.MaxFrameBytes).Msg("Closing connection")
				return
			}
		}
		if readErr != nil {
			s.logReadError(ctx, &log, readErr)
			return
		}
	}
}

func (s *session) logReadError(ctx context.Context, log *zerolog.Logger, err error) {
	var ne net.Error
	switch {
	case ctx.Err() != nil:
		log.Debug().Msg("Connection closed on shutdown")
	case errors.Is(err, io.EOF):
		log.Debug().Msg("Device closed connection")
	case errors.As(err, &ne) && ne.Timeout():
		metrics.RecordISUPConnectionError("idle_timeout")
		log.Info().Dur("idle_timeout", s.srv.cfg.IdleTimeout).Msg("Idle device connection closed")
	default:
		metrics.RecordISUPConnectionError("socket")
		log.Warn().Err(err).Msg("Device socket error")
	}
}

func (s *session) close(log *zerolog.Logger) {
	_ = s.conn.Close()
	removed := s.srv.registry.RemoveByConn(s.id)
	metrics.ISUPConnectionsActive.Dec()
	metrics.ISUPDevicesRegistered.Set(float64(s.srv.registry.Len()))
	log.Info().
		Strs("devices", removed).
		Dur("connected_for", s.srv.now().Sub(s.connectedAt)).
		Msg("Device disconnected")
}

// handle dispatches one envelope. Only a failed reply write is returned;
// everything else is logged and the connection continues.
func (s *session) handle(ctx context.Context, log *zerolog.Logger, envelope string) error {
	cmd, err := Decode(envelope)
	if err != nil {
		metrics.ISUPDecodeErrors.Inc()
		ev := log.Warn().Err(err)
		var perr *ProtocolDecodeError
		if errors.As(err, &perr) {
			ev = ev.Str("excerpt", perr.Excerpt(120))
		}
		ev.Msg("Undecodable envelope skipped")
		return nil
	}
	metrics.RecordISUPEnvelope(cmd.Name)

	switch cmd.Name {
	case CommandRegister:
		return s.handleRegister(log, cmd)
	case CommandHeartbeat:
		s.srv.registry.Touch(s.id, s.srv.now())
		log.Trace().Msg("Heartbeat")
		return s.reply(CommandHeartbeat, ResultOK, nil)
	case CommandEventNotification:
		s.handleEvent(ctx, log, cmd)
		return s.reply(CommandEventNotification, ResultOK, nil)
	case CommandAlarm:
		log.Info().Interface("fields", cmd.Fields).Msg("Device alarm")
		return s.reply(CommandAlarm, ResultOK, nil)
	default:
		log.Debug().Str("command", cmd.Name).Msg("Unrecognized command acknowledged")
		return s.reply(cmd.Name, ResultOK, nil)
	}
}

func (s *session) handleRegister(log *zerolog.Logger, cmd *Command) error {
	id := cmd.Field("deviceID", "DeviceID", "deviceId", "devIndex")
	if id == "" {
		id = s.srv.cfg.DefaultDeviceID
	}
	now := s.srv.now()
	replaced := s.srv.registry.Register(device.Session{
		DeviceID:    id,
		ConnID:      s.id,
		RemoteAddr:  s.remote,
		ConnectedAt: now,
		LastSeenAt:  now,
		Info:        cmd.Fields,
	})
	s.deviceID = id
	metrics.ISUPDevicesRegistered.Set(float64(s.srv.registry.Len()))

	log.Info().
		Str("device_id", id).
		Bool("replaced", replaced).
		Msg("Device registered")

	return s.reply(CommandRegister, ResultOK, map[string]string{
		"ServerID":          s.srv.cfg.ServerID,
		"KeepAliveInterval": strconv.Itoa(s.srv.cfg.KeepAliveInterval),
	})
}

// handleEvent hands an access event to the processor. Failures are logged;
// the caller acknowledges regardless.
func (s *session) handleEvent(ctx context.Context, log *zerolog.Logger, cmd *Command) {
	personID := cmd.Field("employeeNoString", "employeeNo")
	if personID == "" {
		log.Debug().Msg("EventNotification without employee number")
		return
	}

	ts := s.srv.now()
	if raw := cmd.Field("time", "dateTime"); raw != "" {
		parsed, err := attendance.ParseTimestamp(raw, s.srv.cfg.Location)
		if err != nil {
			log.Warn().Err(err).Str("time", raw).Msg("Unparseable event time, using receive time")
		} else {
			ts = parsed
		}
	}

	deviceID := cmd.Field("deviceID", "DeviceID", "deviceId")
	if deviceID == "" {
		deviceID = s.deviceID
	}

	ev := models.SeenEvent{
		PersonID:  personID,
		Timestamp: ts,
		Name:      cmd.Field("name", "employeeName"),
		Source:    models.SourceISUP,
		DeviceID:  deviceID,
	}

	pctx, cancel := context.WithTimeout(ctx, s.srv.cfg.ProcessTimeout)
	defer cancel()

	_, err := s.srv.processor.Process(pctx, ev, s.srv.cfg.UnknownPersonPolicy)
	switch {
	case err == nil:
	case errors.Is(err, attendance.ErrUnknownPerson):
		log.Info().Str("person_id", personID).Msg("Event for unknown person dropped")
	case errors.Is(err, attendance.ErrDuplicateEvent):
		log.Debug().Str("person_id", personID).Msg("Duplicate event")
	default:
		log.Error().Err(err).Str("person_id", personID).Msg("Failed to process device event")
	}
}

func (s *session) reply(command, result string, fields map[string]string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.srv.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := s.conn.Write(EncodeAt(command, result, fields, s.srv.now()))
	return err
}
