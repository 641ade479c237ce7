// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

//go:build nats

package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/presence/internal/logging"
	"github.com/tomtom215/presence/internal/metrics"
	"github.com/tomtom215/presence/internal/models"
)

// NATSConfig configures the publisher.
type NATSConfig struct {
	URL           string
	Subject       string
	QueueSize     int
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSPublisher publishes notifications to a NATS subject through
// Watermill. Notifications are queued and published by Serve, so the
// processor never waits on the broker. It implements attendance.Notifier
// and suture.Service.
type NATSPublisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	subject   string
	queue     chan *message.Message

	mu     sync.RWMutex
	closed bool
}

// NewNATSPublisher connects to cfg.URL. The connection retries in the
// background, so an unreachable broker does not fail startup.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	logger := NewWatermillLogger()
	natsOpts := []natsgo.Option{
		natsgo.Name("presence"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &NATSPublisher{
		publisher: pub,
		breaker:   NewCircuitBreaker(DefaultBreakerConfig("nats-publish")),
		subject:   cfg.Subject,
		queue:     make(chan *message.Message, cfg.QueueSize),
	}, nil
}

// AttendanceUpdated implements attendance.Notifier.
func (p *NATSPublisher) AttendanceUpdated(_ context.Context, update models.AttendanceUpdate) {
	p.enqueue(MessageTypeAttendanceUpdated, update.PersonID, update)
}

// PersonRegistered implements attendance.Notifier.
func (p *NATSPublisher) PersonRegistered(_ context.Context, person models.PersonRegistered) {
	p.enqueue(MessageTypeEmployeeRegistered, person.PersonID, person)
}

func (p *NATSPublisher) enqueue(msgType, personID string, data interface{}) {
	payload, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		metrics.RecordNotify("nats", "error")
		logging.Error().Err(err).Str("type", msgType).Msg("Failed to encode notification")
		return
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("type", msgType)
	msg.Metadata.Set("person_id", personID)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.RecordNotify("nats", "dropped")
		return
	}
	select {
	case p.queue <- msg:
	default:
		metrics.RecordNotify("nats", "dropped")
		logging.Warn().Str("type", msgType).Msg("NATS publish queue full, dropping notification")
	}
}

// Serve publishes queued notifications until ctx is canceled.
func (p *NATSPublisher) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-p.queue:
			p.publish(msg)
		}
	}
}

func (p *NATSPublisher) publish(msg *message.Message) {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(p.subject, msg)
	})
	switch {
	case err == nil:
		metrics.RecordNotify("nats", "ok")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordNotify("nats", "dropped")
	default:
		metrics.RecordNotify("nats", "error")
		logging.Warn().Err(err).Str("subject", p.subject).Msg("NATS publish failed")
	}
}

// String implements fmt.Stringer for suture logging.
func (p *NATSPublisher) String() string {
	return "nats-publisher"
}

// Close stops accepting notifications and closes the connection.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
