package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/jupitervolta/ds1054z/internal/config"
	"github.com/jupitervolta/ds1054z/internal/telemetry"
)

// Subject suffixes under the service subject.
const (
	ResultSuffix = ".result"
	EventsSuffix = ".events"
)

// Connect dials the bus with reconnects and logging handlers.
func Connect(cfg config.TransportConfig, logger zerolog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
	return nc, nil
}

// NATSBridge feeds packets from the service subject into the queue and
// publishes responses and events back to the bus.
type NATSBridge struct {
	conn    *nats.Conn
	subject string
	queue   *Queue
	logger  zerolog.Logger
}

// Compile-time assertion that NATSBridge is a telemetry sink
var _ telemetry.Sink = (*NATSBridge)(nil)

// NewNATSBridge creates a bridge on subject.
func NewNATSBridge(conn *nats.Conn, subject string, queue *Queue, logger zerolog.Logger) *NATSBridge {
	return &NATSBridge{
		conn:    conn,
		subject: subject,
		queue:   queue,
		logger:  logger,
	}
}

// Run subscribes and routes responses until ctx is done.
func (b *NATSBridge) Run(ctx context.Context) error {
	sub, err := b.conn.Subscribe(b.subject, func(m *nats.Msg) {
		b.receive(ctx, m)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("flush subscription: %w", err)
	}
	b.logger.Info().Str("subject", b.subject).Msg("Listening for commands")

	return Route(ctx, b.queue, b.Publish, b.logger)
}

func (b *NATSBridge) receive(ctx context.Context, m *nats.Msg) {
	p, err := DecodePacket(m.Data)
	if err != nil {
		b.logger.Warn().Err(err).Str("subject", m.Subject).Msg("Rejected undecodable packet")
		if pubErr := b.Publish(Message{Packet: errorPacket(err), Reply: m.Reply}); pubErr != nil {
			b.logger.Error().Err(pubErr).Msg("Failed to publish error response")
		}
		return
	}

	if err := b.queue.Submit(ctx, Message{Packet: p, Reply: m.Reply}); err != nil {
		b.logger.Warn().Err(err).Str("api", p.API()).Msg("Dropped packet during shutdown")
	}
}

// Publish sends a response to its reply subject, or to <subject>.result.
func (b *NATSBridge) Publish(msg Message) error {
	data, err := msg.Packet.Encode()
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	subject := msg.Reply
	if subject == "" {
		subject = b.subject + ResultSuffix
	}
	return b.conn.Publish(subject, data)
}

// PublishEvent forwards a telemetry event to <subject>.events.
func (b *NATSBridge) PublishEvent(event telemetry.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.conn.Publish(b.subject+EventsSuffix, data)
}
