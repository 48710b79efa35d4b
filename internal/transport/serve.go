package transport

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/jupitervolta/ds1054z/internal/audit"
	"github.com/jupitervolta/ds1054z/internal/command"
)

// Executor runs one call and returns its result or an error envelope.
type Executor interface {
	Execute(ctx context.Context, call command.Call) interface{}
}

// Compile-time assertion that the dispatcher is an Executor
var _ Executor = (*command.Dispatcher)(nil)

// PublishFunc delivers a response that has no in-process waiter.
type PublishFunc func(msg Message) error

// Serve is the single consumer of the inbound queue. Each packet is
// dispatched to completion before the next is received.
func Serve(ctx context.Context, q *Queue, exec Executor, logger zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q.In:
			resp := handle(ctx, msg, exec, logger)
			select {
			case q.Out <- Message{Packet: resp, Reply: msg.Reply, Done: msg.Done, User: msg.User}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func handle(ctx context.Context, msg Message, exec Executor, logger zerolog.Logger) Packet {
	p := msg.Packet

	if _, ok := p[FieldArgs]; !ok {
		logger.Debug().Str("api", p.API()).Msg("No args found")
	}
	if _, ok := p[FieldKwargs]; !ok {
		logger.Debug().Str("api", p.API()).Msg("No kwargs found")
	}

	var result interface{}
	call, err := p.Call()
	if err != nil {
		result = command.Envelope(err)
	} else {
		ctx = audit.WithCorrelationID(ctx, p.CorrelationID())
		if msg.User != "" {
			ctx = audit.WithUser(ctx, msg.User)
		}
		result = exec.Execute(ctx, call)
	}

	resp, err := p.WithResult(result)
	if err != nil {
		logger.Error().Err(err).Str("api", call.API).Msg("Failed to encode result")
		resp, _ = p.WithResult(command.Envelope(err))
	}
	return resp
}

// Route drains the outbound queue, handing responses to in-process waiters
// or to publish.
func Route(ctx context.Context, q *Queue, publish PublishFunc, logger zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q.Out:
			if msg.Done != nil {
				msg.Done <- msg.Packet
				continue
			}
			if publish == nil {
				logger.Warn().Str("id", msg.Packet.ID()).Msg("Dropping response with no destination")
				continue
			}
			if err := publish(msg); err != nil {
				logger.Error().Err(err).Str("id", msg.Packet.ID()).Msg("Failed to publish response")
			}
		}
	}
}

// errorPacket builds the response for a payload that could not be decoded.
func errorPacket(err error) Packet {
	raw, _ := json.Marshal(command.Envelope(err))
	return Packet{FieldResult: raw}
}
