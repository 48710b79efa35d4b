package transport

import (
	"context"
	"fmt"
)

// DefaultQueueSize is used when no size is configured.
const DefaultQueueSize = 16

// Message is a packet in flight with its routing information.
type Message struct {
	Packet Packet

	// Reply is the bus subject for the response; empty for local callers.
	Reply string

	// Done receives the response for in-process callers. Buffered, size 1.
	Done chan Packet

	// User is the authenticated caller, recorded in the audit trail.
	User string
}

// Queue is the inbound/outbound channel pair.
type Queue struct {
	In  chan Message
	Out chan Message
}

// NewQueue creates a queue pair with the given buffer size.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		In:  make(chan Message, size),
		Out: make(chan Message, size),
	}
}

// Submit enqueues msg, blocking while the inbound queue is full.
func (q *Queue) Submit(ctx context.Context, msg Message) error {
	select {
	case q.In <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Request submits p and waits for its response.
func (q *Queue) Request(ctx context.Context, p Packet, user string) (Packet, error) {
	done := make(chan Packet, 1)
	if err := q.Submit(ctx, Message{Packet: p, Done: done, User: user}); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
