package bus

import (
	"context"
	"errors"
)

// ErrBusClosed is returned by Publish* calls made after Close.
var ErrBusClosed = errors.New("bus: closed")

const defaultQueueSize = 256

// MessageBus is the channel-agnostic transport between channel adapters and
// the agent loop: channel adapters publish InboundMessage and consume
// OutboundMessage, the agent loop does the reverse. Both directions are
// bounded FIFO queues backed by buffered Go channels; once a queue is at
// capacity, Publish blocks until the consumer drains it (backpressure),
// rather than silently dropping messages.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	closed   chan struct{}
}

// NewMessageBus creates a bus with the given queue capacity; a non-positive
// size falls back to a sane default.
func NewMessageBus(queueSize int) *MessageBus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, queueSize),
		outbound: make(chan OutboundMessage, queueSize),
		closed:   make(chan struct{}),
	}
}

// PublishInbound enqueues a message from a channel adapter. Once the queue
// is at its high-water mark, PublishInbound blocks until the agent loop
// drains it or the bus is closed — backpressure propagates to the calling
// channel adapter rather than silently losing messages.
func (b *MessageBus) PublishInbound(msg InboundMessage) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}
	select {
	case b.inbound <- msg:
		return nil
	case <-b.closed:
		return ErrBusClosed
	}
}

// ConsumeInbound blocks until an inbound message is available, the bus is
// closed, or ctx is done.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-b.closed:
		return InboundMessage{}, ErrBusClosed
	case <-ctx.Done():
		return InboundMessage{}, ctx.Err()
	}
}

// PublishOutbound enqueues a reply for delivery by a channel adapter, with
// the same blocking backpressure policy as PublishInbound.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}
	select {
	case b.outbound <- msg:
		return nil
	case <-b.closed:
		return ErrBusClosed
	}
}

// ConsumeOutbound blocks until an outbound message is available, the bus is
// closed, or ctx is done.
func (b *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, error) {
	select {
	case msg := <-b.outbound:
		return msg, nil
	case <-b.closed:
		return OutboundMessage{}, ErrBusClosed
	case <-ctx.Done():
		return OutboundMessage{}, ctx.Err()
	}
}

// Close stops the bus; any blocked or future Consume/Publish calls return
// ErrBusClosed (Consume) or ErrBusClosed (Publish).
func (b *MessageBus) Close() {
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
}
