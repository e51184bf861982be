package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/secureflow/riskd/internal/domain"
)

// ChannelBus implements EventBus using Go channels.
// Used as the default in-process bus for single-instance deployments.
type ChannelBus struct {
	mu            sync.RWMutex
	subscriptions map[string][]*channelSubscription
	bufferSize    int
	closed        bool
	ctx           context.Context
	cancel        context.CancelFunc
}

type channelSubscription struct {
	id      string
	topic   string
	handler domain.MessageHandler
	msgCh   chan *domain.Message
	bus     *ChannelBus
	done    chan struct{}
}

// NewChannelBus creates a new channel-based event bus.
func NewChannelBus(cfg domain.EventBusConfig) *ChannelBus {
	bufferSize := cfg.ChannelBufferSize
	if bufferSize <= 0 {
		bufferSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ChannelBus{
		subscriptions: make(map[string][]*channelSubscription),
		bufferSize:    bufferSize,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Publish sends a message to all subscribers of a topic.
// Delivery is non-blocking: if a subscriber's buffer is full the
// message is dropped for that subscriber and a warning is logged.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	for _, sub := range b.subscriptions[topic] {
		select {
		case sub.msgCh <- msg:
		default:
			slog.Warn("subscriber buffer full, dropping message",
				"topic", topic,
				"subscription_id", sub.id,
				"message_id", msg.ID,
			)
		}
	}

	return nil
}

// Subscribe registers a handler for a topic.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	sub := &channelSubscription{
		id:      uuid.New().String(),
		topic:   topic,
		handler: handler,
		msgCh:   make(chan *domain.Message, b.bufferSize),
		bus:     b,
		done:    make(chan struct{}),
	}

	b.subscriptions[topic] = append(b.subscriptions[topic], sub)

	go sub.handleMessages(b.ctx)

	return sub, nil
}

// Ping always succeeds for the in-process bus unless it is closed.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}
	return nil
}

// Close shuts down the bus and all subscriptions.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.cancel()

	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			close(sub.msgCh)
		}
	}
	b.subscriptions = make(map[string][]*channelSubscription)

	return nil
}

// handleMessages processes messages for a subscription.
func (s *channelSubscription) handleMessages(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.msgCh:
			if !ok {
				return
			}
			if err := s.handler(ctx, msg); err != nil {
				slog.Error("handler error",
					"topic", s.topic,
					"subscription_id", s.id,
					"message_id", msg.ID,
					"error", err,
				)
			}
		}
	}
}

// Unsubscribe removes the subscription from the bus.
func (s *channelSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subscriptions[s.topic]
	for i, sub := range subs {
		if sub.id == s.id {
			s.bus.subscriptions[s.topic] = append(subs[:i], subs[i+1:]...)
			close(s.msgCh)
			return nil
		}
	}
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
