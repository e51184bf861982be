package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (default) or NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the scoring pipeline.
const (
	TopicTransactionScored = "riskd.transaction.scored"
	TopicFraudAlert        = "riskd.fraud.alert"
)

// ScoredEvent is the payload published on TopicTransactionScored.
type ScoredEvent struct {
	VerdictID string  `json:"verdictId"`
	TxID      string  `json:"txId"`
	Amount    float64 `json:"amount"`
	Recipient string  `json:"recipient"`
	Score     float64 `json:"score"`
	Level     string  `json:"level"`
	Fraud     bool    `json:"fraud"`
	Submit    bool    `json:"submit"`
}
