// Package bus provides event bus implementations for decoupling the
// scoring path from downstream consumers such as the ledger worker
// and the realtime alert hub.
package bus

import (
	"fmt"

	"github.com/secureflow/riskd/internal/domain"
)

// New creates an event bus based on the configured type.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
