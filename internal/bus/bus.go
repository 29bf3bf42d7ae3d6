// Package bus provides event bus implementations for Shrike.
package bus

import (
	"fmt"

	"github.com/opensource-finance/shrike/internal/domain"
)

// New creates an event bus from configuration: Go channels for the
// embedded deployment, NATS for multi-node.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
