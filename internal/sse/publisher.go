package sse

import (
	"context"
	"time"

	"github.com/schoolhub/backend/internal/platform/logger"
)

// EventBus is the publishing half of the redis relay. Nil means
// single-instance mode where events go straight to the local hub.
type EventBus interface {
	Publish(ctx context.Context, msg Message) error
}

// Publisher turns domain events into SSE messages. It satisfies the
// content manager's Publisher contract.
type Publisher struct {
	log *logger.Logger
	hub *Hub
	bus EventBus
}

func NewPublisher(log *logger.Logger, hub *Hub, bus EventBus) *Publisher {
	return &Publisher{
		log: log.With("component", "SSEPublisher"),
		hub: hub,
		bus: bus,
	}
}

func (p *Publisher) Publish(event string, data map[string]interface{}) {
	msg := Message{Event: event, Data: data}
	if p.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.bus.Publish(ctx, msg); err != nil {
			p.log.Warn("failed to publish event to bus, delivering locally", "event", event, "error", err)
			p.hub.Broadcast(msg)
		}
		return
	}
	p.hub.Broadcast(msg)
}
