package ws

import (
	"context"
	"encoding/json"

	"go-inventory-insights/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultQueueSize = 1024

// Publisher is how services emit realtime events. Publish never blocks.
type Publisher interface {
	Publish(storeID uuid.UUID, event string, payload any)
}

// Broadcaster feeds published events, in order, to the local hub or to the
// bus when one is configured. With a bus every instance, this one included,
// receives the event back through its forwarder.
type Broadcaster struct {
	hub   *Hub
	bus   Bus
	queue chan Message
}

func NewBroadcaster(hub *Hub, bus Bus, queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Broadcaster{hub: hub, bus: bus, queue: make(chan Message, queueSize)}
}

func (b *Broadcaster) Publish(storeID uuid.UUID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.BroadcastDropped.WithLabelValues("encode").Inc()
		log.Error().Err(err).Str("event", event).Msg("encode realtime event")
		return
	}
	msg := Message{Room: StoreRoom(storeID), Event: event, Data: data}
	select {
	case b.queue <- msg:
	default:
		metrics.BroadcastDropped.WithLabelValues("publish_queue_full").Inc()
		log.Warn().Str("event", event).Str("store_id", storeID.String()).Msg("realtime queue full, dropping event")
	}
}

// Run drains the queue until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.bus != nil {
		if err := b.bus.StartForwarder(ctx, b.hub.Deliver); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.queue:
			if b.bus == nil {
				b.hub.Deliver(msg)
				continue
			}
			if err := b.bus.Publish(ctx, msg); err != nil {
				log.Warn().Err(err).Str("event", msg.Event).Msg("bus publish failed, delivering locally")
				b.hub.Deliver(msg)
			}
		}
	}
}

// Nop discards every event. Used by the CLI, which has no connected clients.
type Nop struct{}

func (Nop) Publish(uuid.UUID, string, any) {}
