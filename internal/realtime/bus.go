package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultBusChannel = "realtime_events"

// BusMessage carries an already encoded frame to the other instances.
// An empty Room means every connection.
type BusMessage struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room,omitempty"`
	Except string          `json:"except,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// Bus relays room emissions between service instances.
type Bus interface {
	Publish(ctx context.Context, msg BusMessage) error
}

type RedisBus struct {
	client  *redis.Client
	channel string
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultBusChannel
	}
	return &RedisBus{client: client, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, msg BusMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal bus message: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Run delivers every message published on the bus to handle until ctx is done.
func (b *RedisBus) Run(ctx context.Context, handle func(BusMessage)) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	log.Info().Str("channel", b.channel).Msg("[BUS] subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var bm BusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				log.Warn().Err(err).Msg("[BUS] dropping malformed message")
				continue
			}
			handle(bm)
		case <-ctx.Done():
			log.Info().Msg("[BUS] stopping")
			return
		}
	}
}
