package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis channel every instance listens on.
const EventsChannel = "handyconnect:events"

// Envelope is a frame addressed to a set of users, as it travels between instances.
type Envelope struct {
	UserIDs []uint `json:"userIds"`
	Frame   Frame  `json:"frame"`
}

// Broker fans envelopes out to every hub instance, including the publisher's own.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks, handing each envelope to deliver, until ctx is done.
	// ready is called once the subscription is live.
	Subscribe(ctx context.Context, ready func(), deliver func(Envelope)) error
	Close() error
}

// RedisBroker relays envelopes over Redis pub/sub so that users connected
// to another instance still receive their frames.
type RedisBroker struct {
	client  *redis.Client
	channel string
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client, channel: EventsChannel}
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, ready func(), deliver func(Envelope)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("📡 Subscribed to Redis channel %s", b.channel)
	ready()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				log.Printf("⚠️ Dropping malformed event: %v", err)
				continue
			}
			deliver(env)
		}
	}
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func decodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(payload, &env)
	return env, err
}
