package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster espalha as liquidações para todas as instâncias do
// bet-maker; cada uma repassa aos seus clientes WebSocket.
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) PublishUpdate(ctx context.Context, eventID string, payload any) error {
	msg, err := json.Marshal(WSUpdate{EventID: eventID, Payload: payload})
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, msg).Err()
}

// Payload padrão para o WS do bet-maker
type WSUpdate struct {
	EventID string `json:"eventId"`
	Payload any    `json:"payload"`
}
