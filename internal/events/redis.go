package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deployra/launcher/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to the configured Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisPublisher publishes events on ChannelWebSocket so every API instance
// can forward them to its own websocket clients.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, roomID, event string, payload interface{}) error {
	message, err := Encode(roomID, event, payload)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, ChannelWebSocket, message).Err()
}

// Subscribe forwards every message on ChannelWebSocket to b until ctx is done.
func Subscribe(ctx context.Context, client *redis.Client, b Broadcaster, log *zap.Logger) {
	pubsub := client.Subscribe(ctx, ChannelWebSocket)
	defer pubsub.Close()

	log.Info("subscribed to redis channel", zap.String("channel", ChannelWebSocket))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			Forward([]byte(msg.Payload), b, log)
		}
	}
}

// Forward decodes one published message and broadcasts it locally.
func Forward(data []byte, b Broadcaster, log *zap.Logger) {
	msg, err := Decode(data)
	if err != nil {
		log.Warn("dropping websocket message", zap.Error(err))
		return
	}
	b.BroadcastToRoom(msg.RoomID, msg.Data.Event, json.RawMessage(msg.Data.Payload))
	log.Debug("broadcast event",
		zap.String("event", msg.Data.Event),
		zap.String("room", msg.RoomID))
}
