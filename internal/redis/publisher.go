package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fixitnow/internal/domain"
)

// Publisher delivers real-time events over Redis Pub/Sub.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Emit publishes event on channel. Delivery is at-most-once.
func (p *Publisher) Emit(ctx context.Context, channel string, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.client.Publish(ctx, channel, data).Err()
}
