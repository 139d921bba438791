package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

// RedisPublisher sends each archived poll to a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

var _ ports.ResultPublisher = (*RedisPublisher)(nil)

func NewRedisPublisher(address, password, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        address,
		Password:    password,
		PoolTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisPublisher{client: client, channel: channel}, nil
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, poll *domain.ArchivedPoll) error {
	data, err := encode(poll)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis channel %s: %w", p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
