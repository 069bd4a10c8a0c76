package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gigflow/gigflow-backend/internal/config"
)

const channelPrefix = "notifications:"

// ChannelFor is the pub/sub channel carrying events for userID.
func ChannelFor(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

// NewRedis creates a client from cfg and checks it answers.
func NewRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	log.Info("redis connected", "addr", cfg.RedisAddr)
	return rdb, nil
}

// Publisher is the subset of *redis.Client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes events so every instance's Subscriber can reach
// sessions it holds.
type RedisNotifier struct {
	pub Publisher
}

func NewRedisNotifier(pub Publisher) *RedisNotifier {
	return &RedisNotifier{pub: pub}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	if err := n.pub.Publish(ctx, ChannelFor(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ChannelFor(userID), err)
	}
	return nil
}
