package realtime

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Subscriber forwards events published on notifications:* to the local Hub.
type Subscriber struct {
	rdb *redis.Client
	hub *Hub
	log *slog.Logger
}

func NewSubscriber(rdb *redis.Client, hub *Hub, log *slog.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, hub: hub, log: log}
}

// Run blocks until ctx is cancelled or the subscription is closed.
func (s *Subscriber) Run(ctx context.Context) error {
	ps := s.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	s.log.Info("redis subscriber started", "pattern", channelPrefix+"*")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.dispatch(msg.Channel, msg.Payload)
		}
	}
}

func (s *Subscriber) dispatch(channel, payload string) int {
	raw, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok {
		return 0
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		s.log.Warn("ignoring message on malformed channel", "channel", channel)
		return 0
	}
	return s.hub.SendToUser(userID, []byte(payload))
}
