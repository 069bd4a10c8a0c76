package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type publishCall struct {
	channel string
	message []byte
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	b, _ := message.([]byte)
	f.calls = append(f.calls, publishCall{channel: channel, message: b})
	return redis.NewIntResult(1, f.err)
}

func TestRedisNotifier_PublishesOnUserChannel(t *testing.T) {
	pub := &fakePublisher{}
	n := NewRedisNotifier(pub)
	uid := uuid.New()

	if err := n.Notify(context.Background(), uid, Event{Type: EventHired, Payload: map[string]int{"n": 1}}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(pub.calls) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.calls))
	}
	if want := "notifications:" + uid.String(); pub.calls[0].channel != want {
		t.Errorf("channel = %q, want %q", pub.calls[0].channel, want)
	}
	var ev Event
	if err := json.Unmarshal(pub.calls[0].message, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventHired {
		t.Errorf("Type = %q", ev.Type)
	}
}

func TestRedisNotifier_PropagatesPublishError(t *testing.T) {
	boom := errors.New("connection refused")
	n := NewRedisNotifier(&fakePublisher{err: boom})

	err := n.Notify(context.Background(), uuid.New(), Event{Type: EventHired})
	if !errors.Is(err, boom) {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestSubscriber_DispatchForwardsToHub(t *testing.T) {
	hub := NewHub(quietLogger())
	uid := uuid.New()
	c := NewClient(uid, nil)
	hub.Register(c)

	s := NewSubscriber(nil, hub, quietLogger())

	if n := s.dispatch(ChannelFor(uid), `{"type":"hired"}`); n != 1 {
		t.Fatalf("dispatch delivered to %d clients, want 1", n)
	}
	if got := string(<-c.Send); got != `{"type":"hired"}` {
		t.Errorf("payload = %s", got)
	}

	if n := s.dispatch("notifications:not-a-uuid", "{}"); n != 0 {
		t.Error("malformed channel should be ignored")
	}
	if n := s.dispatch("other:"+uid.String(), "{}"); n != 0 {
		t.Error("foreign channel should be ignored")
	}
}
