package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_NotifyReachesEveryClientOfUser(t *testing.T) {
	hub := NewHub(quietLogger())
	alice, bob := uuid.New(), uuid.New()

	a1 := NewClient(alice, nil)
	a2 := NewClient(alice, nil)
	b1 := NewClient(bob, nil)
	hub.Register(a1)
	hub.Register(a2)
	hub.Register(b1)

	if err := hub.Notify(context.Background(), alice, Event{Type: EventHired, Payload: map[string]string{"message": "hi"}}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	for _, c := range []*Client{a1, a2} {
		select {
		case msg := <-c.Send:
			var ev struct {
				Type    string            `json:"type"`
				Payload map[string]string `json:"payload"`
			}
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatal(err)
			}
			if ev.Type != EventHired || ev.Payload["message"] != "hi" {
				t.Errorf("unexpected event %+v", ev)
			}
		default:
			t.Errorf("client %s got nothing", c.ID)
		}
	}
	select {
	case <-b1.Send:
		t.Error("other user's client must not receive the event")
	default:
	}
}

func TestHub_NotifyWithoutClientsIsNotAnError(t *testing.T) {
	hub := NewHub(quietLogger())
	if err := hub.Notify(context.Background(), uuid.New(), Event{Type: EventHired}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(quietLogger())
	uid := uuid.New()
	c := &Client{ID: "slow", UserID: uid, Send: make(chan []byte, 1)}
	hub.Register(c)

	if n := hub.SendToUser(uid, []byte("1")); n != 1 {
		t.Fatalf("first send delivered to %d clients", n)
	}
	if n := hub.SendToUser(uid, []byte("2")); n != 0 {
		t.Fatalf("second send should be dropped, delivered to %d", n)
	}
}

func TestHub_UnregisterClosesSendOnce(t *testing.T) {
	hub := NewHub(quietLogger())
	uid := uuid.New()
	c := NewClient(uid, nil)
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)

	if _, ok := <-c.Send; ok {
		t.Error("Send should be closed")
	}
	if hub.ClientCount(uid) != 0 {
		t.Error("client still registered")
	}
	if n := hub.SendToUser(uid, []byte("x")); n != 0 {
		t.Error("send after unregister must not deliver")
	}
}

func TestHub_ConcurrentRegisterAndSend(t *testing.T) {
	hub := NewHub(quietLogger())
	uid := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient(uid, nil)
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			hub.SendToUser(uid, []byte("ping"))
		}()
	}
	wg.Wait()

	if hub.ClientCount(uid) != 0 {
		t.Errorf("ClientCount = %d, want 0", hub.ClientCount(uid))
	}
}
