package event_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/habitbank/habitbank-api/internal/domain/event"
)

func TestHubDeliversEventsToUserConnections(t *testing.T) {
	hub := event.NewHub(nil)
	go hub.Run()

	userID := uuid.New()
	otherID := uuid.New()

	conn := &event.Connection{UserID: userID, Send: make(chan []byte, 4)}
	other := &event.Connection{UserID: otherID, Send: make(chan []byte, 4)}
	hub.Register(conn)
	hub.Register(other)
	defer func() {
		hub.Unregister(conn)
		hub.Unregister(other)
	}()

	hub.Publish(context.Background(), userID, "balance_updated", map[string]int{"balance": 75})

	select {
	case data := <-conn.Send:
		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode envelope failed: %v", err)
		}
		if env.Type != "balance_updated" || env.UserID != userID {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	// Events are scoped to their user.
	select {
	case data := <-other.Send:
		t.Fatalf("unexpected delivery to other user: %s", data)
	default:
	}
}

func TestHubDropsEventWhenClientBufferFull(t *testing.T) {
	hub := event.NewHub(nil)
	go hub.Run()

	userID := uuid.New()
	conn := &event.Connection{UserID: userID, Send: make(chan []byte, 1)}
	hub.Register(conn)
	// A second register round-trips the hub loop, guaranteeing conn is tracked.
	flush := &event.Connection{UserID: uuid.New(), Send: make(chan []byte, 1)}
	hub.Register(flush)
	defer func() {
		hub.Unregister(conn)
		hub.Unregister(flush)
	}()

	ctx := context.Background()
	hub.Publish(ctx, userID, "streak_updated", nil)
	// Buffer full: must not block the publisher.
	done := make(chan struct{})
	go func() {
		hub.Publish(ctx, userID, "streak_updated", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full client buffer")
	}
}
