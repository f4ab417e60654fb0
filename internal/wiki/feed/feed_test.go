package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// serveFrames upgrades one connection and sends the given raw frames after
// reading the subscribe message.
func serveFrames(t *testing.T, frames []string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var sub struct {
			Action string `json:"action"`
			Wiki   string `json:"wiki"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if sub.Action != "subscribe" || sub.Wiki != "dewiki" {
			t.Errorf("subscribe = %+v", sub)
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// keep the connection open so reads block instead of erroring
		time.Sleep(time.Second)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestStreamNext(t *testing.T) {
	change := map[string]any{
		"type":       "log",
		"log_type":   "block",
		"log_action": "block",
		"user":       "AdminA",
		"title":      "Benutzer:Vandale",
		"bot":        false,
	}
	raw, err := json.Marshal(change)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	endpoint := serveFrames(t, []string{"not json", string(raw)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := Dial(ctx, endpoint, "dewiki")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer stream.Close()

	got, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got.Type != "log" || got.LogType != "block" || got.LogAction != "block" {
		t.Errorf("change = %+v", got)
	}
	if got.Actor != "AdminA" {
		t.Errorf("actor = %q, want %q", got.Actor, "AdminA")
	}
	if got.Bot {
		t.Error("non-bot change flagged as bot")
	}
}

func TestStreamNextContextCancel(t *testing.T) {
	endpoint := serveFrames(t, nil)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()

	stream, err := Dial(dialCtx, endpoint, "dewiki")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = stream.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Next() error = %v, want deadline exceeded", err)
	}
}
