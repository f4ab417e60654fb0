// Package feed streams recent-change notices from a wiki over websocket.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xqbot/vmbot/internal/wiki"
)

const (
	handshakeTimeout = 10 * time.Second
	readLimit        = 1 << 20
)

// Stream is a live recent-changes connection. It implements wiki.Feed.
type Stream struct {
	conn *websocket.Conn
}

// Dial connects to a recent-changes websocket endpoint and subscribes to
// the given wiki.
func Dial(ctx context.Context, endpoint, wikiID string) (*Stream, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial feed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}
	conn.SetReadLimit(readLimit)

	if wikiID != "" {
		sub := struct {
			Action string `json:"action"`
			Wiki   string `json:"wiki"`
		}{Action: "subscribe", Wiki: wikiID}
		if err := conn.WriteJSON(sub); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe %s: %w", wikiID, err)
		}
	}
	return &Stream{conn: conn}, nil
}

// changeFrame is the wire shape of one recent-change notice.
type changeFrame struct {
	Type      string `json:"type"`
	LogType   string `json:"log_type"`
	LogAction string `json:"log_action"`
	User      string `json:"user"`
	Title     string `json:"title"`
	Bot       bool   `json:"bot"`
}

// Next blocks until the next notice arrives or ctx is done. Frames that do
// not decode are skipped; a feed hiccup must not stop the loop.
func (s *Stream) Next(ctx context.Context) (wiki.RecentChange, error) {
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return wiki.RecentChange{}, ctx.Err()
			}
			return wiki.RecentChange{}, fmt.Errorf("read feed: %w", err)
		}
		var frame changeFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("feed: skipping undecodable frame: %v", err)
			continue
		}
		if frame.Type == "" {
			continue
		}
		return wiki.RecentChange{
			Type:      frame.Type,
			LogType:   frame.LogType,
			LogAction: frame.LogAction,
			Actor:     frame.User,
			Title:     frame.Title,
			Bot:       frame.Bot,
		}, nil
	}
}

// Close tears down the connection.
func (s *Stream) Close() error {
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

var _ wiki.Feed = (*Stream)(nil)
