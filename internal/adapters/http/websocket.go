package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/pkg/metrics"
)

const eventSubjectPrefix = "map.events."

// wsMessage is sent from client to subscribe, unsubscribe or tap.
type wsMessage struct {
	Action string  `json:"action"` // "subscribe" | "unsubscribe" | "tap"
	Type   string  `json:"type"`   // event type filter: click, idle, animation, style ("" = all)
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func eventSubject(eventType string) (string, bool) {
	switch domain.MapEventType(eventType) {
	case "":
		return eventSubjectPrefix + ">", true
	case domain.MapEventClick, domain.MapEventIdle, domain.MapEventAnimation, domain.MapEventStyle:
		return eventSubjectPrefix + eventType, true
	default:
		return "", false
	}
}

// WebSocketHandler relays published map events to connected clients.
// Clients start subscribed to every event type. To narrow, send
// {"action":"unsubscribe"} then {"action":"subscribe","type":"click"}.
// {"action":"tap","x":10,"y":20} injects a tap when tapper is set.
func WebSocketHandler(nc *nats.Conn, tapper Tapper) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		log := slog.Default().With("component", "ws", "remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}

		all, _ := eventSubject("")
		sub, err := nc.Subscribe(all, relay)
		if err != nil {
			log.Error("ws default subscribe failed", "error", err)
			return
		}
		subs[all] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			if m.Action == "tap" {
				switch {
				case tapper == nil:
					_ = writeJSON(map[string]string{"error": "tap not available"})
				case !tapper.Tap(m.X, m.Y):
					_ = writeJSON(map[string]string{"error": "map stopped"})
				default:
					_ = writeJSON(map[string]string{"status": "tap posted"})
				}
				continue
			}

			subject, ok := eventSubject(m.Type)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown event type: " + m.Type})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}
