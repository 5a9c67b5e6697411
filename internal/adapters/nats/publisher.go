package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
	"github.com/samirrijal/wavemap/internal/pkg/metrics"
)

const (
	// EventSubjectPrefix prefixes every published map event subject.
	EventSubjectPrefix = "map.events."
	// EventSubjects matches all published map events.
	EventSubjects = EventSubjectPrefix + ">"
	// WaveSubject carries wave polygon batches from the feed.
	WaveSubject = "map.waves.polygons"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the map streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := EnsureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

// EnsureStreams creates or updates the MAP_EVENTS and MAP_WAVES streams.
func EnsureStreams(js nats.JetStreamManager) error {
	streams := []nats.StreamConfig{
		{
			Name:      "MAP_EVENTS",
			Subjects:  []string{EventSubjects},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "MAP_WAVES",
			Subjects:  []string{WaveSubject},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishMapEvent publishes event on map.events.{type}.
func (p *Publisher) PublishMapEvent(ctx context.Context, event *domain.MapEvent) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal map event: %w", err)
	}
	if _, err := p.js.Publish(EventSubjectPrefix+string(event.Type), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// PublishWaveBatch publishes a GeoJSON wave batch on map.waves.polygons.
func (p *Publisher) PublishWaveBatch(ctx context.Context, batch *domain.WaveBatch) error {
	data, err := EncodeWaveBatch(batch)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(WaveSubject, data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for plain subscriptions.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

var _ ports.EventPublisher = (*Publisher)(nil)
