package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
	"github.com/samirrijal/wavemap/internal/pkg/metrics"
)

// Subscriber implements ports.WaveSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
	log  *slog.Logger
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string, log *slog.Logger) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{conn: conn, js: js, log: log.With("component", "wave-subscriber")}, nil
}

// SubscribeWaveBatches delivers decoded batches to handler. Malformed messages are
// terminated; handler errors are redelivered up to three times.
func (s *Subscriber) SubscribeWaveBatches(ctx context.Context, handler func(ctx context.Context, batch *domain.WaveBatch) error) error {
	sub, err := s.js.Subscribe(WaveSubject, func(msg *nats.Msg) {
		batch, err := DecodeWaveBatch(msg.Data)
		if err != nil {
			metrics.WaveBatchesApplied.WithLabelValues("malformed").Inc()
			s.log.Warn("dropping wave batch", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, batch); err != nil {
			metrics.WaveBatchesApplied.WithLabelValues("error").Inc()
			s.log.Warn("wave batch rejected", "error", err, "polygons", len(batch.Polygons))
			if domain.IsValidation(err) {
				_ = msg.Term()
				return
			}
			_ = msg.Nak()
			return
		}
		metrics.WaveBatchesApplied.WithLabelValues("ok").Inc()
		_ = msg.Ack()
	},
		nats.Durable("wave-overlay"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", WaveSubject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

var _ ports.WaveSubscriber = (*Subscriber)(nil)
