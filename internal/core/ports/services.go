package ports

import (
	"context"

	"github.com/samirrijal/wavemap/internal/core/domain"
)

// CameraCallback observes the outcome of one camera animation. Exactly one method fires.
type CameraCallback interface {
	OnFinish()
	OnCancel()
}

// MainThread serialises work onto the single owning thread.
type MainThread interface {
	// Post enqueues fn; it returns false once the thread has stopped.
	Post(fn func()) bool
	// Do runs fn on the owning thread and waits for its result.
	Do(ctx context.Context, fn func() error) error
}

// Diagnostics is the crash/diagnostics reporting bridge. All calls are fire-and-forget.
type Diagnostics interface {
	RecordException(message, tag, stackTrace string)
	Log(message, tag string)
	SetCustomKey(key, value string)
	SetUserID(id string)
	IsCollectionEnabled() bool
	SetCollectionEnabled(enabled bool)
}

// EventPublisher publishes map events to a message broker.
type EventPublisher interface {
	PublishMapEvent(ctx context.Context, event *domain.MapEvent) error
}

// WaveSubscriber delivers wave polygon batches from a message broker.
type WaveSubscriber interface {
	SubscribeWaveBatches(ctx context.Context, handler func(ctx context.Context, batch *domain.WaveBatch) error) error
}

// CacheService provides key/value storage with expiry.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
