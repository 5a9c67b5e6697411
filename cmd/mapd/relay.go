package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
	"github.com/samirrijal/wavemap/internal/core/usecases"
)

// relay forwards map listener events to the broker and keeps the camera snapshot current.
// Listener callbacks run on the owning loop, so broker and cache I/O happens off it.
// Snapshot saves go through one goroutine that only ever holds the newest pose.
type relay struct {
	events    ports.EventPublisher
	snapshots *usecases.SnapshotService
	log       *slog.Logger
	timeout   time.Duration

	pending chan domain.CameraState
	done    chan struct{}
}

func newRelay(events ports.EventPublisher, snapshots *usecases.SnapshotService, log *slog.Logger, timeout time.Duration) *relay {
	return &relay{
		events:    events,
		snapshots: snapshots,
		log:       log,
		timeout:   timeout,
		pending:   make(chan domain.CameraState, 1),
		done:      make(chan struct{}),
	}
}

// install registers the click and idle listeners on ctrl. Call on the owning loop.
func (r *relay) install(ctrl *usecases.MapControl) {
	ctrl.SetOnMapClickListener(func(lat, lng float64) {
		r.publish(&domain.MapEvent{Type: domain.MapEventClick, Latitude: lat, Longitude: lng})
	})
	ctrl.SetOnCameraIdleListener(func() {
		pose := ctrl.Camera()
		r.publish(&domain.MapEvent{
			Type:      domain.MapEventIdle,
			Latitude:  pose.Center.Lat,
			Longitude: pose.Center.Lng,
			Zoom:      pose.Zoom,
		})
		r.queueSave(pose)
	})
}

// run saves queued poses in order until ctx ends. A pose still pending at that point is dropped.
func (r *relay) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case pose := <-r.pending:
			r.save(pose)
		}
	}
}

// queueSave replaces any pose not yet picked up by run. It never blocks; there is a single
// producer, the owning loop.
func (r *relay) queueSave(pose domain.CameraState) {
	for {
		select {
		case r.pending <- pose:
			return
		default:
		}
		select {
		case <-r.pending:
		default:
		}
	}
}

func (r *relay) publish(event *domain.MapEvent) {
	if r.events == nil {
		return
	}
	event.Time = time.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.events.PublishMapEvent(ctx, event); err != nil {
			r.log.Warn("publish map event failed", "type", event.Type, "error", err)
		}
	}()
}

func (r *relay) save(pose domain.CameraState) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.snapshots.Save(ctx, pose); err != nil {
		r.log.Warn("camera snapshot not saved", "error", err)
	}
}

// closeMap closes ctrl on the owning loop and returns the pose it settled on. An animation in
// flight is cancelled first, so the result is where the camera actually stopped.
func closeMap(ctx context.Context, thread ports.MainThread, ctrl *usecases.MapControl) (domain.CameraState, error) {
	var final domain.CameraState
	err := thread.Do(ctx, func() error {
		ctrl.Close()
		final = ctrl.Camera()
		return nil
	})
	return final, err
}
