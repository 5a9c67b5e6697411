package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/wavemap/internal/core/domain"
	"github.com/samirrijal/wavemap/internal/core/ports"
)

const snapshotKey = "wavemap:camera:snapshot"

// SnapshotService persists the committed camera pose so a restarted daemon resumes where it was.
type SnapshotService struct {
	cache ports.CacheService
	ttl   int
}

// NewSnapshotService creates a SnapshotService. ttlSeconds <= 0 defaults to one day.
func NewSnapshotService(cache ports.CacheService, ttlSeconds int) *SnapshotService {
	if ttlSeconds <= 0 {
		ttlSeconds = 86400
	}
	return &SnapshotService{cache: cache, ttl: ttlSeconds}
}

// Save stores pose.
func (s *SnapshotService) Save(ctx context.Context, pose domain.CameraState) error {
	if s.cache == nil {
		return nil
	}
	data, err := json.Marshal(pose)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, snapshotKey, data, s.ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the last saved pose. A missing, unreadable or invalid snapshot reports false.
func (s *SnapshotService) Load(ctx context.Context) (domain.CameraState, bool) {
	if s.cache == nil {
		return domain.CameraState{}, false
	}
	data, err := s.cache.Get(ctx, snapshotKey)
	if err != nil || len(data) == 0 {
		return domain.CameraState{}, false
	}
	var pose domain.CameraState
	if err := json.Unmarshal(data, &pose); err != nil {
		return domain.CameraState{}, false
	}
	if pose.Center.Validate() != nil || domain.ZoomTo(pose.Zoom).Validate() != nil {
		return domain.CameraState{}, false
	}
	return pose, true
}

// Clear drops the stored pose.
func (s *SnapshotService) Clear(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, snapshotKey)
}
