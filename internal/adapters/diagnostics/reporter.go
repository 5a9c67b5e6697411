// Package diagnostics implements the diagnostics bridge on top of structured logging.
package diagnostics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samirrijal/wavemap/internal/pkg/metrics"
)

// Reporter writes diagnostics as structured log records. Custom keys and the user id are
// attached to every record. While collection is disabled nothing is emitted.
// Safe for concurrent use.
type Reporter struct {
	log *slog.Logger

	mu      sync.RWMutex
	enabled bool
	keys    map[string]string
	userID  string
}

// NewReporter creates a Reporter logging through log.
func NewReporter(log *slog.Logger, enabled bool) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		log:     log.With("component", "diagnostics"),
		enabled: enabled,
		keys:    make(map[string]string),
	}
}

func (r *Reporter) RecordException(message, tag, stackTrace string) {
	metrics.DiagnosticsExceptions.WithLabelValues(tag).Inc()
	attrs, ok := r.attrs()
	if !ok {
		return
	}
	attrs = append(attrs, slog.String("tag", tag))
	if stackTrace != "" {
		attrs = append(attrs, slog.String("stack", strings.TrimSpace(stackTrace)))
	}
	r.log.LogAttrs(context.Background(), slog.LevelError, message, attrs...)
}

func (r *Reporter) Log(message, tag string) {
	attrs, ok := r.attrs()
	if !ok {
		return
	}
	attrs = append(attrs, slog.String("tag", tag))
	r.log.LogAttrs(context.Background(), slog.LevelInfo, message, attrs...)
}

func (r *Reporter) SetCustomKey(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key] = value
}

func (r *Reporter) SetUserID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userID = id
}

func (r *Reporter) IsCollectionEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

func (r *Reporter) SetCollectionEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

func (r *Reporter) attrs() ([]slog.Attr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.enabled {
		return nil, false
	}

	names := make([]string, 0, len(r.keys))
	for k := range r.keys {
		names = append(names, k)
	}
	sort.Strings(names)

	attrs := make([]slog.Attr, 0, len(names)+3)
	if r.userID != "" {
		attrs = append(attrs, slog.String("user_id", r.userID))
	}
	if len(names) > 0 {
		keys := make([]any, 0, len(names))
		for _, k := range names {
			keys = append(keys, slog.String(k, r.keys[k]))
		}
		attrs = append(attrs, slog.Group("keys", keys...))
	}
	return attrs, true
}
