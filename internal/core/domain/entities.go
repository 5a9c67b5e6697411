package domain

import (
	"time"
)

// AnimationResult is the terminal state of a camera animation.
type AnimationResult int

const (
	AnimationPending AnimationResult = iota
	AnimationFinished
	AnimationCancelled
)

func (r AnimationResult) String() string {
	switch r {
	case AnimationFinished:
		return "finished"
	case AnimationCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// EventArea is the geographic area of a wave event. The map is constrained to it while the event is shown.
type EventArea struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	StyleURL  string      `json:"style_url,omitempty"`
	Bounds    BoundingBox `json:"bounds"`
	MinZoom   float64     `json:"min_zoom"`
	MaxZoom   float64     `json:"max_zoom"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate checks the area's bounds and zoom range.
func (a EventArea) Validate() error {
	if a.ID == "" {
		return invalid("id", "is required")
	}
	if err := a.Bounds.Validate(); err != nil {
		return err
	}
	return CameraConstraints{MinZoom: a.MinZoom, MaxZoom: a.MaxZoom}.Validate()
}

// MapEventType names the kinds of events fanned out to subscribers.
type MapEventType string

const (
	MapEventClick     MapEventType = "click"
	MapEventIdle      MapEventType = "idle"
	MapEventAnimation MapEventType = "animation"
	MapEventStyle     MapEventType = "style"
)

// MapEvent is a map interaction or camera event published to subscribers.
type MapEvent struct {
	Type        MapEventType `json:"type"`
	Latitude    float64      `json:"latitude,omitempty"`
	Longitude   float64      `json:"longitude,omitempty"`
	Zoom        float64      `json:"zoom,omitempty"`
	AnimationID string       `json:"animation_id,omitempty"`
	Result      string       `json:"result,omitempty"`
	StyleURL    string       `json:"style_url,omitempty"`
	Error       string       `json:"error,omitempty"`
	Time        time.Time    `json:"time"`
}

// WaveBatch is a set of wave polygons to apply in one call.
type WaveBatch struct {
	Polygons      []WavePolygon `json:"polygons"`
	ClearExisting bool          `json:"clear_existing"`
}
