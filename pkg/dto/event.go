package dto

import "github.com/google/uuid"

type EventResponse struct {
	ID        uuid.UUID          `json:"id"`
	SurfaceID int                `json:"surface_id"`
	Timestamp string             `json:"timestamp"`
	Status    string             `json:"status"`
	Transform *TransformResponse `json:"transform,omitempty"`
	Matches   int                `json:"matches"`
	FrameURL  string             `json:"frame_url,omitempty"`
	CreatedAt string             `json:"created_at"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

// WSEvent is a WebSocket message for real-time tracking updates.
type WSEvent struct {
	Type      string             `json:"type"` // surface_update, surface_created, surface_released
	SurfaceID int                `json:"surface_id"`
	Status    string             `json:"status,omitempty"`
	Matches   int                `json:"matches,omitempty"`
	Transform *TransformResponse `json:"transform,omitempty"`
}
