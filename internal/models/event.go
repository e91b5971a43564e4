package models

import (
	"time"

	"github.com/google/uuid"
)

// TrackEvent records the outcome of one surface update. Published to
// NATS after every processed frame and persisted by the archiver.
type TrackEvent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	SurfaceID int       `json:"surface_id" db:"surface_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Status    string    `json:"status" db:"status"`
	M11       float64   `json:"m11" db:"m11"`
	M12       float64   `json:"m12" db:"m12"`
	M21       float64   `json:"m21" db:"m21"`
	M22       float64   `json:"m22" db:"m22"`
	TX        float64   `json:"tx" db:"tx"`
	TY        float64   `json:"ty" db:"ty"`
	Matches   int       `json:"matches" db:"matches"`
	// Descriptor is the centroid of the matched model descriptors,
	// stored as a pgvector column for similarity search. It rides the
	// NATS payload so the archiver can persist it.
	Descriptor []float32 `json:"descriptor,omitempty" db:"descriptor"`
	FrameKey   string    `json:"frame_key,omitempty" db:"frame_key"` // MinIO key of the full frame
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ControlCommand is published on the control subject to drive the
// tracker remotely.
type ControlCommand struct {
	Action string  `json:"action"` // create, release, pause, resume
	Handle int     `json:"handle,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	A      float64 `json:"a,omitempty"`
	B      float64 `json:"b,omitempty"`
	Angle  float64 `json:"angle,omitempty"`
}
