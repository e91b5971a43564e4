package models

import "time"

// Surface is the persisted record of a tracked surface registration.
type Surface struct {
	ID         int        `json:"id" db:"id"`
	X          float64    `json:"x" db:"x"`
	Y          float64    `json:"y" db:"y"`
	A          float64    `json:"a" db:"a"`
	B          float64    `json:"b" db:"b"`
	Angle      float64    `json:"angle" db:"angle"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty" db:"released_at"`
}
