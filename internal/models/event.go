package models

import (
	"time"

	"github.com/google/uuid"
)

type FaceEventType string

const (
	FaceEventEnrolled           FaceEventType = "enrolled"
	FaceEventChecked            FaceEventType = "checked"
	FaceEventCleared            FaceEventType = "cleared"
	FaceEventEnrollmentOrphaned FaceEventType = "enrollment_orphaned"
)

// FaceEvent is published to NATS after a face operation and persisted by
// the audit worker.
type FaceEvent struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	Type           FaceEventType `json:"type" db:"type"`
	ExternalID     string        `json:"external_id,omitempty" db:"external_id"`
	FaceID         *int64        `json:"face_id,omitempty" db:"face_id"`
	Classification string        `json:"classification,omitempty" db:"classification"`
	Score          float64       `json:"score,omitempty" db:"score"`
	Message        string        `json:"message,omitempty" db:"message"`
	Timestamp      time.Time     `json:"timestamp" db:"timestamp"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// NewFaceEvent stamps a fresh event of the given type.
func NewFaceEvent(t FaceEventType) FaceEvent {
	return FaceEvent{ID: uuid.New(), Type: t, Timestamp: time.Now().UTC()}
}
