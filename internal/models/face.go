package models

import "time"

// Face is one enrolled identity. ExternalID is the token shared with the
// recognition backend and joins backend matches to local rows.
type Face struct {
	FaceID     int64     `json:"face_id" db:"face_id"`
	ExternalID string    `json:"external_id" db:"external_id"`
	Descriptor []float32 `json:"-" db:"descriptor"`
	Thumbnail  string    `json:"thumbnail,omitempty" db:"thumbnail"`
	Consent    bool      `json:"consent" db:"consent"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Contact holds optional contact details attached to a face.
// Several contacts may reference the same face.
type Contact struct {
	ID          int64   `json:"id" db:"id"`
	FaceID      int64   `json:"face_id" db:"face_id"`
	Name        *string `json:"name,omitempty" db:"name"`
	PhoneNumber *string `json:"phone_number,omitempty" db:"phone_number"`
}
