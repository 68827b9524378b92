package dto

import "github.com/google/uuid"

// FaceEventResponse is one face lifecycle event, as listed by the audit
// endpoint and pushed over the WebSocket feed.
type FaceEventResponse struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	ExternalID     string    `json:"externalId,omitempty"`
	FaceID         *int64    `json:"faceId,omitempty"`
	Classification string    `json:"classification,omitempty"`
	Score          float64   `json:"score,omitempty"`
	Message        string    `json:"message,omitempty"`
	Timestamp      string    `json:"timestamp"`
}

type FaceEventListResponse struct {
	Events []FaceEventResponse `json:"events"`
	Total  int                 `json:"total"`
}

// WSEvent is a WebSocket message for real-time event delivery.
type WSEvent struct {
	Type string            `json:"type"`
	Data FaceEventResponse `json:"data"`
}
