package dto

// ImageRequest is the body of check and enroll calls.
type ImageRequest struct {
	Base64Image string `json:"base64Image"`
	Consent     *bool  `json:"consent,omitempty"`
}

type MatchResponse struct {
	ExternalID string  `json:"externalId"`
	Score      float64 `json:"score"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
	FaceID     *int64  `json:"faceId,omitempty"`
}

type CheckResponse struct {
	Type      string          `json:"type"`
	BestScore float64         `json:"bestScore"`
	Threshold float64         `json:"threshold"`
	Matches   []MatchResponse `json:"matches"`
}

type EnrollResponse struct {
	Message    string `json:"message"`
	FaceID     int64  `json:"faceId"`
	ExternalID string `json:"externalId"`
	Consent    bool   `json:"consent"`
}

type UserDetailsRequest struct {
	FaceID      int64   `json:"faceId"`
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

type UserDetailsResponse struct {
	Message     string  `json:"message"`
	FaceID      int64   `json:"faceId"`
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phoneNumber"`
}

type ContactResponse struct {
	ID          int64   `json:"id"`
	FaceID      int64   `json:"faceId"`
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phoneNumber"`
}

type ContactListResponse struct {
	Contacts []ContactResponse `json:"contacts"`
	Total    int               `json:"total"`
}

type ClearResponse struct {
	Message  string   `json:"message"`
	Warnings []string `json:"warnings,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
