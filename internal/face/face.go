// Package face holds the gateway's domain logic: reconciling backend matches
// with local identity records, enrolling new faces, attaching contact details
// and clearing enrolled state.
package face

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/your-org/facegate/internal/models"
)

var (
	ErrInvalidImage  = errors.New("invalid Base64Image")
	ErrInvalidFaceID = errors.New("valid FaceId is required")
	ErrFaceNotFound  = errors.New("FaceId does not exist")
	ErrPersistence   = errors.New("persistence failure")
)

// EventPublisher receives face lifecycle events. Publishing is best effort.
type EventPublisher interface {
	PublishFaceEvent(ctx context.Context, event models.FaceEvent) error
}

// ValidateImage rejects payloads that are missing or too short to be an image.
func ValidateImage(image string, minLength int) error {
	if strings.TrimSpace(image) == "" || len(image) < minLength {
		return ErrInvalidImage
	}
	return nil
}

func publish(ctx context.Context, p EventPublisher, logger *slog.Logger, event models.FaceEvent) {
	if p == nil {
		return
	}
	if err := p.PublishFaceEvent(ctx, event); err != nil {
		logger.Warn("publish face event", "type", event.Type, "error", err)
	}
}
