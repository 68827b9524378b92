package face

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
	"github.com/your-org/facegate/internal/recognition"
)

// FaceWriter persists new identity records.
type FaceWriter interface {
	CreateFace(ctx context.Context, f *models.Face) error
}

type Enrollment struct {
	FaceID     int64
	ExternalID string
	Consent    bool
	Message    string
}

const (
	defaultPersistTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
)

// Enroller registers a face with the backend and then records it locally.
type Enroller struct {
	backend        recognition.Client
	faces          FaceWriter
	events         EventPublisher
	timeout        time.Duration
	persistTimeout time.Duration
	minImageLength int
	newID          func() string
	logger         *slog.Logger
}

func NewEnroller(backend recognition.Client, faces FaceWriter, events EventPublisher, timeout time.Duration, minImageLength int, logger *slog.Logger) *Enroller {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Enroller{
		backend:        backend,
		faces:          faces,
		events:         events,
		timeout:        timeout,
		persistTimeout: defaultPersistTimeout,
		minImageLength: minImageLength,
		newID:          func() string { return uuid.New().String() },
		logger:         logger,
	}
}

// Enroll generates a fresh external id, enrolls it with the backend and
// persists the record only after the backend confirmed it. consent defaults
// to false when nil.
//
// The backend call and the local insert run on contexts detached from the
// caller, so an abandoned request cannot leave a backend vector without its
// local row. The insert has its own deadline; a slow backend cannot use it up.
func (e *Enroller) Enroll(ctx context.Context, image string, consent *bool) (*Enrollment, error) {
	if err := ValidateImage(image, e.minImageLength); err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	externalID := e.newID()

	backendCtx, cancelBackend := context.WithTimeout(detached, e.timeout)
	defer cancelBackend()

	resp, err := e.backend.Enroll(backendCtx, recognition.EnrollRequest{
		Base64Image: image,
		ExternalID:  externalID,
	})
	if err != nil {
		observability.EnrollmentsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("enroll face: %w", err)
	}

	f := &models.Face{
		ExternalID: externalID,
		Descriptor: resp.Embedding,
		Thumbnail:  resp.Thumbnail,
		Consent:    consent != nil && *consent,
	}
	persistCtx, cancelPersist := context.WithTimeout(detached, e.persistTimeout)
	defer cancelPersist()

	if err := e.faces.CreateFace(persistCtx, f); err != nil {
		e.reportOrphan(detached, externalID, err)
		return nil, fmt.Errorf("%w: store face %s: %w", ErrPersistence, externalID, err)
	}

	observability.EnrollmentsTotal.WithLabelValues("enrolled").Inc()
	e.logger.Info("face enrolled", "face_id", f.FaceID, "external_id", externalID, "consent", f.Consent)

	event := models.NewFaceEvent(models.FaceEventEnrolled)
	event.ExternalID = externalID
	event.FaceID = &f.FaceID
	publishCtx, cancelPublish := context.WithTimeout(detached, publishTimeout)
	defer cancelPublish()
	publish(publishCtx, e.events, e.logger, event)

	return &Enrollment{
		FaceID:     f.FaceID,
		ExternalID: externalID,
		Consent:    f.Consent,
		Message:    "User enrolled successfully",
	}, nil
}

// reportOrphan records a backend enrollment that has no local row. No
// compensating delete is attempted on the backend. ctx must not carry the
// failed insert's deadline.
func (e *Enroller) reportOrphan(ctx context.Context, externalID string, cause error) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	observability.EnrollmentsTotal.WithLabelValues("orphaned").Inc()
	observability.OrphanedEnrollments.Inc()
	e.logger.Error("backend enrollment has no local record",
		"external_id", externalID, "error", cause)

	event := models.NewFaceEvent(models.FaceEventEnrollmentOrphaned)
	event.ExternalID = externalID
	event.Message = cause.Error()
	publish(ctx, e.events, e.logger, event)
}
