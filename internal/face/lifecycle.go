package face

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/your-org/facegate/internal/models"
)

// FaceClearer removes every identity and contact record.
type FaceClearer interface {
	ClearAll(ctx context.Context) (faces, contacts int64, err error)
}

// ArtifactCleaner removes one kind of backend-side index artifact.
type ArtifactCleaner interface {
	Name() string
	Clear(ctx context.Context) error
}

type ClearReport struct {
	FacesDeleted    int64
	ContactsDeleted int64
	// Warnings describes artifact cleaners that failed after local records
	// were already removed.
	Warnings []string
}

// Manager performs the administrative reset of all enrolled state.
type Manager struct {
	store    FaceClearer
	cleaners []ArtifactCleaner
	events   EventPublisher
	logger   *slog.Logger
}

func NewManager(store FaceClearer, cleaners []ArtifactCleaner, events EventPublisher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, cleaners: cleaners, events: events, logger: logger}
}

// ClearAll deletes all local records and then every backend artifact.
// Artifact failures do not fail the call; they are logged and returned in
// the report.
func (m *Manager) ClearAll(ctx context.Context) (*ClearReport, error) {
	faces, contacts, err := m.store.ClearAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("clear faces: %w", err)
	}

	report := &ClearReport{FacesDeleted: faces, ContactsDeleted: contacts}

	var errs []error
	for _, c := range m.cleaners {
		if err := c.Clear(ctx); err != nil {
			m.logger.Warn("clear backend artifacts", "cleaner", c.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", c.Name(), err))
		}
	}

	m.logger.Info("enrolled state cleared",
		"faces", faces, "contacts", contacts, "artifact_errors", len(errs))

	event := models.NewFaceEvent(models.FaceEventCleared)
	if err := errors.Join(errs...); err != nil {
		event.Message = err.Error()
	}
	publish(ctx, m.events, m.logger, event)

	return report, nil
}

// PathCleaner deletes artifact files and directories on the local filesystem.
type PathCleaner struct {
	Paths []string
}

func (p PathCleaner) Name() string { return "filesystem" }

func (p PathCleaner) Clear(_ context.Context) error {
	var errs []error
	for _, path := range p.Paths {
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
