package face

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/recognition"
)

var testImage = strings.Repeat("A", 1200)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Check(ctx context.Context, req recognition.CheckRequest) (*recognition.CheckResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*recognition.CheckResponse)
	return resp, args.Error(1)
}

func (m *MockBackend) Enroll(ctx context.Context, req recognition.EnrollRequest) (*recognition.EnrollResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*recognition.EnrollResponse)
	return resp, args.Error(1)
}

type MockFaceStore struct {
	mock.Mock
}

func (m *MockFaceStore) FacesByExternalIDs(ctx context.Context, externalIDs []string) (map[string]models.Face, error) {
	args := m.Called(ctx, externalIDs)
	faces, _ := args.Get(0).(map[string]models.Face)
	return faces, args.Error(1)
}

func (m *MockFaceStore) ThumbnailByExternalID(ctx context.Context, externalID string) (string, error) {
	args := m.Called(ctx, externalID)
	return args.String(0), args.Error(1)
}

func (m *MockFaceStore) CreateFace(ctx context.Context, f *models.Face) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFaceStore) FaceExists(ctx context.Context, faceID int64) (bool, error) {
	args := m.Called(ctx, faceID)
	return args.Bool(0), args.Error(1)
}

func (m *MockFaceStore) CreateContact(ctx context.Context, c *models.Contact) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockFaceStore) ListContacts(ctx context.Context, faceID int64) ([]models.Contact, error) {
	args := m.Called(ctx, faceID)
	contacts, _ := args.Get(0).([]models.Contact)
	return contacts, args.Error(1)
}

func (m *MockFaceStore) ClearAll(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.FaceEvent
	// ctxErrs holds ctx.Err() as seen by each publish call.
	ctxErrs []error
	err     error
}

func (p *recordingPublisher) PublishFaceEvent(ctx context.Context, event models.FaceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

func (p *recordingPublisher) types() []models.FaceEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.FaceEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) last() models.FaceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}
