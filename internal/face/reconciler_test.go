package face

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/recognition"
)

var testReconcilerConfig = ReconcilerConfig{
	TopK:             5,
	BackendThreshold: 0.35,
	MinScore:         0.5,
	MaxMatches:       5,
	MinImageLength:   1000,
}

func checkRequest(topK int, threshold float64) recognition.CheckRequest {
	return recognition.CheckRequest{
		Base64Image:       testImage,
		TopK:              topK,
		Threshold:         threshold,
		IncludeThumbnails: true,
	}
}

func newTestReconciler(backend *MockBackend, store *MockFaceStore, events *recordingPublisher) *Reconciler {
	return NewReconciler(backend, store, events, testReconcilerConfig, nil)
}

func TestReconciler_Check_RejectsInvalidImage(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	r := newTestReconciler(backend, store, &recordingPublisher{})

	for _, image := range []string{"", "   ", "short"} {
		_, err := r.Check(context.Background(), image)
		assert.ErrorIs(t, err, ErrInvalidImage)
	}

	backend.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "FacesByExternalIDs", mock.Anything, mock.Anything)
}

func TestReconciler_Check_FiltersSortsAndCaps(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	events := &recordingPublisher{}
	r := newTestReconciler(backend, store, events)

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type:      recognition.TypeExisting,
		BestScore: 0.97,
		Threshold: 0.35,
		Matches: []recognition.Candidate{
			{ExternalID: "low", Score: 0.49, Thumbnail: "t-low"},
			{ExternalID: "c", Score: 0.70, Thumbnail: "t-c"},
			{ExternalID: "a", Score: 0.97, Thumbnail: "t-a"},
			{ExternalID: "floor", Score: 0.50, Thumbnail: "t-floor"},
			{ExternalID: "b", Score: 0.85, Thumbnail: "t-b"},
			{ExternalID: "d", Score: 0.65, Thumbnail: "t-d"},
			{ExternalID: "e", Score: 0.60, Thumbnail: "t-e"},
		},
	}, nil).Once()

	store.On("FacesByExternalIDs", mock.Anything, []string{"a", "b", "c", "d", "e"}).
		Return(map[string]models.Face{
			"a": {FaceID: 11, ExternalID: "a"},
			"c": {FaceID: 13, ExternalID: "c"},
		}, nil).Once()

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)

	require.Len(t, result.Matches, 5)
	var ids []string
	for i, m := range result.Matches {
		ids = append(ids, m.ExternalID)
		if i > 0 {
			assert.GreaterOrEqual(t, result.Matches[i-1].Score, m.Score)
		}
		assert.GreaterOrEqual(t, m.Score, 0.5)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)

	require.NotNil(t, result.Matches[0].FaceID)
	assert.Equal(t, int64(11), *result.Matches[0].FaceID)
	assert.Nil(t, result.Matches[1].FaceID)
	require.NotNil(t, result.Matches[2].FaceID)
	assert.Equal(t, int64(13), *result.Matches[2].FaceID)

	assert.Equal(t, recognition.TypeExisting, result.Type)
	assert.Equal(t, 0.97, result.BestScore)
	assert.False(t, result.Recovered)

	assert.Equal(t, []models.FaceEventType{models.FaceEventChecked}, events.types())
	assert.Equal(t, "a", events.last().ExternalID)

	backend.AssertExpectations(t)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "ThumbnailByExternalID", mock.Anything, mock.Anything)
}

func TestReconciler_Check_FloorIsInclusive(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	r := newTestReconciler(backend, store, &recordingPublisher{})

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type: recognition.TypeExisting,
		Matches: []recognition.Candidate{
			{ExternalID: "edge", Score: 0.5, Thumbnail: "t"},
		},
	}, nil).Once()
	store.On("FacesByExternalIDs", mock.Anything, []string{"edge"}).Return(map[string]models.Face{}, nil)

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "edge", result.Matches[0].ExternalID)
	backend.AssertNumberOfCalls(t, "Check", 1)
}

func TestReconciler_Check_RecoversBestCandidate(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	r := newTestReconciler(backend, store, &recordingPublisher{})

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type:      recognition.TypeExisting,
		BestScore: 0.45,
		Threshold: 0.4,
		Matches: []recognition.Candidate{
			{ExternalID: "x", Score: 0.45},
			{ExternalID: "y", Score: 0.41},
		},
	}, nil).Once()
	backend.On("Check", mock.Anything, checkRequest(1, 0.4)).Return(&recognition.CheckResponse{
		Type: recognition.TypeExisting,
		Matches: []recognition.Candidate{
			{ExternalID: "x", Score: 0.45},
		},
	}, nil).Once()

	store.On("FacesByExternalIDs", mock.Anything, []string{"x"}).
		Return(map[string]models.Face{"x": {FaceID: 7, ExternalID: "x", Thumbnail: "stored-x"}}, nil).Once()

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)

	assert.True(t, result.Recovered)
	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, "x", m.ExternalID)
	assert.Equal(t, 0.45, m.Score)
	require.NotNil(t, m.FaceID)
	assert.Equal(t, int64(7), *m.FaceID)
	assert.Equal(t, "stored-x", m.Thumbnail)

	backend.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestReconciler_Check_RecoveryUsesConfiguredThresholdWhenMissing(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	r := newTestReconciler(backend, store, &recordingPublisher{})

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type: recognition.TypeExisting,
	}, nil).Once()
	backend.On("Check", mock.Anything, checkRequest(1, 0.35)).Return(&recognition.CheckResponse{
		Type: recognition.TypeExisting,
	}, nil).Once()

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.False(t, result.Recovered)

	backend.AssertExpectations(t)
	store.AssertNotCalled(t, "FacesByExternalIDs", mock.Anything, mock.Anything)
}

func TestReconciler_Check_RecoveryErrorIsReturned(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	events := &recordingPublisher{}
	r := newTestReconciler(backend, store, events)

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type:      recognition.TypeExisting,
		Threshold: 0.35,
		Matches:   []recognition.Candidate{{ExternalID: "x", Score: 0.3}},
	}, nil).Once()
	backend.On("Check", mock.Anything, checkRequest(1, 0.35)).
		Return(nil, recognition.ErrBackendUnavailable).Once()

	_, err := r.Check(context.Background(), testImage)
	require.Error(t, err)
	assert.ErrorIs(t, err, recognition.ErrBackendUnavailable)
	assert.Empty(t, events.types())
}

func TestReconciler_Check_NewIdentitySkipsRecovery(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	r := newTestReconciler(backend, store, &recordingPublisher{})

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type:      recognition.TypeNew,
		BestScore: 0.2,
		Matches:   []recognition.Candidate{{ExternalID: "z", Score: 0.2}},
	}, nil).Once()

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, recognition.TypeNew, result.Type)
	assert.Empty(t, result.Matches)

	backend.AssertNumberOfCalls(t, "Check", 1)
	store.AssertNotCalled(t, "ThumbnailByExternalID", mock.Anything, mock.Anything)
}

func TestReconciler_Check_NewIdentityKeepsMatchesAboveFloor(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	r := newTestReconciler(backend, store, &recordingPublisher{})

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type:    recognition.TypeNew,
		Matches: []recognition.Candidate{{ExternalID: "z", Score: 0.55}},
	}, nil).Once()
	store.On("FacesByExternalIDs", mock.Anything, []string{"z"}).Return(map[string]models.Face{}, nil).Once()

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Empty(t, result.Matches[0].Thumbnail)

	// The thumbnail guarantee only applies to existing identities.
	store.AssertNotCalled(t, "ThumbnailByExternalID", mock.Anything, mock.Anything)
}

func TestReconciler_Check_AugmentationFailureIsTolerated(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	r := newTestReconciler(backend, store, &recordingPublisher{})

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type: recognition.TypeExisting,
		Matches: []recognition.Candidate{
			{ExternalID: "a", Score: 0.9, Thumbnail: "t-a"},
			{ExternalID: "b", Score: 0.8},
		},
	}, nil).Once()
	store.On("FacesByExternalIDs", mock.Anything, []string{"a", "b"}).
		Return(nil, errors.New("connection reset")).Once()

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	for _, m := range result.Matches {
		assert.Nil(t, m.FaceID)
	}
	assert.Equal(t, "t-a", result.Matches[0].Thumbnail)
}

func TestReconciler_Check_ThumbnailGuarantee(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	r := newTestReconciler(backend, store, &recordingPublisher{})

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type: recognition.TypeExisting,
		Matches: []recognition.Candidate{
			{ExternalID: "second", Score: 0.7},
			{ExternalID: "top", Score: 0.9},
		},
	}, nil).Once()
	store.On("FacesByExternalIDs", mock.Anything, []string{"top", "second"}).
		Return(map[string]models.Face{"top": {FaceID: 1, ExternalID: "top"}}, nil).Once()
	store.On("ThumbnailByExternalID", mock.Anything, "top").Return("stored-top", nil).Once()

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, "top", result.Matches[0].ExternalID)
	assert.Equal(t, "stored-top", result.Matches[0].Thumbnail)
	assert.Empty(t, result.Matches[1].Thumbnail)

	store.AssertExpectations(t)
}

func TestReconciler_Check_ThumbnailGuaranteeFailureIsTolerated(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	r := newTestReconciler(backend, store, &recordingPublisher{})

	backend.On("Check", mock.Anything, checkRequest(5, 0.35)).Return(&recognition.CheckResponse{
		Type:    recognition.TypeExisting,
		Matches: []recognition.Candidate{{ExternalID: "top", Score: 0.9}},
	}, nil).Once()
	store.On("FacesByExternalIDs", mock.Anything, []string{"top"}).Return(map[string]models.Face{}, nil).Once()
	store.On("ThumbnailByExternalID", mock.Anything, "top").Return("", errors.New("timeout")).Once()

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Empty(t, result.Matches[0].Thumbnail)
}

func TestReconciler_Check_BackendErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "semantic", err: &recognition.BackendError{Op: "check", Message: "No face detected"}},
		{name: "unavailable", err: recognition.ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := new(MockBackend)
			store := new(MockFaceStore)
			events := &recordingPublisher{}
			r := newTestReconciler(backend, store, events)

			backend.On("Check", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			_, err := r.Check(context.Background(), testImage)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, events.types())
			store.AssertNotCalled(t, "FacesByExternalIDs", mock.Anything, mock.Anything)
		})
	}
}

func TestReconciler_Check_PublishFailureIsIgnored(t *testing.T) {
	backend := new(MockBackend)
	store := new(MockFaceStore)
	events := &recordingPublisher{err: errors.New("nats down")}
	r := newTestReconciler(backend, store, events)

	backend.On("Check", mock.Anything, mock.Anything).Return(&recognition.CheckResponse{Type: recognition.TypeNew}, nil).Once()

	result, err := r.Check(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, recognition.TypeNew, result.Type)
	assert.Len(t, events.types(), 1)
}
