package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func (m *MockObjectStore) DeleteObjects(ctx context.Context, keys []string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func TestMinIOArtifacts_Clear(t *testing.T) {
	objects := new(MockObjectStore)
	objects.On("ListObjects", mock.Anything, "index/").Return([]string{"index/face_index.faiss", "index/faiss_ids.npy"}, nil)
	objects.On("DeleteObjects", mock.Anything, []string{"index/face_index.faiss", "index/faiss_ids.npy"}).Return(nil)

	a := &MinIOArtifacts{objects: objects, prefix: "index/"}
	require.NoError(t, a.Clear(context.Background()))
	assert.Equal(t, "minio:index/", a.Name())
	objects.AssertExpectations(t)
}

func TestMinIOArtifacts_Clear_Empty(t *testing.T) {
	objects := new(MockObjectStore)
	objects.On("ListObjects", mock.Anything, "index/").Return(nil, nil)

	a := &MinIOArtifacts{objects: objects, prefix: "index/"}
	require.NoError(t, a.Clear(context.Background()))
	objects.AssertNotCalled(t, "DeleteObjects", mock.Anything, mock.Anything)
}

func TestMinIOArtifacts_Clear_Errors(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		objects := new(MockObjectStore)
		objects.On("ListObjects", mock.Anything, "index/").Return(nil, errors.New("access denied"))

		a := &MinIOArtifacts{objects: objects, prefix: "index/"}
		assert.ErrorContains(t, a.Clear(context.Background()), "access denied")
	})

	t.Run("delete", func(t *testing.T) {
		objects := new(MockObjectStore)
		objects.On("ListObjects", mock.Anything, "index/").Return([]string{"index/a"}, nil)
		objects.On("DeleteObjects", mock.Anything, []string{"index/a"}).Return(errors.New("bucket locked"))

		a := &MinIOArtifacts{objects: objects, prefix: "index/"}
		assert.ErrorContains(t, a.Clear(context.Background()), "bucket locked")
	})
}
