package qr

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qr-nexus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOwnership struct{ mock.Mock }

func (m *mockOwnership) Owned(ctx context.Context, userID, codeID string) (*domain.Code, error) {
	args := m.Called(ctx, userID, codeID)
	if c, _ := args.Get(0).(*domain.Code); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}
func (m *mockObjectStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRender_StoresPNGAndPresigns(t *testing.T) {
	own, store := &mockOwnership{}, &mockObjectStore{}
	own.On("Owned", mock.Anything, "owner", "01CODE").Return(&domain.Code{CodeID: "01CODE"}, nil)
	store.On("Put", mock.Anything, "qr/01CODE.png", mock.MatchedBy(func(b []byte) bool {
		return bytes.HasPrefix(b, pngMagic)
	}), "image/png").Return(nil)
	store.On("PresignedURL", mock.Anything, "qr/01CODE.png", 15*time.Minute).Return("https://s3.example/signed", nil)

	img, err := NewService(own, store, "https://nexus.example/").Render(context.Background(), "owner", "01CODE")

	require.NoError(t, err)
	assert.Equal(t, "https://nexus.example/q/01CODE", img.Payload)
	assert.Equal(t, "https://s3.example/signed", img.URL)
	store.AssertExpectations(t)
}

func TestRender_NotOwner(t *testing.T) {
	own, store := &mockOwnership{}, &mockObjectStore{}
	own.On("Owned", mock.Anything, "intruder", "01CODE").Return(nil, domain.ErrForbidden)

	_, err := NewService(own, store, "https://nexus.example").Render(context.Background(), "intruder", "01CODE")

	assert.ErrorIs(t, err, domain.ErrForbidden)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRender_UploadFailure(t *testing.T) {
	own, store := &mockOwnership{}, &mockObjectStore{}
	own.On("Owned", mock.Anything, "owner", "01CODE").Return(&domain.Code{CodeID: "01CODE"}, nil)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("s3 down"))

	_, err := NewService(own, store, "https://nexus.example").Render(context.Background(), "owner", "01CODE")

	require.Error(t, err)
	store.AssertNotCalled(t, "PresignedURL", mock.Anything, mock.Anything, mock.Anything)
}
