package qr

import (
	"context"
	"fmt"
	"time"

	"github.com/qr-nexus/internal/domain"
	"github.com/skip2/go-qrcode"
)

const (
	imageSize  = 512
	presignTTL = 15 * time.Minute
)

// Image is a rendered QR code the owner can download for a limited time.
type Image struct {
	CodeID    string    `json:"code_id"`
	Payload   string    `json:"payload"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	// Render encodes the tracking URL of codeID, stores the PNG and returns a
	// presigned download link. Only the code's owner may render it.
	Render(ctx context.Context, userID, codeID string) (*Image, error)
}

type codeOwnership interface {
	Owned(ctx context.Context, userID, codeID string) (*domain.Code, error)
}

type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type service struct {
	ownership codeOwnership
	images    objectStore
	baseURL   string
	now       func() time.Time
}

func NewService(ownership codeOwnership, images objectStore, publicBaseURL string) Service {
	return &service{ownership: ownership, images: images, baseURL: publicBaseURL, now: time.Now}
}

func (s *service) Render(ctx context.Context, userID, codeID string) (*Image, error) {
	c, err := s.ownership.Owned(ctx, userID, codeID)
	if err != nil {
		return nil, err
	}
	payload := domain.TrackingURL(s.baseURL, c.CodeID)
	png, err := qrcode.Encode(payload, qrcode.Medium, imageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	key := domain.QRObjectKey(c.CodeID)
	if err := s.images.Put(ctx, key, png, "image/png"); err != nil {
		return nil, err
	}
	url, err := s.images.PresignedURL(ctx, key, presignTTL)
	if err != nil {
		return nil, err
	}
	return &Image{
		CodeID:    c.CodeID,
		Payload:   payload,
		URL:       url,
		ExpiresAt: s.now().UTC().Add(presignTTL),
	}, nil
}
