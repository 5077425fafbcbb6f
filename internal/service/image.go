package service

import (
	"context"
	"errors"
	"fmt"

	"snapapi/internal/model"
	"snapapi/internal/repository"
)

// RecentLimit is how many records the list endpoint returns.
const RecentLimit = 9

var (
	ErrIDRequired  = errors.New("id is required")
	ErrNotFound    = errors.New("image not found")
	ErrUnavailable = errors.New("image store unavailable")
)

// ImageService defines the read-side use cases over stored captures.
type ImageService interface {
	// List returns the most recent visible captures, newest first. Never nil.
	List(ctx context.Context) ([]model.Summary, error)

	// Get returns a full capture including its payload.
	Get(ctx context.Context, id string) (*model.CaptureRecord, error)

	// Data returns the summary of one capture.
	Data(ctx context.Context, id string) (*model.Summary, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

type imageService struct {
	repo repository.RecordRepository
}

// NewImageService constructs a new ImageService.
func NewImageService(repo repository.RecordRepository) ImageService {
	return &imageService{repo: repo}
}

func (s *imageService) List(ctx context.Context) ([]model.Summary, error) {
	items, err := s.repo.ListRecent(ctx, RecentLimit)
	if err != nil {
		return nil, translate("list images", err)
	}
	if items == nil {
		items = []model.Summary{}
	}
	return items, nil
}

func (s *imageService) Get(ctx context.Context, id string) (*model.CaptureRecord, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translate("get image "+id, err)
	}
	return rec, nil
}

func (s *imageService) Data(ctx context.Context, id string) (*model.Summary, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := rec.Summary()
	return &sum, nil
}

func (s *imageService) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return translate("ping", err)
	}
	return nil
}

// translate maps repository errors onto service errors. Anything that is not
// a clean miss is treated as the store being unavailable.
func translate(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
