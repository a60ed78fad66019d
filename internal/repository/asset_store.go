package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/templui/reelstore/internal/access"
	"github.com/templui/reelstore/internal/model"
)

// AssetStore adapts the film, image and review repositories to access.Store.
// Missing rows are reported as access.ErrNotFound; everything else is passed through.
type AssetStore struct {
	films   FilmRepository
	images  ImageRepository
	reviews ReviewRepository
}

func NewAssetStore(films FilmRepository, images ImageRepository, reviews ReviewRepository) *AssetStore {
	return &AssetStore{
		films:   films,
		images:  images,
		reviews: reviews,
	}
}

func (s *AssetStore) Film(ctx context.Context, filmID int64) (*model.Film, error) {
	film, err := s.films.ByID(ctx, filmID)
	if errors.Is(err, ErrFilmNotFound) {
		return nil, fmt.Errorf("%w: %w", access.ErrNotFound, err)
	}
	return film, err
}

func (s *AssetStore) Image(ctx context.Context, filmID, imageID int64) (*model.Image, error) {
	image, err := s.images.ByID(ctx, filmID, imageID)
	if errors.Is(err, ErrImageNotFound) {
		return nil, fmt.Errorf("%w: %w", access.ErrNotFound, err)
	}
	return image, err
}

func (s *AssetStore) ReviewerIDs(ctx context.Context, filmID int64) ([]int64, error) {
	return s.reviews.ReviewerIDs(ctx, filmID)
}
