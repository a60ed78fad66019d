package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/templui/reelstore/internal/model"
	"github.com/templui/reelstore/internal/repository"
)

// FilmService manages films and their reviewers. Films are created from the
// do CLI; the HTTP API only reads them.
type FilmService struct {
	films   repository.FilmRepository
	reviews repository.ReviewRepository
	users   repository.UserRepository
}

func NewFilmService(films repository.FilmRepository, reviews repository.ReviewRepository, users repository.UserRepository) *FilmService {
	return &FilmService{
		films:   films,
		reviews: reviews,
		users:   users,
	}
}

func (s *FilmService) Create(ctx context.Context, ownerID int64, title string, private bool) (*model.Film, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	_, err := s.users.ByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: owner %d", ErrNotFound, ownerID)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	film := &model.Film{OwnerID: ownerID, Title: title, Private: private}
	err = s.films.Create(ctx, film)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create film: %w", ErrStorage, err)
	}

	slog.Info("film created", "film_id", film.ID, "owner_id", ownerID, "private", private)
	return film, nil
}

// AddReviewer invites a user to review a film. The owner cannot review their own film.
func (s *FilmService) AddReviewer(ctx context.Context, filmID, reviewerID int64) error {
	film, err := s.films.ByID(ctx, filmID)
	if err != nil {
		if errors.Is(err, repository.ErrFilmNotFound) {
			return fmt.Errorf("%w: film %d", ErrNotFound, filmID)
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if film.OwnerID == reviewerID {
		return fmt.Errorf("%w: the owner cannot review their own film", ErrConflict)
	}

	_, err = s.users.ByID(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%w: reviewer %d", ErrNotFound, reviewerID)
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	err = s.reviews.Create(ctx, &model.Review{FilmID: filmID, ReviewerID: reviewerID})
	if err != nil {
		return fmt.Errorf("%w: failed to add reviewer: %w", ErrStorage, err)
	}

	slog.Info("reviewer added", "film_id", filmID, "reviewer_id", reviewerID)
	return nil
}
