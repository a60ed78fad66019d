package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/templui/reelstore/internal/model"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	ReviewerIDs(ctx context.Context, filmID int64) ([]int64, error)
}

type reviewRepository struct {
	db *sqlx.DB
}

func NewReviewRepository(db *sqlx.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *model.Review) error {
	query := `INSERT INTO reviews (film_id, reviewer_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, review.FilmID, review.ReviewerID)
	return err
}

// ReviewerIDs returns the distinct reviewers of a film, in ascending order.
func (r *reviewRepository) ReviewerIDs(ctx context.Context, filmID int64) ([]int64, error) {
	var ids []int64
	query := `SELECT DISTINCT reviewer_id FROM reviews WHERE film_id = $1 ORDER BY reviewer_id`

	err := r.db.SelectContext(ctx, &ids, query, filmID)
	if err != nil {
		return nil, err
	}

	return ids, nil
}
