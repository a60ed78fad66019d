package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/reelstore/internal/model"
)

var (
	ErrImageNotFound = errors.New("image not found")
)

const imageColumns = `id, film_id, uploader_id, url, format, created_at`

type ImageRepository interface {
	Create(ctx context.Context, image *model.Image) error
	ByID(ctx context.Context, filmID, imageID int64) (*model.Image, error)
	ByFilm(ctx context.Context, filmID int64) ([]*model.Image, error)
	Delete(ctx context.Context, filmID, imageID int64) error
}

type imageRepository struct {
	db *sqlx.DB
}

func NewImageRepository(db *sqlx.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *model.Image) error {
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO images (film_id, uploader_id, url, format, created_at)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		image.FilmID,
		image.UploaderID,
		image.URL,
		image.Format,
		image.CreatedAt,
	).Scan(&image.ID)
	if err != nil {
		return err
	}

	image.Self = image.SelfLink()
	return nil
}

// ByID looks an image up by both keys, so an image is never served through a film it does not belong to.
func (r *imageRepository) ByID(ctx context.Context, filmID, imageID int64) (*model.Image, error) {
	image := &model.Image{}
	query := `SELECT ` + imageColumns + ` FROM images WHERE film_id = $1 AND id = $2`

	err := r.db.GetContext(ctx, image, query, filmID, imageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}

	image.Self = image.SelfLink()
	return image, nil
}

func (r *imageRepository) ByFilm(ctx context.Context, filmID int64) ([]*model.Image, error) {
	var images []*model.Image
	query := `SELECT ` + imageColumns + ` FROM images WHERE film_id = $1 ORDER BY id`

	err := r.db.SelectContext(ctx, &images, query, filmID)
	if err != nil {
		return nil, err
	}

	for _, image := range images {
		image.Self = image.SelfLink()
	}
	return images, nil
}

func (r *imageRepository) Delete(ctx context.Context, filmID, imageID int64) error {
	query := `DELETE FROM images WHERE film_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, filmID, imageID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrImageNotFound
	}

	return nil
}
