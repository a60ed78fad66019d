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
	ErrFilmNotFound = errors.New("film not found")
)

type FilmRepository interface {
	Create(ctx context.Context, film *model.Film) error
	ByID(ctx context.Context, id int64) (*model.Film, error)
}

type filmRepository struct {
	db *sqlx.DB
}

func NewFilmRepository(db *sqlx.DB) FilmRepository {
	return &filmRepository{db: db}
}

func (r *filmRepository) Create(ctx context.Context, film *model.Film) error {
	if film.CreatedAt.IsZero() {
		film.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO films (owner_id, title, private, created_at) VALUES ($1, $2, $3, $4) RETURNING id`

	return r.db.QueryRowxContext(ctx, query,
		film.OwnerID,
		film.Title,
		film.Private,
		film.CreatedAt,
	).Scan(&film.ID)
}

func (r *filmRepository) ByID(ctx context.Context, id int64) (*model.Film, error) {
	film := &model.Film{}
	query := `SELECT id, owner_id, title, private, created_at FROM films WHERE id = $1`

	err := r.db.GetContext(ctx, film, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFilmNotFound
	}
	if err != nil {
		return nil, err
	}

	return film, nil
}
