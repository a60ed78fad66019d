package model

import (
	"time"
)

type Film struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"ownerId"`
	Title     string    `db:"title" json:"title"`
	Private   bool      `db:"private" json:"private"` // Only private films are served by the image pipeline
	CreatedAt time.Time `db:"created_at" json:"-"`
}

type Review struct {
	FilmID     int64 `db:"film_id" json:"filmId"`
	ReviewerID int64 `db:"reviewer_id" json:"reviewerId"`
}
