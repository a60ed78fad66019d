package model

import (
	"fmt"
	"time"
)

const (
	FormatPNG  = "image/png"
	FormatJPEG = "image/jpeg"
	FormatGIF  = "image/gif"
)

type Image struct {
	ID         int64     `db:"id" json:"imageId"`
	FilmID     int64     `db:"film_id" json:"filmId"`
	UploaderID int64     `db:"uploader_id" json:"uploaderId"`
	URL        string    `db:"url" json:"url"`       // Local path of the canonical bytes
	Format     string    `db:"format" json:"format"` // MIME type of the canonical bytes
	CreatedAt  time.Time `db:"created_at" json:"-"`

	// Computed fields (not in database)
	Self string `db:"-" json:"self"`
}

// SelfLink returns the API path of the image.
func (i *Image) SelfLink() string {
	return fmt.Sprintf("/api/films/private/%d/images/%d", i.FilmID, i.ID)
}
