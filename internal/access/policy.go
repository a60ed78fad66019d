// Package access decides who may view an image attached to a private film.
package access

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/templui/reelstore/internal/model"
)

// ErrNotFound covers a missing film or image, a public film and a film nobody reviews.
// The pipeline only serves private, reviewed films; everything else looks absent.
var ErrNotFound = errors.New("not found")

type Decision int

const (
	Denied Decision = iota
	Owner
	Reviewer
)

func (d Decision) String() string {
	switch d {
	case Owner:
		return "owner"
	case Reviewer:
		return "reviewer"
	default:
		return "denied"
	}
}

// Allowed reports whether the decision grants read access.
func (d Decision) Allowed() bool {
	return d == Owner || d == Reviewer
}

// Store is the read side of the asset store. Missing rows must be reported
// with an error that wraps ErrNotFound.
type Store interface {
	Film(ctx context.Context, filmID int64) (*model.Film, error)
	Image(ctx context.Context, filmID, imageID int64) (*model.Image, error)
	ReviewerIDs(ctx context.Context, filmID int64) ([]int64, error)
}

type Result struct {
	Decision Decision
	Film     *model.Film
	Image    *model.Image
}

// Decide is the access rule. reviewers may contain the uploader; it is ignored there.
func Decide(film *model.Film, image *model.Image, reviewers []int64, callerID int64) (Decision, error) {
	if film == nil || image == nil || image.FilmID != film.ID {
		return Denied, ErrNotFound
	}
	if !film.Private {
		return Denied, ErrNotFound
	}

	others := otherReviewers(reviewers, image.UploaderID)
	if len(others) == 0 {
		return Denied, ErrNotFound
	}

	switch {
	case callerID == image.UploaderID:
		return Owner, nil
	case slices.Contains(others, callerID):
		return Reviewer, nil
	default:
		return Denied, nil
	}
}

func otherReviewers(reviewers []int64, uploaderID int64) []int64 {
	others := make([]int64, 0, len(reviewers))
	for _, id := range reviewers {
		if id != uploaderID {
			others = append(others, id)
		}
	}
	return others
}

type Policy struct {
	store Store
}

func NewPolicy(store Store) *Policy {
	return &Policy{store: store}
}

// Evaluate loads the film, image and reviewers and applies Decide.
// Store failures other than not-found are returned wrapped.
func (p *Policy) Evaluate(ctx context.Context, filmID, imageID, callerID int64) (*Result, error) {
	film, err := p.store.Film(ctx, filmID)
	if err != nil {
		return nil, fmt.Errorf("load film %d: %w", filmID, err)
	}

	image, err := p.store.Image(ctx, filmID, imageID)
	if err != nil {
		return nil, fmt.Errorf("load image %d: %w", imageID, err)
	}

	reviewers, err := p.store.ReviewerIDs(ctx, filmID)
	if err != nil {
		return nil, fmt.Errorf("load reviewers of film %d: %w", filmID, err)
	}

	decision, err := Decide(film, image, reviewers, callerID)
	if err != nil {
		return nil, err
	}

	return &Result{Decision: decision, Film: film, Image: image}, nil
}

// EvaluateFilm applies the same rule at film level, with the film owner in the uploader's seat.
// Used for listing the images of a film.
func (p *Policy) EvaluateFilm(ctx context.Context, filmID, callerID int64) (*Result, error) {
	film, err := p.store.Film(ctx, filmID)
	if err != nil {
		return nil, fmt.Errorf("load film %d: %w", filmID, err)
	}

	reviewers, err := p.store.ReviewerIDs(ctx, filmID)
	if err != nil {
		return nil, fmt.Errorf("load reviewers of film %d: %w", filmID, err)
	}

	stand := &model.Image{FilmID: film.ID, UploaderID: film.OwnerID}
	decision, err := Decide(film, stand, reviewers, callerID)
	if err != nil {
		return nil, err
	}

	return &Result{Decision: decision, Film: film}, nil
}
