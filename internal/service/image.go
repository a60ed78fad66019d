package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/templui/reelstore/internal/access"
	"github.com/templui/reelstore/internal/convert"
	"github.com/templui/reelstore/internal/format"
	"github.com/templui/reelstore/internal/model"
	"github.com/templui/reelstore/internal/repository"
	"github.com/templui/reelstore/internal/storage"
	"github.com/templui/reelstore/internal/validation"
	"golang.org/x/sync/singleflight"
)

var (
	retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstore_image_retrievals_total",
		Help: "Image retrievals by how the representation was served.",
	}, []string{"source"})

	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstore_conversions_total",
		Help: "Conversions run against the backend, by outcome.",
	}, []string{"outcome"})

	conversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reelstore_conversion_duration_seconds",
		Help:    "Duration of conversions, from opening the stream to the file being in place.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	activeConversions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelstore_active_conversions",
		Help: "Conversions currently in flight.",
	})
)

// Retrieval sources, also used as metric labels.
const (
	SourceRecord    = "record"
	SourceCanonical = "canonical"
	SourceCached    = "cached"
	SourceConverted = "converted"
)

// AccessPolicy decides whether a caller may see a film's images.
type AccessPolicy interface {
	Evaluate(ctx context.Context, filmID, imageID, callerID int64) (*access.Result, error)
	EvaluateFilm(ctx context.Context, filmID, callerID int64) (*access.Result, error)
}

// Converter produces a file in another format. Implemented by convert.Client.
type Converter interface {
	Convert(ctx context.Context, req convert.Request) error
}

// Asset is the outcome of a retrieval: either the structured record (Image
// set) or a local file (Path set) in Format.
type Asset struct {
	Image    *model.Image
	Path     string
	Format   string
	Source   string
	Decision access.Decision
}

// IsRecord reports whether the asset is the structured record rather than a file.
func (a *Asset) IsRecord() bool {
	return a.Image != nil && a.Path == ""
}

type ImageServiceConfig struct {
	UploadDir      string
	DerivedDir     string
	MaxUploadSize  int64
	ConvertTimeout time.Duration
}

type ImageService struct {
	policy    AccessPolicy
	films     repository.FilmRepository
	images    repository.ImageRepository
	storage   storage.Storage
	publisher storage.Publisher
	converter Converter
	cfg       ImageServiceConfig

	// conversions deduplicates concurrent conversions to the same derived path
	conversions singleflight.Group
}

func NewImageService(
	policy AccessPolicy,
	films repository.FilmRepository,
	images repository.ImageRepository,
	storage storage.Storage,
	publisher storage.Publisher,
	converter Converter,
	cfg ImageServiceConfig,
) *ImageService {
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = 2 * time.Minute
	}
	return &ImageService{
		policy:    policy,
		films:     films,
		images:    images,
		storage:   storage,
		publisher: publisher,
		converter: converter,
		cfg:       cfg,
	}
}

// Retrieve returns the representation of an image selected by selector, which
// is a MIME type, a bare extension, or empty/"json" for the structured record.
// A file path is returned only once the file is completely written.
func (s *ImageService) Retrieve(ctx context.Context, filmID, imageID, callerID int64, selector string) (*Asset, error) {
	res, err := s.policy.Evaluate(ctx, filmID, imageID, callerID)
	if err != nil {
		return nil, accessError(err)
	}
	if !res.Decision.Allowed() {
		return nil, fmt.Errorf("%w: user %d may not view image %d", ErrForbidden, callerID, imageID)
	}

	image := res.Image
	image.Self = image.SelfLink()

	if format.IsStructured(selector) {
		retrievalsTotal.WithLabelValues(SourceRecord).Inc()
		return &Asset{Image: image, Format: format.Structured, Source: SourceRecord, Decision: res.Decision}, nil
	}

	target := format.Normalize(selector)
	if target == format.Normalize(image.Format) {
		retrievalsTotal.WithLabelValues(SourceCanonical).Inc()
		return &Asset{Image: image, Path: image.URL, Format: target, Source: SourceCanonical, Decision: res.Decision}, nil
	}

	derived, err := s.DerivedPath(image.URL, target)
	if err != nil {
		return nil, err
	}

	source, err := s.derive(ctx, image, target, derived)
	if err != nil {
		return nil, err
	}

	retrievalsTotal.WithLabelValues(source).Inc()
	return &Asset{Image: image, Path: derived, Format: target, Source: source, Decision: res.Decision}, nil
}

// DerivedPath is where the conversion of a stored file to target lives:
// the whole stored base name, source extension included, followed by the
// extension of the target format, so uploads sharing a stem never share
// derived files.
func (s *ImageService) DerivedPath(storedPath, target string) (string, error) {
	ext, ok := format.Extension(target)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, target)
	}
	return filepath.Join(s.cfg.DerivedDir, filepath.Base(storedPath)+ext), nil
}

// derive makes sure the derived file exists, converting at most once per path
// at a time. The conversion is detached from ctx: a caller that gives up stops
// waiting, but the conversion finishes for everyone else waiting on it.
func (s *ImageService) derive(ctx context.Context, image *model.Image, target, derived string) (string, error) {
	detached := context.WithoutCancel(ctx)

	ch := s.conversions.DoChan(derived, func() (any, error) {
		exists, err := s.storage.Exists(detached, derived)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		if exists {
			return SourceCached, nil
		}

		convertCtx, cancel := context.WithTimeout(detached, s.cfg.ConvertTimeout)
		defer cancel()

		activeConversions.Inc()
		defer activeConversions.Dec()

		start := time.Now()
		err = s.converter.Convert(convertCtx, convert.Request{
			SourcePath:   image.URL,
			SourceFormat: format.Normalize(image.Format),
			TargetFormat: target,
			TargetPath:   derived,
		})
		conversionDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			conversionsTotal.WithLabelValues("failed").Inc()
			slog.Warn("image conversion failed", "image_id", image.ID, "target", target, "error", err)
			if errors.Is(err, convert.ErrConversionFailed) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}

		conversionsTotal.WithLabelValues("succeeded").Inc()
		slog.Info("image converted", "image_id", image.ID, "target", target, "path", derived, "duration", time.Since(start))
		return SourceConverted, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Upload stores a new image for a private film. Only the film owner may upload.
func (s *ImageService) Upload(ctx context.Context, filmID, userID int64, header *multipart.FileHeader) (*model.Image, error) {
	film, err := s.films.ByID(ctx, filmID)
	if err != nil {
		if errors.Is(err, repository.ErrFilmNotFound) {
			return nil, fmt.Errorf("%w: film %d", ErrNotFound, filmID)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !film.Private {
		return nil, fmt.Errorf("%w: film %d is public", ErrConflict, filmID)
	}
	if film.OwnerID != userID {
		return nil, fmt.Errorf("%w: only the film owner may upload images", ErrForbidden)
	}

	mimeType, err := validation.ValidateFile(header, validation.ImageConstraints(s.cfg.MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: missing file name", ErrInvalidUpload)
	}
	storagePath := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%d_%d_%s", filmID, userID, name))

	exists, err := s.storage.Exists(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: an image named %q already exists", ErrConflict, name)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}
	defer file.Close()

	err = s.storage.Save(ctx, storagePath, file)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to save file: %w", ErrStorage, err)
	}

	image := &model.Image{
		FilmID:     filmID,
		UploaderID: userID,
		URL:        storagePath,
		Format:     mimeType,
	}

	err = s.images.Create(ctx, image)
	if err != nil {
		// If DB insert fails, try to cleanup the uploaded file
		delErr := s.storage.Delete(ctx, storagePath)
		if delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, fmt.Errorf("%w: failed to create image record: %w", ErrStorage, err)
	}

	// Derived files of an earlier upload with the same name are stale now.
	s.removeDerived(ctx, image)

	slog.Info("image uploaded", "image_id", image.ID, "film_id", filmID, "format", mimeType)
	return image, nil
}

// List returns the images of a film to its owner and reviewers.
func (s *ImageService) List(ctx context.Context, filmID, callerID int64) ([]*model.Image, error) {
	res, err := s.policy.EvaluateFilm(ctx, filmID, callerID)
	if err != nil {
		return nil, accessError(err)
	}
	if !res.Decision.Allowed() {
		return nil, fmt.Errorf("%w: user %d may not view film %d", ErrForbidden, callerID, filmID)
	}

	images, err := s.images.ByFilm(ctx, filmID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return images, nil
}

// Delete removes an image, its file and any derived files. Only the uploader may delete.
func (s *ImageService) Delete(ctx context.Context, filmID, imageID, callerID int64) error {
	film, err := s.films.ByID(ctx, filmID)
	if err != nil {
		if errors.Is(err, repository.ErrFilmNotFound) {
			return fmt.Errorf("%w: film %d", ErrNotFound, filmID)
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !film.Private {
		return fmt.Errorf("%w: film %d", ErrNotFound, filmID)
	}

	image, err := s.images.ByID(ctx, filmID, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return fmt.Errorf("%w: image %d", ErrNotFound, imageID)
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if image.UploaderID != callerID {
		return fmt.Errorf("%w: only the uploader may delete image %d", ErrForbidden, imageID)
	}

	err = s.images.Delete(ctx, filmID, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return fmt.Errorf("%w: image %d", ErrNotFound, imageID)
		}
		return fmt.Errorf("%w: failed to delete image record: %w", ErrStorage, err)
	}

	// Delete from storage (best effort)
	delErr := s.storage.Delete(ctx, image.URL)
	if delErr != nil {
		slog.Error("failed to delete file from storage", "error", delErr, "path", image.URL)
	}
	s.removeDerived(ctx, image)

	slog.Info("image deleted", "image_id", imageID, "film_id", filmID)
	return nil
}

func (s *ImageService) removeDerived(ctx context.Context, image *model.Image) {
	for _, ext := range format.Extensions() {
		derived, err := s.DerivedPath(image.URL, ext)
		if err != nil {
			continue
		}
		err = s.storage.Delete(ctx, derived)
		if err != nil {
			slog.Warn("failed to delete derived file", "error", err, "path", derived)
		}
		if s.publisher != nil {
			err = s.publisher.Delete(ctx, PublishKey(image.FilmID, derived))
			if err != nil {
				slog.Warn("failed to delete published file", "error", err, "path", derived)
			}
		}
	}
	if s.publisher != nil {
		err := s.publisher.Delete(ctx, PublishKey(image.FilmID, image.URL))
		if err != nil {
			slog.Warn("failed to delete published file", "error", err, "path", image.URL)
		}
	}
}

// Publish returns a temporary remote URL for a file asset, or "" when publishing is disabled.
func (s *ImageService) Publish(ctx context.Context, asset *Asset) (string, error) {
	if s.publisher == nil || asset.IsRecord() {
		return "", nil
	}
	url, err := s.publisher.Publish(ctx, PublishKey(asset.Image.FilmID, asset.Path), asset.Path, asset.Format)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return url, nil
}

// PublishKey is the object key of a served file.
func PublishKey(filmID int64, path string) string {
	return fmt.Sprintf("films/%d/%s", filmID, filepath.Base(path))
}

func accessError(err error) error {
	if errors.Is(err, access.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
