package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/templui/reelstore/internal/ctxkeys"
	"github.com/templui/reelstore/internal/format"
	"github.com/templui/reelstore/internal/model"
	"github.com/templui/reelstore/internal/service"
)

// ImageService is the part of service.ImageService the handler needs
type ImageService interface {
	Retrieve(ctx context.Context, filmID, imageID, callerID int64, selector string) (*service.Asset, error)
	Publish(ctx context.Context, asset *service.Asset) (string, error)
	Upload(ctx context.Context, filmID, userID int64, header *multipart.FileHeader) (*model.Image, error)
	List(ctx context.Context, filmID, callerID int64) ([]*model.Image, error)
	Delete(ctx context.Context, filmID, imageID, callerID int64) error
}

type ImageHandler struct {
	imageService  ImageService
	maxUploadSize int64
}

func NewImageHandler(imageService ImageService, maxUploadSize int64) *ImageHandler {
	return &ImageHandler{
		imageService:  imageService,
		maxUploadSize: maxUploadSize,
	}
}

// Get serves one image. The representation is chosen by ?format= or, failing
// that, the Accept header. JSON yields the record; an image type yields the
// file, converted if needed, or a redirect when publishing is enabled.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	filmID, ok := pathID(w, r, "filmId")
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "imageId")
	if !ok {
		return
	}
	userID := ctxkeys.UserID(r.Context())

	selector := r.URL.Query().Get("format")
	if selector == "" {
		selector = format.FromAccept(r.Header.Get("Accept"))
	}

	asset, err := h.imageService.Retrieve(r.Context(), filmID, imageID, userID, selector)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if asset.IsRecord() {
		WriteJSON(w, http.StatusOK, asset.Image)
		return
	}

	url, err := h.imageService.Publish(r.Context(), asset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", asset.Format)
	w.Header().Set("X-Image-Source", asset.Source)
	http.ServeFile(w, r, asset.Path)
}

func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	filmID, ok := pathID(w, r, "filmId")
	if !ok {
		return
	}
	userID := ctxkeys.UserID(r.Context())

	images, err := h.imageService.List(r.Context(), filmID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if images == nil {
		images = []*model.Image{}
	}

	WriteJSON(w, http.StatusOK, images)
}

// Upload expects a multipart form with the file in the "image" field
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filmID, ok := pathID(w, r, "filmId")
	if !ok {
		return
	}
	userID := ctxkeys.UserID(r.Context())

	// Leave room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, "File is too large.")
			return
		}
		WriteError(w, r, http.StatusBadRequest, "Invalid multipart form.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "An image file is required.")
		return
	}
	file.Close()

	image, err := h.imageService.Upload(r.Context(), filmID, userID, header)
	if err != nil {
		slog.Warn("image upload failed", "error", err, "film_id", filmID, "user_id", userID)
		writeServiceError(w, r, err)
		return
	}
	image.Self = image.SelfLink()

	w.Header().Set("Location", image.Self)
	WriteJSON(w, http.StatusCreated, image)
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	filmID, ok := pathID(w, r, "filmId")
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "imageId")
	if !ok {
		return
	}
	userID := ctxkeys.UserID(r.Context())

	err := h.imageService.Delete(r.Context(), filmID, imageID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID parses a numeric path value. Anything else cannot name a stored row.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, r, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}
