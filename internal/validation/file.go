package validation

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrExtensionMismatch = errors.New("file extension does not match its content")
	ErrNoFileConstraints = errors.New("no file constraints provided")
)

// FileConstraints defines validation rules for file uploads
type FileConstraints struct {
	// AllowedMimeTypes maps a sniffed MIME type to the extensions accepted for it
	AllowedMimeTypes map[string][]string
	MaxSize          int64
}

// ImageConstraints returns the rules for film image uploads with the given size limit
func ImageConstraints(maxSize int64) FileConstraints {
	return FileConstraints{
		AllowedMimeTypes: map[string][]string{
			"image/png":  {".png"},
			"image/jpeg": {".jpg", ".jpeg", ".jpe"},
			"image/gif":  {".gif"},
		},
		MaxSize: maxSize,
	}
}

// ValidateFile validates a file upload against one or more constraint sets
// and returns the MIME type detected from its content.
// If multiple constraints are provided, file must match at least one (OR logic)
func ValidateFile(header *multipart.FileHeader, constraints ...FileConstraints) (string, error) {
	if len(constraints) == 0 {
		return "", ErrNoFileConstraints
	}

	// Try each constraint set - file must match at least one
	var lastErr error
	for _, constraint := range constraints {
		mimeType, err := validateAgainstConstraint(header, constraint)
		if err == nil {
			return mimeType, nil
		}
		lastErr = err
	}

	// No match found - return last error
	return "", lastErr
}

// validateAgainstConstraint validates a file against a single constraint set
func validateAgainstConstraint(header *multipart.FileHeader, constraints FileConstraints) (string, error) {
	// Check file size first (before reading content)
	if header.Size > constraints.MaxSize {
		return "", fmt.Errorf("%w: maximum size is %d bytes", ErrFileTooLarge, constraints.MaxSize)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	detectedType, err := DetectContentType(file)
	if err != nil {
		return "", err
	}

	extensions, ok := constraints.AllowedMimeTypes[detectedType]
	if !ok {
		return "", fmt.Errorf("%w (detected: %s)", ErrUnsupportedType, detectedType)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	for _, allowed := range extensions {
		if ext == allowed {
			return detectedType, nil
		}
	}

	return "", fmt.Errorf("%w: %q for %s", ErrExtensionMismatch, ext, detectedType)
}

// DetectContentType sniffs the MIME type from the first 512 bytes (magic numbers)
// and rewinds the reader if it can seek. This cannot be faked by just changing
// the Content-Type header.
func DetectContentType(r io.Reader) (string, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	seeker, ok := r.(io.Seeker)
	if ok {
		_, err = seeker.Seek(0, io.SeekStart)
		if err != nil {
			return "", fmt.Errorf("failed to reset file pointer: %w", err)
		}
	}

	return http.DetectContentType(buffer[:n]), nil
}
