// Package imaging is the reference transcoder behind the conversion backend.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/templui/reelstore/internal/format"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported target format")
	ErrUnreadableSource  = errors.New("source is not a readable image")
)

type encodeFunc func(w io.Writer, img image.Image) error

type Transcoder struct {
	encoders map[string]encodeFunc
}

func NewTranscoder(jpegQuality int) *Transcoder {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = jpeg.DefaultQuality
	}

	return &Transcoder{
		encoders: map[string]encodeFunc{
			"image/png": png.Encode,
			"image/jpeg": func(w io.Writer, img image.Image) error {
				return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
			},
			"image/gif": func(w io.Writer, img image.Image) error {
				return gif.Encode(w, img, nil)
			},
			"image/bmp": bmp.Encode,
			"image/tiff": func(w io.Writer, img image.Image) error {
				return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
			},
		},
	}
}

func (t *Transcoder) CanEncode(target string) bool {
	_, ok := t.encoders[format.Normalize(target)]
	return ok
}

// Transcode decodes src in whatever registered format it is in and encodes it
// as target. The declared source format is only checked against what was sniffed.
func (t *Transcoder) Transcode(ctx context.Context, src io.Reader, source, target string, dst io.Writer) error {
	encode, ok := t.encoders[format.Normalize(target)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, target)
	}

	img, sniffed, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreadableSource, err)
	}
	if source != "" && format.Normalize(source) != format.Normalize(sniffed) {
		return fmt.Errorf("%w: declared %s but found %s", ErrUnreadableSource, source, sniffed)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return encode(dst, img)
}
