package convert

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/reelstore/internal/imaging"
)

func writePNG(t *testing.T, dir string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for x := 0; x < 16; x++ {
		img.Set(x, x%9, color.RGBA{R: 255, A: 255})
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, "frame.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestServerConvertsPNGToGIF(t *testing.T) {
	conn := startBackend(t, NewServer(imaging.NewTranscoder(0)))

	dir := t.TempDir()
	req := Request{
		SourcePath:   writePNG(t, dir),
		SourceFormat: "image/png",
		TargetFormat: "image/gif",
		TargetPath:   filepath.Join(dir, "frame.gif"),
	}

	require.NoError(t, NewClient(conn).Convert(context.Background(), req))

	f, err := os.Open(req.TargetPath)
	require.NoError(t, err)
	defer f.Close()

	img, err := gif.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 9), img.Bounds())
}

func TestServerRejectsUnsupportedTarget(t *testing.T) {
	conn := startBackend(t, NewServer(imaging.NewTranscoder(0)))

	dir := t.TempDir()
	req := Request{
		SourcePath:   writePNG(t, dir),
		SourceFormat: "image/png",
		TargetFormat: "image/webp",
		TargetPath:   filepath.Join(dir, "frame.webp"),
	}

	err := NewClient(conn).Convert(context.Background(), req)
	var cerr *ConversionError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "unsupported target format")

	assertNoLeftovers(t, req)
}

func TestServerRejectsUnreadableSource(t *testing.T) {
	conn := startBackend(t, NewServer(imaging.NewTranscoder(0)))

	dir := t.TempDir()
	src := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(src, []byte("definitely not a png"), 0644))

	req := Request{
		SourcePath:   src,
		SourceFormat: "image/png",
		TargetFormat: "image/gif",
		TargetPath:   filepath.Join(dir, "broken.gif"),
	}

	err := NewClient(conn).Convert(context.Background(), req)
	assert.ErrorIs(t, err, ErrConversionFailed)
	assert.ErrorContains(t, err, "not a readable image")

	assertNoLeftovers(t, req)
}
