package service

import (
	"context"
	"errors"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/reelstore/internal/access"
	"github.com/templui/reelstore/internal/convert"
	"github.com/templui/reelstore/internal/model"
)

func TestRetrieveScenario(t *testing.T) {
	f := newFixture(t, referenceBackend(t))
	ctx := context.Background()

	asset, err := f.images.Retrieve(ctx, 1, 7, 99, "gif")
	require.NoError(t, err)
	assert.Equal(t, access.Reviewer, asset.Decision)
	assert.Equal(t, SourceConverted, asset.Source)
	assert.Equal(t, "image/gif", asset.Format)
	assert.True(t, strings.HasSuffix(asset.Path, ".gif"))
	assert.Equal(t, filepath.Join(f.derivedDir, "1_42_still.png.gif"), asset.Path)

	file, err := os.Open(asset.Path)
	require.NoError(t, err)
	defer file.Close()
	_, err = gif.Decode(file)
	require.NoError(t, err)

	_, err = f.images.Retrieve(ctx, 1, 7, 7, "gif")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.images.Retrieve(ctx, 1, 999, 99, "gif")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetrieveBackendRejection(t *testing.T) {
	f := newFixture(t, referenceBackend(t))

	_, err := f.images.Retrieve(context.Background(), 1, 7, 42, "webp")
	assert.ErrorIs(t, err, convert.ErrConversionFailed)

	var cerr *convert.ConversionError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "unsupported target format")
	assert.NoFileExists(t, filepath.Join(f.derivedDir, "1_42_still.png.webp"))
}

func TestRetrievePublicFilmIsNotFound(t *testing.T) {
	conv := &fakeConverter{}
	f := newFixture(t, conv)

	for _, caller := range []int64{42, 99, 7} {
		_, err := f.images.Retrieve(context.Background(), 2, 8, caller, "json")
		assert.ErrorIs(t, err, ErrNotFound, "caller %d", caller)
	}
	assert.Zero(t, conv.callCount())
}

func TestRetrieveDecisions(t *testing.T) {
	f := newFixture(t, &fakeConverter{})
	ctx := context.Background()

	asset, err := f.images.Retrieve(ctx, 1, 7, 42, "json")
	require.NoError(t, err)
	assert.Equal(t, access.Owner, asset.Decision)

	asset, err = f.images.Retrieve(ctx, 1, 7, 99, "json")
	require.NoError(t, err)
	assert.Equal(t, access.Reviewer, asset.Decision)

	_, err = f.images.Retrieve(ctx, 1, 7, 5, "json")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRetrieveStructuredRecord(t *testing.T) {
	conv := &fakeConverter{}
	f := newFixture(t, conv)

	for _, selector := range []string{"", "json", "application/json", "*/*"} {
		asset, err := f.images.Retrieve(context.Background(), 1, 7, 99, selector)
		require.NoError(t, err, selector)
		require.True(t, asset.IsRecord(), selector)
		assert.Equal(t, int64(7), asset.Image.ID)
		assert.Equal(t, "/api/films/private/1/images/7", asset.Image.Self)
	}
	assert.Zero(t, conv.callCount())
}

func TestRetrieveSameFormatShortCircuits(t *testing.T) {
	conv := &fakeConverter{}
	f := newFixture(t, conv)

	for _, selector := range []string{"png", ".PNG", "image/png", "image/x-png"} {
		asset, err := f.images.Retrieve(context.Background(), 1, 7, 99, selector)
		require.NoError(t, err, selector)
		assert.Equal(t, f.sourcePath, asset.Path)
		assert.Equal(t, SourceCanonical, asset.Source)
	}
	assert.Zero(t, conv.callCount())
}

func TestRetrieveIsIdempotent(t *testing.T) {
	conv := &fakeConverter{}
	f := newFixture(t, conv)
	ctx := context.Background()

	first, err := f.images.Retrieve(ctx, 1, 7, 99, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, SourceConverted, first.Source)

	second, err := f.images.Retrieve(ctx, 1, 7, 42, "jpg")
	require.NoError(t, err)
	assert.Equal(t, SourceCached, second.Source)

	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, filepath.Join(f.derivedDir, "1_42_still.png.jpg"), first.Path)
	assert.Equal(t, 1, conv.callCount())

	req := conv.calls[0]
	assert.Equal(t, f.sourcePath, req.SourcePath)
	assert.Equal(t, "image/png", req.SourceFormat)
	assert.Equal(t, "image/jpeg", req.TargetFormat)
}

func TestRetrieveKeepsSameStemImagesApart(t *testing.T) {
	conv := &fakeConverter{}
	f := newFixture(t, conv)
	ctx := context.Background()

	jpgPath := filepath.Join(f.uploadDir, "1_42_still.jpg")
	require.NoError(t, os.WriteFile(jpgPath, []byte("jpeg bytes"), 0644))
	f.db.MustExec(`INSERT INTO images (id, film_id, uploader_id, url, format, created_at) VALUES (9, 1, 42, $1, 'image/jpeg', CURRENT_TIMESTAMP)`, jpgPath)

	fromPNG, err := f.images.Retrieve(ctx, 1, 7, 99, "gif")
	require.NoError(t, err)
	fromJPG, err := f.images.Retrieve(ctx, 1, 9, 99, "gif")
	require.NoError(t, err)

	assert.Equal(t, SourceConverted, fromPNG.Source)
	assert.Equal(t, SourceConverted, fromJPG.Source)
	assert.NotEqual(t, fromPNG.Path, fromJPG.Path)
	assert.Equal(t, filepath.Join(f.derivedDir, "1_42_still.jpg.gif"), fromJPG.Path)
	require.Equal(t, 2, conv.callCount())
	assert.Equal(t, f.sourcePath, conv.calls[0].SourcePath)
	assert.Equal(t, jpgPath, conv.calls[1].SourcePath)

	require.NoError(t, f.images.Delete(ctx, 1, 9, 42))
	assert.NoFileExists(t, fromJPG.Path)
	assert.FileExists(t, fromPNG.Path)

	again, err := f.images.Retrieve(ctx, 1, 7, 99, "gif")
	require.NoError(t, err)
	assert.Equal(t, SourceCached, again.Source)
}

func TestRetrieveConversionFailure(t *testing.T) {
	conv := &fakeConverter{err: &convert.ConversionError{Reason: "unsupported file type"}}
	f := newFixture(t, conv)

	_, err := f.images.Retrieve(context.Background(), 1, 7, 99, "gif")
	assert.ErrorIs(t, err, convert.ErrConversionFailed)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.NoFileExists(t, filepath.Join(f.derivedDir, "1_42_still.png.gif"))

	// Failures are not cached; the next request tries again.
	conv.err = nil
	asset, err := f.images.Retrieve(context.Background(), 1, 7, 99, "gif")
	require.NoError(t, err)
	assert.FileExists(t, asset.Path)
	assert.Equal(t, 2, conv.callCount())
}

func TestRetrieveLocalFailureIsStorageError(t *testing.T) {
	conv := &fakeConverter{err: os.ErrPermission}
	f := newFixture(t, conv)

	_, err := f.images.Retrieve(context.Background(), 1, 7, 99, "gif")
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, convert.ErrConversionFailed)
}

func TestRetrieveUnsupportedFormat(t *testing.T) {
	conv := &fakeConverter{}
	f := newFixture(t, conv)

	_, err := f.images.Retrieve(context.Background(), 1, 7, 99, "video/mp4")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Zero(t, conv.callCount())
}

func TestRetrieveConcurrentRequestsShareOneConversion(t *testing.T) {
	conv := &fakeConverter{gate: make(chan struct{})}
	f := newFixture(t, conv)

	const callers = 6
	var wg sync.WaitGroup
	paths := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			asset, err := f.images.Retrieve(context.Background(), 1, 7, 99, "gif")
			errs[i] = err
			if err == nil {
				paths[i] = asset.Path
			}
		}()
	}

	require.Eventually(t, func() bool { return conv.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(conv.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, paths[0], paths[i])
	}
	assert.Equal(t, 1, conv.callCount())
}

func TestRetrieveCallerGivingUpDoesNotAbortConversion(t *testing.T) {
	conv := &fakeConverter{gate: make(chan struct{})}
	f := newFixture(t, conv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.images.Retrieve(ctx, 1, 7, 99, "gif")
		done <- err
	}()

	require.Eventually(t, func() bool { return conv.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(conv.gate)
	derived := filepath.Join(f.derivedDir, "1_42_still.png.gif")
	require.Eventually(t, func() bool {
		_, err := os.Stat(derived)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	conv.mu.Lock()
	defer conv.mu.Unlock()
	assert.NoError(t, conv.ctxErrs[0])
}

func TestUpload(t *testing.T) {
	f := newFixture(t, &fakeConverter{})
	ctx := context.Background()

	img, err := f.images.Upload(ctx, 1, 42, fileHeader(t, "frame.png", samplePNG(t)))
	require.NoError(t, err)
	assert.NotZero(t, img.ID)
	assert.Equal(t, model.FormatPNG, img.Format)
	assert.Equal(t, filepath.Join(f.uploadDir, "1_42_frame.png"), img.URL)
	assert.Equal(t, img.SelfLink(), img.Self)
	assert.FileExists(t, img.URL)

	stored, err := f.imageRepo.ByID(ctx, 1, img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.URL, stored.URL)

	_, err = f.images.Upload(ctx, 1, 42, fileHeader(t, "frame.png", samplePNG(t)))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUploadRules(t *testing.T) {
	f := newFixture(t, &fakeConverter{})
	ctx := context.Background()

	tests := []struct {
		name    string
		filmID  int64
		userID  int64
		file    string
		content []byte
		wantErr error
	}{
		{name: "missing film", filmID: 404, userID: 42, file: "a.png", content: samplePNG(t), wantErr: ErrNotFound},
		{name: "public film", filmID: 2, userID: 42, file: "a.png", content: samplePNG(t), wantErr: ErrConflict},
		{name: "not the owner", filmID: 1, userID: 99, file: "a.png", content: samplePNG(t), wantErr: ErrForbidden},
		{name: "not an image", filmID: 1, userID: 42, file: "a.png", content: []byte("hello"), wantErr: ErrInvalidUpload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.images.Upload(ctx, tt.filmID, tt.userID, fileHeader(t, tt.file, tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "1_99_a.png", e.Name())
		assert.NotEqual(t, "1_42_a.png", e.Name())
	}
}

func TestList(t *testing.T) {
	f := newFixture(t, &fakeConverter{})
	ctx := context.Background()

	images, err := f.images.List(ctx, 1, 42)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, int64(7), images[0].ID)

	images, err = f.images.List(ctx, 1, 99)
	require.NoError(t, err)
	assert.Len(t, images, 1)

	_, err = f.images.List(ctx, 1, 5)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.images.List(ctx, 2, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.images.List(ctx, 404, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, &fakeConverter{})
	ctx := context.Background()

	asset, err := f.images.Retrieve(ctx, 1, 7, 99, "gif")
	require.NoError(t, err)
	require.FileExists(t, asset.Path)

	err = f.images.Delete(ctx, 1, 7, 99)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.images.Delete(ctx, 1, 7, 42))
	assert.NoFileExists(t, f.sourcePath)
	assert.NoFileExists(t, asset.Path)

	err = f.images.Delete(ctx, 1, 7, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	err = f.images.Delete(ctx, 2, 8, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakePublisher struct {
	published map[string]string
	deleted   []string
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, key, localPath, _ string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published[key] = localPath
	return "https://cdn.example/" + key + "?sig=1", nil
}

func (p *fakePublisher) Delete(_ context.Context, key string) error {
	p.deleted = append(p.deleted, key)
	return nil
}

func TestPublish(t *testing.T) {
	f := newFixture(t, &fakeConverter{})
	ctx := context.Background()

	asset, err := f.images.Retrieve(ctx, 1, 7, 99, "png")
	require.NoError(t, err)

	url, err := f.images.Publish(ctx, asset)
	require.NoError(t, err)
	assert.Empty(t, url, "publishing is disabled without a publisher")

	pub := &fakePublisher{published: map[string]string{}}
	f.images.publisher = pub

	url, err = f.images.Publish(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/films/1/1_42_still.png?sig=1", url)
	assert.Equal(t, f.sourcePath, pub.published["films/1/1_42_still.png"])

	record, err := f.images.Retrieve(ctx, 1, 7, 99, "json")
	require.NoError(t, err)
	url, err = f.images.Publish(ctx, record)
	require.NoError(t, err)
	assert.Empty(t, url)

	pub.err = errors.New("bucket unavailable")
	_, err = f.images.Publish(ctx, asset)
	assert.ErrorIs(t, err, ErrStorage)

	require.NoError(t, f.images.Delete(ctx, 1, 7, 42))
	assert.Contains(t, pub.deleted, "films/1/1_42_still.png")
	assert.Contains(t, pub.deleted, "films/1/1_42_still.png.gif")
}
