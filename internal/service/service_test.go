package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/reelstore/internal/access"
	"github.com/templui/reelstore/internal/convert"
	"github.com/templui/reelstore/internal/db"
	"github.com/templui/reelstore/internal/imaging"
	"github.com/templui/reelstore/internal/repository"
	"github.com/templui/reelstore/internal/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := db.Init("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.RunMigrations(conn.DB, "sqlite"))
	return conn
}

// fakeConverter records requests and writes a placeholder target file.
// When gate is set each call blocks until it is closed.
type fakeConverter struct {
	mu      sync.Mutex
	calls   []convert.Request
	ctxErrs []error
	err     error
	gate    chan struct{}
}

func (f *fakeConverter) Convert(ctx context.Context, req convert.Request) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(req.TargetPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(req.TargetPath, []byte("converted to "+req.TargetFormat), 0644)
}

func (f *fakeConverter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	db         *sqlx.DB
	images     *ImageService
	films      repository.FilmRepository
	imageRepo  repository.ImageRepository
	reviews    repository.ReviewRepository
	users      repository.UserRepository
	uploadDir  string
	derivedDir string
	sourcePath string
}

// newFixture seeds Film{1, owner 42, private}, Film{2, owner 42, public},
// Review{1, 99}, Review{2, 99}, Image{7, film 1, uploader 42, png}
// and Image{8, film 2, uploader 42, png}.
func newFixture(t *testing.T, converter Converter) *fixture {
	t.Helper()

	conn := newTestDB(t)
	dir := t.TempDir()
	f := &fixture{
		db:         conn,
		films:      repository.NewFilmRepository(conn),
		imageRepo:  repository.NewImageRepository(conn),
		reviews:    repository.NewReviewRepository(conn),
		users:      repository.NewUserRepository(conn),
		uploadDir:  filepath.Join(dir, "uploads"),
		derivedDir: filepath.Join(dir, "uploads", "derived"),
	}
	f.sourcePath = filepath.Join(f.uploadDir, "1_42_still.png")

	require.NoError(t, os.MkdirAll(f.uploadDir, 0755))
	require.NoError(t, os.WriteFile(f.sourcePath, samplePNG(t), 0644))

	conn.MustExec(`INSERT INTO films (id, owner_id, title, private, created_at) VALUES (1, 42, 'Rushes', 1, CURRENT_TIMESTAMP)`)
	conn.MustExec(`INSERT INTO films (id, owner_id, title, private, created_at) VALUES (2, 42, 'Trailer', 0, CURRENT_TIMESTAMP)`)
	conn.MustExec(`INSERT INTO reviews (film_id, reviewer_id) VALUES (1, 99), (2, 99)`)
	conn.MustExec(`INSERT INTO images (id, film_id, uploader_id, url, format, created_at) VALUES (7, 1, 42, $1, 'image/png', CURRENT_TIMESTAMP)`, f.sourcePath)
	conn.MustExec(`INSERT INTO images (id, film_id, uploader_id, url, format, created_at) VALUES (8, 2, 42, $1, 'image/png', CURRENT_TIMESTAMP)`, filepath.Join(f.uploadDir, "2_42_teaser.png"))

	policy := access.NewPolicy(repository.NewAssetStore(f.films, f.imageRepo, f.reviews))
	f.images = NewImageService(policy, f.films, f.imageRepo, storage.NewLocalStorage(), nil, converter, ImageServiceConfig{
		UploadDir:     f.uploadDir,
		DerivedDir:    f.derivedDir,
		MaxUploadSize: 1 << 20,
	})
	return f
}

func samplePNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 12, 8))
	for x := 0; x < 12; x++ {
		img.Set(x, x%8, color.RGBA{G: 255, A: 255})
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// referenceBackend serves the real conversion backend over an in-memory listener.
func referenceBackend(t *testing.T) *convert.Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.ForceServerCodec(convert.Codec{}))
	convert.RegisterConverterServer(s, convert.NewServer(imaging.NewTranscoder(0)))
	go s.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		s.Stop()
	})
	return convert.NewClient(conn)
}

// fileHeader builds a multipart file header the way net/http parses it.
func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	return req.MultipartForm.File["image"][0]
}
