package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/templui/reelstore/internal/app"
	"github.com/templui/reelstore/internal/config"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		AppName:            "reelstore",
		AppEnv:             "development",
		DBDriver:           "sqlite",
		DBConnection:       filepath.Join(dir, "test.db"),
		JWTSecret:          "test-secret-test-secret-test-secret",
		JWTExpiry:          time.Hour,
		LoginRateLimit:     1,
		LoginRateBurst:     10,
		UploadDir:          filepath.Join(dir, "uploads"),
		DerivedDir:         filepath.Join(dir, "uploads", "derived"),
		MaxUploadSize:      1 << 20,
		ConverterAddr:      "localhost:1",
		ConverterTimeout:   time.Second,
		ConverterChunkSize: 1024,
	}

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestPublicRoutes(t *testing.T) {
	h := SetupRoutes(newTestApp(t))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/films/private/1/images", http.StatusUnauthorized},
		{http.MethodGet, "/api/films/private/1/images/7", http.StatusUnauthorized},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestLoginAndList(t *testing.T) {
	a := newTestApp(t)
	h := SetupRoutes(a)
	ctx := context.Background()

	owner, err := a.UserService.Create(ctx, "owner@example.com", "Owner", "a long enough secret")
	require.NoError(t, err)
	reviewer, err := a.UserService.Create(ctx, "reviewer@example.com", "Reviewer", "a reviewer secret")
	require.NoError(t, err)
	_, err = a.UserService.Create(ctx, "stranger@example.com", "Stranger", "another long secret")
	require.NoError(t, err)
	film, err := a.FilmService.Create(ctx, owner.ID, "Rushes", true)
	require.NoError(t, err)
	require.NoError(t, a.FilmService.AddReviewer(ctx, film.ID, reviewer.ID))

	login := func(email, password string) string {
		body := strings.NewReader(`{"email":"` + email + `","password":"` + password + `"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Token
	}

	list := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/films/private/"+strconv.FormatInt(film.ID, 10)+"/images", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := list(login("owner@example.com", "a long enough secret"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = list(login("reviewer@example.com", "a reviewer secret"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = list(login("stranger@example.com", "another long secret"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
