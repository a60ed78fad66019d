package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/templui/reelstore/internal/app"
	"github.com/templui/reelstore/internal/handler"
	"github.com/templui/reelstore/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService)
	images := handler.NewImageHandler(app.ImageService, app.Cfg.MaxUploadSize)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /health", health.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth (rate limited)
	rateLimiter := middleware.RateLimit(middleware.NewRateLimiter(app.Cfg.LoginRateLimit, app.Cfg.LoginRateBurst, app.Done()))

	mux.HandleFunc("POST /api/auth/login", rateLimiter(auth.Login))
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)

	// ============================================================================
	// PROTECTED ROUTES (/api/films/private/*)
	// ============================================================================

	mux.HandleFunc("GET /api/films/private/{filmId}/images", middleware.RequireAuth(images.List))
	mux.HandleFunc("POST /api/films/private/{filmId}/images", middleware.RequireAuth(images.Upload))
	mux.HandleFunc("GET /api/films/private/{filmId}/images/{imageId}", middleware.RequireAuth(images.Get))
	mux.HandleFunc("DELETE /api/films/private/{filmId}/images/{imageId}", middleware.RequireAuth(images.Delete))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	// 404
	mux.HandleFunc("/{path...}", handler.NotFound)

	// Global middleware - executed in order (top to bottom)
	h := middleware.Chain(
		mux,
		middleware.RequestID, // Request ID must be first so every log line carries it
		middleware.RequestLogging,
		middleware.Metrics,
		middleware.AuthMiddleware(app.AuthService),
	)

	return h
}
