package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/templui/reelstore/internal/access"
	"github.com/templui/reelstore/internal/config"
	"github.com/templui/reelstore/internal/convert"
	"github.com/templui/reelstore/internal/db"
	"github.com/templui/reelstore/internal/repository"
	"github.com/templui/reelstore/internal/service"
	"github.com/templui/reelstore/internal/storage"
)

type App struct {
	Cfg           *config.Config
	DB            *sqlx.DB
	ConverterConn *grpc.ClientConn
	AuthService   *service.AuthService
	UserService   *service.UserService
	FilmService   *service.FilmService
	ImageService  *service.ImageService

	// done stops background goroutines such as the rate limiter cleanup
	done      chan struct{}
	closeOnce sync.Once
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	filmRepository := repository.NewFilmRepository(database)
	reviewRepository := repository.NewReviewRepository(database)
	imageRepository := repository.NewImageRepository(database)

	// Conversion backend. The connection is lazy; it dials on the first conversion.
	conn, err := grpc.NewClient(cfg.ConverterAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create converter client: %w", err)
	}
	converter := convert.NewClient(conn, convert.WithChunkSize(cfg.ConverterChunkSize))

	// Storage
	localStorage := storage.NewLocalStorage()

	// A nil *S3Publisher must not end up inside the Publisher interface
	var publisher storage.Publisher
	s3Publisher, err := storage.NewPublisher(ctx, cfg)
	if err != nil {
		conn.Close()
		database.Close()
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}
	if s3Publisher != nil {
		publisher = s3Publisher
	}

	// Services
	policy := access.NewPolicy(repository.NewAssetStore(filmRepository, imageRepository, reviewRepository))
	authService := service.NewAuthService(userRepository, cfg.JWTSecret, cfg.IsProduction(), cfg.JWTExpiry)
	userService := service.NewUserService(userRepository)
	filmService := service.NewFilmService(filmRepository, reviewRepository, userRepository)
	imageService := service.NewImageService(
		policy,
		filmRepository,
		imageRepository,
		localStorage,
		publisher,
		converter,
		service.ImageServiceConfig{
			UploadDir:      cfg.UploadDir,
			DerivedDir:     cfg.DerivedDir,
			MaxUploadSize:  cfg.MaxUploadSize,
			ConvertTimeout: cfg.ConverterTimeout,
		},
	)

	return &App{
		Cfg:           cfg,
		DB:            database,
		ConverterConn: conn,
		AuthService:   authService,
		UserService:   userService,
		FilmService:   filmService,
		ImageService:  imageService,
		done:          make(chan struct{}),
	}, nil
}

// Done is closed by Close
func (a *App) Done() <-chan struct{} {
	return a.done
}

func (a *App) Close() error {
	a.closeOnce.Do(func() { close(a.done) })

	var errs []error
	if a.ConverterConn != nil {
		errs = append(errs, a.ConverterConn.Close())
	}
	if a.DB != nil {
		errs = append(errs, db.Close(a.DB))
	}
	return errors.Join(errs...)
}
