package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret      string
	JWTExpiry      time.Duration
	LoginRateLimit float64 // Login attempts per second per client IP
	LoginRateBurst int

	// Local storage
	UploadDir     string
	DerivedDir    string
	MaxUploadSize int64

	// Conversion backend
	ConverterAddr      string
	ConverterTimeout   time.Duration
	ConverterChunkSize int
	ConverterListen    string // Listen address of cmd/converter
	JPEGQuality        int

	// Observability (optional)
	SentryDSN string

	// Publishing (optional, S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string        // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	S3PresignExpiry time.Duration // Lifetime of redirect URLs handed to clients
	S3CreateBucket  bool          // Create the bucket on startup when it is missing
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	uploadDir := envString("UPLOAD_DIR", "./uploads")

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "reelstore"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/reelstore.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret:      envRequired("JWT_SECRET"),
		JWTExpiry:      envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days
		LoginRateLimit: envFloat("LOGIN_RATE_LIMIT", 0.2),        // one attempt every 5s
		LoginRateBurst: envInt("LOGIN_RATE_BURST", 5),

		// Local storage
		UploadDir:     uploadDir,
		DerivedDir:    envString("DERIVED_DIR", uploadDir+"/derived"),
		MaxUploadSize: envSize("MAX_UPLOAD_SIZE", 10<<20),

		// Conversion backend
		ConverterAddr:      envString("CONVERTER_ADDR", "localhost:50051"),
		ConverterTimeout:   envDuration("CONVERTER_TIMEOUT", 2*time.Minute),
		ConverterChunkSize: envInt("CONVERTER_CHUNK_SIZE", 1024),
		ConverterListen:    envString("CONVERTER_LISTEN", ":50051"),
		JPEGQuality:        envInt("JPEG_QUALITY", 90),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Publishing
		S3Region:        envString("S3_REGION", ""),
		S3Bucket:        envString("S3_BUCKET", ""),
		S3AccessKey:     envString("S3_ACCESS_KEY", ""),
		S3SecretKey:     envString("S3_SECRET_KEY", ""),
		S3Endpoint:      envString("S3_ENDPOINT", ""),
		S3PresignExpiry: envDuration("S3_PRESIGN_EXPIRY", 15*time.Minute),
		S3CreateBucket:  envBool("S3_CREATE_BUCKET", true),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// LoadConverter reads the subset of settings used by the conversion backend
// and its command-line client, which need neither the database nor the auth secret.
func LoadConverter() *Config {
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	return &Config{
		AppName:         envString("APP_NAME", "reelstore"),
		AppEnv:          envString("APP_ENV", "development"),
		ConverterListen: envString("CONVERTER_LISTEN", ":50051"),
		ConverterAddr:   envString("CONVERTER_ADDR", "localhost:50051"),
		JPEGQuality:     envInt("JPEG_QUALITY", 90),
		SentryDSN:       envString("SENTRY_DSN", ""),
	}
}

// validateProduction rejects settings that are only acceptable for local development.
func validateProduction(cfg *Config) {
	if len(cfg.JWTSecret) < 32 {
		slog.Error("production deployment requires a JWT_SECRET of at least 32 characters")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config invalid float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

// envSize parses byte sizes such as "512KB", "10MB" or a plain byte count.
func envSize(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	size, err := parseSize(v)
	if err != nil {
		slog.Warn("config invalid size, using default", "key", key, "value", v, "default", def)
		return def
	}
	return size
}

func parseSize(v string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		factor int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			multiplier = unit.factor
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * multiplier, nil
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// S3Enabled reports whether served files are published to S3.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
// Safe to log at startup.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName: c.AppName,
		AppEnv:  c.AppEnv,
		Port:    c.Port,

		DBDriver: c.DBDriver,

		JWTExpiry:      c.JWTExpiry,
		LoginRateLimit: c.LoginRateLimit,
		LoginRateBurst: c.LoginRateBurst,

		UploadDir:     c.UploadDir,
		DerivedDir:    c.DerivedDir,
		MaxUploadSize: c.MaxUploadSize,

		ConverterAddr:      c.ConverterAddr,
		ConverterTimeout:   c.ConverterTimeout,
		ConverterChunkSize: c.ConverterChunkSize,
		ConverterListen:    c.ConverterListen,
		JPEGQuality:        c.JPEGQuality,

		S3Region:        c.S3Region,
		S3Bucket:        c.S3Bucket,
		S3Endpoint:      c.S3Endpoint,
		S3PresignExpiry: c.S3PresignExpiry,
	}
}
