package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/templui/reelstore/internal/config"
)

func TestPresignedURL(t *testing.T) {
	ctx := context.Background()
	p, err := NewS3Publisher(ctx, S3Config{
		Region:        "eu-central-1",
		Bucket:        "reels",
		AccessKey:     "minio",
		SecretKey:     "minio-secret",
		Endpoint:      "http://localhost:9000",
		PresignExpiry: 15 * time.Minute,
	})
	require.NoError(t, err)

	raw, err := p.PresignedURL(ctx, "films/1/still.gif", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/reels/films/1/still.gif", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestNewPublisherDisabled(t *testing.T) {
	p, err := NewPublisher(context.Background(), &cfg.Config{})
	require.NoError(t, err)
	assert.Nil(t, p)
}
