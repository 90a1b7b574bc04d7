// Package storage wraps the MinIO client used to fetch source recordings.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// Client downloads recording objects to local files.
type Client struct {
	api    *minio.Client
	bucket string
	logger *slog.Logger
}

// New constructs a storage client from configuration.
func New(cfg config.Storage, logger *slog.Logger) (*Client, error) {
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &Client{
		api:    api,
		bucket: cfg.Bucket,
		logger: logging.NewComponentLogger(logger, "storage"),
	}, nil
}

// NormalizeKey strips a leading bucket prefix from a file URL so producers may
// send either "recordings/meeting-1/user-2.ogg" or "meeting-1/user-2.ogg".
func (c *Client) NormalizeKey(fileURL string) string {
	return NormalizeKey(c.bucket, fileURL)
}

// NormalizeKey is the prefix-stripping rule on its own, usable without a
// connected client.
func NormalizeKey(bucket, fileURL string) string {
	if prefix := bucket + "/"; strings.HasPrefix(fileURL, prefix) {
		return fileURL[len(prefix):]
	}
	return fileURL
}

// Download fetches an object to localPath. Missing objects are tagged as
// permanent failures; everything else is transient.
func (c *Client) Download(ctx context.Context, fileURL, localPath string) error {
	key := c.NormalizeKey(fileURL)
	started := time.Now()

	err := c.api.FGetObject(ctx, c.bucket, key, localPath, minio.GetObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == 404 {
			return services.Wrap(services.ErrNotFound, "download", "fetch", key, err)
		}
		return services.Wrap(services.ErrTransient, "download", "fetch", key, err)
	}

	c.logger.Debug("object downloaded",
		logging.String("key", key),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}
