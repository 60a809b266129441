package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"epatra/internal/utils"
	"epatra/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

var ErrObjectNotFound = errors.New("stored object not found")

// Provider persists uploaded document files. Keys are opaque to callers and
// stored on the document as its file path.
type Provider interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New picks S3 when a bucket is configured and falls back to the local upload
// directory when it is not, or when the bucket cannot be reached.
func New(ctx context.Context, logger *logrus.Logger, config *types.Config) Provider {
	if config.StorageBucket == "" {
		logger.WithField("dir", config.UploadDir).Info("using local file storage")
		return NewLocalStorage(config.UploadDir)
	}

	s, err := NewS3Storage(ctx, config.StorageBucket, config.StorageEndpoint)
	if err != nil {
		logger.WithError(err).Warn("failed to initialize s3 storage, falling back to local storage")
		return NewLocalStorage(config.UploadDir)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = s.client.HeadBucket(checkCtx, &s3.HeadBucketInput{Bucket: &s.bucket})
	if err != nil {
		logger.WithError(err).WithField("bucket", config.StorageBucket).Warn("s3 bucket check failed, falling back to local storage")
		return NewLocalStorage(config.UploadDir)
	}

	logger.WithField("bucket", config.StorageBucket).Info("using s3 file storage")
	return s
}

// DocumentKey builds a unique key that keeps the original extension, e.g.
// documents/2026/10/<nanoid>.pdf.
func DocumentKey(originalName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(originalName))
	return fmt.Sprintf("documents/%04d/%02d/%s%s", now.Year(), int(now.Month()), utils.NanoID(), ext)
}
