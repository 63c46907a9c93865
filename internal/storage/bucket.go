package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/schoolhub/backend/internal/content"
	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/utils"
)

// BucketService stores uploads in a GCS bucket and satisfies the content
// manager's FileStore contract. Object keys look like
// courses/<course-id>/<section>/<uuid>-<filename>.
type BucketService struct {
	log        *logger.Logger
	client     *gcs.Client
	bucketName string
	cdnDomain  string
}

func NewBucketService(log *logger.Logger) (*BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	bucket := utils.GetEnv("GCS_BUCKET_NAME", "", log)
	if bucket == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
	}
	cdnDomain := utils.GetEnv("CDN_DOMAIN", "", log)
	saPath := utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "", log)

	ctx := context.Background()
	var client *gcs.Client
	var err error
	if saPath != "" {
		client, err = gcs.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(gcs.ScopeReadWrite))
	} else {
		serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set, relying on ambient credentials")
		client, err = gcs.NewClient(ctx, option.WithScopes(gcs.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &BucketService{
		log:        serviceLog,
		client:     client,
		bucketName: bucket,
		cdnDomain:  cdnDomain,
	}, nil
}

func (bs *BucketService) Upload(ctx context.Context, r io.Reader, filename string, courseID uuid.UUID, sectionTitle string) (*content.UploadResult, error) {
	key := fmt.Sprintf("courses/%s/%s/%s-%s", courseID, sectionTitle, uuid.New(), filename)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.client.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize object %q: %w", key, err)
	}

	return &content.UploadResult{
		URL:         bs.PublicURL(key),
		StoragePath: key,
		Type:        contentType,
		UploadedAt:  time.Now().UTC(),
	}, nil
}

func (bs *BucketService) Delete(ctx context.Context, storagePath string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.client.Bucket(bs.bucketName).Object(storagePath).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object %q: %w", storagePath, err)
	}
	return nil
}

// UploadRaw stores an arbitrary object under the given key; used for
// submission uploads and generated avatars that live outside the course
// content tree.
func (bs *BucketService) UploadRaw(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := bs.client.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %q: %w", key, err)
	}
	return bs.PublicURL(key), nil
}

func (bs *BucketService) PublicURL(key string) string {
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucketName, key)
}
