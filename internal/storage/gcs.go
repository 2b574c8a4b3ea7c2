package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"rentacar/internal/config"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// GCSStore uploads images to a Cloud Storage bucket.
type GCSStore struct {
	service *gcs.Service
	bucket  string
	baseURL string
	now     func() time.Time
	logger  *zerolog.Logger
}

// NewGCSStore authenticates with a service account key file.
func NewGCSStore(ctx context.Context, cfg config.GCSStorageConfig, baseURL string, logger *zerolog.Logger) (*GCSStore, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, gcs.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return newGCSStore(ctx, cfg.Bucket, baseURL, logger, option.WithHTTPClient(jwtConfig.Client(ctx)))
}

func newGCSStore(ctx context.Context, bucket, baseURL string, logger *zerolog.Logger, opts ...option.ClientOption) (*GCSStore, error) {
	srv, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create storage service: %w", err)
	}
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{
		service: srv,
		bucket:  bucket,
		baseURL: baseURL,
		now:     time.Now,
		logger:  logger,
	}, nil
}

func (s *GCSStore) UploadImage(ctx context.Context, ownerID int64, filename string, r io.Reader) (string, error) {
	name := ObjectName(ownerID, filename, s.now())
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	obj := &gcs.Object{
		Name:         name,
		ContentType:  contentType,
		CacheControl: "public, max-age=86400",
	}
	stored, err := s.service.Objects.Insert(s.bucket, obj).
		Media(r).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}

	s.logger.Debug().Str("bucket", s.bucket).Str("object", stored.Name).Uint64("bytes", stored.Size).Msg("image uploaded")
	return joinURL(s.baseURL, stored.Name), nil
}

func (s *GCSStore) DeleteImage(ctx context.Context, url string) error {
	name, err := objectName(s.baseURL, url)
	if err != nil {
		return err
	}
	if err := s.service.Objects.Delete(s.bucket, name).Context(ctx).Do(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	s.logger.Debug().Str("bucket", s.bucket).Str("object", name).Msg("image deleted")
	return nil
}

// Ping checks that the bucket is reachable.
func (s *GCSStore) Ping(ctx context.Context) error {
	if _, err := s.service.Buckets.Get(s.bucket).Context(ctx).Do(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return fmt.Errorf("bucket %s not found", s.bucket)
		}
		return fmt.Errorf("bucket %s unreachable: %w", s.bucket, err)
	}
	return nil
}
