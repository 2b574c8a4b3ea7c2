// Package storage keeps uploaded car images on disk or in Cloud Storage.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"rentacar/internal/config"
	"rentacar/internal/domain"

	"github.com/rs/zerolog"
)

// ObjectName is the stored name of an image uploaded for ownerID at t.
func ObjectName(ownerID int64, filename string, t time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("cars/%d-%d%s", ownerID, t.UnixMilli(), ext)
}

// New builds the image store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, logger *zerolog.Logger) (domain.ImageStore, error) {
	switch cfg.Driver {
	case config.StorageLocal:
		return NewLocalStore(cfg.LocalPath, cfg.PublicBaseURL, logger)
	case config.StorageGCS:
		return NewGCSStore(ctx, cfg.GCS, cfg.PublicBaseURL, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}

// objectName reverses joinURL for URLs under base.
func objectName(base, url string) (string, error) {
	prefix := strings.TrimRight(base, "/") + "/"
	name, ok := strings.CutPrefix(url, prefix)
	if !ok || !strings.HasPrefix(name, "cars/") || strings.Contains(name, "..") {
		return "", fmt.Errorf("%q is not a stored image", url)
	}
	return name, nil
}
