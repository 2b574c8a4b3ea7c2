package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// LocalStore writes images below a directory served by the HTTP API.
type LocalStore struct {
	root    string
	baseURL string
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewLocalStore(root, baseURL string, logger *zerolog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "cars"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{root: root, baseURL: baseURL, now: time.Now, logger: logger}, nil
}

// Root is the directory holding stored objects.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) UploadImage(ctx context.Context, ownerID int64, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := ObjectName(ownerID, filename, s.now())
	path := filepath.Join(s.root, filepath.FromSlash(name))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	s.logger.Debug().Str("object", name).Int64("bytes", n).Msg("image stored")
	return joinURL(s.baseURL, name), nil
}

func (s *LocalStore) DeleteImage(ctx context.Context, url string) error {
	name, err := objectName(s.baseURL, url)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(name))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	s.logger.Debug().Str("object", name).Msg("image deleted")
	return nil
}
