package storage

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rentacar/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

var fixedNow = time.UnixMilli(1700000000123)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "cars/7-1700000000123.jpg", ObjectName(7, "Front.JPG", fixedNow))
	assert.Equal(t, "cars/7-1700000000123", ObjectName(7, "noext", fixedNow))
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root, "/uploads/", testLogger())
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }

	url, err := s.UploadImage(context.Background(), 3, "a.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/cars/3-1700000000123.png", url)

	data, err := os.ReadFile(filepath.Join(root, "cars", "3-1700000000123.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	t.Run("NoOverwrite", func(t *testing.T) {
		_, err := s.UploadImage(context.Background(), 3, "b.png", strings.NewReader("other"))
		assert.Error(t, err)
		data, _ := os.ReadFile(filepath.Join(root, "cars", "3-1700000000123.png"))
		assert.Equal(t, "png-bytes", string(data))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.DeleteImage(context.Background(), url))
		_, err := os.Stat(filepath.Join(root, "cars", "3-1700000000123.png"))
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.NoError(t, s.DeleteImage(context.Background(), url))
		assert.Error(t, s.DeleteImage(context.Background(), "/uploads/../config.yaml"))
		assert.Error(t, s.DeleteImage(context.Background(), "https://elsewhere/cars/1.png"))
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.UploadImage(ctx, 4, "c.png", strings.NewReader(""))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type fakeBucket struct {
	name        string
	contentType string
	body        string
	deleted     []string
}

func newFakeGCS(t *testing.T, bucket string) (*GCSStore, *fakeBucket) {
	t.Helper()
	got := &fakeBucket{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/b/"+bucket+"/o"):
			_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			require.NoError(t, err)
			mr := multipart.NewReader(r.Body, params["boundary"])

			meta, err := mr.NextPart()
			require.NoError(t, err)
			var obj gcs.Object
			require.NoError(t, json.NewDecoder(meta).Decode(&obj))

			media, err := mr.NextPart()
			require.NoError(t, err)
			body, _ := io.ReadAll(media)

			got.name, got.contentType, got.body = obj.Name, obj.ContentType, string(body)
			_ = json.NewEncoder(w).Encode(gcs.Object{Name: obj.Name, Bucket: bucket, Size: uint64(len(body))})
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/b/"+bucket+"/o/cars/9-1.jpg"):
			got.deleted = append(got.deleted, strings.TrimPrefix(r.URL.Path, "/storage/v1/b/"+bucket+"/o/"))
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/b/"+bucket):
			_ = json.NewEncoder(w).Encode(gcs.Bucket{Name: bucket})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	s, err := newGCSStore(context.Background(), bucket, "", testLogger(),
		option.WithEndpoint(server.URL+"/storage/v1/"), option.WithoutAuthentication())
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s, got
}

func TestGCSStore_UploadImage(t *testing.T) {
	s, got := newFakeGCS(t, "rentacar-images")

	url, err := s.UploadImage(context.Background(), 9, "side.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/rentacar-images/cars/9-1700000000123.jpg", url)
	assert.Equal(t, "cars/9-1700000000123.jpg", got.name)
	assert.Equal(t, "image/jpeg", got.contentType)
	assert.Equal(t, "jpeg", got.body)
}

func TestGCSStore_DeleteImage(t *testing.T) {
	s, got := newFakeGCS(t, "rentacar-images")
	ctx := context.Background()

	require.NoError(t, s.DeleteImage(ctx, "https://storage.googleapis.com/rentacar-images/cars/9-1.jpg"))
	assert.Equal(t, []string{"cars/9-1.jpg"}, got.deleted)

	assert.NoError(t, s.DeleteImage(ctx, "https://storage.googleapis.com/rentacar-images/cars/9-2.jpg"), "missing object")
	assert.Error(t, s.DeleteImage(ctx, "https://storage.googleapis.com/other/cars/9-1.jpg"))
}

func TestGCSStore_Ping(t *testing.T) {
	s, _ := newFakeGCS(t, "rentacar-images")
	require.NoError(t, s.Ping(context.Background()))

	missing, _ := newFakeGCS(t, "other")
	missing.bucket = "absent"
	err := missing.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, config.StorageConfig{Driver: config.StorageLocal, LocalPath: t.TempDir(), PublicBaseURL: "/uploads"}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(ctx, config.StorageConfig{Driver: config.StorageGCS, GCS: config.GCSStorageConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}}, testLogger())
	assert.Error(t, err)

	_, err = New(ctx, config.StorageConfig{Driver: "ftp"}, testLogger())
	assert.Error(t, err)
}
