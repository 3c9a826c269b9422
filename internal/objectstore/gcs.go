package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores artifacts in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore opens the GCS client. credentialsFile may be empty to use
// application default credentials.
func NewGCSStore(ctx context.Context, bucket string, credentialsFile string) (*GCSStore, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

var _ Store = (*GCSStore)(nil)

func (s *GCSStore) Put(ctx context.Context, in PutInput) (*PutResult, error) {
	w := s.client.Bucket(s.bucket).Object(in.Key).NewWriter(ctx)
	w.ContentType = in.ContentType
	w.Metadata = in.Metadata

	if _, err := io.Copy(w, bytes.NewReader(in.Body)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write object %s: %w", in.Key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize object %s: %w", in.Key, err)
	}

	return &PutResult{
		Key:       in.Key,
		URL:       fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, in.Key),
		Bucket:    s.bucket,
		SizeBytes: int64(len(in.Body)),
	}, nil
}

func (s *GCSStore) SignedURL(key string, expires time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expires),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign url for %s: %w", key, err)
	}
	return url, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
