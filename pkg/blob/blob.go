// Package blob wraps the S3-compatible object store that holds published
// reference data and, optionally, raw provider payloads kept for audit.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Config holds the connection settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
	// Prefix is prepended to every key.
	Prefix string
}

// Store reads and writes whole objects in a single bucket.
type Store struct {
	cli    *minio.Client
	bucket string
	prefix string
}

func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("blob: endpoint is required (set blob.endpoint)")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("blob: bucket is required (set blob.bucket)")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: %w", err)
	}
	return &Store{cli: cli, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + "/" + k
}

// Get downloads an object in full.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.cli.GetObject(ctx, s.bucket, s.key(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blob get %s: %w", key, err)
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("blob get %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("blob get %s: %w", key, err)
	}
	return b, nil
}

// Put uploads data under key, replacing any previous object.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.cli.PutObject(ctx, s.bucket, s.key(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("blob put %s: %w", key, err)
	}
	return nil
}

// PersistAuditPayload keeps a raw provider payload under audit/<key>.
func (s *Store) PersistAuditPayload(ctx context.Context, key string, payload []byte) error {
	return s.Put(ctx, "audit/"+key, payload, "application/json")
}
