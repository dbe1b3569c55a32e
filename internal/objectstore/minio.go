package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements Store on any S3-compatible endpoint
type MinioStore struct {
	client        *minio.Client
	publicBaseURL string
}

// MinioOptions configures NewMinioStore
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool

	// PublicBaseURL overrides the host used by PublicURL, e.g. a CDN.
	// Defaults to the endpoint.
	PublicBaseURL string
}

// NewMinioStore creates a MinioStore. No request is made until first use.
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	base := opts.PublicBaseURL
	if base == "" {
		base = client.EndpointURL().String()
	}
	return &MinioStore{client: client, publicBaseURL: strings.TrimRight(base, "/")}, nil
}

// EnsureBucket creates bucket when it does not exist yet
func (s *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return translateError(err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, translateError(err))
	}
	return nil
}

// List implements Store
func (s *MinioStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object
	for info := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, translateError(info.Err)
		}
		objects = append(objects, Object{
			Key:          info.Key,
			Size:         info.Size,
			ContentType:  info.ContentType,
			LastModified: info.LastModified,
		})
	}
	return objects, nil
}

// Upload implements Store
func (s *MinioStore) Upload(
	ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string,
) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, translateError(err))
	}
	return nil
}

// PublicURL implements Store
func (s *MinioStore) PublicURL(bucket, key string) string {
	return s.publicBaseURL + "/" + url.PathEscape(bucket) + "/" + escapeKey(key)
}

// Remove implements Store
func (s *MinioStore) Remove(ctx context.Context, bucket string, keys ...string) error {
	for _, key := range keys {
		err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
		if err != nil {
			if translateError(err) == ErrNotFound {
				continue
			}
			return fmt.Errorf("failed to remove %s/%s: %w", bucket, key, err)
		}
	}
	return nil
}

// escapeKey escapes each path segment of an object key
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// translateError maps MinIO error codes onto package errors
func translateError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrNotFound
	default:
		return err
	}
}
