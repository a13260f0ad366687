// Package storage is the artifact store client backed by an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	sourceObject = "source.zip"
	buildDir     = "build"
	buildObject  = "output.zip"
)

// S3API is the subset of the S3 client the store needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store reads and writes named blobs inside a single bucket.
type Store struct {
	client S3API
	bucket string
}

func New(client S3API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// NewFromConfig builds a Store on a real S3 client.
func NewFromConfig(cfg aws.Config, bucket string) *Store {
	return New(s3.NewFromConfig(cfg), bucket)
}

func (s *Store) Bucket() string {
	return s.bucket
}

// SourceKey is where the packaged repository of a deployment lives.
func SourceKey(prefix, deploymentID string) string {
	return path.Join(prefix, deploymentID, sourceObject)
}

// BuildPath is the directory the build service writes a deployment's output into.
func BuildPath(prefix, deploymentID string) string {
	return path.Join(prefix, deploymentID, buildDir)
}

// BuildKey is the full key of a deployment's build output.
func BuildKey(prefix, deploymentID string) string {
	return path.Join(BuildPath(prefix, deploymentID), buildObject)
}

// BuildObjectName is the file name the build service gives its output.
func BuildObjectName() string {
	return buildObject
}

// Put uploads body under key. Callers may retry the whole call; the SDK
// already retries transient failures.
func (s *Store) Put(ctx context.Context, key string, body io.ReadSeeker, size int64) error {
	if key == "" {
		return fmt.Errorf("artifact key cannot be empty")
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/zip"),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Get opens the object stored under key. The caller closes the reader.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}
