// Package storage stores payment-proof uploads in S3-compatible object
// storage. The engine itself only keeps the returned object key.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ProofStore saves payment proof files and returns an opaque reference.
type ProofStore interface {
	Save(ctx context.Context, registrationID, filename string, r io.Reader) (string, error)
}

// S3Store is the S3-backed ProofStore.
type S3Store struct {
	client *s3.Client
	bucket string
}

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string // empty for AWS; set for MinIO or similar
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NewS3Store builds an S3-backed proof store.
func NewS3Store(cfg Config) *S3Store {
	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		BaseEndpoint: endpointOrNil(cfg.Endpoint),
		UsePathStyle: cfg.Endpoint != "",
	})
	return &S3Store{client: client, bucket: cfg.Bucket}
}

func endpointOrNil(endpoint string) *string {
	if endpoint == "" {
		return nil
	}
	return &endpoint
}

// Save implements ProofStore. Keys are namespaced per registration so a
// re-upload never clobbers an unrelated proof.
func (s *S3Store) Save(ctx context.Context, registrationID, filename string, r io.Reader) (string, error) {
	key := fmt.Sprintf("proofs/%s/%s-%s%s",
		registrationID,
		time.Now().UTC().Format("20060102T150405"),
		uuid.New().String()[:8],
		path.Ext(filename),
	)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return "", fmt.Errorf("put payment proof: %w", err)
	}
	return key, nil
}
