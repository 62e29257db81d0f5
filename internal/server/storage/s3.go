// Package storage stores attachment bytes in an S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/timecapsule/internal/server/config"
)

// FileStore is the byte-storage collaborator consumed by the CRUD layer.
// Stored names are opaque; callers keep them in attachment rows.
type FileStore interface {
	Store(ctx context.Context, body io.Reader, originalName string, contentType string) (string, error)
	Load(ctx context.Context, storedName string) (io.ReadCloser, error)
	Delete(ctx context.Context, storedName string) error
	PresignedGetURL(ctx context.Context, storedName string) (string, error)
}

// Seams for testing the AWS SDK calls.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Store implements FileStore on top of aws-sdk-go-v2 against any
// S3-compatible endpoint (MinIO in development).
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds the S3 client from server config. Path-style addressing is
// forced so MinIO-style endpoints work without virtual-host DNS.
func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{client: client, bucket: cfg.S3Bucket}, nil
}

// randomStoredName keeps the original extension so downloads get a sensible
// filename, but the key itself never collides.
func randomStoredName(originalName string) string {
	return uuid.NewString() + path.Ext(originalName)
}

// Store uploads the payload under a fresh unique key and returns that key.
func (s *S3Store) Store(ctx context.Context, body io.Reader, originalName string, contentType string) (string, error) {
	key := randomStoredName(originalName)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

// Load streams a stored object. The caller owns closing the reader.
func (s *S3Store) Load(ctx context.Context, storedName string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storedName),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

// Delete removes a stored object. Deleting a missing key is not an error on
// S3, which matches the cascade semantics we want.
func (s *S3Store) Delete(ctx context.Context, storedName string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storedName),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PresignedGetURL returns a temporary download URL for a stored object.
func (s *S3Store) PresignedGetURL(ctx context.Context, storedName string) (string, error) {
	pc := s3.NewPresignClient(s.client)
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storedName),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
