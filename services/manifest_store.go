package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/sevenfour/order-workflow-api/config"
)

// ManifestStore persists generated delivery manifests and hands out download links
type ManifestStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// S3ManifestStore keeps manifests in a private S3 bucket
type S3ManifestStore struct {
	client *s3.Client
	bucket string
}

var manifestStoreInstance ManifestStore

// InitManifestStore initializes the S3 manifest store with AWS credentials
func InitManifestStore(ctx context.Context, cfg *appConfig.Config) (ManifestStore, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	// Without static keys the default chain (env, shared profile, instance role) applies
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	manifestStoreInstance = &S3ManifestStore{
		client: s3.NewFromConfig(awsConfig),
		bucket: cfg.AWSS3Bucket,
	}
	return manifestStoreInstance, nil
}

// GetManifestStore returns the initialized manifest store, or nil when storage is disabled
func GetManifestStore() ManifestStore {
	return manifestStoreInstance
}

// SetManifestStore sets the manifest store instance (primarily for testing)
func SetManifestStore(store ManifestStore) {
	manifestStoreInstance = store
}

// Put uploads one manifest object
func (s *S3ManifestStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload manifest to S3: %w", err)
	}
	return nil
}

// PresignedURL generates a time-limited GET link for a private manifest object
func (s *S3ManifestStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return request.URL, nil
}
