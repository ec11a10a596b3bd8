package evidence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/keyhaven/keyhaven/internal/common"
	sc "github.com/keyhaven/keyhaven/internal/server/config"
)

// Store is the object storage the normalizer reads stored evidence from and
// the biometric service writes uploads to.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)

	// PresignGetURL returns a short-lived URL a client can fetch the
	// evidence from directly.
	PresignGetURL(ctx context.Context, key string) (string, error)
}

// NewStorageKey derives a fresh object key for one evidence upload.
func NewStorageKey(userID string, modality Modality) string {
	return fmt.Sprintf("biometrics/%s/%s/%v", userID, modality, uuid.New())
}

// S3Store implements Store over an S3-compatible backend (MinIO in
// development). Every call runs under a bounded timeout; a slow or absent
// backend surfaces as common.ErrEvidenceFetch, never as an indefinite block.
type S3Store struct {
	client       *s3.Client
	bucket       string
	fetchTimeout time.Duration
}

func NewS3Store(ctx context.Context, cfg *sc.Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:       client,
		bucket:       cfg.S3Bucket,
		fetchTimeout: cfg.EvidenceFetchTimeout,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", common.ErrEvidenceFetch, key, err)
	}

	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", common.ErrEvidenceFetch, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrEvidenceFetch, key, err)
	}

	return data, nil
}

func (s *S3Store) PresignGetURL(ctx context.Context, key string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}

	return req.URL, nil
}
