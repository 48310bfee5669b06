package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Storage serves AWS S3 and S3 compatible stores such as Cloudflare R2.
type S3Storage struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	baseURL  string
}

func NewS3Storage(cfg Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}

	awsConfig := &aws.Config{
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Region:      aws.String(cfg.Region),
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	switch cfg.Type {
	case "cloudflare_r2":
		// https://<account_id>.r2.cloudflarestorage.com
		if cfg.Endpoint == "" {
			return nil, errors.New("storage: endpoint is required for Cloudflare R2")
		}
		awsConfig.Region = aws.String("auto")
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
		if baseURL == "" {
			baseURL = fmt.Sprintf("https://%s.r2.dev", cfg.Bucket)
		}
	default:
		if cfg.Region == "" {
			awsConfig.Region = aws.String("us-east-1")
		}
		if cfg.Endpoint != "" {
			awsConfig.Endpoint = aws.String(cfg.Endpoint)
			awsConfig.S3ForcePathStyle = aws.Bool(true)
		}
		if baseURL == "" {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, aws.StringValue(awsConfig.Region))
		}
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage session: %w", err)
	}

	return &S3Storage{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		baseURL:  baseURL,
	}, nil
}

func (s *S3Storage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(cleaned),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleaned),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *S3Storage) URL(key string) string {
	return s.baseURL + "/" + strings.TrimPrefix(key, "/")
}

func (s *S3Storage) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleaned),
	})
	signed, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return signed, nil
}
