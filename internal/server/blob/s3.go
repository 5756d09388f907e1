package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
)

// S3Config holds the settings for an S3-compatible object store
// (AWS S3 proper or MinIO via BaseEndpoint + path style).
type S3Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Backend implements Backend on top of an S3-compatible store. Envelopes
// are stored as raw objects under date-partitioned keys.
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3Backend builds the AWS client from the given settings and returns a
// ready Backend.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Backend{client: client, bucket: cfg.Bucket}, nil
}

// storageKey returns a fresh date-partitioned object key.
func storageKey() string {
	d := time.Now()
	return fmt.Sprintf("uploads/%d/%d/%d/%v.enc", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (b *S3Backend) Put(ctx context.Context, data []byte) (string, error) {
	key := storageKey()

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put s3://%s/%s: %v", common.ErrBackendUnavailable, b.bucket, key, err)
	}

	return key, nil
}

func (b *S3Backend) Get(ctx context.Context, location string) ([]byte, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", common.ErrNotFoundOnBackend, b.bucket, location)
		}
		return nil, fmt.Errorf("%w: get s3://%s/%s: %v", common.ErrBackendUnavailable, b.bucket, location, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read s3://%s/%s: %v", common.ErrBackendUnavailable, b.bucket, location, err)
	}
	return payload, nil
}

func (b *S3Backend) Delete(ctx context.Context, location string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		if isS3NotFound(err) {
			return fmt.Errorf("%w: s3://%s/%s", common.ErrNotFoundOnBackend, b.bucket, location)
		}
		return fmt.Errorf("%w: delete s3://%s/%s: %v", common.ErrBackendUnavailable, b.bucket, location, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := strings.TrimSpace(apiErr.ErrorCode())
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return false
}
