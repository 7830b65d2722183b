package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/config"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
)

// ObjectClient is the subset of the S3 API the store uses.
type ObjectClient interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps the whole JSON array in a single object, same layout as the file backend.
// Appends from one process are serialized; concurrent writers in other processes are not coordinated.
type S3Store struct {
	mu     sync.Mutex
	client ObjectClient
	bucket string
	key    string
	now    Clock
	logger *zap.Logger
}

// OpenS3 builds an S3 client from cfg. A custom endpoint allows R2 or MinIO.
func OpenS3(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Store(client, cfg.Bucket, cfg.Key, logger), nil
}

// NewS3Store wraps an existing client.
func NewS3Store(client ObjectClient, bucket, key string, logger *zap.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		key:    key,
		now:    time.Now,
		logger: logging.OrNop(logger).Named("store"),
	}
}

// WithClock replaces the time source.
func (s *S3Store) WithClock(now Clock) *S3Store {
	s.now = now
	return s
}

func (s *S3Store) Append(ctx context.Context, rec candidate.Record) (candidate.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return candidate.Record{}, err
	}

	stamped := rec.Stamp(s.now())
	records = append(records, stamped)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return candidate.Record{}, fmt.Errorf("failed to encode records: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return candidate.Record{}, fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
	}

	s.logger.Info("saved candidate record", zap.String("bucket", s.bucket), zap.String("key", s.key), zap.Int("total", len(records)))
	return stamped, nil
}

func (s *S3Store) List(ctx context.Context) ([]candidate.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) load(ctx context.Context) ([]candidate.Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return []candidate.Record{}, nil
		}
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, s.key, err)
	}

	var records []candidate.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("existing record object is not a valid array, starting fresh",
			zap.String("key", s.key), zap.Error(err))
		return []candidate.Record{}, nil
	}
	if records == nil {
		records = []candidate.Record{}
	}
	return records, nil
}
