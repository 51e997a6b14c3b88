package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds the object location and optional endpoint overrides
type S3Config struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string // S3-compatible endpoint (minio, localstack); empty uses AWS
	AccessKey string // empty uses the default credential chain
	SecretKey string
}

// DefaultS3Key is the object key used when none is configured
const DefaultS3Key = "tradesim/state"

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type objectDownloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// S3Store keeps the blob as a single S3 object
type S3Store struct {
	bucket     string
	key        string
	uploader   objectUploader
	downloader objectDownloader
}

// NewS3Store builds an S3 client from the default AWS config chain plus cfg overrides
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
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
	return newS3Store(cfg, manager.NewUploader(client), manager.NewDownloader(client)), nil
}

func newS3Store(cfg S3Config, up objectUploader, down objectDownloader) *S3Store {
	key := cfg.Key
	if key == "" {
		key = DefaultS3Key
	}
	return &S3Store{bucket: cfg.Bucket, key: key, uploader: up, downloader: down}
}

func (s *S3Store) Name() string { return BackendS3 }

func (s *S3Store) Save(ctx context.Context, blob []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(blob),
	})
	if err != nil {
		return fmt.Errorf("failed to upload state to s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *S3Store) Load(ctx context.Context) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("failed to download state from s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return buf.Bytes(), nil
}
