// Package imagestore hands out presigned S3 URLs so browsers can upload post
// images straight to object storage. The server never sees image bytes; a
// post only stores the object key.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// DefaultUploadExpiry is how long a presigned PUT URL stays valid.
const DefaultUploadExpiry = 15 * time.Minute

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // empty means AWS; set for MinIO and friends
	AccessKey string
	SecretKey string
	Expiry    time.Duration
}

// Upload is a single-use target for one image.
type Upload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Store struct {
	bucket  string
	expiry  time.Duration
	presign *s3.PresignClient
	now     func() time.Time
}

// New builds the S3 client once. Static credentials are used when an access
// key is configured, otherwise the SDK's default credential chain applies.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("imagestore: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultUploadExpiry
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("imagestore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		bucket:  cfg.Bucket,
		expiry:  cfg.Expiry,
		presign: s3.NewPresignClient(client),
		now:     time.Now,
	}, nil
}

// NewKey returns a fresh object key of the form posts/<y>/<m>/<d>/<uuid>.
func (s *Store) NewKey() string {
	d := s.now().UTC()
	return fmt.Sprintf("posts/%d/%d/%d/%s", d.Year(), d.Month(), d.Day(), uuid.New())
}

// PresignUpload reserves a new key and signs a PUT for it.
func (s *Store) PresignUpload(ctx context.Context) (*Upload, error) {
	key := s.NewKey()

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("imagestore: presign put: %w", err)
	}

	return &Upload{Key: key, URL: req.URL}, nil
}
