package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"inkpress/internal/errs"
	"inkpress/internal/models"
)

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // empty for AWS, set for S3-compatible stores
	AccessKey string
	SecretKey string
	PublicURL string // base URL objects are served from
}

// S3 stores images in an S3-compatible bucket.
type S3 struct {
	client    *s3.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := strings.TrimRight(opts.PublicURL, "/")
	if publicURL == "" {
		if opts.Endpoint != "" {
			publicURL = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
		} else {
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
		}
	}

	return &S3{client: client, bucket: opts.Bucket, publicURL: publicURL, now: time.Now}, nil
}

func (s *S3) Upload(ctx context.Context, filename, contentType string, data []byte) (*models.Image, error) {
	d := s.now().UTC()
	key := fmt.Sprintf("posts/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.NewString(), extension(filename, contentType))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, errs.Upstream("s3 put object", err)
	}

	w, h := Dimensions(data)
	return &models.Image{
		ID:     key,
		URL:    s.publicURL + "/" + key,
		Width:  w,
		Height: h,
	}, nil
}
