package storage

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore is the subset of object storage the document service needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string) (string, time.Time, error)
}

type Options struct {
	URL          string // s3 endpoint, empty uses the aws default resolver
	Bucket       string
	Region       string
	Credential   aws.Credentials
	LinkExpireIn time.Duration
}

type S3Store struct {
	options   Options
	s3cli     *s3.Client
	s3presign *s3.PresignClient
}

func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.Credential.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.StaticCredentialsProvider{Value: opts.Credential},
		))
	}
	if opts.URL != "" {
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{URL: opts.URL, HostnameImmutable: true}, nil
				},
			),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	s3cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.Region = opts.Region
		o.UsePathStyle = true
	})
	if opts.LinkExpireIn <= 0 {
		opts.LinkExpireIn = 15 * time.Minute
	}
	return &S3Store{
		options:   opts,
		s3cli:     s3cli,
		s3presign: s3.NewPresignClient(s3cli),
	}, nil
}

func (m *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(m.options.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: size,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := m.s3cli.PutObject(ctx, in)
	return err
}

// PresignGet returns a download url for key and the time it stops working.
func (m *S3Store) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	object := &s3.GetObjectInput{
		Bucket: aws.String(m.options.Bucket),
		Key:    aws.String(key),
	}
	expirein := m.options.LinkExpireIn
	res, err := m.s3presign.PresignGetObject(ctx, object, s3.WithPresignExpires(expirein))
	if err != nil {
		return "", time.Time{}, err
	}
	return res.URL, time.Now().Add(expirein), nil
}
