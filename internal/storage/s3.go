package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var _ ObjectStore = (*S3Store)(nil)

type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store uses static keys when both are set and the default AWS
// credential chain otherwise. A custom endpoint enables S3-compatible stores.
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Container)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region := strings.TrimSpace(opts.S3Region); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	keyID := strings.TrimSpace(opts.S3AccessKeyID)
	secret := strings.TrimSpace(opts.S3SecretAccessKey)
	if keyID != "" && secret != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(opts.S3Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			if !strings.Contains(endpoint, "://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = opts.S3UsePathStyle
	})

	return &S3Store{client: client, bucket: bucket, prefix: opts.Prefix}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	name := joinKey(s.prefix, key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", name, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(joinKey(s.prefix, prefix)),
	})

	var out []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects in %q: %w", s.bucket, err)
		}
		for _, item := range page.Contents {
			obj := Object{Key: trimPrefix(s.prefix, aws.ToString(item.Key))}
			if item.LastModified != nil {
				obj.LastModified = *item.LastModified
			}
			obj.Size = aws.ToInt64(item.Size)
			out = append(out, obj)
		}
	}
	return out, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	name := joinKey(s.prefix, key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("delete object %q: %w", name, err)
	}
	return nil
}
