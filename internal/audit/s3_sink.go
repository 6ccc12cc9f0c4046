package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads each batch as its own JSON Lines object
type S3Sink struct {
	client   objectPutter
	bucket   string
	prefix   string
	instance string
	now      func() time.Time
}

// NewS3Sink loads AWS credentials from the default chain.
// An empty region defers to the environment.
func NewS3Sink(ctx context.Context, bucket, region, prefix, instance string) (*S3Sink, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3Sink(s3.NewFromConfig(cfg), bucket, prefix, instance), nil
}

func newS3Sink(client objectPutter, bucket, prefix, instance string) *S3Sink {
	return &S3Sink{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		instance: instance,
		now:      time.Now,
	}
}

// objectKey looks like audit/2025/11/30/web-1-20251130-143022-123456789.jsonl
func (s *S3Sink) objectKey(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%09d.jsonl",
		s.prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		s.instance,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)
}

// WriteBatch uploads the batch
func (s *S3Sink) WriteBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	data, err := encodeLines(events)
	if err != nil {
		return err
	}

	key := s.objectKey(s.now())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Sink) Close() error {
	return nil
}
