package utils

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the slice of the S3 client the snapshot export needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config for S3: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// SnapshotKey builds "snapshots/restaurants-<unix nanos>.json" under prefix.
func SnapshotKey(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = "snapshots"
	}
	return fmt.Sprintf("%s/restaurants-%d.json", prefix, at.UnixNano())
}

// UploadSnapshot stores a JSON document and returns its s3:// URI.
func UploadSnapshot(ctx context.Context, client ObjectPutter, bucket, key string, data []byte) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("S3 bucket not set")
	}
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
