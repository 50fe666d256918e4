package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archiver archives sealed evidence bundles to an S3 bucket, keyed by
// kernel id and export timestamp so repeated exports never collide.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3ArchiverConfig configures an S3Archiver.
type S3ArchiverConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional custom endpoint, for MinIO/LocalStack
	Prefix   string
}

// NewS3Archiver builds an S3Archiver from cfg.
func NewS3Archiver(ctx context.Context, cfg S3ArchiverConfig) (*S3Archiver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("evidence: load aws config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}

	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Archive uploads b's JSON encoding (encoding/json, not the canonical
// form) as object prefix+key+".json", verifying the bundle's seal first
// so a corrupt bundle is never archived as if it were trustworthy.
func (a *S3Archiver) Archive(ctx context.Context, key string, b Bundle) error {
	ok, err := Verify(b)
	if err != nil {
		return fmt.Errorf("evidence: archive: reseal: %w", err)
	}
	if !ok {
		return fmt.Errorf("evidence: archive: refusing to archive bundle %s with invalid seal", key)
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("evidence: archive: marshal: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.prefix + key + ".json"),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("evidence: archive: s3 put failed: %w", err)
	}
	return nil
}
