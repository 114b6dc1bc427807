// Package snapshot copies the two durable state documents to S3-compatible
// object storage after each sweep, giving an off-box restore point for the
// whole-document stores.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/typerank/internal/logging"
	sc "github.com/dmitrijs2005/typerank/internal/server/config"
)

// Seams for tests.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

// Uploader writes point-in-time copies of the bindings and profiles
// documents under snapshots/<date>/<run-id>/ in the configured bucket.
type Uploader struct {
	config *sc.Config
	logger logging.Logger

	bindingsPath string
	profilesPath string
}

// NewUploader constructs an Uploader over the two document paths. Returns
// nil when no bucket is configured; callers treat a nil Uploader as
// snapshots-disabled.
func NewUploader(cfg *sc.Config, bindingsPath, profilesPath string, logger logging.Logger) *Uploader {
	if cfg.S3Bucket == "" {
		return nil
	}
	return &Uploader{
		config:       cfg,
		logger:       logger,
		bindingsPath: bindingsPath,
		profilesPath: profilesPath,
	}
}

func (u *Uploader) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(u.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			u.config.S3RootUser,
			u.config.S3RootPassword,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(u.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Upload pushes both documents under one run prefix. Failures are logged
// and returned but are never fatal to the caller; a missed snapshot is
// retried implicitly after the next sweep.
func (u *Uploader) Upload(ctx context.Context) error {
	client, err := u.getClient()
	if err != nil {
		u.logger.Error(ctx, "snapshot client init failed", "error", err)
		return err
	}

	prefix := fmt.Sprintf("snapshots/%s/%s",
		time.Now().UTC().Format("2006-01-02"), uuid.NewString())

	objects := map[string]string{
		prefix + "/bindings.json": u.bindingsPath,
		prefix + "/profiles.json": u.profilesPath,
	}
	for key, path := range objects {
		if err := u.putFile(ctx, client, key, path); err != nil {
			u.logger.Error(ctx, "snapshot upload failed", "key", key, "error", err)
			return err
		}
	}

	u.logger.Info(ctx, "snapshot uploaded", "bucket", u.config.S3Bucket, "prefix", prefix)
	return nil
}

func (u *Uploader) putFile(ctx context.Context, client *s3.Client, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Nothing persisted yet for this document.
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.config.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting %s: %w", key, err)
	}
	return nil
}
