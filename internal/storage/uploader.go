// Package storage uploads finished CSV files into the destination account's
// bucket. Each upload assumes the cross-account role first and uses the
// resulting temporary credentials for that upload only.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/JonMunkholm/tablexport/internal/config"
	"github.com/JonMunkholm/tablexport/internal/logging"
)

const (
	contentType        = "text/csv"
	defaultSessionName = "AssumeRoleSession"
)

// ErrNoCredentials is returned when AssumeRole succeeds without credentials.
var ErrNoCredentials = errors.New("assume role returned no credentials")

// RoleAssumer is the subset of the STS client used to assume the
// destination role.
type RoleAssumer interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// ObjectUploader is the subset of the transfer manager used to put a file.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// UploaderFactory returns an ObjectUploader bound to the given credentials.
type UploaderFactory func(creds aws.CredentialsProvider) ObjectUploader

// CrossAccountUploader implements core.Uploader.
type CrossAccountUploader struct {
	sts         RoleAssumer
	newUploader UploaderFactory
	dest        config.DestinationConfig
}

// New loads the source account's AWS configuration from the default chain
// and returns an uploader for cfg's bucket.
func New(ctx context.Context, cfg config.DestinationConfig) (*CrossAccountUploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	factory := func(creds aws.CredentialsProvider) ObjectUploader {
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.Credentials = creds
		})
		return manager.NewUploader(client)
	}

	return NewWithClients(sts.NewFromConfig(awsCfg), factory, cfg), nil
}

// NewWithClients builds an uploader around explicit clients.
func NewWithClients(assumer RoleAssumer, factory UploaderFactory, cfg config.DestinationConfig) *CrossAccountUploader {
	if cfg.SessionName == "" {
		cfg.SessionName = defaultSessionName
	}
	return &CrossAccountUploader{
		sts:         assumer,
		newUploader: factory,
		dest:        cfg,
	}
}

// Upload ships localPath to the configured bucket under key.
func (u *CrossAccountUploader) Upload(ctx context.Context, localPath, key string) error {
	return u.UploadFile(ctx, localPath, u.dest.Bucket, u.dest.AccountID, u.dest.RoleName, key)
}

// UploadFile assumes roleName in accountID and uploads localFile to
// bucket/key with the resulting credentials. Nothing is retried here.
func (u *CrossAccountUploader) UploadFile(ctx context.Context, localFile, bucket, accountID, roleName, key string) error {
	logger := logging.WithFields(ctx, "bucket", bucket, "key", key)

	target := config.DestinationConfig{AccountID: accountID, RoleName: roleName}
	creds, err := u.assumeRole(ctx, target.RoleARN())
	if err != nil {
		return err
	}

	f, err := os.Open(localFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", localFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localFile, err)
	}

	body := NewCountingReader(f, info.Size(), logger)
	out, err := u.newUploader(creds).Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}

	attrs := []any{"bytes", body.BytesRead}
	if out != nil && out.Location != "" {
		attrs = append(attrs, "location", out.Location)
	}
	logger.Info("upload finished", attrs...)
	return nil
}

func (u *CrossAccountUploader) assumeRole(ctx context.Context, roleARN string) (aws.CredentialsProvider, error) {
	out, err := u.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(u.dest.SessionName),
	})
	if err != nil {
		return nil, fmt.Errorf("assume role %s: %w", roleARN, err)
	}
	if out == nil || out.Credentials == nil {
		return nil, fmt.Errorf("assume role %s: %w", roleARN, ErrNoCredentials)
	}

	c := out.Credentials
	logging.FromContext(ctx).Debug("assumed role", "role_arn", roleARN, "expires", aws.ToTime(c.Expiration))

	return credentials.NewStaticCredentialsProvider(
		aws.ToString(c.AccessKeyId),
		aws.ToString(c.SecretAccessKey),
		aws.ToString(c.SessionToken),
	), nil
}
