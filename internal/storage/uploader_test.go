package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tablexport/internal/config"
)

type fakeAssumer struct {
	input *sts.AssumeRoleInput
	out   *sts.AssumeRoleOutput
	err   error
}

func (f *fakeAssumer) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.input = params
	return f.out, f.err
}

type fakeObjectUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeObjectUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &manager.UploadOutput{Location: "https://example/" + aws.ToString(input.Key)}, nil
}

func tempCredentials() *sts.AssumeRoleOutput {
	return &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String("ASIAEXAMPLE"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("token"),
			Expiration:      aws.Time(time.Now().Add(time.Hour)),
		},
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func destination() config.DestinationConfig {
	return config.DestinationConfig{
		Bucket:    "dest-bucket",
		AccountID: "123456789012",
		RoleName:  "ExportWriter",
	}
}

func TestUpload(t *testing.T) {
	assumer := &fakeAssumer{out: tempCredentials()}
	obj := &fakeObjectUploader{}

	var gotCreds aws.CredentialsProvider
	factory := func(creds aws.CredentialsProvider) ObjectUploader {
		gotCreds = creds
		return obj
	}

	u := NewWithClients(assumer, factory, destination())
	path := writeFile(t, "1,a\n2,b\n")

	err := u.Upload(context.Background(), path, "exports/2024/orders.csv")
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:iam::123456789012:role/ExportWriter", aws.ToString(assumer.input.RoleArn))
	assert.Equal(t, "AssumeRoleSession", aws.ToString(assumer.input.RoleSessionName))

	assert.Equal(t, "dest-bucket", aws.ToString(obj.input.Bucket))
	assert.Equal(t, "exports/2024/orders.csv", aws.ToString(obj.input.Key))
	assert.Equal(t, "text/csv", aws.ToString(obj.input.ContentType))
	assert.Equal(t, "1,a\n2,b\n", string(obj.body))

	require.NotNil(t, gotCreds)
	creds, err := gotCreds.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ASIAEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
	assert.Equal(t, "token", creds.SessionToken)
}

func TestUpload_CustomSessionName(t *testing.T) {
	assumer := &fakeAssumer{out: tempCredentials()}
	dest := destination()
	dest.SessionName = "nightly-export"

	u := NewWithClients(assumer, func(aws.CredentialsProvider) ObjectUploader { return &fakeObjectUploader{} }, dest)
	require.NoError(t, u.Upload(context.Background(), writeFile(t, "x\n"), "x.csv"))

	assert.Equal(t, "nightly-export", aws.ToString(assumer.input.RoleSessionName))
}

func TestUpload_AssumeRoleFails(t *testing.T) {
	assumer := &fakeAssumer{err: errors.New("api error AccessDenied: not authorized")}
	called := false
	u := NewWithClients(assumer, func(aws.CredentialsProvider) ObjectUploader {
		called = true
		return &fakeObjectUploader{}
	}, destination())

	err := u.Upload(context.Background(), writeFile(t, "x\n"), "x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assume role arn:aws:iam::123456789012:role/ExportWriter")
	assert.False(t, called, "no upload without credentials")
}

func TestUpload_NoCredentials(t *testing.T) {
	u := NewWithClients(&fakeAssumer{out: &sts.AssumeRoleOutput{}}, nil, destination())

	err := u.Upload(context.Background(), writeFile(t, "x\n"), "x.csv")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestUpload_MissingFile(t *testing.T) {
	u := NewWithClients(&fakeAssumer{out: tempCredentials()}, func(aws.CredentialsProvider) ObjectUploader {
		return &fakeObjectUploader{}
	}, destination())

	err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), "x.csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUpload_PutFails(t *testing.T) {
	obj := &fakeObjectUploader{err: errors.New("api error NoSuchBucket")}
	u := NewWithClients(&fakeAssumer{out: tempCredentials()}, func(aws.CredentialsProvider) ObjectUploader {
		return obj
	}, destination())

	err := u.Upload(context.Background(), writeFile(t, "x\n"), "orders.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://dest-bucket/orders.csv")
}

func TestUploadFile_ExplicitTarget(t *testing.T) {
	assumer := &fakeAssumer{out: tempCredentials()}
	obj := &fakeObjectUploader{}
	u := NewWithClients(assumer, func(aws.CredentialsProvider) ObjectUploader { return obj }, destination())

	err := u.UploadFile(context.Background(), writeFile(t, "x\n"), "other-bucket", "210987654321", "OtherRole", "k.csv")
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:iam::210987654321:role/OtherRole", aws.ToString(assumer.input.RoleArn))
	assert.Equal(t, "other-bucket", aws.ToString(obj.input.Bucket))
}
