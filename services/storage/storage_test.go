package storage

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailtrack/config"
)

type memoryS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemoryS3() *memoryS3 {
	return &memoryS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memoryS3) Upload(_ context.Context, input s3manager.UploadInput) error {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return err
	}
	key := aws.StringValue(input.Bucket) + "/" + aws.StringValue(input.Key)
	m.objects[key] = data
	m.contentTypes[key] = aws.StringValue(input.ContentType)
	return nil
}

func (m *memoryS3) Download(_ context.Context, bucket, key string) ([]byte, error) {
	return m.objects[bucket+"/"+key], nil
}

func (m *memoryS3) Delete(_ context.Context, bucket, key string) error {
	delete(m.objects, bucket+"/"+key)
	return nil
}

func TestObjectStorageService_RoundTrip(t *testing.T) {
	client := newMemoryS3()
	svc := NewStorageService(client, "mailtrack-raw")
	ctx := context.Background()

	require.NoError(t, svc.Upload(ctx, "raw/mbox_1/abc.eml", []byte("Subject: hi"), "message/rfc822"))
	assert.Equal(t, "message/rfc822", client.contentTypes["mailtrack-raw/raw/mbox_1/abc.eml"])

	data, err := svc.Download(ctx, "raw/mbox_1/abc.eml")
	require.NoError(t, err)
	assert.Equal(t, "Subject: hi", string(data))

	require.NoError(t, svc.Delete(ctx, "raw/mbox_1/abc.eml"))
	assert.Empty(t, client.objects)
}

func TestNewArchiveStorage(t *testing.T) {
	svc, err := NewArchiveStorage(&config.ArchiveConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, svc)

	_, err = NewArchiveStorage(&config.ArchiveConfig{Enabled: true, Provider: "gcs"})
	assert.Error(t, err)

	_, err = NewArchiveStorage(&config.ArchiveConfig{Enabled: true, Provider: ProviderR2})
	assert.Error(t, err)

	svc, err = NewArchiveStorage(&config.ArchiveConfig{
		Enabled:         true,
		Provider:        ProviderS3,
		Bucket:          "mailtrack-raw",
		AwsRegion:       "eu-west-1",
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
	})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestR2Config(t *testing.T) {
	cfg := r2Config("acct", "key", "secret")
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", aws.StringValue(cfg.Endpoint))
	assert.Equal(t, "auto", aws.StringValue(cfg.Region))
	assert.True(t, aws.BoolValue(cfg.S3ForcePathStyle))
}
