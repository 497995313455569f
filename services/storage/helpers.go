package storage

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/customeros/mailtrack/config"
	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/services/storage/aws_client"
)

const (
	ProviderS3 = "s3"
	ProviderR2 = "r2"
)

// NewArchiveStorage builds the raw message archive. It returns nil when
// archiving is disabled.
func NewArchiveStorage(cfg *config.ArchiveConfig) (interfaces.StorageService, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	var awsCfg *aws.Config
	switch cfg.Provider {
	case ProviderS3:
		awsCfg = s3Config(cfg.AwsRegion, cfg.AccessKeyID, cfg.AccessKeySecret)
	case ProviderR2:
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("CLOUDFLARE_R2_ACCOUNT_ID is required for the r2 archive provider")
		}
		awsCfg = r2Config(cfg.R2AccountID, cfg.AccessKeyID, cfg.AccessKeySecret)
	default:
		return nil, fmt.Errorf("unsupported archive provider %q", cfg.Provider)
	}

	client, err := aws_client.NewS3Client(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}
	return NewStorageService(client, cfg.Bucket), nil
}

func s3Config(awsRegion, accessKeyID, accessKeySecret string) *aws.Config {
	return &aws.Config{
		Region:      aws.String(awsRegion),
		Credentials: credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
	}
}

// r2Config targets Cloudflare R2 through its S3 compatible endpoint
func r2Config(accountID, accessKeyID, accessKeySecret string) *aws.Config {
	return &aws.Config{
		Endpoint:         aws.String("https://" + accountID + ".r2.cloudflarestorage.com"),
		Region:           aws.String("auto"),
		Credentials:      credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
}
