package factory

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/logging"
	"github.com/go-logr/logr"

	"github.com/praevisio/vigilance/internal/config"
)

func CreateS3Client(ctx context.Context, conf config.S3, logger logr.Logger) (*s3.Client, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.Region),
		awsconfig.WithLogger(AWSLogger{logger}),
	}

	// Fall back on the default credential chain when no static creds are configured
	if conf.Creds.AccessKeyID != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.Creds.AccessKeyID, conf.Creds.SecretAccessKey, ""),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	if conf.BaseEndpoint != "" {
		baseEndpoint := conf.BaseEndpoint

		if !strings.HasPrefix(baseEndpoint, "http://") && !strings.HasPrefix(baseEndpoint, "https://") {
			baseEndpoint = fmt.Sprintf("https://%s", baseEndpoint)
		}

		awsConfig.BaseEndpoint = &baseEndpoint
	}

	ret := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = conf.UsePathStyle
	})

	return ret, nil
}

// AWSLogger bridges the SDK logs to logr: warnings at V(0), debug at V(3).
type AWSLogger struct {
	logger logr.Logger
}

func (a AWSLogger) Logf(classification logging.Classification, format string, v ...interface{}) {
	var level int

	switch classification {
	case logging.Debug:
		level = 3
	case logging.Warn:
		level = 0
	default:
		return
	}

	a.logger.V(level).Info(fmt.Sprintf(format, v...), "component", "aws-sdk")
}
