package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	keyTemplate = "<prefix>/<year>/<month>/<day>/report-<nano>.txt"

	contentType = "text/plain; charset=utf-8"
)

// PutObjectAPI is the subset of *s3.Client used to archive reports.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client PutObjectAPI

	bucket string
	prefix string
}

func NewS3Archiver(client PutObjectAPI, bucket string, prefix string) S3Archiver {
	return S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

func (a S3Archiver) ArchiveReport(ctx context.Context, generatedAt time.Time, report string) (string, error) {
	key := a.computeObjectKey(generatedAt)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(report),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to write in s3: %w", err)
	}

	return key, nil
}

func (a S3Archiver) computeObjectKey(generatedAt time.Time) string {
	ts := generatedAt.UTC()

	template := strings.NewReplacer(
		"<prefix>", a.prefix,
		"<year>", fmt.Sprintf("%04d", ts.Year()),
		"<month>", fmt.Sprintf("%02d", ts.Month()),
		"<day>", fmt.Sprintf("%02d", ts.Day()),
		"<nano>", fmt.Sprintf("%d", ts.UnixNano()),
	)

	return strings.TrimPrefix(template.Replace(keyTemplate), "/")
}
