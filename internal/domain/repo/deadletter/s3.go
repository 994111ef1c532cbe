package deadletter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/common/version"

	"github.com/praevisio/vigilance/internal/domain/repo/report"
	"github.com/praevisio/vigilance/pkg/pipeline"
)

const (
	unknownHostname = "<unknown>"

	keyTemplate = "<prefix>/<year>/<month>/<day>/<topic>/<partition>-<offset>.json"
)

var ErrNilMessage = errors.New("nil message")

type S3Writer struct {
	client report.PutObjectAPI
	clock  clockwork.Clock

	bucket string
	prefix string

	hostname string
}

func NewS3Writer(client report.PutObjectAPI, clock clockwork.Clock, bucket string, prefix string, logger logr.Logger) S3Writer {
	hostname, err := os.Hostname()
	if err != nil {
		logger.Error(err, "failed to get hostname, falling backing to "+unknownHostname)

		hostname = unknownHostname
	}

	return S3Writer{
		client:   client,
		clock:    clock,
		bucket:   bucket,
		prefix:   strings.TrimSuffix(prefix, "/"),
		hostname: hostname,
	}
}

func (w S3Writer) WriteDeadLetter(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	if pErr.Message == nil {
		return ErrNilMessage
	}

	b, err := json.Marshal(w.createDeadLetter(pErr))
	if err != nil {
		return fmt.Errorf("failed to marshal local model: %w", err)
	}

	key := w.computeObjectKey(pErr)

	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to write in s3: %w", err)
	}

	return nil
}

func (w S3Writer) createDeadLetter(pErr pipeline.ErrProcessingError) DeadLetter {
	return DeadLetter{
		Context: ProcessingContext{
			Version:  version.Version,
			Revision: version.Revision,
			Time:     w.clock.Now().UTC(),
			Host:     w.hostname,
		},
		Message: Message{
			Topic:     pErr.Message.Topic,
			Partition: pErr.Message.Partition,
			Offset:    pErr.Message.Offset,
			Key:       pErr.Message.Key,
			Payload:   pErr.Message.Value,
			Timestamp: pErr.Message.Timestamp,
		},
		Reason: Reason{
			Category: pErr.Category,
			Error:    pErr.Error(),
		},
	}
}

// Messages are filed under the day they were produced.
func (w S3Writer) computeObjectKey(pErr pipeline.ErrProcessingError) string {
	ts := pErr.Message.Timestamp.UTC()

	template := strings.NewReplacer(
		"<prefix>", w.prefix,
		"<year>", fmt.Sprintf("%04d", ts.Year()),
		"<month>", fmt.Sprintf("%02d", ts.Month()),
		"<day>", fmt.Sprintf("%02d", ts.Day()),
		"<topic>", pErr.Message.Topic,
		"<partition>", fmt.Sprintf("%d", pErr.Message.Partition),
		"<offset>", fmt.Sprintf("%d", pErr.Message.Offset),
	)

	return template.Replace(keyTemplate)
}
