package factory

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/praevisio/vigilance/internal/config"
	"github.com/praevisio/vigilance/internal/domain/repo"
	"github.com/praevisio/vigilance/internal/domain/repo/report"
	"github.com/praevisio/vigilance/internal/domain/repo/token"
)

// CloseFunc releases what a factory opened.
type CloseFunc func()

func noop() {}

// CreateTokenStore returns the configured token store. The valkey store is shared between instances.
func CreateTokenStore(ctx context.Context, conf config.Config, clock clockwork.Clock) (repo.TokenStore, CloseFunc, error) {
	switch conf.Vigilance.TokenStore {
	case config.TokenStoreValkey:
		client, err := CreateValkeyClient(ctx, conf.Valkey)
		if err != nil {
			return nil, noop, err
		}

		return token.NewValkeyStore(client, clock), client.Close, nil
	case config.TokenStoreMemory, "":
		return token.NewMemoryStore(clock), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown token store %q", conf.Vigilance.TokenStore)
	}
}

// CreateReportArchiver returns nil when the archive is disabled.
func CreateReportArchiver(ctx context.Context, conf config.S3, logger logr.Logger) (repo.ReportArchiver, error) {
	if !conf.Enabled {
		return nil, nil
	}

	if conf.Bucket == "" {
		return nil, fmt.Errorf("report archive enabled without bucket")
	}

	client, err := CreateS3Client(ctx, conf, logger)
	if err != nil {
		return nil, err
	}

	return report.NewS3Archiver(client, conf.Bucket, conf.KeyPrefix), nil
}
