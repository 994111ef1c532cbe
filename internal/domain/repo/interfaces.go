package repo

import (
	"context"
	"time"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/pkg/pipeline"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_repo.go

type TokenWriter interface {
	SaveToken(ctx context.Context, token entity.SSEToken) error
}

// TokenReader returns found=false for unknown or evicted tokens.
type TokenReader interface {
	GetToken(ctx context.Context, token string) (ret entity.SSEToken, found bool, err error)
}

type TokenStore interface {
	TokenWriter
	TokenReader
}

// ReportArchiver stores a rendered report and returns its location.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, generatedAt time.Time, report string) (string, error)
}

type DeadLetterWriter interface {
	WriteDeadLetter(ctx context.Context, pErr pipeline.ErrProcessingError) error
}
