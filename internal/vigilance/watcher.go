package vigilance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/praevisio/vigilance/internal/domain/entity"
)

const (
	EventTypeHeartbeat = "heartbeat"
	EventTypeDegraded  = "degraded"
)

type SnapshotSource interface {
	Snapshot(ctx context.Context) entity.Snapshot
}

type EventEmitter interface {
	Emit(ctx context.Context, eventType, message string) (entity.VigilanceEvent, error)
}

// Watcher periodically polls every source and reports their health on the hub.
type Watcher struct {
	snapshots SnapshotSource
	emitter   EventEmitter
	clock     clockwork.Clock
	interval  time.Duration
	logger    logr.Logger
}

func NewWatcher(snapshots SnapshotSource, emitter EventEmitter, clock clockwork.Clock, interval time.Duration, logger logr.Logger) Watcher {
	return Watcher{
		snapshots: snapshots,
		emitter:   emitter,
		clock:     clock,
		interval:  interval,
		logger:    logger,
	}
}

// Tick runs one aggregation round: a degraded event per mocked domain, or one heartbeat.
func (w Watcher) Tick(ctx context.Context) error {
	snapshot := w.snapshots.Snapshot(ctx)

	mocked := snapshot.MockDomains()
	if len(mocked) == 0 {
		_, err := w.emitter.Emit(ctx, EventTypeHeartbeat, fmt.Sprintf("All %d sources live", len(entity.Domains)))

		return err
	}

	var errs []error

	for _, domain := range mocked {
		record, _ := snapshot.Record(domain)

		_, err := w.emitter.Emit(ctx, EventTypeDegraded, fmt.Sprintf("Source %s degraded, serving fallback data: %s", domain, record.SourceError))
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Run ticks every interval until ctx is cancelled. A non positive interval disables the watcher.
func (w Watcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.logger.V(1).Info("Watcher disabled")

		return nil
	}

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			err := w.Tick(ctx)
			if err != nil && ctx.Err() == nil {
				w.logger.Error(err, "Watcher tick failed")
			}
		}
	}
}
