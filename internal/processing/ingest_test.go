package processing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/processing"
	"github.com/praevisio/vigilance/internal/vigilance"
	"github.com/praevisio/vigilance/pkg/pipeline"
)

type emitCall struct {
	eventType, message, origin string
}

type fakeEmitter struct {
	calls []emitCall
	err   error
}

func (f *fakeEmitter) EmitFrom(_ context.Context, eventType, message, origin string) (entity.VigilanceEvent, error) {
	if f.err != nil {
		return entity.VigilanceEvent{}, f.err
	}

	f.calls = append(f.calls, emitCall{eventType, message, origin})

	return entity.VigilanceEvent{Type: eventType, Message: message, Origin: origin}, nil
}

type fakeDeadLetterWriter struct {
	written []pipeline.ErrProcessingError
	err     error
}

func (f *fakeDeadLetterWriter) WriteDeadLetter(_ context.Context, pErr pipeline.ErrProcessingError) error {
	f.written = append(f.written, pErr)

	return f.err
}

func TestIngestForwardsEvent(t *testing.T) {
	emitter := &fakeEmitter{}
	ingest := processing.NewMain(emitter)

	err := ingest.Process(context.Background(), entity.IngestedEvent{Type: "deploy", Message: " v2 rolled out ", Origin: "ci", Timestamp: "2024-11-21T02:57:38.485Z"})
	require.NoError(t, err)

	err = ingest.Process(context.Background(), entity.IngestedEvent{Message: "no origin"})
	require.NoError(t, err)

	assert.Equal(t, []emitCall{
		{eventType: "deploy", message: "v2 rolled out", origin: "ci"},
		{eventType: "", message: "no origin", origin: processing.DefaultIngestOrigin},
	}, emitter.calls)
}

func TestIngestRejectsInvalidEvents(t *testing.T) {
	cases := map[string]entity.IngestedEvent{
		"missing message": {Type: "custom"},
		"blank message":   {Message: "   "},
		"invalid date":    {Message: "hello", Timestamp: "yesterday"},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			emitter := &fakeEmitter{}

			err := processing.NewMain(emitter).Process(context.Background(), event)
			require.Error(t, err)

			assert.Equal(t, "invalid_event", pipeline.AsProcessingError(err).Category)
			assert.NotErrorIs(t, err, pipeline.ErrRetryableError)
			assert.Empty(t, emitter.calls)
		})
	}
}

func TestIngestEmitFailures(t *testing.T) {
	err := processing.NewMain(&fakeEmitter{err: errors.New("timeout")}).Process(context.Background(), entity.IngestedEvent{Message: "hello"})
	assert.ErrorIs(t, err, pipeline.ErrRetryableError)

	err = processing.NewMain(&fakeEmitter{err: vigilance.ErrHubClosed}).Process(context.Background(), entity.IngestedEvent{Message: "hello"})
	assert.ErrorIs(t, err, vigilance.ErrHubClosed)
	assert.NotErrorIs(t, err, pipeline.ErrRetryableError)
}

func TestCountEvents(t *testing.T) {
	registry := prometheus.NewPedanticRegistry()

	p, err := processing.NewCountEvents(processing.NewMain(&fakeEmitter{}), registry, pipeline.MetricsConfig{Namespace: "test"})
	require.NoError(t, err)

	require.NoError(t, p.Process(context.Background(), entity.IngestedEvent{Message: "a"}))
	require.NoError(t, p.Process(context.Background(), entity.IngestedEvent{Type: "deploy", Message: "b"}))
	require.Error(t, p.Process(context.Background(), entity.IngestedEvent{Type: "deploy"}))

	count, err := testutil.GatherAndCount(registry, "test_ingested_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per type")
}

func TestCountLateEvents(t *testing.T) {
	registry := prometheus.NewPedanticRegistry()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 11, 21, 12, 0, 0, 0, time.UTC))

	p, err := processing.NewCountLateEvents(processing.NewMain(&fakeEmitter{}), registry, clock, time.Hour, logr.Discard(), pipeline.MetricsConfig{Namespace: "test"})
	require.NoError(t, err)

	require.NoError(t, p.Process(context.Background(), entity.IngestedEvent{Type: "deploy", Message: "late", Timestamp: "2024-11-21T02:57:38.485Z"}))
	require.NoError(t, p.Process(context.Background(), entity.IngestedEvent{Type: "deploy", Message: "fresh", Timestamp: "2024-11-21T11:30:00.000Z"}))
	require.NoError(t, p.Process(context.Background(), entity.IngestedEvent{Type: "deploy", Message: "no timestamp"}))

	count, err := testutil.GatherAndCount(registry, "test_late_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeadLetter(t *testing.T) {
	writer := &fakeDeadLetterWriter{}
	pErr := pipeline.NewErrProcessingError(errors.New("boom"), pipeline.UnmarshalErrorCategory)

	require.NoError(t, processing.NewDeadLetter(writer).Process(context.Background(), pErr))
	require.Len(t, writer.written, 1)
	assert.Equal(t, pipeline.UnmarshalErrorCategory, writer.written[0].Category)

	writer.err = errors.New("s3 down")
	assert.Error(t, processing.NewDeadLetter(writer).Process(context.Background(), pErr))
}
