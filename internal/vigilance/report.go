package vigilance

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/domain/repo"
)

var reportTemplate = template.Must(template.New("report").Parse(`PRAEVISIO - ETERNAL VIGILANCE REPORT
Generated at: {{ .GeneratedAt.Format "2006-01-02T15:04:05Z07:00" }}
Watching since: {{ .StartedAt.Format "2006-01-02T15:04:05Z07:00" }} ({{ .Uptime }})
Events in history: {{ len .Events }} (published: {{ .Total }})
{{- if .Counts }}

Events by type:
{{- range .Counts }}
  - {{ .Type }}: {{ .Count }}
{{- end }}
{{- end }}

{{ if not .Events -}}
No event recorded.
{{- else -}}
Timeline:
{{- range $i, $e := .Events }}

#{{ $e.Index }} [{{ $e.Type }}] {{ $e.Timestamp.Format "2006-01-02T15:04:05Z07:00" }} ({{ $e.Age }}) from {{ $e.Origin }}
id: {{ $e.ID }}
{{ $e.Message }}
{{- end }}
{{- end }}
`))

type HistoryReader interface {
	History(ctx context.Context) ([]entity.VigilanceEvent, error)
	State(ctx context.Context) (entity.VigilanceState, error)
}

type Report struct {
	Text        string
	GeneratedAt time.Time
	ArchiveKey  string
}

type typeCount struct {
	Type  string
	Count int
}

type eventView struct {
	entity.VigilanceEvent

	Index int
	Age   string
}

type reportView struct {
	GeneratedAt time.Time
	StartedAt   time.Time
	Uptime      string
	Total       uint64
	Counts      []typeCount
	Events      []eventView
}

// Reporter renders the hub history. Archiving is optional.
type Reporter struct {
	hub      HistoryReader
	clock    clockwork.Clock
	archiver repo.ReportArchiver
	logger   logr.Logger
}

func NewReporter(hub HistoryReader, clock clockwork.Clock, archiver repo.ReportArchiver, logger logr.Logger) Reporter {
	return Reporter{
		hub:      hub,
		clock:    clock,
		archiver: archiver,
		logger:   logger,
	}
}

// Report renders every buffered event, messages are written verbatim.
func (r Reporter) Report(ctx context.Context) (string, error) {
	text, _, err := r.render(ctx)

	return text, err
}

// Regenerate renders the report and archives it when an archiver is configured.
// An archiving failure is logged and leaves ArchiveKey empty.
func (r Reporter) Regenerate(ctx context.Context) (Report, error) {
	text, generatedAt, err := r.render(ctx)
	if err != nil {
		return Report{}, err
	}

	ret := Report{
		Text:        text,
		GeneratedAt: generatedAt,
	}

	if r.archiver == nil {
		return ret, nil
	}

	key, err := r.archiver.ArchiveReport(ctx, generatedAt, text)
	if err != nil {
		r.logger.Error(err, "Failed to archive report")

		return ret, nil
	}

	ret.ArchiveKey = key

	return ret, nil
}

func (r Reporter) render(ctx context.Context) (string, time.Time, error) {
	events, err := r.hub.History(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to get history: %w", err)
	}

	state, err := r.hub.State(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to get state: %w", err)
	}

	now := r.clock.Now().UTC()

	view := reportView{
		GeneratedAt: now,
		StartedAt:   state.StartedAt,
		Uptime:      humanize.RelTime(state.StartedAt, now, "ago", "from now"),
		Total:       state.TotalEvents,
		Counts:      countByType(events),
		Events:      make([]eventView, 0, len(events)),
	}

	for i, e := range events {
		view.Events = append(view.Events, eventView{
			VigilanceEvent: e,
			Index:          i + 1,
			Age:            humanize.RelTime(e.Timestamp, now, "ago", "from now"),
		})
	}

	buf := bytes.Buffer{}

	err = reportTemplate.Execute(&buf, view)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to render report: %w", err)
	}

	return buf.String(), now, nil
}

func countByType(events []entity.VigilanceEvent) []typeCount {
	counts := map[string]int{}

	for _, e := range events {
		counts[e.Type]++
	}

	ret := make([]typeCount, 0, len(counts))

	for t, c := range counts {
		ret = append(ret, typeCount{Type: t, Count: c})
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Count != ret[j].Count {
			return ret[i].Count > ret[j].Count
		}

		return ret[i].Type < ret[j].Type
	})

	return ret
}
