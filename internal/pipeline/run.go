// Package pipeline provides the high-level orchestration for one harvest run:
// fetch, extract, normalize, identify, aggregate, publish.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nsefi/policy-harvester/internal/aggregate"
	"github.com/nsefi/policy-harvester/internal/extract"
	"github.com/nsefi/policy-harvester/internal/fetch"
	"github.com/nsefi/policy-harvester/internal/identity"
	"github.com/nsefi/policy-harvester/internal/normalize"
	"github.com/nsefi/policy-harvester/internal/publish"
	"github.com/nsefi/policy-harvester/internal/sources"
	"github.com/nsefi/policy-harvester/internal/types"
)

// State is the run's position in the publish state machine.
type State string

// Run states, in order of progression. Failed is terminal for the run;
// per-source fetch failures do not reach it.
const (
	StateIdle       State = "Idle"
	StateFetching   State = "Fetching"
	StateExtracted  State = "Extracted"
	StateNormalized State = "Normalized"
	StateIdentified State = "Identified"
	StateReady      State = "Ready"
	StateCommitting State = "Committing"
	StateCommitted  State = "Committed"
	StateFailed     State = "Failed"
)

// FailureKind classifies a failure for the run report.
type FailureKind string

// Failure kinds, mirroring the error taxonomy.
const (
	FailureFetch            FailureKind = "fetch"
	FailureExtract          FailureKind = "extract"
	FailureDateParse        FailureKind = "date_parse"
	FailurePublishConflict  FailureKind = "publish_conflict"
	FailurePublishTransport FailureKind = "publish_transport"
)

// SourceReport summarizes one source's harvest within a run.
type SourceReport struct {
	Source        string           `json:"source"`
	SourceType    types.SourceType `json:"sourceType"`
	RowsExtracted int              `json:"rowsExtracted"`
	RecordsKept   int              `json:"recordsKept"`
	RowsDropped   int              `json:"rowsDropped"`
	OutOfWindow   int              `json:"outOfWindow"`
	Failure       FailureKind      `json:"failure,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// RunReport is the structured outcome of a run: per-source counts,
// per-failure-kind totals, and the publish result.
type RunReport struct {
	RunID      uuid.UUID           `json:"runId"`
	Month      time.Month          `json:"month"`
	Year       int                 `json:"year"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
	State      State               `json:"state"`
	Sources    []SourceReport      `json:"sources"`
	Failures   map[FailureKind]int `json:"failures"`
	Published  int                 `json:"published"`
	Revision   string              `json:"revision,omitempty"`
	PublishErr string              `json:"publishError,omitempty"`
}

func (r *RunReport) countFailure(kind FailureKind) {
	r.Failures[kind]++
}

// Options configures one run.
type Options struct {
	Sources sources.Registry
	Sink    publish.Sink
	Month   time.Month
	Year    int
	Logger  *slog.Logger
	// DryRun stops after aggregation; nothing is committed.
	DryRun bool
}

// Run executes one harvest run, strictly sequentially: each stage completes
// before the next begins, and each source completes before the next is
// fetched. Per-source failures are isolated; a publish failure is global and
// returned as the error alongside the report.
func Run(ctx context.Context, opts Options) (*RunReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := &RunReport{
		RunID:     uuid.New(),
		Month:     opts.Month,
		Year:      opts.Year,
		StartedAt: time.Now().UTC(),
		State:     StateIdle,
		Sources:   make([]SourceReport, 0, len(opts.Sources)),
		Failures:  make(map[FailureKind]int),
	}
	finish := func() { report.FinishedAt = time.Now().UTC() }

	if err := opts.Sources.Validate(); err != nil {
		report.State = StateFailed
		finish()
		return report, err
	}

	harvested := make([]types.PolicyRecord, 0)

	for _, src := range opts.Sources {
		report.State = StateFetching
		sr := SourceReport{Source: src.Name(), SourceType: src.Type()}

		rows, err := src.Harvest(ctx, opts.Month, opts.Year)
		if err != nil {
			sr.Failure, sr.Error = classifyHarvestErr(err), err.Error()
			report.countFailure(sr.Failure)
			report.Sources = append(report.Sources, sr)
			logger.Warn("source harvest failed", "source", src.Name(), "error", err)
			continue
		}
		report.State = StateExtracted
		sr.RowsExtracted = len(rows)

		records, dropped := normalize.Records(rows, normalize.RowContext{
			Source:     src.Name(),
			SourceType: src.Type(),
			Category:   src.Category(),
		}, logger)
		report.State = StateNormalized
		sr.RowsDropped = dropped
		if dropped > 0 {
			report.Failures[FailureDateParse] += dropped
		}

		kept := records[:0]
		for _, record := range records {
			if !inWindow(record.PublicationDate, opts.Month, opts.Year) {
				sr.OutOfWindow++
				continue
			}
			kept = append(kept, record)
		}
		sr.RecordsKept = len(kept)
		harvested = append(harvested, kept...)
		report.Sources = append(report.Sources, sr)
	}

	batch := identity.Assign(harvested)
	report.State = StateIdentified

	// Aggregation fixes the publish order: taxonomy buckets in display
	// order, source names alphabetically within each.
	batch = aggregate.Flatten(aggregate.Group(batch))
	report.State = StateReady

	if opts.DryRun {
		logger.Info("dry run, skipping publish", "records", len(batch))
		finish()
		return report, nil
	}
	if len(batch) == 0 {
		// An empty commit would wipe the destination for the blob variant;
		// leave the previous publish in place instead.
		logger.Info("no records harvested, skipping publish")
		report.State = StateCommitted
		finish()
		return report, nil
	}

	report.State = StateCommitting
	receipt, err := opts.Sink.Publish(ctx, batch)
	if err != nil {
		report.State = StateFailed
		report.PublishErr = err.Error()
		report.countFailure(classifyPublishErr(err))
		finish()
		return report, err
	}

	report.State = StateCommitted
	report.Published = receipt.Published
	report.Revision = receipt.Revision
	finish()
	logger.Info("run committed",
		"run_id", report.RunID,
		"published", report.Published,
		"sources", len(report.Sources))
	return report, nil
}

func classifyHarvestErr(err error) FailureKind {
	var extractErr *extract.Error
	if errors.As(err, &extractErr) {
		return FailureExtract
	}
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		return FailureFetch
	}
	// Sources only surface fetch and extract failures; context expiry during
	// a request arrives wrapped in a fetch error.
	return FailureFetch
}

func classifyPublishErr(err error) FailureKind {
	var conflict *publish.ConflictError
	if errors.As(err, &conflict) {
		return FailurePublishConflict
	}
	return FailurePublishTransport
}

func inWindow(publicationDate string, month time.Month, year int) bool {
	t, err := time.Parse(types.CanonicalDateFormat, publicationDate)
	if err != nil {
		return false
	}
	return t.Month() == month && t.Year() == year
}
