package pipeline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsefi/policy-harvester/internal/identity"
	"github.com/nsefi/policy-harvester/internal/publish"
	"github.com/nsefi/policy-harvester/internal/sources"
	"github.com/nsefi/policy-harvester/internal/types"
)

// octoberListing has two October 2025 rows, one September row, and one
// malformed two-column row.
const octoberListing = `
<table>
  <tr><th>Sr.No</th><th>Date</th><th>Title</th></tr>
  <tr><td>1</td><td>14.10.2025</td><td><a href="/orders/tariff.pdf">Tariff Determination Order</a></td></tr>
  <tr><td>2</td><td>27-10-2025</td><td><a href="/orders/css.pdf">CSS Calculation Order</a></td></tr>
  <tr><td>3</td><td>05.09.2025</td><td><a href="/orders/old.pdf">September Order</a></td></tr>
  <tr><td>4</td><td>malformed</td></tr>
</table>`

type fakeSink struct {
	batches []types.PublishBatch
	err     error
}

func (f *fakeSink) Publish(_ context.Context, batch types.PublishBatch) (*publish.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, batch)
	return &publish.Receipt{Published: len(batch), Revision: `"rev-1"`}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticServer(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunEndToEnd(t *testing.T) {
	server := staticServer(t, octoberListing)
	sink := &fakeSink{}

	report, err := Run(context.Background(), Options{
		Sources: sources.Registry{
			sources.NewListingSource("CERC", types.SourceTypeCentral, "Regulation", server.URL, nil),
		},
		Sink:   sink,
		Month:  time.October,
		Year:   2025,
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, StateCommitted, report.State)
	assert.Equal(t, 2, report.Published)
	assert.Equal(t, `"rev-1"`, report.Revision)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	require.Len(t, report.Sources, 1)
	sr := report.Sources[0]
	assert.Equal(t, 3, sr.RowsExtracted, "the two-column row never leaves the extractor")
	assert.Equal(t, 0, sr.RowsDropped)
	assert.Equal(t, 1, sr.OutOfWindow, "the September row is filtered from an October run")
	assert.Equal(t, 2, sr.RecordsKept)

	require.Len(t, sink.batches, 1)
	batch := sink.batches[0]
	require.Len(t, batch, 2)
	assert.NotEqual(t, batch[0].ID, batch[1].ID)
	assert.Equal(t, identity.RecordID("Tariff Determination Order", "2025-10-14"), batch[0].ID)
	assert.Equal(t, identity.RecordID("CSS Calculation Order", "2025-10-27"), batch[1].ID)
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	server := staticServer(t, octoberListing)

	runOnce := func() types.PublishBatch {
		sink := &fakeSink{}
		_, err := Run(context.Background(), Options{
			Sources: sources.Registry{
				sources.NewListingSource("CERC", types.SourceTypeCentral, "Regulation", server.URL, nil),
			},
			Sink:   sink,
			Month:  time.October,
			Year:   2025,
			Logger: quietLogger(),
		})
		require.NoError(t, err)
		require.Len(t, sink.batches, 1)
		return sink.batches[0]
	}

	first := runOnce()
	second := runOnce()
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "re-harvests converge to the same ids")
	}
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	healthy := staticServer(t, octoberListing)

	sink := &fakeSink{}
	report, err := Run(context.Background(), Options{
		Sources: sources.Registry{
			sources.NewListingSource("MNRE", types.SourceTypeCentral, "Policy", broken.URL, nil),
			sources.NewListingSource("CERC", types.SourceTypeCentral, "Regulation", healthy.URL, nil),
		},
		Sink:   sink,
		Month:  time.October,
		Year:   2025,
		Logger: quietLogger(),
	})
	require.NoError(t, err, "a per-source fetch failure does not fail the run")

	assert.Equal(t, StateCommitted, report.State)
	assert.Equal(t, 1, report.Failures[FailureFetch])
	require.Len(t, report.Sources, 2)
	assert.Equal(t, FailureFetch, report.Sources[0].Failure)
	assert.Equal(t, 2, report.Sources[1].RecordsKept)
	assert.Equal(t, 2, report.Published)
}

func TestRunPublishConflictFailsRun(t *testing.T) {
	server := staticServer(t, octoberListing)
	sink := &fakeSink{err: &publish.ConflictError{Destination: "policies.json", Message: "stale tag"}}

	report, err := Run(context.Background(), Options{
		Sources: sources.Registry{
			sources.NewListingSource("CERC", types.SourceTypeCentral, "Regulation", server.URL, nil),
		},
		Sink:   sink,
		Month:  time.October,
		Year:   2025,
		Logger: quietLogger(),
	})
	require.Error(t, err)

	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 1, report.Failures[FailurePublishConflict])
	assert.Contains(t, report.PublishErr, "stale tag")
	assert.Zero(t, report.Published)
}

func TestRunPublishTransportFailure(t *testing.T) {
	server := staticServer(t, octoberListing)
	sink := &fakeSink{err: &publish.TransportError{Destination: "policies.json", Message: "unreachable"}}

	report, err := Run(context.Background(), Options{
		Sources: sources.Registry{
			sources.NewListingSource("CERC", types.SourceTypeCentral, "Regulation", server.URL, nil),
		},
		Sink:   sink,
		Month:  time.October,
		Year:   2025,
		Logger: quietLogger(),
	})
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 1, report.Failures[FailurePublishTransport])
}

func TestRunDryRunSkipsPublish(t *testing.T) {
	server := staticServer(t, octoberListing)
	sink := &fakeSink{}

	report, err := Run(context.Background(), Options{
		Sources: sources.Registry{
			sources.NewListingSource("CERC", types.SourceTypeCentral, "Regulation", server.URL, nil),
		},
		Sink:   sink,
		Month:  time.October,
		Year:   2025,
		Logger: quietLogger(),
		DryRun: true,
	})
	require.NoError(t, err)

	assert.Equal(t, StateReady, report.State)
	assert.Empty(t, sink.batches, "dry runs never touch the sink")
}

func TestRunEmptyHarvestSkipsPublish(t *testing.T) {
	server := staticServer(t, "<html><body><p>No announcements.</p></body></html>")
	sink := &fakeSink{}

	report, err := Run(context.Background(), Options{
		Sources: sources.Registry{
			sources.NewListingSource("CERC", types.SourceTypeCentral, "Regulation", server.URL, nil),
		},
		Sink:   sink,
		Month:  time.October,
		Year:   2025,
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, StateCommitted, report.State)
	assert.Zero(t, report.Published)
	assert.Empty(t, sink.batches, "an empty batch must not overwrite the previous publish")
}

func TestRunRejectsInvalidRegistry(t *testing.T) {
	sink := &fakeSink{}
	report, err := Run(context.Background(), Options{
		Sources: sources.Registry{
			sources.NewListingSource("CERC", types.SourceTypeCentral, "Regulation", "https://a.example.org", nil),
			sources.NewListingSource("CERC", types.SourceTypeCentral, "Regulation", "https://b.example.org", nil),
		},
		Sink:   sink,
		Month:  time.October,
		Year:   2025,
		Logger: quietLogger(),
	})
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, sink.batches)
}
