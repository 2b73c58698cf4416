package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nsefi/policy-harvester/internal/extract"
	"github.com/nsefi/policy-harvester/internal/fetch"
	"github.com/nsefi/policy-harvester/internal/types"
)

// ListingSource harvests a date/title table from a POST-driven listing page.
// All currently-supported sites share this shape; they differ only in
// endpoint, taxonomy bucket, and category label.
type ListingSource struct {
	name       string
	sourceType types.SourceType
	category   string
	endpoint   string
	opts       *fetch.Options
}

// NewListingSource builds a table-listing source. A nil opts uses the fetch
// defaults.
func NewListingSource(name string, st types.SourceType, category, endpoint string, opts *fetch.Options) *ListingSource {
	return &ListingSource{
		name:       name,
		sourceType: st,
		category:   category,
		endpoint:   endpoint,
		opts:       opts,
	}
}

// Name returns the organization name used for attribution and grouping.
func (s *ListingSource) Name() string { return s.name }

// Type returns the taxonomy bucket this source files under.
func (s *ListingSource) Type() types.SourceType { return s.sourceType }

// Category returns the free-form classification stamped on this source's records.
func (s *ListingSource) Category() string { return s.category }

// Harvest fetches the first listing page for the target month and extracts
// its rows. Fetch and extract failures propagate typed errors; the caller
// isolates them per source.
func (s *ListingSource) Harvest(ctx context.Context, month time.Month, year int) ([]types.RawRow, error) {
	result, err := fetch.PostForm(ctx, s.endpoint, listingForm(month, year), s.opts)
	if err != nil {
		return nil, err
	}
	return extract.Rows(result.HTML, s.endpoint)
}

// listingForm builds the standard listing query: newest first, first page
// only, filtered to the target month.
func listingForm(month time.Month, year int) url.Values {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return url.Values{
		"sortby":    {"issue_date"},
		"sortorder": {"desc"},
		"pageno":    {"1"},
		"fromdate":  {first.Format("02.01.2006")},
		"todate":    {last.Format("02.01.2006")},
	}
}

// Endpoint overrides for individual sources, keyed by source name. Used by
// configuration to point a source at a mirror or a test server.
type Endpoints map[string]string

func (e Endpoints) forSource(name, fallback string) string {
	if override, ok := e[name]; ok && override != "" {
		return override
	}
	return fallback
}

// Production listing endpoints.
const (
	cercEndpoint    = "https://www.cercind.gov.in/orders.html"
	mnreEndpoint    = "https://mnre.gov.in/notice/"
	gujaratEndpoint = "https://gercin.org/orders/"
	delhiEndpoint   = "https://derc.gov.in/orders/"
)

// Default returns the registry of supported sources in harvest order:
// central regulators first, then states, then union territories. Endpoint
// overrides apply by source name; a nil map keeps the production endpoints.
func Default(overrides Endpoints, opts *fetch.Options) Registry {
	return Registry{
		NewListingSource("CERC", types.SourceTypeCentral, "Regulation",
			overrides.forSource("CERC", cercEndpoint), opts),
		NewListingSource("MNRE", types.SourceTypeCentral, "Policy",
			overrides.forSource("MNRE", mnreEndpoint), opts),
		NewListingSource("Gujarat", types.SourceTypeState, "Regulation",
			overrides.forSource("Gujarat", gujaratEndpoint), opts),
		NewListingSource("Delhi", types.SourceTypeUnionTerritory, "Regulation",
			overrides.forSource("Delhi", delhiEndpoint), opts),
	}
}

// Validate checks a registry for duplicate names and invalid taxonomy
// buckets before a run starts.
func (r Registry) Validate() error {
	seen := make(map[string]bool, len(r))
	for _, src := range r {
		if src.Name() == "" {
			return fmt.Errorf("source with empty name")
		}
		if seen[src.Name()] {
			return fmt.Errorf("duplicate source name %q", src.Name())
		}
		seen[src.Name()] = true
		if !src.Type().Valid() {
			return fmt.Errorf("source %q has invalid source type %q", src.Name(), src.Type())
		}
	}
	return nil
}
