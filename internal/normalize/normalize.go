// Package normalize converts raw extracted rows into canonical policy records.
package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/nsefi/policy-harvester/internal/types"
)

// Defaults substituted for missing optional fields. These match the values
// the dashboard front end already renders for sparse records.
const (
	DefaultTitle    = "Untitled Policy"
	DefaultURL      = "#"
	DefaultSummary  = "No summary available."
	DefaultCategory = "General"
)

// dateFormats is the ordered list of accepted publication date layouts.
// The first layout that parses wins; order is fixed so normalization stays
// deterministic across runs.
var dateFormats = []string{
	"02.01.2006",
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
}

// RowContext carries the source attribution applied to every record
// normalized from that source's rows.
type RowContext struct {
	Source     string
	SourceType types.SourceType
	Category   string
}

// Records normalizes raw rows into policy records. Rows whose date text
// matches none of the accepted layouts are dropped with a warning: the
// publication date participates in record identity, so a record without one
// is unpublishable. The returned records carry no ID or publish timestamp
// yet. The second return value is the number of dropped rows.
func Records(rows []types.RawRow, rc RowContext, logger *slog.Logger) ([]types.PolicyRecord, int) {
	if logger == nil {
		logger = slog.Default()
	}

	records := make([]types.PolicyRecord, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		date, ok := Date(row.DateText)
		if !ok {
			dropped++
			logger.Warn("dropping row with unparseable date",
				"source", rc.Source,
				"date_text", row.DateText,
				"title", row.TitleText)
			continue
		}

		records = append(records, types.PolicyRecord{
			Title:           orDefault(row.TitleText, DefaultTitle),
			URL:             orDefault(row.Link, DefaultURL),
			Summary:         DefaultSummary,
			Source:          rc.Source,
			Category:        orDefault(rc.Category, DefaultCategory),
			SourceType:      rc.SourceType,
			PublicationDate: date,
		})
	}

	return records, dropped
}

// Date parses date text against the accepted layouts and renders the first
// match in canonical YYYY-MM-DD form. The boolean is false when no layout
// matches.
func Date(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format(types.CanonicalDateFormat), true
		}
	}
	return "", false
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
