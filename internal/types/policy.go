// Package types provides type definitions for structured data used throughout the policy harvester.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"time"
)

// SourceType is the organizational taxonomy bucket a source belongs to.
type SourceType string

const (
	// SourceTypeCentral identifies central regulatory bodies (e.g., CERC, MNRE).
	SourceTypeCentral SourceType = "Central"
	// SourceTypeState identifies state authorities.
	SourceTypeState SourceType = "State"
	// SourceTypeUnionTerritory identifies union territory authorities.
	SourceTypeUnionTerritory SourceType = "UnionTerritory"
)

// SourceTypes lists every taxonomy bucket in display order.
func SourceTypes() []SourceType {
	return []SourceType{SourceTypeCentral, SourceTypeState, SourceTypeUnionTerritory}
}

// Valid reports whether st is one of the closed set of taxonomy buckets.
func (st SourceType) Valid() bool {
	switch st {
	case SourceTypeCentral, SourceTypeState, SourceTypeUnionTerritory:
		return true
	}
	return false
}

// ParseSourceType converts a taxonomy label to a SourceType.
// It accepts both the display labels ("Central", "State", "UnionTerritory")
// and the legacy snapshot grouping keys ("central", "states", "uts").
func ParseSourceType(label string) (SourceType, error) {
	switch label {
	case "Central", "central":
		return SourceTypeCentral, nil
	case "State", "states":
		return SourceTypeState, nil
	case "UnionTerritory", "uts":
		return SourceTypeUnionTerritory, nil
	}
	return "", fmt.Errorf("unknown source type label %q", label)
}

// RawRow is an extracted, unvalidated table row. It exists only between
// extraction and normalization.
type RawRow struct {
	DateText  string
	TitleText string
	Link      string
}

// PolicyRecord is the canonical publish-ready shape of one announcement.
// ID is a pure function of the normalized title and publication date, so
// repeated harvests of the same logical announcement converge to one record.
type PolicyRecord struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	URL             string     `json:"url"`
	Summary         string     `json:"summary"`
	Source          string     `json:"source"`
	Category        string     `json:"category"`
	SourceType      SourceType `json:"sourceType"`
	PublicationDate string     `json:"publicationDate"`
	PublishedAt     string     `json:"publishedAt,omitempty"`
}

// PublishBatch is the ordered set of records produced by one run.
type PublishBatch []PolicyRecord

// Snapshot is a taxonomy-grouped view of a batch: source type, then source
// name, then that source's records.
type Snapshot map[SourceType]map[string][]PolicyRecord

// CanonicalDateFormat is the layout every publication date is rendered to.
const CanonicalDateFormat = "2006-01-02"

// StampPublished returns a copy of the record with PublishedAt set to the
// given instant in UTC ISO-8601 form.
func (r PolicyRecord) StampPublished(at time.Time) PolicyRecord {
	r.PublishedAt = at.UTC().Format(time.RFC3339)
	return r
}
