// Package aggregate groups policy records by organizational taxonomy and
// flattens grouped snapshots into publish-ready batches.
package aggregate

import (
	"sort"

	"github.com/nsefi/policy-harvester/internal/types"
)

// Group arranges a flat record sequence into a taxonomy snapshot keyed by
// source type, then source name. Records with an invalid source type are
// skipped; sources only produce values from the closed enum, so a miss here
// means the record was constructed by hand.
func Group(records []types.PolicyRecord) types.Snapshot {
	snapshot := make(types.Snapshot)
	for _, record := range records {
		if !record.SourceType.Valid() {
			continue
		}
		bySource, ok := snapshot[record.SourceType]
		if !ok {
			bySource = make(map[string][]types.PolicyRecord)
			snapshot[record.SourceType] = bySource
		}
		bySource[record.Source] = append(bySource[record.Source], record)
	}
	return snapshot
}

// Flatten renders a snapshot as one ordered batch: source types in display
// order, source names alphabetically, records in their harvested order.
func Flatten(snapshot types.Snapshot) types.PublishBatch {
	batch := make(types.PublishBatch, 0)
	for _, st := range types.SourceTypes() {
		bySource := snapshot[st]
		names := make([]string, 0, len(bySource))
		for name := range bySource {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			batch = append(batch, bySource[name]...)
		}
	}
	return batch
}

// FlattenLegacy converts a legacy string-keyed snapshot
// ({"central": ..., "states": ..., "uts": ...}) into an ordered batch.
// The plural grouping keys are mapped to their singular display labels here
// and nowhere else; unknown keys are dropped. Records missing a source name
// inherit the grouping key they were filed under.
func FlattenLegacy(legacy map[string]map[string][]types.PolicyRecord) types.PublishBatch {
	snapshot := make(types.Snapshot)
	for key, bySource := range legacy {
		st, err := types.ParseSourceType(key)
		if err != nil {
			continue
		}
		typed, ok := snapshot[st]
		if !ok {
			typed = make(map[string][]types.PolicyRecord)
			snapshot[st] = typed
		}
		for name, records := range bySource {
			for _, record := range records {
				record.SourceType = st
				if record.Source == "" {
					record.Source = name
				}
				typed[name] = append(typed[name], record)
			}
		}
	}
	return Flatten(snapshot)
}
