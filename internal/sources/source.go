// Package sources defines the capability abstraction for external
// announcement providers. Each government site gets one Source
// implementation; the pipeline iterates whatever the registry hands it, so
// new sites register here without touching pipeline control flow.
package sources

import (
	"context"
	"time"

	"github.com/nsefi/policy-harvester/internal/types"
)

// Source is one external organization/endpoint announcements are harvested
// from. Harvest performs the fetch/extract pair for the target month and
// returns raw rows; normalization happens in the pipeline so every source
// shares one code path.
type Source interface {
	Name() string
	Type() types.SourceType
	Category() string
	Harvest(ctx context.Context, month time.Month, year int) ([]types.RawRow, error)
}

// Registry is the ordered set of sources one run harvests.
type Registry []Source
