// Package identity derives stable content-addressed identifiers for policy records.
package identity

import (
	"crypto/sha1" //nolint:gosec // not used for security; stable content addressing only
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nsefi/policy-harvester/internal/types"
)

// digestPrefixLen is the number of hex digits of the digest kept in the id.
// Collisions are only possible between same-day records whose normalized
// titles collide in the prefix, which the dashboard treats as the same item.
const digestPrefixLen = 10

// RecordID derives the stable identifier for a (title, publication date)
// pair. Titles differing only by case or surrounding whitespace collapse to
// the same id, so re-harvests converge onto one document instead of
// inserting duplicates. The date prefix keeps ids sortable by day.
func RecordID(title, publicationDate string) string {
	key := fmt.Sprintf("%s-%s", strings.ToLower(strings.TrimSpace(title)), publicationDate)
	sum := sha1.Sum([]byte(key)) //nolint:gosec
	return fmt.Sprintf("%s-%s", publicationDate, hex.EncodeToString(sum[:])[:digestPrefixLen])
}

// Assign returns a copy of the batch with every record's ID populated.
// Records that already carry an ID keep it.
func Assign(batch types.PublishBatch) types.PublishBatch {
	out := make(types.PublishBatch, len(batch))
	for i, record := range batch {
		if record.ID == "" {
			record.ID = RecordID(record.Title, record.PublicationDate)
		}
		out[i] = record
	}
	return out
}
