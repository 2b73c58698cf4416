package publish

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nsefi/policy-harvester/internal/identity"
	"github.com/nsefi/policy-harvester/internal/schemas"
	"github.com/nsefi/policy-harvester/internal/types"
)

//go:embed policy_batch.schema.json
var batchSchema string

// Sink is the capability shared by every publish destination. Publish
// commits the whole batch or nothing: implementations must never leave a
// partial batch visible, and must report a *ConflictError when a concurrent
// publish revised the destination underneath this run.
type Sink interface {
	Publish(ctx context.Context, batch types.PublishBatch) (*Receipt, error)
}

// Receipt summarizes an acknowledged publish.
type Receipt struct {
	Published int
	// Revision is the destination's new revision tag, when the destination
	// issues one (blob store). Empty for the document store.
	Revision string
}

// Payload is the blob-store wire shape: the full batch plus one
// batch-level publish timestamp.
type Payload struct {
	Policies       []types.PolicyRecord `json:"policies"`
	PublishedAtUtc string               `json:"publishedAtUtc"`
}

// preparedBatch assigns any missing record ids, stamps the publish
// timestamp, and validates the wire shape against the batch schema before
// any network I/O happens.
func preparedBatch(batch types.PublishBatch, at time.Time) (types.PublishBatch, error) {
	stamped := make(types.PublishBatch, len(batch))
	for i, record := range identity.Assign(batch) {
		stamped[i] = record.StampPublished(at)
	}

	payload := Payload{
		Policies:       stamped,
		PublishedAtUtc: at.UTC().Format(time.RFC3339),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode publish payload: %w", err)
	}
	if err := schemas.ValidateJSONString(batchSchema, string(encoded)); err != nil {
		return nil, fmt.Errorf("publish payload failed schema validation: %w", err)
	}

	return stamped, nil
}

// encodePayload renders the blob-store document for an already-prepared batch.
func encodePayload(batch types.PublishBatch, at time.Time) ([]byte, error) {
	return json.Marshal(Payload{
		Policies:       batch,
		PublishedAtUtc: at.UTC().Format(time.RFC3339),
	})
}
