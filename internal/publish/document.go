package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nsefi/policy-harvester/internal/types"
)

// upsertDocumentSQL creates the document if absent and fully replaces it
// otherwise, keyed by (collection, doc_id). Expected table:
//
//	CREATE TABLE policy_documents (
//	    collection   TEXT        NOT NULL,
//	    doc_id       TEXT        NOT NULL,
//	    doc          JSONB       NOT NULL,
//	    published_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (collection, doc_id)
//	);
const upsertDocumentSQL = `
	INSERT INTO policy_documents (collection, doc_id, doc, published_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (collection, doc_id)
	DO UPDATE SET doc = EXCLUDED.doc, published_at = NOW()`

// DocumentSink publishes a batch as one document per record into a
// namespaced collection, atomically: every upsert runs in a single
// transaction, so the batch becomes visible together or not at all.
//
// A transaction-scoped advisory lock on the collection name serializes
// concurrent publishes. A second run hitting the same collection while a
// publish is in flight gets a ConflictError instead of silently racing to
// last-write-wins.
type DocumentSink struct {
	pool       *pgxpool.Pool
	collection string
	now        func() time.Time
}

// Connect establishes a connection pool to the destination database and
// verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, &TransportError{
			Destination: "document store",
			Message:     "failed to connect",
			Cause:       err,
		}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &TransportError{
			Destination: "document store",
			Message:     "failed to ping",
			Cause:       err,
		}
	}

	return pool, nil
}

// NewDocumentSink returns a sink writing into the given collection namespace.
func NewDocumentSink(pool *pgxpool.Pool, collection string) *DocumentSink {
	return &DocumentSink{
		pool:       pool,
		collection: collection,
		now:        time.Now,
	}
}

// Publish upserts every record in the batch as one atomic multi-document
// write. Republishing an unchanged batch leaves the document count
// unchanged; only published_at moves.
func (s *DocumentSink) Publish(ctx context.Context, batch types.PublishBatch) (*Receipt, error) {
	stamped, err := preparedBatch(batch, s.now())
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &TransportError{
			Destination: s.collection,
			Message:     "failed to begin transaction",
			Cause:       err,
		}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked bool
	if err := tx.QueryRow(ctx,
		`SELECT pg_try_advisory_xact_lock(hashtext($1))`, s.collection,
	).Scan(&locked); err != nil {
		return nil, &TransportError{
			Destination: s.collection,
			Message:     "failed to acquire publish lock",
			Cause:       err,
		}
	}
	if !locked {
		return nil, &ConflictError{
			Destination: s.collection,
			Message:     "another publish holds the collection lock",
		}
	}

	pending := &pgx.Batch{}
	for _, record := range stamped {
		doc, err := json.Marshal(record)
		if err != nil {
			return nil, &TransportError{
				Destination: s.collection,
				Message:     "failed to encode record " + record.ID,
				Cause:       err,
			}
		}
		pending.Queue(upsertDocumentSQL, s.collection, record.ID, doc)
	}

	results := tx.SendBatch(ctx, pending)
	for range stamped {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return nil, &TransportError{
				Destination: s.collection,
				Message:     "upsert failed",
				Cause:       err,
			}
		}
	}
	if err := results.Close(); err != nil {
		return nil, &TransportError{
			Destination: s.collection,
			Message:     "failed to close batch results",
			Cause:       err,
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &TransportError{
			Destination: s.collection,
			Message:     "failed to commit",
			Cause:       err,
		}
	}

	return &Receipt{Published: len(stamped)}, nil
}
