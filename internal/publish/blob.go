package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nsefi/policy-harvester/internal/fetch"
	"github.com/nsefi/policy-harvester/internal/types"
)

// BlobSink publishes the whole batch as one JSON document into a
// version-controlled blob store, using revision tags for optimistic
// concurrency: the current ETag is read before writing, and the write is
// conditional on it still matching. A stale tag is rejected by the store
// with 412, surfaced as a ConflictError, and mutates nothing.
type BlobSink struct {
	endpoint string
	client   *http.Client
	headers  map[string]string
	now      func() time.Time
}

// BlobOptions configures the blob sink.
type BlobOptions struct {
	Timeout time.Duration
	// Headers carries the opaque pre-authenticated credentials supplied by
	// the execution environment.
	Headers map[string]string
}

// NewBlobSink returns a sink committing to the blob at endpoint.
func NewBlobSink(endpoint string, opts *BlobOptions) *BlobSink {
	timeout := fetch.DefaultTimeout
	var headers map[string]string
	if opts != nil {
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		headers = opts.Headers
	}
	return &BlobSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		headers:  headers,
		now:      time.Now,
	}
}

// Publish replaces the destination blob with the serialized batch. The blob
// is a single document, so the commit is all-or-nothing by construction; the
// revision tag check is what protects against a lost update when another run
// committed between our read and our write.
func (s *BlobSink) Publish(ctx context.Context, batch types.PublishBatch) (*Receipt, error) {
	at := s.now()
	stamped, err := preparedBatch(batch, at)
	if err != nil {
		return nil, err
	}

	revision, exists, err := s.currentRevision(ctx)
	if err != nil {
		return nil, err
	}

	body, err := encodePayload(stamped, at)
	if err != nil {
		return nil, &TransportError{
			Destination: s.endpoint,
			Message:     "failed to encode payload",
			Cause:       err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{
			Destination: s.endpoint,
			Message:     "failed to create request",
			Cause:       err,
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if exists {
		req.Header.Set("If-Match", revision)
	} else {
		// Unconditional creation; the store still rejects us if another run
		// created the blob first.
		req.Header.Set("If-None-Match", "*")
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{
			Destination: s.endpoint,
			Message:     "write failed",
			Cause:       err,
		}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed:
		return nil, &ConflictError{
			Destination: s.endpoint,
			Message:     "revision tag no longer matches the blob",
		}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Receipt{
			Published: len(stamped),
			Revision:  resp.Header.Get("ETag"),
		}, nil
	default:
		return nil, &TransportError{
			Destination: s.endpoint,
			Message:     fmt.Sprintf("write rejected with HTTP status %d", resp.StatusCode),
		}
	}
}

// currentRevision reads the blob's ETag. The second return value is false
// when the blob does not exist yet.
func (s *BlobSink) currentRevision(ctx context.Context) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.endpoint, nil)
	if err != nil {
		return "", false, &TransportError{
			Destination: s.endpoint,
			Message:     "failed to create revision read request",
			Cause:       err,
		}
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", false, &TransportError{
			Destination: s.endpoint,
			Message:     "revision read failed",
			Cause:       err,
		}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", false, nil
	case resp.StatusCode == http.StatusOK:
		etag := resp.Header.Get("ETag")
		if etag == "" {
			return "", false, &TransportError{
				Destination: s.endpoint,
				Message:     "store returned no revision tag for existing blob",
			}
		}
		return etag, true, nil
	default:
		return "", false, &TransportError{
			Destination: s.endpoint,
			Message:     fmt.Sprintf("revision read rejected with HTTP status %d", resp.StatusCode),
		}
	}
}

func (s *BlobSink) authorize(req *http.Request) {
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}
}
