package objectstore

import (
	"context"
	"io"
	"time"
)

// Blob describes a single remote object resolved from an absolute object URL.
type Blob struct {
	URL         string
	Bucket      string
	Key         string
	Size        int64
	ETag        string
	ContentType string
	// LastModified is the zero time when the service did not report one.
	LastModified time.Time
}

// ObjectStore abstracts the blob service used by the connector. A single
// instance is shared by every request and must be safe for concurrent use.
type ObjectStore interface {
	// BaseEndpoint returns the slash-terminated URL every object URL handled by
	// the store starts with.
	BaseEndpoint() string
	// Lookup resolves an absolute object URL against the live service and
	// returns its attributes. A missing object yields a *NotFoundError.
	Lookup(ctx context.Context, objectURL string) (Blob, error)
	// Download streams the content of a previously looked up blob into dst and
	// returns the number of bytes written.
	Download(ctx context.Context, blob Blob, dst io.Writer) (int64, error)
}
