package blobreader

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"time"

	"example.com/blobreader/pkg/objectstore"
	"example.com/blobreader/pkg/pipeline"
)

// initialBufferSize fits most blobs served through the pipeline; the buffer
// grows for larger ones.
const initialBufferSize = 4 * 1024

// FetchMetadata reports whether the blob behind virtualPath exists and when it
// was last modified. A missing blob is not an error.
func (r *Reader) FetchMetadata(ctx context.Context, virtualPath string, _ url.Values) (pipeline.BlobMetadata, error) {
	blob, err := r.store.Lookup(ctx, r.Resolve(virtualPath))
	if err != nil {
		err = objectstore.Classify("lookup", virtualPath, err)
		if objectstore.IsNotFound(err) {
			return pipeline.BlobMetadata{Exists: false}, nil
		}
		r.log.Warn().Err(err).Str("path", virtualPath).Msg("fetch metadata failed")
		return pipeline.BlobMetadata{}, err
	}
	meta := pipeline.BlobMetadata{Exists: true}
	if !blob.LastModified.IsZero() {
		meta.LastModifiedUTC = blob.LastModified.UTC()
	}
	return meta, nil
}

// Open downloads the blob behind virtualPath into memory and returns a reader
// positioned at its first byte. A missing blob yields a *objectstore.NotFoundError.
func (r *Reader) Open(ctx context.Context, virtualPath string, _ url.Values) (io.ReadSeeker, error) {
	start := time.Now()
	// TODO: download by URL directly once the store can skip the HEAD round trip.
	blob, err := r.store.Lookup(ctx, r.Resolve(virtualPath))
	if err != nil {
		return nil, r.openError(virtualPath, err)
	}
	buf := bytes.NewBuffer(make([]byte, 0, initialBufferSize))
	if _, err := r.store.Download(ctx, blob, buf); err != nil {
		return nil, r.openError(virtualPath, err)
	}
	content := bytes.NewReader(buf.Bytes())
	r.metrics.ReportReadLatency(time.Since(start), content.Size())
	return content, nil
}

func (r *Reader) openError(virtualPath string, err error) error {
	err = objectstore.Classify("open", virtualPath, err)
	if objectstore.IsNotFound(err) {
		return &objectstore.NotFoundError{Key: virtualPath, Err: err}
	}
	r.log.Warn().Err(err).Str("path", virtualPath).Msg("open failed")
	return err
}
