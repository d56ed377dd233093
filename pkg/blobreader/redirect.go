package blobreader

import (
	"strings"

	"example.com/blobreader/pkg/pipeline"
)

// PostRewrite redirects requests for unprocessed blobs straight to the blob
// endpoint so their bytes never pass through this process. The blob is not
// checked for existence first; a missing blob becomes a 404 from the service.
func (r *Reader) PostRewrite(ev *pipeline.RewriteEvent, sink pipeline.ResponseSink) {
	if !r.cfg.RedirectIfUnmodified || !r.Belongs(ev.VirtualPath) || r.hasDirective(ev.Query) {
		return
	}
	target := r.endpoint + strings.TrimLeft(r.StripPrefix(ev.VirtualPath), separators)
	r.log.Debug().Str("path", ev.VirtualPath).Str("url", target).Msg("redirecting to blob")
	sink.Redirect(target)
}
