package pipeline

import (
	"context"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"
)

// BlobMetadata is the freshness information of a virtual file.
type BlobMetadata struct {
	Exists bool
	// LastModifiedUTC is the zero time when unknown.
	LastModifiedUTC time.Time
}

// Provider serves the virtual files below some path prefix.
type Provider interface {
	Belongs(virtualPath string) bool
	FetchMetadata(ctx context.Context, virtualPath string, query url.Values) (BlobMetadata, error)
	Open(ctx context.Context, virtualPath string, query url.Values) (io.ReadSeeker, error)
}

// RewriteEvent describes a request once it has been mapped to a virtual path.
type RewriteEvent struct {
	VirtualPath string
	Query       url.Values
}

// ResponseSink lets hooks answer a request before content is served.
type ResponseSink interface {
	Redirect(target string)
	Redirected() bool
}

// PostRewriteHandler is notified after routing, before content is served.
type PostRewriteHandler interface {
	PostRewrite(ev *RewriteEvent, sink ResponseSink)
}

// HookRegistry is the subscription point for post-rewrite handlers.
type HookRegistry interface {
	Subscribe(h PostRewriteHandler)
	Unsubscribe(h PostRewriteHandler)
}

// Host is the capability a provider receives when it is installed.
type Host interface {
	PostRewrite() HookRegistry
	HasPipelineDirective(query url.Values) bool
	AddProvider(p Provider)
	RemoveProvider(p Provider) bool
}

// Hooks is a HookRegistry safe for concurrent use. Handlers must be comparable.
type Hooks struct {
	mu       sync.RWMutex
	handlers []PostRewriteHandler
}

// Subscribe adds h unless it is already subscribed.
func (hs *Hooks) Subscribe(h PostRewriteHandler) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	for _, existing := range hs.handlers {
		if existing == h {
			return
		}
	}
	hs.handlers = append(hs.handlers, h)
}

// Unsubscribe removes h. Removing an unknown handler is a no-op.
func (hs *Hooks) Unsubscribe(h PostRewriteHandler) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	for i, existing := range hs.handlers {
		if existing == h {
			hs.handlers = append(hs.handlers[:i:i], hs.handlers[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribed handlers.
func (hs *Hooks) Len() int {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return len(hs.handlers)
}

// Fire calls every handler in subscription order until one redirects.
func (hs *Hooks) Fire(ev *RewriteEvent, sink ResponseSink) {
	hs.mu.RLock()
	handlers := hs.handlers
	hs.mu.RUnlock()
	for _, h := range handlers {
		h.PostRewrite(ev, sink)
		if sink.Redirected() {
			return
		}
	}
}

// DefaultDirectives are the query keys that ask for a processed variant of an
// image rather than its original bytes.
var DefaultDirectives = []string{
	"width", "height", "w", "h", "maxwidth", "maxheight",
	"mode", "crop", "anchor", "scale", "format", "quality",
	"bgcolor", "rotate", "flip", "sflip", "zoom", "dpr", "trim.threshold",
}

// Directives is a case-insensitive set of processing directive keys.
type Directives map[string]struct{}

// NewDirectives builds a set from keys.
func NewDirectives(keys ...string) Directives {
	d := make(Directives, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			d[k] = struct{}{}
		}
	}
	return d
}

// Has reports whether query carries at least one directive.
func (d Directives) Has(query url.Values) bool {
	for k := range query {
		if _, ok := d[strings.ToLower(k)]; ok {
			return true
		}
	}
	return false
}
