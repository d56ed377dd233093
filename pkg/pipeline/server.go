package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"example.com/blobreader/pkg/objectstore"
)

// Pipeline routes HTTP requests to the installed providers. It implements Host.
type Pipeline struct {
	hooks      Hooks
	directives Directives
	log        zerolog.Logger

	mu        sync.RWMutex
	providers []Provider
}

// New constructs a pipeline recognizing the given processing directives.
func New(directives Directives, log zerolog.Logger) *Pipeline {
	if directives == nil {
		directives = NewDirectives(DefaultDirectives...)
	}
	return &Pipeline{
		directives: directives,
		log:        log,
	}
}

// PostRewrite returns the post-rewrite hook registry.
func (p *Pipeline) PostRewrite() HookRegistry {
	return &p.hooks
}

// HasPipelineDirective reports whether query asks for processed output.
func (p *Pipeline) HasPipelineDirective(query url.Values) bool {
	return p.directives.Has(query)
}

// AddProvider registers prov unless it is already registered.
func (p *Pipeline) AddProvider(prov Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.providers {
		if existing == prov {
			return
		}
	}
	p.providers = append(p.providers, prov)
}

// RemoveProvider unregisters prov and reports whether it was registered.
func (p *Pipeline) RemoveProvider(prov Provider) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.providers {
		if existing == prov {
			p.providers = append(p.providers[:i:i], p.providers[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Pipeline) match(virtualPath string) Provider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, prov := range p.providers {
		if prov.Belongs(virtualPath) {
			return prov
		}
	}
	return nil
}

// ServeHTTP fires the post-rewrite hooks and then serves the virtual file
// verbatim from the matching provider.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeHTTPError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ev := &RewriteEvent{
		VirtualPath: r.URL.Path,
		Query:       r.URL.Query(),
	}
	sink := &httpSink{w: w, r: r}
	p.hooks.Fire(ev, sink)
	if sink.Redirected() {
		return
	}

	prov := p.match(ev.VirtualPath)
	if prov == nil {
		writeHTTPError(w, http.StatusNotFound, fmt.Sprintf("%s: no provider", ev.VirtualPath))
		return
	}
	meta, err := prov.FetchMetadata(r.Context(), ev.VirtualPath, ev.Query)
	if err != nil {
		p.writeErrorFor(w, ev.VirtualPath, err)
		return
	}
	if !meta.Exists {
		writeHTTPError(w, http.StatusNotFound, fmt.Sprintf("%s: not found", ev.VirtualPath))
		return
	}
	if notModified(r, meta.LastModifiedUTC) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	content, err := prov.Open(r.Context(), ev.VirtualPath, ev.Query)
	if err != nil {
		p.writeErrorFor(w, ev.VirtualPath, err)
		return
	}
	http.ServeContent(w, r, path.Base(ev.VirtualPath), meta.LastModifiedUTC, content)
}

// Serve listens on the provided socket or TCP address until ctx is cancelled.
func (p *Pipeline) Serve(ctx context.Context, socketPath, listenAddr string, extra map[string]http.Handler) error {
	if socketPath == "" && listenAddr == "" {
		listenAddr = "127.0.0.1:8080"
	}
	l, err := createListener(socketPath, listenAddr)
	if err != nil {
		return err
	}
	defer l.Close()

	mux := http.NewServeMux()
	for pattern, h := range extra {
		mux.Handle(pattern, h)
	}
	mux.Handle("/", p)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if serveErr := server.Serve(l); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
		close(errCh)
	}()
	p.log.Info().Str("addr", l.Addr().String()).Msg("pipeline listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case serveErr := <-errCh:
		return serveErr
	}
}

// notModified answers If-Modified-Since before the content is downloaded.
func notModified(r *http.Request, modified time.Time) bool {
	if modified.IsZero() {
		return false
	}
	since, err := http.ParseTime(r.Header.Get("If-Modified-Since"))
	if err != nil {
		return false
	}
	return !modified.Truncate(time.Second).After(since)
}

type httpSink struct {
	w          http.ResponseWriter
	r          *http.Request
	redirected bool
}

func (s *httpSink) Redirect(target string) {
	http.Redirect(s.w, s.r, target, http.StatusFound)
	s.redirected = true
}

func (s *httpSink) Redirected() bool {
	return s.redirected
}

func createListener(socketPath, listenAddr string) (net.Listener, error) {
	if socketPath != "" {
		if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
			return nil, fmt.Errorf("prepare socket dir: %w", err)
		}
		if err := os.RemoveAll(socketPath); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
		l, err := net.Listen("unix", socketPath)
		if err != nil {
			return nil, fmt.Errorf("unix listen: %w", err)
		}
		return l, nil
	}
	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("tcp listen: %w", err)
	}
	return l, nil
}

func writeHTTPError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeErrorFor maps not-found errors to 404 and everything else to 500.
func (p *Pipeline) writeErrorFor(w http.ResponseWriter, virtualPath string, err error) {
	status := http.StatusInternalServerError
	if objectstore.IsNotFound(err) {
		status = http.StatusNotFound
	} else {
		p.log.Warn().Err(err).Str("path", virtualPath).Msg("serve failed")
	}
	writeHTTPError(w, status, err.Error())
}
