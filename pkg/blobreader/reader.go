// Package blobreader exposes objects of a remote blob service as read-only
// virtual files under a path prefix of the serving pipeline.
package blobreader

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"example.com/blobreader/pkg/logger"
	"example.com/blobreader/pkg/metrics"
	"example.com/blobreader/pkg/objectstore"
	"example.com/blobreader/pkg/pipeline"
	"example.com/blobreader/pkg/settings"
)

// DialFunc creates the storage client for a parsed account.
type DialFunc func(ctx context.Context, acct objectstore.Account) (objectstore.ObjectStore, error)

// Options carries the collaborators of a Reader. Zero values are replaced by
// defaults.
type Options struct {
	// Settings resolves a named connection string before it is parsed.
	Settings settings.Chain
	Metrics  metrics.ReadReporter
	Logger   *zerolog.Logger
	Dial     DialFunc
}

// Reader is one mounted instance of the blob connector.
//
// Every field read while serving requests is assigned by Install before the
// reader is published to the host and never changes afterwards.
type Reader struct {
	cfg     Config
	opts    Options
	log     zerolog.Logger
	metrics metrics.ReadReporter

	store        objectstore.ObjectStore
	endpoint     string
	hasDirective func(url.Values) bool

	mu        sync.Mutex
	installed bool
}

// New creates a reader for cfg. No I/O happens until Install.
func New(cfg Config, opts Options) *Reader {
	cfg.Prefix = NormalizePrefix(cfg.Prefix)
	cfg.ConnectionString = strings.TrimSpace(cfg.ConnectionString)
	var log zerolog.Logger
	if opts.Logger != nil {
		log = *opts.Logger
	} else {
		log = logger.Log
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Dial == nil {
		opts.Dial = func(ctx context.Context, acct objectstore.Account) (objectstore.ObjectStore, error) {
			return objectstore.Dial(ctx, acct)
		}
	}
	return &Reader{
		cfg:     cfg,
		opts:    opts,
		log:     log.With().Str("mount", cfg.Prefix).Logger(),
		metrics: opts.Metrics,
	}
}

// Config returns the normalized mount configuration.
func (r *Reader) Config() Config {
	return r.cfg
}

// Endpoint returns the public, slash-terminated endpoint redirects point to.
// It is empty before Install.
func (r *Reader) Endpoint() string {
	return r.endpoint
}

// Install validates the configuration, creates the storage client and
// registers the reader with host. A reader can be installed only once.
func (r *Reader) Install(ctx context.Context, host pipeline.Host) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.installed {
		return errors.New("blobreader " + r.cfg.Prefix + ": already installed")
	}
	if r.cfg.ConnectionString == "" {
		return &ConfigurationError{
			Mount: r.cfg.Prefix,
			Msg:   "requires a named connection string or a connection string in the connectionstring setting",
		}
	}

	conn := r.opts.Settings.Resolve(r.cfg.ConnectionString)
	acct, err := objectstore.ParseAccount(conn)
	if err != nil {
		return &ConfigurationError{Mount: r.cfg.Prefix, Msg: "invalid connection string", Err: err}
	}
	endpoint := r.cfg.Endpoint
	if endpoint == "" {
		endpoint = acct.BlobEndpoint()
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	store, err := r.opts.Dial(ctx, acct)
	if err != nil {
		return &ConfigurationError{Mount: r.cfg.Prefix, Msg: "create storage client", Err: err}
	}

	r.store = store
	r.endpoint = endpoint
	r.hasDirective = host.HasPipelineDirective
	r.installed = true

	host.AddProvider(r)
	host.PostRewrite().Subscribe(r)
	r.log.Info().
		Str("blob_endpoint", store.BaseEndpoint()).
		Str("public_endpoint", endpoint).
		Bool("redirect", r.cfg.RedirectIfUnmodified).
		Msg("blob reader installed")
	return nil
}

// Uninstall removes the reader from host. Calling it again, or on a host the
// reader was never installed on, is a no-op that returns false. In-flight
// requests keep using the storage client; the reader cannot be reinstalled.
func (r *Reader) Uninstall(host pipeline.Host) bool {
	host.PostRewrite().Unsubscribe(r)
	removed := host.RemoveProvider(r)
	if removed {
		r.log.Info().Msg("blob reader uninstalled")
	}
	return removed
}
