// Package app wires configured blob readers into a serving pipeline.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"example.com/blobreader/pkg/blobreader"
	"example.com/blobreader/pkg/config"
	"example.com/blobreader/pkg/metrics"
	"example.com/blobreader/pkg/pipeline"
	"example.com/blobreader/pkg/settings"
)

// App is a pipeline with every configured reader installed.
type App struct {
	Pipeline *pipeline.Pipeline
	Readers  []*blobreader.Reader
	Metrics  *metrics.Collector

	cfg *config.Config
	log zerolog.Logger
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	Dial blobreader.DialFunc
}

// Build installs one reader per configured mount. Named connection strings are
// looked up in the config file, then the env files, then the environment.
func Build(ctx context.Context, cfg *config.Config, v *viper.Viper, log zerolog.Logger, opts Options) (*App, error) {
	chain := settings.Chain{settings.Viper{V: v}}
	if len(cfg.EnvFiles) > 0 {
		dotenv, err := settings.DotEnv(cfg.EnvFiles...)
		if err != nil {
			return nil, err
		}
		chain = append(chain, dotenv)
	}
	chain = append(chain, settings.Env)

	collector, err := metrics.NewCollector("blobreader")
	if err != nil {
		return nil, err
	}
	directives := pipeline.NewDirectives(append(append([]string{}, pipeline.DefaultDirectives...), cfg.Directives...)...)
	a := &App{
		Pipeline: pipeline.New(directives, log),
		Metrics:  collector,
		cfg:      cfg,
		log:      log,
	}

	readerCfgs, err := cfg.ReaderConfigs()
	if err != nil {
		return nil, err
	}
	for _, rc := range readerCfgs {
		l := log
		r := blobreader.New(rc, blobreader.Options{
			Settings: chain,
			Metrics:  collector.ForMount(blobreader.NormalizePrefix(rc.Prefix)),
			Logger:   &l,
			Dial:     opts.Dial,
		})
		if err := r.Install(ctx, a.Pipeline); err != nil {
			a.Close()
			return nil, err
		}
		a.Readers = append(a.Readers, r)
	}
	return a, nil
}

// Close uninstalls every reader.
func (a *App) Close() {
	for _, r := range a.Readers {
		r.Uninstall(a.Pipeline)
	}
}

// Reader returns the reader whose mount claims virtualPath.
func (a *App) Reader(virtualPath string) (*blobreader.Reader, error) {
	for _, r := range a.Readers {
		if r.Belongs(virtualPath) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no mount claims %s", virtualPath)
}

// Serve runs the pipeline and the metrics endpoint until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	extra := map[string]http.Handler{}
	if a.cfg.MetricsPath != "" {
		extra[a.cfg.MetricsPath] = a.Metrics.Handler()
	}
	return a.Pipeline.Serve(ctx, a.cfg.Socket, a.cfg.Listen, extra)
}
