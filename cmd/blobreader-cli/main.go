package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"example.com/blobreader/pkg/app"
	"example.com/blobreader/pkg/config"
	"example.com/blobreader/pkg/logger"
)

// main wires CLI subcommands to a single blob reader so users can run quick
// inspections without starting the daemon.
func main() {
	if err := newRootCmd(os.Stdout, app.Options{}).Execute(); err != nil {
		os.Exit(1)
	}
}

type cliFlags struct {
	prefix   string
	conn     string
	endpoint string
	redirect bool
	timeout  time.Duration
	listen   string
	socket   string
}

func newRootCmd(out io.Writer, opts app.Options) *cobra.Command {
	f := &cliFlags{}
	root := &cobra.Command{
		Use:          "blobreader-cli",
		Short:        "Inspect blobs through a virtual path mount",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				logger.SetLevel(lvl)
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.prefix, "prefix", "/azure", "virtual path prefix of the mount")
	pf.StringVar(&f.conn, "connection-string", os.Getenv("BLOBREADER_CONNECTION_STRING"), "connection string or the name of an environment variable holding one")
	pf.StringVar(&f.endpoint, "endpoint", "", "public endpoint used for redirects")
	pf.BoolVar(&f.redirect, "redirect", true, "redirect unprocessed requests to the blob endpoint")
	pf.DurationVar(&f.timeout, "timeout", 30*time.Second, "RPC timeout")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "url <path>",
			Short: "Print the blob URL a virtual path resolves to",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(f, opts, func(ctx context.Context, a *app.App) error {
					r, err := a.Reader(args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(out, r.Resolve(args[0]))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "stat <path>",
			Short: "Print whether a blob exists and when it was last modified",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(f, opts, func(ctx context.Context, a *app.App) error {
					r, err := a.Reader(args[0])
					if err != nil {
						return err
					}
					meta, err := r.FetchMetadata(ctx, args[0], nil)
					if err != nil {
						return err
					}
					if !meta.Exists {
						return fmt.Errorf("%s: not found", args[0])
					}
					modified := "unknown"
					if !meta.LastModifiedUTC.IsZero() {
						modified = meta.LastModifiedUTC.Format(time.RFC3339)
					}
					fmt.Fprintf(out, "%s\t%s\n", r.Resolve(args[0]), modified)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "cat <path>",
			Short: "Write the blob content to stdout",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(f, opts, func(ctx context.Context, a *app.App) error {
					r, err := a.Reader(args[0])
					if err != nil {
						return err
					}
					content, err := r.Open(ctx, args[0], nil)
					if err != nil {
						return err
					}
					_, err = io.Copy(out, content)
					return err
				})
			},
		},
		newServeCmd(f, opts),
	)
	return root
}

func newServeCmd(f *cliFlags, opts app.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mount over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := mountConfig(f)
			cfg.Listen = f.listen
			cfg.Socket = f.socket
			cfg.MetricsPath = "/metrics"
			a, err := build(cfg, f.timeout, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			serveCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := a.Serve(serveCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.listen, "listen", "127.0.0.1:8484", "TCP listen address when --socket is empty")
	cmd.Flags().StringVar(&f.socket, "socket", "", "Unix socket path")
	return cmd
}

func mountConfig(f *cliFlags) *config.Config {
	return &config.Config{
		Mounts: []map[string]string{{
			"prefix":                     f.prefix,
			"connectionstring":           f.conn,
			"endpoint":                   f.endpoint,
			"redirectToBlobIfUnmodified": fmt.Sprint(f.redirect),
		}},
	}
}

func build(cfg *config.Config, timeout time.Duration, opts app.Options) (*app.App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return app.Build(ctx, cfg, viper.New(), logger.Log, opts)
}

// withApp installs the single mount described by f and runs fn with a
// request context bounded by the timeout flag.
func withApp(f *cliFlags, opts app.Options, fn func(context.Context, *app.App) error) error {
	a, err := build(mountConfig(f), f.timeout, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	return fn(ctx, a)
}
