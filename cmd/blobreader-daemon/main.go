package main

import (
	"context"
	"errors"
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

// main launches the long-lived daemon serving every configured mount over
// either a Unix socket or TCP.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var (
		cfgFile string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:          "blobreader-daemon",
		Short:        "Serve blob storage containers as virtual files",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, cfgFile, timeout)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&cfgFile, "config", "c", "", "configuration file (yaml, json or toml)")
	flags.String("listen", "", "TCP listen address when --socket is empty")
	flags.String("socket", "", "path to a Unix domain socket (takes precedence over --listen)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "time allowed for installing every mount")
	_ = v.BindPFlag("listen", flags.Lookup("listen"))
	_ = v.BindPFlag("socket", flags.Lookup("socket"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	return cmd
}

func run(ctx context.Context, v *viper.Viper, cfgFile string, timeout time.Duration) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		logger.Log.Error().Err(err).Msg("load config")
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	installCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a, err := app.Build(installCtx, cfg, v, logger.Log, app.Options{})
	if err != nil {
		logger.Log.Error().Err(err).Msg("install mounts")
		return err
	}
	defer a.Close()

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := a.Serve(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Error().Err(err).Msg("serve")
		return err
	}
	return nil
}
