package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/config"
	"github.com/openfroyo/phonebridge/pkg/providers"
)

type options struct {
	configPath string
	logLevel   string
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "phone-runner",
		Short: "Phone number parsing, formatting and classification over stdio",
		Long: `phone-runner exposes the phonebridge operations to hosts that cannot link
the C library or embed a wasm guest.

Without a subcommand it serves the JSON-lines protocol on stdin and stdout:
READY is written first, each CALL is answered by RESULT or ERROR, and EXIT is
written when stdin closes.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts, version)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(newServeCommand(opts, version))
	rootCmd.AddCommand(newCallCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))

	return rootCmd
}

// load resolves configuration from flags, falling back to the environment.
func (o *options) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if o.logLevel != "" {
		cfg.Telemetry.Logging.Level = o.logLevel
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	}
	return cfg, nil
}

// open builds a surface for abi from the resolved configuration. The
// returned function shuts telemetry down.
func (o *options) open(ctx context.Context, abi string) (*boundary.Surface, func(), error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}

	surface, tel, err := providers.DefaultRegistry().Open(cfg, abi)
	shutdown := func() {
		if tel == nil {
			return
		}
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			tel.Logger.WithError(err).Warn("telemetry shutdown failed")
		}
	}
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	return surface, shutdown, nil
}
