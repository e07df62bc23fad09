package main

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/phonebridge/pkg/runner"
)

func newServeCommand(opts *options, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON-lines protocol on stdin and stdout",
		Example: `  # Serve with the default configuration
  phone-runner serve

  # Serve with a config file and debug logging on stderr
  phone-runner serve --config phonebridge.yaml --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts, version)
		},
	}
}

func serve(cmd *cobra.Command, opts *options, version string) error {
	ctx := cmd.Context()

	surface, shutdown, err := opts.open(ctx, runner.ABI)
	if err != nil {
		return err
	}
	defer shutdown()

	r, err := runner.New(surface, version)
	if err != nil {
		return err
	}
	return r.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
