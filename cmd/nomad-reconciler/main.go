// Package main is the entry point for the nomad-reconciler agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/app"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/version"
)

// exitCode carries a non-zero process exit code through cobra.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func main() {
	err := rootCmd().ExecuteContext(context.Background())
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(app.ExitFailure)
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		oneshot    bool
	)

	root := &cobra.Command{
		Use:   "nomad-reconciler",
		Short: "Removes orphan Nomad service registrations and restarts allocations whose services never registered",
		Long: `nomad-reconciler periodically reconciles the Nomad native service registry:
registrations whose allocation no longer exists are deleted, and running
allocations that declare services but have none registered are restarted.

Configuration comes from the environment (NOMAD_ENDPOINT, NOMAD_TOKEN, ...)
and optionally a YAML file; environment variables win over the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv("NOMAD_RECONCILER_CONFIG", configPath); err != nil {
					return err
				}
			}
			if oneshot {
				if err := os.Setenv("ONESHOT", "true"); err != nil {
					return err
				}
			}

			if code := app.Main(cmd.Context()); code != app.ExitOK {
				return exitCode(code)
			}
			return nil
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (same as NOMAD_RECONCILER_CONFIG)")
	root.Flags().BoolVar(&oneshot, "oneshot", false, "run a single cycle then exit (same as ONESHOT=true)")

	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nomad-reconciler %s (commit: %s, built: %s, %s)\n",
				version.Version, version.Commit, version.BuildDate, version.GoVersion)
		},
	}
}
