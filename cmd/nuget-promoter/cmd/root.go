package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/nuget-promoter/internal/buildinfo"
	"github.com/oshokin/nuget-promoter/internal/config"
	"github.com/oshokin/nuget-promoter/internal/logger"
	"github.com/oshokin/nuget-promoter/internal/service/promoter"
)

// Execute runs the nuget-promoter CLI and exits with non-zero status on error.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		logger.ErrorKV(context.Background(), "Promotion failed", "error", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree; flags live in the closure so tests get a fresh tree.
func newRootCommand() *cobra.Command {
	var options promoter.Options

	rootCmd := &cobra.Command{
		Use:   "nuget-promoter --package <path> [--output <dir>] [--tag <prerelease>]",
		Short: "Promote a prerelease package to a release package",
		Long: "Promote a prerelease package: resolve the major.minor.patch release version from its metadata, " +
			"stamp it into the product version of every contained executable with rcedit, and write " +
			"{id}.{version}.nupkg without the prerelease suffix.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			_, err := promoter.Run(ctx, &options)

			return err
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&options.PackagePath, "package", "p", "", "path to the package to promote")
	flags.StringVarP(&options.OutputDir, "output", "o", "", "output directory (defaults to the current directory)")
	flags.StringVarP(&options.PrereleaseTag, "tag", "t", "", "optional new prerelease tag applied to the promoted package version")
	flags.StringVar(&options.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	//nolint:errcheck // The flag is defined right above.
	_ = rootCmd.MarkFlagRequired("package")

	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to settings file")

	buildinfo.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newConfigCommand(&options.ConfigPath))

	return rootCmd
}
