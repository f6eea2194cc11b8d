package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/inox-unpack/internal/config"
	"github.com/oshokin/inox-unpack/internal/logger"
	"github.com/oshokin/inox-unpack/internal/preset"
	"github.com/oshokin/inox-unpack/internal/service/installer"
	"github.com/oshokin/inox-unpack/internal/version"
)

const (
	// exitFailure is returned for download, unpack and runtime errors.
	exitFailure = 1
	// exitUsage is returned for argument-parsing errors.
	exitUsage = 2

	// defaultLogLevel keeps stderr quiet unless something needs attention.
	defaultLogLevel = "warn"
)

var errUnknownLogLevel = errors.New("unknown log level")

// usageError marks errors caused by invalid command-line input.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

// flags holds the values of the root command flags.
type flags struct {
	// configPath to the settings YAML file.
	configPath string
	// target base directory for unpacked extensions.
	target string
	// logLevel is the minimum zap level written to stderr.
	logLevel string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	f := new(flags)

	rootCmd := &cobra.Command{
		Use:   "inox-unpack [flags] extension",
		Short: "Chromium extension downloader",
		Long: "Download a Chromium extension from the Chrome Web Store and unpack it into a directory " +
			"that can be loaded as an unpacked extension.\n\n" +
			"extension is a store ID or a preset (see `inox-unpack presets`).",
		Args:          exactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(f.logLevel)
			if !ok {
				return &usageError{err: fmt.Errorf("%w: %q", errUnknownLogLevel, f.logLevel)}
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options := &installer.Options{
				ConfigPath: f.configPath,
				Target:     f.target,
				Extension:  args[0],
				Output:     cmd.OutOrStdout(),
			}

			return installer.Run(cmd.Context(), options)
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		defaultHelp(cmd, args)
		_, _ = fmt.Fprint(cmd.OutOrStdout(), installer.InstallGuide(""))
	})

	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "",
		"path to settings file (default <user config dir>/"+config.DefaultConfigDirname+"/"+config.DefaultConfigFilename+")")
	rootCmd.PersistentFlags().StringVar(&f.logLevel, "log-level", defaultLogLevel, "log level: debug, info, warn, error")
	rootCmd.Flags().StringVarP(&f.target, "target", "t", "",
		"target directory where extensions will be stored (default "+config.DefaultTargetDir+")")

	rootCmd.AddCommand(newPresetsCmd(f), newInitConfigCmd(f))
	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// newPresetsCmd lists the available presets.
func newPresetsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List extension presets",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadOrDefault(f.configPath)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			return preset.New(cfg.Presets).WriteTable(cmd.OutOrStdout())
		},
	}
}

// newInitConfigCmd writes a settings file with default values.
func newInitConfigCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a settings file with default values",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := f.configPath
			if path == "" {
				var err error

				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s: %w", path, os.ErrExist)
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)

			return nil
		},
	}
}

// exactArgs wraps cobra.ExactArgs so that violations are reported as usage errors.
func exactArgs(n int) cobra.PositionalArgs {
	validate := cobra.ExactArgs(n)

	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}

		return nil
	}
}

// run executes the CLI with the given arguments and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)

	var usageErr *usageError
	if errors.As(err, &usageErr) {
		_, _ = fmt.Fprint(stderr, cmd.UsageString())
		_, _ = fmt.Fprint(stderr, installer.InstallGuide(""))

		return exitUsage
	}

	return exitFailure
}

// Execute runs the inox-unpack CLI and exits with a non-zero status on error.
func Execute() {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}
