// Package cli implements the cobra-based CLI commands for releasekit.
//
// Each subcommand (resolve-version, release, authenticate, build-image,
// push-image, images) is defined in its own file within this package. This
// file defines the root command that serves as the parent for all
// subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shinji-kodama/releasekit/internal/config"
	"github.com/shinji-kodama/releasekit/internal/model"
)

// Global flag variables shared across all subcommands.
var (
	// jsonOutput switches command output to JSON for machine consumption.
	jsonOutput bool

	// verbose enables debug logging on stderr.
	verbose bool

	// configPath is the project config file.
	configPath string

	// manifestPath overrides the manifest path from the config file.
	manifestPath string

	// logger is replaced by a debug logger in PersistentPreRunE when
	// --verbose is set.
	logger = zap.NewNop()
)

// Version, Commit and Date are set at build time via ldflags in main.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "releasekit",
		Short: "Version, tag and publish a release image",
		Long: `releasekit resolves the project version from its manifest, applies an
idempotent annotated git tag for it, and builds and publishes a container
image wrapping the release artifact.

A typical release:
  releasekit release
  releasekit authenticate
  releasekit build-image
  releasekit push-image`,

		// Errors are printed by Execute in text or JSON form.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = newLogger(verbose)
			if jsonOutput {
				color.NoColor = true
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Project config file")
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "Manifest file (overrides the config)")

	rootCmd.AddCommand(NewResolveVersionCommand())
	rootCmd.AddCommand(NewReleaseCommand())
	rootCmd.AddCommand(NewAuthenticateCommand())
	rootCmd.AddCommand(NewBuildImageCommand())
	rootCmd.AddCommand(NewPushImageCommand())
	rootCmd.AddCommand(NewImagesCommand())

	return rootCmd
}

// newLogger returns a console logger on stderr at debug level, or a no-op
// logger when verbose output is off.
func newLogger(enabled bool) *zap.Logger {
	if !enabled {
		return zap.NewNop()
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zap.DebugLevel,
	)
	return zap.New(core)
}

// Execute runs the root command and translates errors into exit codes.
// A CLIError carries its own code; any other error is classified by
// model.ExitCodeFor.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		code := model.ExitCodeFor(err)
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
		} else {
			printError(err.Error(), nil)
		}
		os.Exit(int(code))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stdout is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	prefix := color.New(color.FgRed, color.Bold).Sprint("Error:")
	if underlying != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", prefix, message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "%s %s\n", prefix, message)
	}
}

// VerboseLog writes a debug message to stderr when verbose mode is enabled.
func VerboseLog(format string, args ...interface{}) {
	logger.Sugar().Debugf(format, args...)
}

// Logger returns the command logger for passing to library packages.
func Logger() *zap.Logger {
	return logger
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
