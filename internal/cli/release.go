package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/releasekit/internal/config"
	"github.com/shinji-kodama/releasekit/internal/git"
	"github.com/shinji-kodama/releasekit/internal/model"
	"github.com/shinji-kodama/releasekit/internal/release"
)

type releaseFlags struct {
	// remote overrides the configured git remote.
	remote string
}

// NewReleaseCommand creates the "release" cobra command.
func NewReleaseCommand() *cobra.Command {
	flags := &releaseFlags{}

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Create and push the annotated tag for the manifest version",
		Long: `Create and push the annotated release tag v<version>.

The working tree must have no uncommitted changes to tracked files. If the
tag already exists, nothing is created or pushed and the command succeeds;
bump the version in the manifest to cut a new release.

Exit status is 1 when the tree is dirty or the tag push fails.

Examples:
  releasekit release
  releasekit release --remote upstream --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if flags.remote != "" {
				cfg.Remote = flags.remote
			}
			return runRelease(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&flags.remote, "remote", "", "Git remote to push the tag to (default from config: origin)")

	return cmd
}

func runRelease(ctx context.Context, cfg *config.Config) error {
	_, version, err := loadManifest(cfg)
	if err != nil {
		return err
	}

	repo, err := git.Open(".")
	if err != nil {
		return err
	}
	VerboseLog("Opened repository at %s", repo.Root)

	tagger := release.NewTagger(repo, cfg.Remote, release.WithLogger(Logger()))
	result, runErr := tagger.Run(ctx, version)

	if result != nil && result.State == release.StateAbortedDirty {
		if paths, err := repo.DirtyPaths(); err == nil {
			VerboseLog("Modified tracked files: %s", strings.Join(paths, ", "))
		}
	}

	if err := releaseError(result, runErr); err != nil {
		return err
	}

	printReleaseResult(result, cfg.Manifest)
	return nil
}

// releaseError converts a tagger outcome into a CLIError. DONE and
// SKIPPED_EXISTS yield nil. ABORTED_DIRTY and FAILED_PUSH exit 1; any other
// failure is a git error.
func releaseError(result *release.Result, err error) error {
	if err == nil {
		return nil
	}

	var (
		tag    model.Tag
		remote string
	)
	state := release.StateCheckClean
	if result != nil {
		tag, remote, state = result.Tag, result.Remote, result.State
	}

	switch {
	case errors.Is(err, release.ErrWorkingTreeDirty):
		return model.WrapCLIError(model.ExitGeneralError,
			"working tree has uncommitted changes to tracked files; commit or stash them before releasing", err)
	case errors.Is(err, release.ErrTagPushRejected):
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("tag %s was created locally but could not be pushed to %s", tag, remote), err)
	case errors.Is(err, model.ErrInvalidVersion):
		return model.WrapCLIError(model.ExitManifestError, "manifest version cannot be used as a tag", err)
	default:
		return model.WrapCLIError(model.ExitGitError,
			fmt.Sprintf("release stopped in state %s", state), err)
	}
}

func printReleaseResult(result *release.Result, manifestPath string) {
	if IsJSONOutput() {
		printJSON(result)
		return
	}

	switch result.State {
	case release.StateSkippedExists:
		color.New(color.FgYellow).Printf("Tag %s already exists; nothing was created or pushed.\n", result.Tag)
		fmt.Printf("Bump the version in %s to cut a new release.\n", manifestPath)
	default:
		color.New(color.FgGreen).Printf("Released %s\n", result.Tag)
		fmt.Printf("  Version:  %s\n", result.Version)
		fmt.Printf("  Remote:   %s\n", result.Remote)
	}
}
