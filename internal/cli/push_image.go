package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/shinji-kodama/releasekit/internal/config"
	"github.com/shinji-kodama/releasekit/internal/docker"
	"github.com/shinji-kodama/releasekit/internal/model"
	"github.com/shinji-kodama/releasekit/internal/registry"
)

// NewPushImageCommand creates the "push-image" cobra command.
func NewPushImageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push-image",
		Short: "Push the registry-qualified version and latest tags",
		Long: `Push <registry>/<namespace>/<name>:<version> and :latest.

Requires a prior "releasekit authenticate". Both pushes are attempted even
when one fails; every failure is reported.

Examples:
  releasekit push-image
  DOCKER=podman releasekit push-image --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runPushImage(cmd.Context(), cfg)
		},
	}

	return cmd
}

func runPushImage(ctx context.Context, cfg *config.Config) error {
	_, version, err := loadManifest(cfg)
	if err != nil {
		return err
	}

	tool := docker.NewTool(cfg.Tool)
	authFile, err := registry.AuthFilePath(cfg.Tool, nil)
	if err != nil {
		return model.WrapCLIError(model.ExitAuthError, "cannot locate container tool auth file", err)
	}
	VerboseLog("Checking registry session in %s", authFile)

	publisher, err := newPublisher(cfg, tool, registry.NewSessionStore(nil, authFile))
	if err != nil {
		return err
	}

	pushed, err := publisher.Push(ctx, version)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			VerboseLog("%v", e)
		}
		return err
	}

	printPushResult(pushed)
	return nil
}

func printPushResult(pushed []model.ImageReference) {
	if IsJSONOutput() {
		printJSON(struct {
			Pushed []model.ImageReference `json:"pushed"`
		}{pushed})
		return
	}

	color.New(color.FgGreen).Printf("Pushed %d image references\n", len(pushed))
	for _, ref := range pushed {
		fmt.Printf("  %s\n", ref)
	}
}
