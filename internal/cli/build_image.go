package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/releasekit/internal/config"
	"github.com/shinji-kodama/releasekit/internal/docker"
	"github.com/shinji-kodama/releasekit/internal/model"
	"github.com/shinji-kodama/releasekit/internal/publish"
)

type buildImageFlags struct {
	// contextDir overrides the configured build context.
	contextDir string

	// verify checks through the engine API that all four tags point at
	// the same image after the build.
	verify bool
}

// NewBuildImageCommand creates the "build-image" cobra command.
func NewBuildImageCommand() *cobra.Command {
	flags := &buildImageFlags{}

	cmd := &cobra.Command{
		Use:   "build-image",
		Short: "Build the release image and apply its four tags",
		Long: `Build the release image in two stages and apply its four tags.

The first stage compiles the artifact in the builder image. The second
copies only the artifact into the runtime image, which runs it as a
non-root user. The image is tagged:

  <name>:<version>             <registry>/<namespace>/<name>:<version>
  <name>:latest                <registry>/<namespace>/<name>:latest

Examples:
  releasekit build-image
  releasekit build-image --context ./exporter
  DOCKER=podman releasekit build-image --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if flags.contextDir != "" {
				cfg.Build.Context = flags.contextDir
			}
			return runBuildImage(cmd.Context(), cfg, flags)
		},
	}

	cmd.Flags().StringVar(&flags.contextDir, "context", "", "Build context directory (default from config: .)")
	cmd.Flags().BoolVar(&flags.verify, "verify", true, "Check through the engine API that all tags point at the built image")

	return cmd
}

func runBuildImage(ctx context.Context, cfg *config.Config, flags *buildImageFlags) error {
	_, version, err := loadManifest(cfg)
	if err != nil {
		return err
	}

	tool := docker.NewTool(cfg.Tool)
	publisher, err := newPublisher(cfg, tool, nil)
	if err != nil {
		return err
	}

	VerboseLog("Building %s with %s in %s", version, tool.Name(), cfg.Build.Context)
	refs, err := publisher.Build(ctx, version)
	if err != nil {
		return err
	}

	var imageID string
	if flags.verify {
		imageID, err = verifyBuild(ctx, publisher, cfg.Tool, version)
		if err != nil {
			return err
		}
	}

	printBuildResult(version, refs, imageID)
	return nil
}

// newPublisher builds a Publisher from the config. sessions may be nil for
// build-only use.
func newPublisher(cfg *config.Config, tool *docker.Tool, sessions publish.SessionChecker) (*publish.Publisher, error) {
	p, err := publish.NewPublisher(cfg.PublishSettings(), tool, sessions, publish.WithLogger(Logger()))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid image configuration", err)
	}
	return p, nil
}

// verifyBuild confirms the four tags through the API of the engine the
// tool builds with. An unreachable engine skips the check: the tool may
// talk to a daemon releasekit cannot find.
func verifyBuild(ctx context.Context, publisher *publish.Publisher, tool string, version model.Version) (string, error) {
	client, err := docker.NewClient(tool)
	if err != nil {
		VerboseLog("Skipping tag verification: %v", err)
		return "", nil
	}
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx); err != nil {
		VerboseLog("Skipping tag verification: %v", err)
		return "", nil
	}

	id, err := publisher.Verify(ctx, client, version)
	if err != nil {
		return "", err
	}
	VerboseLog("All tags point at image %s", id)
	return id, nil
}

func printBuildResult(version model.Version, refs []model.ImageReference, imageID string) {
	if IsJSONOutput() {
		printJSON(struct {
			Version    string                 `json:"version"`
			ImageID    string                 `json:"imageId,omitempty"`
			References []model.ImageReference `json:"references"`
		}{version.String(), imageID, refs})
		return
	}

	color.New(color.FgGreen).Printf("Built image for %s\n", version)
	if imageID != "" {
		fmt.Printf("  Image:  %s\n", imageID)
	}
	fmt.Println("  Tags:")
	for _, ref := range refs {
		fmt.Printf("    %s\n", ref)
	}
}
