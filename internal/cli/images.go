package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/releasekit/internal/config"
	"github.com/shinji-kodama/releasekit/internal/docker"
)

// NewImagesCommand creates the "images" cobra command.
func NewImagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "List local release images",
		Long: `List local images tagged under the short or registry-qualified
repository, newest first.

The engine is reached through DOCKER_HOST or the default Docker and podman
sockets.

Examples:
  releasekit images
  releasekit images --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runImages(cmd.Context(), cfg)
		},
	}

	return cmd
}

func runImages(ctx context.Context, cfg *config.Config) error {
	if _, _, err := loadManifest(cfg); err != nil {
		return err
	}
	settings := cfg.PublishSettings()

	client, err := docker.NewClient(cfg.Tool)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to container engine")

	images, err := client.ListImages(ctx, settings.Name, settings.QualifiedRepository())
	if err != nil {
		return err
	}
	VerboseLog("Found %d release images", len(images))

	printImages(images)
	return nil
}

func printImages(images []docker.LocalImage) {
	if IsJSONOutput() {
		if images == nil {
			images = []docker.LocalImage{}
		}
		printJSON(struct {
			Images []docker.LocalImage `json:"images"`
		}{images})
		return
	}

	if len(images) == 0 {
		fmt.Println("No release images found.")
		return
	}

	fmt.Printf("%-15s %-10s %-20s %s\n", "IMAGE ID", "SIZE", "CREATED", "TAGS")
	for _, img := range images {
		fmt.Printf("%-15s %-10s %-20s %s\n",
			ShortImageID(img.ID),
			FormatSize(img.Size),
			img.Created.Local().Format(time.DateTime),
			strings.Join(img.Tags, ","),
		)
	}
}

// ShortImageID returns the first 12 hex digits of an image ID, without the
// "sha256:" prefix.
func ShortImageID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// FormatSize renders a byte count with a decimal unit, like `docker images`.
//
//	512       → "512B"
//	15300000  → "15.3MB"
func FormatSize(size int64) string {
	const unit = 1000
	if size < unit {
		return fmt.Sprintf("%dB", size)
	}
	value := float64(size)
	units := []string{"kB", "MB", "GB", "TB"}
	i := -1
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.1f%s", value, units[i])
}
