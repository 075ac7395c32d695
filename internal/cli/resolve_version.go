package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/releasekit/internal/config"
)

type resolveVersionFlags struct {
	// tag prints the git tag ("v" + version) instead of the bare version.
	tag bool
}

// NewResolveVersionCommand creates the "resolve-version" cobra command.
func NewResolveVersionCommand() *cobra.Command {
	flags := &resolveVersionFlags{}

	cmd := &cobra.Command{
		Use:   "resolve-version",
		Short: "Print the version declared in the manifest",
		Long: `Print the version declared in the manifest.

The version is read from [package].version, falling back to
[workspace.package].version, [project].version and a top-level version key.

Examples:
  releasekit resolve-version
  releasekit resolve-version --tag
  releasekit resolve-version --manifest crates/exporter/Cargo.toml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runResolveVersion(cfg, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.tag, "tag", false, "Print the git tag (v<version>) instead")

	return cmd
}

func runResolveVersion(cfg *config.Config, flags *resolveVersionFlags) error {
	_, version, err := loadManifest(cfg)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(struct {
			Manifest string `json:"manifest"`
			Version  string `json:"version"`
			Tag      string `json:"tag"`
		}{
			Manifest: cfg.Manifest,
			Version:  version.String(),
			Tag:      version.Tag().String(),
		})
		return nil
	}

	if flags.tag {
		fmt.Println(version.Tag())
	} else {
		fmt.Println(version)
	}
	return nil
}
