package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/releasekit/internal/config"
	"github.com/shinji-kodama/releasekit/internal/docker"
	"github.com/shinji-kodama/releasekit/internal/registry"
)

// NewAuthenticateCommand creates the "authenticate" cobra command.
func NewAuthenticateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authenticate",
		Short: "Log the container tool in to the image registry",
		Long: `Log the container tool in to the image registry.

The username is read from GITHUB_USER and the token from CR_PAT. The token
is passed to the tool on stdin. Set DOCKER to use another tool, such as
podman.

Examples:
  GITHUB_USER=octocat CR_PAT=... releasekit authenticate
  DOCKER=podman releasekit authenticate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runAuthenticate(cmd.Context(), cfg)
		},
	}

	return cmd
}

func runAuthenticate(ctx context.Context, cfg *config.Config) error {
	tool := docker.NewTool(cfg.Tool)
	auth := registry.NewAuthenticator(
		cfg.Image.Registry,
		registry.EnvProvider{},
		tool,
		registry.WithLogger(Logger()),
	)

	VerboseLog("Authenticating %s against %s", tool.Name(), auth.Host())
	if err := auth.Authenticate(ctx); err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(struct {
			Registry      string `json:"registry"`
			Tool          string `json:"tool"`
			Authenticated bool   `json:"authenticated"`
		}{auth.Host(), tool.Name(), true})
		return nil
	}

	color.New(color.FgGreen).Printf("Logged in to %s\n", auth.Host())
	fmt.Printf("  Tool:  %s\n", tool.Name())
	return nil
}
