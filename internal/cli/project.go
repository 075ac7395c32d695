package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/releasekit/internal/config"
	"github.com/shinji-kodama/releasekit/internal/manifest"
	"github.com/shinji-kodama/releasekit/internal/model"
)

// loadConfig reads the project config, applies environment overrides and
// the --manifest flag, and validates the result. The config file is
// optional unless --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	required := false
	if f := cmd.Flag("config"); f != nil {
		required = f.Changed
	}

	cfg, err := config.Load(nil, configPath, required)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to load project config", err)
	}
	cfg.ApplyEnv(nil)
	if manifestPath != "" {
		cfg.Manifest = manifestPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid project config", err)
	}

	VerboseLog("Using manifest %s, remote %s, tool %s", cfg.Manifest, cfg.Remote, cfg.Tool)
	return cfg, nil
}

// loadManifest loads the manifest named by cfg, fills manifest-derived
// config defaults, and resolves the version.
func loadManifest(cfg *config.Config) (*manifest.Manifest, model.Version, error) {
	m, err := manifest.NewResolver(nil).Load(cfg.Manifest)
	if err != nil {
		return nil, "", manifestError(cfg.Manifest, err)
	}
	cfg.Complete(m)

	version, err := m.Version()
	if err != nil {
		return nil, "", manifestError(cfg.Manifest, err)
	}

	VerboseLog("Resolved version %s from %s", version, cfg.Manifest)
	return m, version, nil
}

func manifestError(path string, err error) error {
	return model.WrapCLIError(
		model.ExitManifestError,
		fmt.Sprintf("cannot resolve version from %s", path),
		err,
	)
}
