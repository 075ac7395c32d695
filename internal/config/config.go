// Package config loads the optional .releasekit.yaml project file.
//
// Every field has a default, so a project with a plain Cargo.toml needs no
// config file at all. Values left empty after loading (image name, source
// URL, namespace, artifact path) are filled from the manifest by Complete.
// None of them depend on the login environment, so build-image and
// push-image always compute the same references.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/releasekit/internal/docker"
	"github.com/shinji-kodama/releasekit/internal/manifest"
	"github.com/shinji-kodama/releasekit/internal/publish"
	"github.com/shinji-kodama/releasekit/internal/registry"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".releasekit.yaml"

// Default values.
const (
	DefaultRemote       = "origin"
	DefaultBuilderImage = "docker.io/library/rust:1-alpine"
	DefaultBuildCommand = "cargo build --release"
	DefaultRuntimeImage = "gcr.io/distroless/static-debian12"
	DefaultUser         = 65534
	defaultArtifactDir  = "target/release"
)

// Config is the decoded project configuration.
type Config struct {
	// Manifest is the path of the version manifest.
	Manifest string `yaml:"manifest"`

	// Remote is the git remote the release tag is pushed to.
	Remote string `yaml:"remote"`

	// Tool is the container tool binary. $DOCKER overrides it.
	Tool string `yaml:"tool"`

	Image ImageConfig `yaml:"image"`
	Build BuildConfig `yaml:"build"`
}

// ImageConfig names the published image.
type ImageConfig struct {
	// Name is the short image name. Defaults to the manifest package name.
	Name string `yaml:"name"`

	// Registry is the registry host.
	Registry string `yaml:"registry"`

	// Namespace is the owner path under the registry, usually the GitHub
	// user or organization. Defaults to the owner segment of Source.
	Namespace string `yaml:"namespace"`

	// Source is the provenance URL. Defaults to the manifest repository.
	Source string `yaml:"source"`
}

// BuildConfig holds the two-stage build inputs.
type BuildConfig struct {
	Context      string `yaml:"context"`
	BuilderImage string `yaml:"builder_image"`
	Command      string `yaml:"command"`
	Artifact     string `yaml:"artifact"`
	RuntimeImage string `yaml:"runtime_image"`
	User         int    `yaml:"user"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Manifest: manifest.DefaultPath,
		Remote:   DefaultRemote,
		Tool:     docker.DefaultTool,
		Image: ImageConfig{
			Registry: registry.DefaultHost,
		},
		Build: BuildConfig{
			Context:      ".",
			BuilderImage: DefaultBuilderImage,
			Command:      DefaultBuildCommand,
			RuntimeImage: DefaultRuntimeImage,
			User:         DefaultUser,
		},
	}
}

// Load decodes the YAML file at path over the defaults. A missing file
// yields the defaults unless required is set. Unknown keys are rejected.
func Load(fs afero.Fs, path string, required bool) (*Config, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	cfg := Default()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. Only $DOCKER is read:
// it selects the tool.
func (c *Config) ApplyEnv(lookup registry.LookupFunc) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if tool, _ := lookup(docker.ToolEnvVar); strings.TrimSpace(tool) != "" {
		c.Tool = strings.TrimSpace(tool)
	}
}

// Complete fills the image name, source, namespace and artifact path from m
// where the config leaves them empty. The namespace is the lowercased owner
// segment of the source URL.
func (c *Config) Complete(m *manifest.Manifest) {
	if m == nil {
		return
	}
	if c.Image.Name == "" {
		c.Image.Name = m.Name()
	}
	if c.Image.Source == "" {
		c.Image.Source = m.Repository()
	}
	if c.Image.Namespace == "" {
		c.Image.Namespace = RepositoryOwner(c.Image.Source)
	}
	if c.Build.Artifact == "" && c.Image.Name != "" {
		c.Build.Artifact = path.Join(defaultArtifactDir, c.Image.Name)
	}
}

// RepositoryOwner returns the lowercased first path segment of a repository
// URL ("https://github.com/Acme/exporter" gives "acme"). It accepts
// scp-style remotes ("git@github.com:acme/exporter.git") and returns "" when
// the URL has no owner segment.
func RepositoryOwner(repo string) string {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return ""
	}

	var p string
	if u, err := url.Parse(repo); err == nil && u.Host != "" {
		p = u.Path
	} else if at := strings.Index(repo, "@"); at >= 0 {
		if colon := strings.Index(repo[at:], ":"); colon >= 0 {
			p = repo[at+colon+1:]
		}
	}

	segments := strings.Split(strings.Trim(p, "/"), "/")
	if len(segments) < 2 || segments[0] == "" {
		return ""
	}
	return strings.ToLower(segments[0])
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Manifest) == "" {
		return errors.New("config: manifest path must not be empty")
	}
	if strings.TrimSpace(c.Remote) == "" {
		return errors.New("config: remote must not be empty")
	}
	if strings.TrimSpace(c.Tool) == "" {
		return errors.New("config: tool must not be empty")
	}
	if c.Build.User <= 0 {
		return fmt.Errorf("config: build.user must be a non-root numeric user ID (got %d)", c.Build.User)
	}
	return nil
}

// PublishSettings converts the image and build sections into publisher
// settings.
func (c *Config) PublishSettings() publish.Settings {
	return publish.Settings{
		Name:       c.Image.Name,
		Registry:   c.Image.Registry,
		Namespace:  c.Image.Namespace,
		Source:     c.Image.Source,
		ContextDir: c.Build.Context,
		Recipe: docker.ContainerfileSpec{
			BuilderImage: c.Build.BuilderImage,
			BuildCommand: c.Build.Command,
			ArtifactPath: c.Build.Artifact,
			RuntimeImage: c.Build.RuntimeImage,
			UID:          c.Build.User,
		},
	}
}
