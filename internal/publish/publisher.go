// Package publish builds the release image, applies its four tags and
// pushes the registry-qualified references.
//
// Every run produces the same four references for a Version V:
//
//	NAME:V
//	REGISTRY/NAMESPACE/NAME:V
//	NAME:latest
//	REGISTRY/NAMESPACE/NAME:latest
//
// Only the two qualified references are pushed.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shinji-kodama/releasekit/internal/docker"
	"github.com/shinji-kodama/releasekit/internal/model"
)

// Builder runs builds and pushes through the container tool.
type Builder interface {
	Build(ctx context.Context, req docker.BuildRequest) error
	Push(ctx context.Context, ref string) error
}

// SessionChecker reports whether the container tool holds a login session
// for a registry host.
type SessionChecker interface {
	HasSession(host string) (bool, error)
}

// ImageLister lists local images by repository.
type ImageLister interface {
	ListImages(ctx context.Context, repositories ...string) ([]docker.LocalImage, error)
}

// Settings describes the image being published.
type Settings struct {
	// Name is the short image name ("podman-exporter").
	Name string

	// Registry is the registry host ("ghcr.io").
	Registry string

	// Namespace is the owner path under the registry host. Required for
	// ghcr.io, docker.io and quay.io.
	Namespace string

	// Source is the repository URL recorded in the provenance label.
	Source string

	// ContextDir is the build context directory.
	ContextDir string

	// Recipe holds the two-stage build inputs.
	Recipe docker.ContainerfileSpec
}

// QualifiedRepository returns REGISTRY/NAMESPACE/NAME.
func (s Settings) QualifiedRepository() string {
	parts := []string{s.Registry}
	if ns := strings.Trim(s.Namespace, "/"); ns != "" {
		parts = append(parts, ns)
	}
	return strings.Join(append(parts, s.Name), "/")
}

// namespacedRegistries only accept repositories under an owner path.
var namespacedRegistries = map[string]bool{
	"ghcr.io":   true,
	"docker.io": true,
	"quay.io":   true,
}

// Validate checks everything Build and Push need before any stage runs:
// the names of all four references, the provenance source and the build
// recipe.
func (s Settings) Validate() error {
	if s.Name == "" {
		return errors.New("image name must not be empty")
	}
	if s.Registry == "" {
		return errors.New("registry host must not be empty")
	}
	if namespacedRegistries[s.Registry] && strings.Trim(s.Namespace, "/") == "" {
		return fmt.Errorf("registry %s requires an image namespace (set image.namespace or the manifest repository URL)", s.Registry)
	}
	if s.ContextDir == "" {
		return errors.New("build context must not be empty")
	}
	for _, ref := range []model.ImageReference{
		{Repository: s.Name, Tag: model.LatestTag},
		{Repository: s.QualifiedRepository(), Tag: model.LatestTag},
	} {
		if err := ref.Validate(); err != nil {
			return err
		}
	}
	if _, err := docker.BuildLabels(s.Source); err != nil {
		return fmt.Errorf("%w (set image.source or the manifest repository URL)", err)
	}
	return s.Recipe.Validate()
}

// Publisher builds and pushes release images.
type Publisher struct {
	settings Settings
	builder  Builder
	sessions SessionChecker
	logger   *zap.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher creates a Publisher. sessions may be nil when only Build
// is used.
func NewPublisher(settings Settings, builder Builder, sessions SessionChecker, opts ...Option) (*Publisher, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid image settings: %w", err)
	}
	p := &Publisher{
		settings: settings,
		builder:  builder,
		sessions: sessions,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// References returns the four references for version, in order:
// short:V, qualified:V, short:latest, qualified:latest.
func (p *Publisher) References(version model.Version) []model.ImageReference {
	short := p.settings.Name
	qualified := p.settings.QualifiedRepository()
	return []model.ImageReference{
		{Repository: short, Tag: version.String()},
		{Repository: qualified, Tag: version.String()},
		{Repository: short, Tag: model.LatestTag},
		{Repository: qualified, Tag: model.LatestTag},
	}
}

// PushReferences returns the two registry-qualified references.
func (p *Publisher) PushReferences(version model.Version) []model.ImageReference {
	refs := p.References(version)
	return []model.ImageReference{refs[1], refs[3]}
}

// Build produces the image and applies all four tags. The artifact stage
// runs on its own first; if it fails, the runtime stage never runs and no
// tag is applied.
func (p *Publisher) Build(ctx context.Context, version model.Version) ([]model.ImageReference, error) {
	if err := version.Validate(); err != nil {
		return nil, err
	}

	refs := p.References(version)
	tags := make([]string, 0, len(refs))
	for _, ref := range refs {
		if err := ref.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrInvalidVersion, err)
		}
		tags = append(tags, ref.String())
	}

	// Settings were validated by NewPublisher; these cannot fail here.
	recipe, err := docker.RenderContainerfile(p.settings.Recipe)
	if err != nil {
		return nil, fmt.Errorf("invalid build recipe: %w", err)
	}
	labels, err := docker.BuildLabels(p.settings.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid image source: %w", err)
	}

	p.logger.Debug("building artifact stage",
		zap.String("context", p.settings.ContextDir),
		zap.String("builder", p.settings.Recipe.BuilderImage),
	)
	err = p.builder.Build(ctx, docker.BuildRequest{
		ContextDir:    p.settings.ContextDir,
		Containerfile: recipe,
		Target:        docker.BuildStage,
	})
	if err != nil {
		return nil, &BuildError{Stage: StageArtifact, Err: err}
	}

	p.logger.Debug("building runtime stage",
		zap.String("runtime", p.settings.Recipe.RuntimeImage),
		zap.Strings("tags", tags),
	)
	err = p.builder.Build(ctx, docker.BuildRequest{
		ContextDir:    p.settings.ContextDir,
		Containerfile: recipe,
		Tags:          tags,
		Labels:        labels,
	})
	if err != nil {
		return nil, &BuildError{Stage: StageRuntime, Err: err}
	}

	return refs, nil
}

// Push uploads the two qualified references. It requires an existing
// registry session. The pushes are independent: a failure of one does not
// prevent the other, and every failure is reported as a PushError in the
// combined error. The returned slice lists the references that were pushed.
func (p *Publisher) Push(ctx context.Context, version model.Version) ([]model.ImageReference, error) {
	if err := version.Validate(); err != nil {
		return nil, err
	}
	if err := p.requireSession(); err != nil {
		return nil, err
	}

	var (
		pushed []model.ImageReference
		errs   error
	)
	for _, ref := range p.PushReferences(version) {
		p.logger.Debug("pushing image", zap.Stringer("ref", ref))
		if err := p.builder.Push(ctx, ref.String()); err != nil {
			errs = multierr.Append(errs, &PushError{Reference: ref, Err: err})
			continue
		}
		pushed = append(pushed, ref)
	}
	return pushed, errs
}

func (p *Publisher) requireSession() error {
	host := p.settings.Registry
	if p.sessions == nil {
		return fmt.Errorf("%w: no session store configured for %s", model.ErrAuth, host)
	}
	ok, err := p.sessions.HasSession(host)
	if err != nil {
		return fmt.Errorf("%w: cannot check session for %s: %w", model.ErrAuth, host, err)
	}
	if !ok {
		return fmt.Errorf("%w: not logged in to %s (run authenticate first)", model.ErrAuth, host)
	}
	return nil
}

// Verify confirms that all four references exist locally and point at the
// same image. It returns the shared image ID.
func (p *Publisher) Verify(ctx context.Context, lister ImageLister, version model.Version) (string, error) {
	images, err := lister.ListImages(ctx, p.settings.Name, p.settings.QualifiedRepository())
	if err != nil {
		return "", err
	}
	byTag := docker.GroupImageTags(images)

	var id string
	for _, ref := range p.References(version) {
		got, ok := byTag[ref.String()]
		switch {
		case !ok:
			return "", fmt.Errorf("%w: tag %s not found locally", model.ErrBuild, ref)
		case id == "":
			id = got
		case got != id:
			return "", fmt.Errorf("%w: tag %s points at %s, expected %s", model.ErrBuild, ref, got, id)
		}
	}
	return id, nil
}
