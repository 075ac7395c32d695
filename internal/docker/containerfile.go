package docker

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"text/template"
)

// BuildStage is the name of the first (artifact-producing) stage.
const BuildStage = "build"

// entrypointDir is where the artifact is installed in the runtime image.
const entrypointDir = "/usr/local/bin"

// ContainerfileSpec holds the inputs of the two-stage build recipe.
type ContainerfileSpec struct {
	// BuilderImage is the base image of the build stage, with the
	// toolchain needed by BuildCommand.
	BuilderImage string

	// BuildCommand produces the artifact inside the build stage.
	BuildCommand string

	// ArtifactPath is the produced executable, relative to the context root.
	ArtifactPath string

	// RuntimeImage is the minimal base image of the final stage.
	RuntimeImage string

	// UID is the numeric, non-root user the entrypoint runs as.
	UID int
}

// Validate checks that every field is set and the artifact path stays
// inside the build context.
func (s ContainerfileSpec) Validate() error {
	var missing []string
	if strings.TrimSpace(s.BuilderImage) == "" {
		missing = append(missing, "builder image")
	}
	if strings.TrimSpace(s.BuildCommand) == "" {
		missing = append(missing, "build command")
	}
	if strings.TrimSpace(s.ArtifactPath) == "" {
		missing = append(missing, "artifact path")
	}
	if strings.TrimSpace(s.RuntimeImage) == "" {
		missing = append(missing, "runtime image")
	}
	if len(missing) > 0 {
		return fmt.Errorf("containerfile: missing %s", strings.Join(missing, ", "))
	}

	if s.UID <= 0 {
		return fmt.Errorf("containerfile: user ID must be a positive, non-root number (got %d)", s.UID)
	}

	clean := path.Clean(s.ArtifactPath)
	if path.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return fmt.Errorf("containerfile: artifact path %q must be relative to the build context", s.ArtifactPath)
	}
	if strings.ContainsAny(s.ArtifactPath, "\"\n") {
		return fmt.Errorf("containerfile: artifact path %q contains invalid characters", s.ArtifactPath)
	}
	return nil
}

// Binary returns the artifact file name.
func (s ContainerfileSpec) Binary() string {
	return path.Base(path.Clean(s.ArtifactPath))
}

// Entrypoint returns the absolute path of the artifact in the runtime image.
func (s ContainerfileSpec) Entrypoint() string {
	return entrypointDir + "/" + s.Binary()
}

var containerfileTemplate = template.Must(template.New("Containerfile").Parse(
	`FROM {{ .BuilderImage }} AS {{ .Stage }}
WORKDIR /src
COPY . .
RUN {{ .BuildCommand }}

FROM {{ .RuntimeImage }}
COPY --from={{ .Stage }} /src/{{ .ArtifactPath }} {{ .Entrypoint }}
USER {{ .UID }}
ENTRYPOINT ["{{ .Entrypoint }}"]
`))

// RenderContainerfile renders the two-stage recipe. The runtime stage
// receives only the artifact; nothing else from the build stage is copied.
func RenderContainerfile(spec ContainerfileSpec) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	data := struct {
		ContainerfileSpec
		Stage      string
		Entrypoint string
	}{
		ContainerfileSpec: spec,
		Stage:             BuildStage,
		Entrypoint:        spec.Entrypoint(),
	}
	data.ArtifactPath = path.Clean(spec.ArtifactPath)

	var buf bytes.Buffer
	if err := containerfileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render containerfile: %w", err)
	}
	return buf.Bytes(), nil
}
