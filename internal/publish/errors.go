package publish

import (
	"fmt"

	"github.com/shinji-kodama/releasekit/internal/model"
)

// Stage identifies one of the two build stages.
type Stage string

const (
	// StageArtifact compiles the executable inside the builder image.
	StageArtifact Stage = "artifact"

	// StageRuntime assembles the final image around the artifact.
	StageRuntime Stage = "runtime"
)

// BuildError reports a failed build stage. It matches model.ErrBuild.
type BuildError struct {
	Stage Stage
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s stage build failed: %v", e.Stage, e.Err)
}

// Unwrap exposes both the ErrBuild classification and the cause.
func (e *BuildError) Unwrap() []error {
	return []error{model.ErrBuild, e.Err}
}

// PushError reports a failed push of one image reference. It matches
// model.ErrPush.
type PushError struct {
	Reference model.ImageReference
	Err       error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push %s failed: %v", e.Reference, e.Err)
}

// Unwrap exposes both the ErrPush classification and the cause.
func (e *PushError) Unwrap() []error {
	return []error{model.ErrPush, e.Err}
}
