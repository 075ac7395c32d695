package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/releasekit/internal/model"
)

// DefaultTool is the container tool binary used when $DOCKER is unset.
const DefaultTool = "docker"

// ToolEnvVar names the environment variable that overrides the tool binary.
const ToolEnvVar = "DOCKER"

// ToolFromEnv returns $DOCKER, or DefaultTool when it is unset or blank.
func ToolFromEnv() string {
	if tool := strings.TrimSpace(os.Getenv(ToolEnvVar)); tool != "" {
		return tool
	}
	return DefaultTool
}

// IsPodman reports whether tool names the podman binary.
func IsPodman(tool string) bool {
	return strings.Contains(filepath.Base(tool), "podman")
}

// BuildRequest describes one `build` invocation of the container tool.
type BuildRequest struct {
	// ContextDir is the build context directory.
	ContextDir string

	// Containerfile is the build recipe, fed to the tool on stdin.
	Containerfile []byte

	// Target selects a named stage; empty builds the final stage.
	Target string

	// Tags are applied to the resulting image, in order.
	Tags []string

	// Labels are set on the resulting image.
	Labels map[string]string
}

// Args renders the request as tool arguments:
//
//	build -f - [--target T] [-t TAG]... [--label K=V]... CONTEXT
func (r BuildRequest) Args() []string {
	args := []string{"build", "-f", "-"}
	if r.Target != "" {
		args = append(args, "--target", r.Target)
	}
	for _, tag := range r.Tags {
		args = append(args, "-t", tag)
	}
	args = append(args, LabelArgs(r.Labels)...)
	return append(args, r.ContextDir)
}

// Tool runs the container tool CLI (docker, podman, or anything with a
// compatible command line) as a child process.
//
// The CLI is used instead of the Engine SDK for build, login and push
// because the session created by `login` lives in the tool's own auth
// file, and pushes must go through the same tool to pick it up.
type Tool struct {
	// Binary is the tool executable name or path.
	Binary string

	// Output receives the streamed output of long-running commands
	// (build, push). Defaults to os.Stderr so stdout stays clean for
	// machine-readable results.
	Output io.Writer
}

// NewTool creates a Tool for binary. An empty binary means ToolFromEnv().
func NewTool(binary string) *Tool {
	if binary == "" {
		binary = ToolFromEnv()
	}
	return &Tool{Binary: binary, Output: os.Stderr}
}

// Name returns the base name of the tool binary ("docker", "podman").
func (t *Tool) Name() string {
	return filepath.Base(t.Binary)
}

// Build runs a build and streams its output. The Containerfile is
// supplied on stdin.
func (t *Tool) Build(ctx context.Context, req BuildRequest) error {
	if req.ContextDir == "" {
		return fmt.Errorf("build context directory must not be empty")
	}
	if len(req.Containerfile) == 0 {
		return fmt.Errorf("containerfile must not be empty")
	}
	return t.stream(ctx, bytes.NewReader(req.Containerfile), req.Args()...)
}

// Login authenticates against host, reading the secret from stdin so it
// never appears in the process list:
//
//	login HOST --username USER --password-stdin
func (t *Tool) Login(ctx context.Context, host, username string, secret io.Reader) error {
	// #nosec G204: binary is chosen by the operator via $DOCKER
	cmd := exec.CommandContext(ctx, t.Binary, "login", host, "--username", username, "--password-stdin")
	cmd.Stdin = secret

	output, err := cmd.CombinedOutput()
	if err != nil {
		if notFound := t.notFound(err); notFound != nil {
			return notFound
		}
		return fmt.Errorf("%s login %s failed: %s: %w", t.Name(), host, strings.TrimSpace(string(output)), err)
	}
	return nil
}

// Push uploads ref to its registry and streams progress output.
func (t *Tool) Push(ctx context.Context, ref string) error {
	return t.stream(ctx, nil, "push", ref)
}

// stream runs the tool with args, forwarding stdout and stderr to Output.
func (t *Tool) stream(ctx context.Context, stdin io.Reader, args ...string) error {
	// #nosec G204: binary is chosen by the operator via $DOCKER
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	cmd.Stdin = stdin

	out := t.Output
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		if notFound := t.notFound(err); notFound != nil {
			return notFound
		}
		return fmt.Errorf("%s %s failed: %w", t.Name(), args[0], err)
	}
	return nil
}

// notFound converts a missing-binary error into a CLIError with
// ExitDockerNotRunning, and returns nil for any other error.
func (t *Tool) notFound(err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("container tool %q not found (set %s to override)", t.Binary, ToolEnvVar),
			err,
		)
	}
	return nil
}
