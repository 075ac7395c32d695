package docker

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/releasekit/internal/model"
)

// fakeToolScript records each invocation's arguments (one line per call)
// and stdin, and fails when the first argument equals $FAKE_DOCKER_FAIL_ON.
const fakeToolScript = `#!/bin/sh
echo "$*" >> "$FAKE_DOCKER_LOG"
if [ "$1" = "build" ] || [ "$1" = "login" ]; then
  cat > "$FAKE_DOCKER_STDIN"
fi
echo "fake $1 output"
if [ "$1" = "$FAKE_DOCKER_FAIL_ON" ]; then
  echo "fake $1 error" >&2
  exit 1
fi
exit 0
`

// fakeTool writes fakeToolScript into a temp dir and returns a Tool that
// runs it, plus the paths of the argument log and the stdin capture.
func fakeTool(t *testing.T, failOn string) (*Tool, string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake is not supported on Windows")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "docker")
	require.NoError(t, os.WriteFile(bin, []byte(fakeToolScript), 0o755))

	logPath := filepath.Join(dir, "args.log")
	stdinPath := filepath.Join(dir, "stdin")
	t.Setenv("FAKE_DOCKER_LOG", logPath)
	t.Setenv("FAKE_DOCKER_STDIN", stdinPath)
	t.Setenv("FAKE_DOCKER_FAIL_ON", failOn)

	return &Tool{Binary: bin, Output: &bytes.Buffer{}}, logPath, stdinPath
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestToolFromEnv(t *testing.T) {
	t.Setenv(ToolEnvVar, "")
	assert.Equal(t, "docker", ToolFromEnv())

	t.Setenv(ToolEnvVar, "  podman ")
	assert.Equal(t, "podman", ToolFromEnv())
}

func TestNewTool(t *testing.T) {
	t.Setenv(ToolEnvVar, "/usr/bin/podman")

	tool := NewTool("")
	assert.Equal(t, "/usr/bin/podman", tool.Binary)
	assert.Equal(t, "podman", tool.Name())
	assert.Equal(t, os.Stderr, tool.Output)

	assert.Equal(t, "nerdctl", NewTool("nerdctl").Binary)
}

func TestBuildRequest_Args(t *testing.T) {
	tests := []struct {
		name string
		req  BuildRequest
		want []string
	}{
		{
			name: "target stage without tags",
			req:  BuildRequest{ContextDir: ".", Target: "build"},
			want: []string{"build", "-f", "-", "--target", "build", "."},
		},
		{
			name: "final stage with tags and label",
			req: BuildRequest{
				ContextDir: "/src",
				Tags:       []string{"app:1.0.0", "ghcr.io/acme/app:1.0.0"},
				Labels:     map[string]string{LabelSource: "https://github.com/acme/app"},
			},
			want: []string{
				"build", "-f", "-",
				"-t", "app:1.0.0",
				"-t", "ghcr.io/acme/app:1.0.0",
				"--label", "org.opencontainers.image.source=https://github.com/acme/app",
				"/src",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Args())
		})
	}
}

func TestTool_Build(t *testing.T) {
	tool, logPath, stdinPath := fakeTool(t, "")

	err := tool.Build(context.Background(), BuildRequest{
		ContextDir:    "/src",
		Containerfile: []byte("FROM scratch\n"),
		Target:        "build",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"build -f - --target build /src"}, readLines(t, logPath))

	stdin, err := os.ReadFile(stdinPath)
	require.NoError(t, err)
	assert.Equal(t, "FROM scratch\n", string(stdin))

	assert.Contains(t, tool.Output.(*bytes.Buffer).String(), "fake build output")
}

func TestTool_Build_RejectsEmptyInput(t *testing.T) {
	tool := &Tool{Binary: "docker"}

	err := tool.Build(context.Background(), BuildRequest{Containerfile: []byte("FROM scratch")})
	assert.Error(t, err)

	err = tool.Build(context.Background(), BuildRequest{ContextDir: "."})
	assert.Error(t, err)
}

func TestTool_Build_Failure(t *testing.T) {
	tool, _, _ := fakeTool(t, "build")

	err := tool.Build(context.Background(), BuildRequest{
		ContextDir:    ".",
		Containerfile: []byte("FROM scratch\n"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
	assert.Contains(t, tool.Output.(*bytes.Buffer).String(), "fake build error")
}

func TestTool_Login(t *testing.T) {
	tool, logPath, stdinPath := fakeTool(t, "")

	err := tool.Login(context.Background(), "ghcr.io", "octocat", strings.NewReader("s3cret"))
	require.NoError(t, err)

	lines := readLines(t, logPath)
	require.Len(t, lines, 1)
	assert.Equal(t, "login ghcr.io --username octocat --password-stdin", lines[0])
	assert.NotContains(t, lines[0], "s3cret")

	stdin, err := os.ReadFile(stdinPath)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(stdin))
}

func TestTool_Login_Failure(t *testing.T) {
	tool, _, _ := fakeTool(t, "login")

	err := tool.Login(context.Background(), "ghcr.io", "octocat", strings.NewReader("s3cret"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake login error")
	assert.NotContains(t, err.Error(), "s3cret")
}

func TestTool_Push(t *testing.T) {
	tool, logPath, _ := fakeTool(t, "")

	require.NoError(t, tool.Push(context.Background(), "ghcr.io/acme/app:1.0.0"))
	assert.Equal(t, []string{"push ghcr.io/acme/app:1.0.0"}, readLines(t, logPath))
}

func TestTool_MissingBinary(t *testing.T) {
	tool := &Tool{Binary: filepath.Join(t.TempDir(), "no-such-tool")}

	err := tool.Push(context.Background(), "ghcr.io/acme/app:1.0.0")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitDockerNotRunning, cliErr.Code)

	err = tool.Login(context.Background(), "ghcr.io", "u", strings.NewReader("p"))
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitDockerNotRunning, cliErr.Code)
}
