package docker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketCandidates(t *testing.T) {
	tests := []struct {
		name       string
		goos       string
		tool       string
		runtimeDir string
		want       []string
	}{
		{
			name:       "podman on linux skips the docker socket",
			goos:       "linux",
			tool:       "/usr/bin/podman",
			runtimeDir: "/run/user/1000",
			want:       []string{"/run/user/1000/podman/podman.sock", "/run/podman/podman.sock"},
		},
		{
			name: "rootful podman without runtime dir",
			goos: "linux",
			tool: "podman",
			want: []string{"/run/podman/podman.sock"},
		},
		{
			name:       "docker on linux prefers the docker socket",
			goos:       "linux",
			tool:       "docker",
			runtimeDir: "/run/user/1000",
			want: []string{
				"/var/run/docker.sock",
				"/run/user/1000/podman/podman.sock",
				"/run/podman/podman.sock",
			},
		},
		{
			name: "podman machine on darwin",
			goos: "darwin",
			tool: "podman",
			want: []string{"/Users/u/.local/share/containers/podman/machine/podman.sock"},
		},
		{
			name: "docker on darwin",
			goos: "darwin",
			tool: "docker",
			want: []string{"/var/run/docker.sock", "/Users/u/.docker/run/docker.sock"},
		},
		{
			name: "unsupported platform",
			goos: "plan9",
			tool: "docker",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SocketCandidates(tt.goos, tt.tool, tt.runtimeDir, "/Users/u")
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestDetectUnixSocket_PodmanIgnoresDockerSocket verifies that with both
// engines present, a podman tool resolves to the podman socket.
func TestDetectUnixSocket_PodmanIgnoresDockerSocket(t *testing.T) {
	root := t.TempDir()
	runtimeDir := filepath.Join(root, "run")
	require.NoError(t, os.MkdirAll(filepath.Join(runtimeDir, "podman"), 0o755))
	podmanSock := filepath.Join(runtimeDir, "podman", "podman.sock")
	require.NoError(t, os.WriteFile(podmanSock, nil, 0o600))

	host, err := detectUnixSocket(SocketCandidates("linux", "podman", runtimeDir, ""))
	require.NoError(t, err)
	assert.Equal(t, "unix://"+podmanSock, host)
}

func TestDetectUnixSocket_NoneFound(t *testing.T) {
	_, err := detectUnixSocket([]string{filepath.Join(t.TempDir(), "missing.sock")})
	assert.Error(t, err)
}

func TestIsPodman(t *testing.T) {
	assert.True(t, IsPodman("podman"))
	assert.True(t, IsPodman("/opt/bin/podman-remote"))
	assert.False(t, IsPodman("docker"))
	assert.False(t, IsPodman("/usr/local/bin/nerdctl"))
}

func TestNewClient_DockerHostWins(t *testing.T) {
	t.Setenv("DOCKER_HOST", "unix:///tmp/explicit.sock")

	c, err := NewClient("podman")
	require.NoError(t, err)
	defer c.Close()
	assert.NotNil(t, c.inner)
}
