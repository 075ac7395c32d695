package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/shinji-kodama/releasekit/internal/model"
)

// defaultPingTimeout is the maximum duration to wait for an engine
// response during a Ping operation.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client. It handles automatic socket
// detection across platforms and container engines (Docker, podman).
//
// Usage:
//
//	c, err := docker.NewClient(tool)
//	if err != nil { /* handle */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* engine not running */ }
type Client struct {
	// inner is the underlying Docker SDK client. We wrap it rather than
	// embedding it to control the exposed API surface.
	inner client.APIClient
}

// NewClient creates an engine client for the given container tool.
//
// The detection strategy follows this priority order:
//  1. DOCKER_HOST environment variable (if set, used as-is)
//  2. The sockets of the engine the tool talks to (see SocketCandidates)
//
// Images built by podman live in podman's store, so a podman tool never
// falls back to the Docker socket. An empty tool means ToolFromEnv().
//
// Returns a model.CLIError with ExitDockerNotRunning if no socket is found
// or the client cannot be created.
func NewClient(tool string) (*Client, error) {
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		return newClientWithHost(dockerHost)
	}
	if tool == "" {
		tool = ToolFromEnv()
	}

	host, err := detectEngineHost(tool)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("no engine socket found for %s", filepath.Base(tool)),
			err,
		)
	}

	return newClientWithHost(host)
}

// newClientWithHost creates an SDK client connected to the specified host,
// with API version negotiation so older engines keep working.
func newClientWithHost(host string) (*Client, error) {
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create engine client for host %q", host),
			err,
		)
	}

	return &Client{inner: c}, nil
}

// detectEngineHost returns the host URI of the first existing socket for
// tool on the current platform. Existence is checked rather than
// connectivity; Ping() verifies the daemon is actually listening.
func detectEngineHost(tool string) (string, error) {
	if runtime.GOOS == "windows" && !IsPodman(tool) {
		// os.Stat does not work on Windows named pipes, so try a dial instead.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err == nil {
			conn.Close()
			return "npipe://" + pipePath, nil
		}
		return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)
	}

	homeDir, _ := os.UserHomeDir()
	paths := SocketCandidates(runtime.GOOS, tool, os.Getenv("XDG_RUNTIME_DIR"), homeDir)
	if len(paths) == 0 {
		return "", fmt.Errorf("no known engine socket for %s on %s", filepath.Base(tool), runtime.GOOS)
	}
	return detectUnixSocket(paths)
}

// SocketCandidates lists the Unix sockets tried for tool, in order.
//
//	podman, linux:  $XDG_RUNTIME_DIR/podman/podman.sock, /run/podman/podman.sock
//	podman, darwin: ~/.local/share/containers/podman/machine/podman.sock
//	docker, linux:  /var/run/docker.sock, then the podman sockets
//	docker, darwin: /var/run/docker.sock, ~/.docker/run/docker.sock
//
// A docker-compatible tool may be podman's docker shim, so it falls back
// to the podman sockets on Linux.
func SocketCandidates(goos, tool, runtimeDir, homeDir string) []string {
	var podman []string
	switch goos {
	case "linux":
		if runtimeDir != "" {
			podman = append(podman, filepath.Join(runtimeDir, "podman", "podman.sock"))
		}
		podman = append(podman, "/run/podman/podman.sock")
	case "darwin":
		if homeDir != "" {
			podman = append(podman, filepath.Join(homeDir, ".local", "share", "containers", "podman", "machine", "podman.sock"))
		}
	}

	if IsPodman(tool) {
		return podman
	}

	switch goos {
	case "linux":
		return append([]string{"/var/run/docker.sock"}, podman...)
	case "darwin":
		paths := []string{"/var/run/docker.sock"}
		if homeDir != "" {
			paths = append(paths, filepath.Join(homeDir, ".docker", "run", "docker.sock"))
		}
		return paths
	default:
		return nil
	}
}

// detectUnixSocket checks a list of Unix socket paths and returns the
// host URI for the first socket that exists on the filesystem.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf(
		"no container engine socket found at any of: %v (is the engine running?)",
		paths,
	)
}

// Ping verifies that the engine is reachable and responsive, waiting up to
// defaultPingTimeout for a response.
//
// Returns a model.CLIError with ExitDockerNotRunning if the daemon
// does not respond or returns an error.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	_, err := c.inner.Ping(pingCtx)
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"container engine is not responding (is Docker or podman running?)",
			err,
		)
	}
	return nil
}

// Close releases all resources held by the client.
// Close is safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}
