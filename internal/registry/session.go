package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/releasekit/internal/docker"
)

// authFile is the subset of the docker config.json / podman auth.json
// layout needed to detect a session.
type authFile struct {
	Auths       map[string]json.RawMessage `json:"auths"`
	CredHelpers map[string]string          `json:"credHelpers"`
	CredsStore  string                     `json:"credsStore"`
}

// SessionStore inspects the container tool's auth file for an existing
// registry login.
type SessionStore struct {
	fs   afero.Fs
	path string
}

// NewSessionStore creates a SessionStore reading path from fs. A nil fs
// means the real OS filesystem.
func NewSessionStore(fs afero.Fs, path string) *SessionStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &SessionStore{fs: fs, path: path}
}

// Path returns the auth file location.
func (s *SessionStore) Path() string {
	return s.path
}

// HasSession reports whether the auth file records a login for host.
//
// A session exists when auths has an entry for the host, when a credential
// helper is configured for it, or when a global credsStore is set (the
// helper owns the secret, so its presence is taken as a session). A missing
// auth file means no session.
func (s *SessionStore) HasSession(host string) (bool, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read auth file %s: %w", s.path, err)
	}

	var cfg authFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return false, fmt.Errorf("parse auth file %s: %w", s.path, err)
	}

	want := normalizeHost(host)
	for key := range cfg.Auths {
		if normalizeHost(key) == want {
			return true, nil
		}
	}
	for key := range cfg.CredHelpers {
		if normalizeHost(key) == want {
			return true, nil
		}
	}
	return cfg.CredsStore != "", nil
}

// normalizeHost reduces an auth file key ("https://ghcr.io/v1/",
// "ghcr.io/owner") to its host.
func normalizeHost(key string) string {
	key = strings.TrimPrefix(key, "https://")
	key = strings.TrimPrefix(key, "http://")
	if i := strings.Index(key, "/"); i >= 0 {
		key = key[:i]
	}
	return strings.ToLower(key)
}

// AuthFilePath returns the auth file the given tool writes on login.
//
// podman: $REGISTRY_AUTH_FILE, then $XDG_RUNTIME_DIR/containers/auth.json,
// then ~/.config/containers/auth.json.
// Anything else (docker-compatible): $DOCKER_CONFIG/config.json, then
// ~/.docker/config.json.
func AuthFilePath(tool string, lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if docker.IsPodman(tool) {
		if p := env("REGISTRY_AUTH_FILE"); p != "" {
			return p, nil
		}
		if dir := env("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, "containers", "auth.json"), nil
		}
		home, err := homeDir(env)
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "containers", "auth.json"), nil
	}

	if dir := env("DOCKER_CONFIG"); dir != "" {
		return filepath.Join(dir, "config.json"), nil
	}
	home, err := homeDir(env)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".docker", "config.json"), nil
}

func homeDir(env func(string) string) (string, error) {
	if home := env("HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate auth file: %w", err)
	}
	return home, nil
}
