// Package registry authenticates the container tool against the image
// registry and checks for an existing login session.
package registry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shinji-kodama/releasekit/internal/model"
)

const (
	// DefaultHost is the registry the release images are published to.
	DefaultHost = "ghcr.io"

	// UserEnvVar names the environment variable holding the registry user.
	UserEnvVar = "GITHUB_USER"

	// TokenEnvVar names the environment variable holding the access token.
	TokenEnvVar = "CR_PAT"
)

// CredentialProvider supplies the registry credential for a login.
type CredentialProvider interface {
	Credential(ctx context.Context) (model.Credential, error)
}

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvProvider reads the credential from GITHUB_USER and CR_PAT.
type EnvProvider struct {
	// Lookup resolves variables. Nil means os.LookupEnv.
	Lookup LookupFunc
}

// Credential returns the credential from the environment. Unset and blank
// variables both count as missing; the error names each one.
func (p EnvProvider) Credential(_ context.Context) (model.Credential, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	user, _ := lookup(UserEnvVar)
	token, _ := lookup(TokenEnvVar)

	var missing []string
	if strings.TrimSpace(user) == "" {
		missing = append(missing, UserEnvVar)
	}
	if strings.TrimSpace(token) == "" {
		missing = append(missing, TokenEnvVar)
	}
	if len(missing) > 0 {
		return model.Credential{}, fmt.Errorf("%w: %s not set", model.ErrAuth, strings.Join(missing, " and "))
	}

	return model.Credential{
		Username: strings.TrimSpace(user),
		Token:    model.Secret(token),
	}, nil
}

// StaticProvider returns a fixed credential.
type StaticProvider struct {
	Value model.Credential
}

// Credential returns p.Value.
func (p StaticProvider) Credential(_ context.Context) (model.Credential, error) {
	return p.Value, nil
}
