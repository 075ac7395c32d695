package registry

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/shinji-kodama/releasekit/internal/model"
)

// Login performs a registry login with the container tool. The secret is
// supplied as a reader so it can be piped to the tool's stdin.
type Login interface {
	Login(ctx context.Context, host, username string, secret io.Reader) error
}

// Authenticator logs the container tool in to one registry host.
type Authenticator struct {
	host     string
	provider CredentialProvider
	login    Login
	logger   *zap.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuthenticator creates an Authenticator for host. An empty host means
// DefaultHost.
func NewAuthenticator(host string, provider CredentialProvider, login Login, opts ...Option) *Authenticator {
	if host == "" {
		host = DefaultHost
	}
	a := &Authenticator{
		host:     host,
		provider: provider,
		login:    login,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Host returns the registry host.
func (a *Authenticator) Host() string {
	return a.host
}

// Authenticate fetches the credential and logs in. A missing credential
// fails before the tool is invoked. All failures wrap model.ErrAuth.
func (a *Authenticator) Authenticate(ctx context.Context) error {
	cred, err := a.provider.Credential(ctx)
	if err != nil {
		return wrapAuth(err)
	}
	if err := cred.Validate(); err != nil {
		return err
	}

	a.logger.Debug("logging in to registry",
		zap.String("host", a.host),
		zap.String("username", cred.Username),
	)

	if err := a.login.Login(ctx, a.host, cred.Username, strings.NewReader(cred.Token.Reveal())); err != nil {
		return fmt.Errorf("%w: login to %s as %s rejected: %w", model.ErrAuth, a.host, cred.Username, err)
	}

	a.logger.Debug("registry login succeeded", zap.String("host", a.host))
	return nil
}

// wrapAuth ensures err is classified as an authentication failure.
func wrapAuth(err error) error {
	if model.ExitCodeFor(err) == model.ExitAuthError {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrAuth, err)
}
