// Package model defines the domain types for the releasekit CLI.
//
// These are the values passed between the resolver, the tagger, the
// registry authenticator and the image publisher. None of them are
// persisted by releasekit itself: the manifest is read-only input and git
// tags are the only state the pipeline writes.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/distribution/reference"
)

// Sentinel errors for the release pipeline error taxonomy. Concrete errors
// wrap one of these so callers can classify failures with errors.Is.
var (
	// ErrManifestRead indicates the manifest file could not be read or decoded.
	ErrManifestRead = errors.New("manifest read error")

	// ErrVersionNotFound indicates the manifest has no usable version field.
	ErrVersionNotFound = errors.New("version not found in manifest")

	// ErrInvalidVersion indicates the version string cannot be used as a
	// git tag suffix or an image tag.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrAuth indicates missing credentials or a rejected registry login.
	ErrAuth = errors.New("registry authentication failed")

	// ErrBuild indicates one of the image build stages exited non-zero.
	ErrBuild = errors.New("image build failed")

	// ErrPush indicates an image reference could not be pushed.
	ErrPush = errors.New("image push failed")
)

// LatestTag is the floating image tag applied next to the version tag.
const LatestTag = "latest"

// TagPrefix is prepended to a Version to form its git Tag.
const TagPrefix = "v"

// versionRegex matches strings that are valid as a docker image tag. Every
// such string, prefixed with "v", is also a valid git ref component.
var versionRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

// Version is the opaque release identifier extracted from the manifest.
// It is compared only by string equality.
type Version string

// String returns the version as a plain string.
func (v Version) String() string {
	return string(v)
}

// Validate rejects empty versions and versions containing characters that
// would produce an invalid git tag or image tag.
func (v Version) Validate() error {
	if v == "" {
		return fmt.Errorf("%w: version must not be empty", ErrInvalidVersion)
	}
	if !versionRegex.MatchString(string(v)) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidVersion, string(v), versionRegex.String())
	}
	// ".." and a trailing ".lock" are rejected by git check-ref-format.
	if strings.Contains(string(v), "..") || strings.HasSuffix(string(v), ".lock") {
		return fmt.Errorf("%w: %q is not a valid git ref component", ErrInvalidVersion, string(v))
	}
	return nil
}

// Tag returns the git tag name for this version ("v" + version).
func (v Version) Tag() Tag {
	return Tag(TagPrefix + string(v))
}

// Tag is the immutable source-control tag created for a Version.
type Tag string

// String returns the tag name.
func (t Tag) String() string {
	return string(t)
}

// RefName returns the fully-qualified git reference for the tag.
func (t Tag) RefName() string {
	return "refs/tags/" + string(t)
}

// ReleaseMessage returns the annotation message for the tag.
func (t Tag) ReleaseMessage() string {
	return "Release " + string(t)
}

// ImageReference is a (repository, tag) pair identifying one tagged
// variant of the published image.
type ImageReference struct {
	// Repository is either the short local name ("podman-exporter") or
	// the registry-qualified name ("ghcr.io/owner/podman-exporter").
	Repository string `json:"repository"`

	// Tag is the image tag suffix: the Version or "latest".
	Tag string `json:"tag"`
}

// String returns the reference in "repository:tag" form.
func (r ImageReference) String() string {
	return r.Repository + ":" + r.Tag
}

// Validate parses the reference with the distribution reference grammar.
func (r ImageReference) Validate() error {
	if r.Repository == "" || r.Tag == "" {
		return fmt.Errorf("image reference %q: repository and tag must not be empty", r.String())
	}
	if _, err := reference.ParseNormalizedNamed(r.String()); err != nil {
		return fmt.Errorf("image reference %q: %w", r.String(), err)
	}
	return nil
}

// Secret holds a sensitive value. Its String and GoString methods redact
// the value so it never shows up in logs or error messages.
type Secret string

// redacted is printed in place of a secret value.
const redacted = "[REDACTED]"

// String returns a redacted placeholder.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString returns a redacted placeholder for %#v formatting.
func (s Secret) GoString() string {
	return s.String()
}

// Reveal returns the underlying secret value.
func (s Secret) Reveal() string {
	return string(s)
}

// Credential is a registry username and secret token pair. It is sourced
// from the invoking environment and never written anywhere.
type Credential struct {
	Username string
	Token    Secret
}

// Validate returns an ErrAuth error naming each missing half of the pair.
func (c Credential) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(c.Token.Reveal()) == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrAuth, strings.Join(missing, " and "))
	}
	return nil
}

// ExitCode defines the process exit codes returned by releasekit.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully, including
	// a release that was skipped because its tag already exists.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error. A release that was
	// aborted on a dirty tree or whose tag push failed also exits with 1.
	ExitGeneralError ExitCode = 1

	// ExitManifestError indicates the manifest could not be read or did not
	// contain a valid version.
	ExitManifestError ExitCode = 2

	// ExitDockerNotRunning indicates the container tool or daemon is not
	// reachable.
	ExitDockerNotRunning ExitCode = 3

	// ExitAuthError indicates missing credentials or a rejected login.
	ExitAuthError ExitCode = 4

	// ExitGitError indicates a git query or tag creation failed.
	ExitGitError ExitCode = 5

	// ExitBuildError indicates a build stage failed.
	ExitBuildError ExitCode = 6

	// ExitPushError indicates at least one image push failed.
	ExitPushError ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ExitCodeFor classifies err into an exit code using the sentinel errors
// above. A CLIError anywhere in the chain wins.
func ExitCodeFor(err error) ExitCode {
	var cliErr *CLIError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &cliErr):
		return cliErr.Code
	case errors.Is(err, ErrManifestRead), errors.Is(err, ErrVersionNotFound), errors.Is(err, ErrInvalidVersion):
		return ExitManifestError
	case errors.Is(err, ErrAuth):
		return ExitAuthError
	case errors.Is(err, ErrBuild):
		return ExitBuildError
	case errors.Is(err, ErrPush):
		return ExitPushError
	default:
		return ExitGeneralError
	}
}
