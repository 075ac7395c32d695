// cli_test.go covers the pure helpers of the CLI layer:
// release outcome classification, output formatting and command wiring.
// None of these tests need a container engine or a git remote.
package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/releasekit/internal/model"
	"github.com/shinji-kodama/releasekit/internal/release"
)

func TestReleaseError(t *testing.T) {
	result := func(state release.State) *release.Result {
		return &release.Result{State: state, Version: "1.2.3", Tag: "v1.2.3", Remote: "origin"}
	}

	tests := []struct {
		name     string
		result   *release.Result
		err      error
		wantCode model.ExitCode
		wantMsg  string
	}{
		{
			name:     "dirty tree",
			result:   result(release.StateAbortedDirty),
			err:      release.ErrWorkingTreeDirty,
			wantCode: model.ExitGeneralError,
			wantMsg:  "uncommitted changes",
		},
		{
			name:     "push rejected",
			result:   result(release.StateFailedPush),
			err:      fmt.Errorf("%w: v1.2.3 to origin: %w", release.ErrTagPushRejected, errors.New("rejected")),
			wantCode: model.ExitGeneralError,
			wantMsg:  "tag v1.2.3 was created locally but could not be pushed to origin",
		},
		{
			name:     "git query failure",
			result:   result(release.StateCheckTagExists),
			err:      errors.New("object not found"),
			wantCode: model.ExitGitError,
			wantMsg:  "release stopped in state CHECK_TAG_EXISTS",
		},
		{
			name:     "invalid version",
			result:   result(release.StateCheckClean),
			err:      fmt.Errorf("%w: bad", model.ErrInvalidVersion),
			wantCode: model.ExitManifestError,
			wantMsg:  "cannot be used as a tag",
		},
		{
			name:     "nil result",
			result:   nil,
			err:      errors.New("boom"),
			wantCode: model.ExitGitError,
			wantMsg:  "CHECK_CLEAN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := releaseError(tt.result, tt.err)
			require.Error(t, err)

			var cliErr *model.CLIError
			require.ErrorAs(t, err, &cliErr)
			assert.Equal(t, tt.wantCode, cliErr.Code)
			assert.Contains(t, cliErr.Message, tt.wantMsg)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestReleaseError_Success(t *testing.T) {
	assert.NoError(t, releaseError(&release.Result{State: release.StateDone}, nil))
	assert.NoError(t, releaseError(&release.Result{State: release.StateSkippedExists}, nil))
}

func TestShortImageID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"sha256:0123456789abcdef0123", "0123456789ab"},
		{"0123456789abcdef", "0123456789ab"},
		{"sha256:abc", "abc"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortImageID(tt.id))
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{1000, "1.0kB"},
		{15_300_000, "15.3MB"},
		{2_500_000_000, "2.5GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.size))
		})
	}
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{
		"resolve-version", "release", "authenticate", "build-image", "push-image", "images",
	}, names)

	for _, flag := range []string{"json", "verbose", "config", "manifest"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing global flag %q", flag)
	}

	releaseCmd, _, err := root.Find([]string{"release"})
	require.NoError(t, err)
	assert.NotNil(t, releaseCmd.Flags().Lookup("remote"))

	buildCmd, _, err := root.Find([]string{"build-image"})
	require.NoError(t, err)
	assert.NotNil(t, buildCmd.Flags().Lookup("context"))

	resolveCmd, _, err := root.Find([]string{"resolve-version"})
	require.NoError(t, err)
	assert.NotNil(t, resolveCmd.Flags().Lookup("tag"))
}

func TestNewLogger(t *testing.T) {
	assert.False(t, newLogger(false).Core().Enabled(-1))
	assert.True(t, newLogger(true).Core().Enabled(-1))
}
