package release

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/releasekit/internal/model"
)

// fakeSCM is an in-memory SourceControl. Tags created by CreateTag become
// visible to TagExists, so consecutive runs behave like a real repository.
type fakeSCM struct {
	clean bool
	tags  map[string]string

	cleanErr  error
	existsErr error
	createErr error
	pushErr   error

	calls  []string
	pushed []string
}

func newFakeSCM() *fakeSCM {
	return &fakeSCM{clean: true, tags: map[string]string{}}
}

func (f *fakeSCM) IsClean(ctx context.Context) (bool, error) {
	f.calls = append(f.calls, "IsClean")
	return f.clean, f.cleanErr
}

func (f *fakeSCM) TagExists(ctx context.Context, tag string) (bool, error) {
	f.calls = append(f.calls, "TagExists "+tag)
	_, ok := f.tags[tag]
	return ok, f.existsErr
}

func (f *fakeSCM) CreateTag(ctx context.Context, tag, message string) error {
	f.calls = append(f.calls, "CreateTag "+tag)
	if f.createErr != nil {
		return f.createErr
	}
	f.tags[tag] = message
	return nil
}

func (f *fakeSCM) PushTag(ctx context.Context, remote, tag string) error {
	f.calls = append(f.calls, "PushTag "+remote+" "+tag)
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushed = append(f.pushed, remote+"/"+tag)
	return nil
}

func TestRun_Done(t *testing.T) {
	scm := newFakeSCM()

	result, err := NewTagger(scm, "origin").Run(context.Background(), "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, model.Tag("v1.2.3"), result.Tag)
	assert.Equal(t, []State{StateCheckClean, StateCheckTagExists, StateCreateTag, StatePushTag, StateDone}, result.Trace)
	assert.Equal(t, "Release v1.2.3", scm.tags["v1.2.3"])
	assert.Equal(t, []string{"origin/v1.2.3"}, scm.pushed)
}

// TestRun_Idempotent runs the release twice with no manifest change: the
// second run must skip without creating or pushing anything.
func TestRun_Idempotent(t *testing.T) {
	scm := newFakeSCM()
	tagger := NewTagger(scm, "origin")

	first, err := tagger.Run(context.Background(), "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, StateDone, first.State)

	scm.calls = nil
	second, err := tagger.Run(context.Background(), "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, StateSkippedExists, second.State)
	assert.True(t, second.State.Succeeded())
	assert.Equal(t, []string{"IsClean", "TagExists v1.2.3"}, scm.calls)
	assert.Len(t, scm.pushed, 1, "second run must not push again")
	assert.Len(t, scm.tags, 1, "second run must not create a tag")
}

// TestRun_AbortedDirty verifies a dirty tree never reaches a tag query.
func TestRun_AbortedDirty(t *testing.T) {
	scm := newFakeSCM()
	scm.clean = false

	result, err := NewTagger(scm, "origin").Run(context.Background(), "1.2.3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkingTreeDirty)

	assert.Equal(t, StateAbortedDirty, result.State)
	assert.False(t, result.State.Succeeded())
	assert.Equal(t, []string{"IsClean"}, scm.calls)
	assert.Empty(t, scm.tags)
}

func TestRun_FailedPush(t *testing.T) {
	scm := newFakeSCM()
	rejection := errors.New("remote rejected")
	scm.pushErr = rejection

	result, err := NewTagger(scm, "upstream").Run(context.Background(), "2.0.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTagPushRejected)
	assert.ErrorIs(t, err, rejection)
	assert.Contains(t, err.Error(), "v2.0.0 to upstream")

	assert.Equal(t, StateFailedPush, result.State)
	assert.True(t, result.State.IsTerminal())

	// Exactly one push attempt, no retry.
	pushes := 0
	for _, c := range scm.calls {
		if c == "PushTag upstream v2.0.0" {
			pushes++
		}
	}
	assert.Equal(t, 1, pushes)
}

// TestRun_QueryErrors verifies unexpected git failures stop the machine in
// the state that failed and surface the original error.
func TestRun_QueryErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		setup func(f *fakeSCM)
		state State
	}{
		{"status fails", func(f *fakeSCM) { f.cleanErr = boom }, StateCheckClean},
		{"tag lookup fails", func(f *fakeSCM) { f.existsErr = boom }, StateCheckTagExists},
		{"tag creation fails", func(f *fakeSCM) { f.createErr = boom }, StateCreateTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scm := newFakeSCM()
			tt.setup(scm)

			result, err := NewTagger(scm, "origin").Run(context.Background(), "1.0.0")
			require.ErrorIs(t, err, boom)
			assert.Equal(t, tt.state, result.State)
			assert.Empty(t, scm.pushed)
		})
	}
}

func TestRun_InvalidVersion(t *testing.T) {
	scm := newFakeSCM()

	_, err := NewTagger(scm, "origin").Run(context.Background(), "1.0 beta")
	require.ErrorIs(t, err, model.ErrInvalidVersion)
	assert.Empty(t, scm.calls)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateCheckClean, "CHECK_CLEAN"},
		{StateCheckTagExists, "CHECK_TAG_EXISTS"},
		{StateCreateTag, "CREATE_TAG"},
		{StatePushTag, "PUSH_TAG"},
		{StateDone, "DONE"},
		{StateSkippedExists, "SKIPPED_EXISTS"},
		{StateAbortedDirty, "ABORTED_DIRTY"},
		{StateFailedPush, "FAILED_PUSH"},
		{State(99), "State(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestResult_JSON(t *testing.T) {
	result, err := NewTagger(newFakeSCM(), "origin").Run(context.Background(), "1.2.3")
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"state": "DONE",
		"version": "1.2.3",
		"tag": "v1.2.3",
		"remote": "origin",
		"trace": ["CHECK_CLEAN", "CHECK_TAG_EXISTS", "CREATE_TAG", "PUSH_TAG", "DONE"]
	}`, string(data))
}
