// Package release implements the release tagging state machine.
//
// A release run creates exactly one annotated git tag per manifest version
// and pushes it. The machine is rebuilt from source-control queries on
// every run; nothing is persisted between runs, so running it twice for
// the same version is a no-op the second time.
//
// State transitions:
//
//	CHECK_CLEAN ──dirty──────────────▶ ABORTED_DIRTY
//	     │clean
//	     ▼
//	CHECK_TAG_EXISTS ──exists────────▶ SKIPPED_EXISTS
//	     │missing
//	     ▼
//	CREATE_TAG
//	     │
//	     ▼
//	PUSH_TAG ──rejected──────────────▶ FAILED_PUSH
//	     │ok
//	     ▼
//	   DONE
package release

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shinji-kodama/releasekit/internal/model"
)

var (
	// ErrWorkingTreeDirty is returned when the run ends in ABORTED_DIRTY.
	ErrWorkingTreeDirty = errors.New("working tree has uncommitted changes; commit them before releasing")

	// ErrTagPushRejected is wrapped by the error returned for FAILED_PUSH.
	ErrTagPushRejected = errors.New("tag push rejected")
)

// State is a step of the release state machine.
type State int

const (
	StateCheckClean State = iota
	StateCheckTagExists
	StateCreateTag
	StatePushTag
	StateDone
	StateSkippedExists
	StateAbortedDirty
	StateFailedPush
)

var stateNames = map[State]string{
	StateCheckClean:     "CHECK_CLEAN",
	StateCheckTagExists: "CHECK_TAG_EXISTS",
	StateCreateTag:      "CREATE_TAG",
	StatePushTag:        "PUSH_TAG",
	StateDone:           "DONE",
	StateSkippedExists:  "SKIPPED_EXISTS",
	StateAbortedDirty:   "ABORTED_DIRTY",
	StateFailedPush:     "FAILED_PUSH",
}

// String returns the upper-case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IsTerminal reports whether the machine stops in this state.
func (s State) IsTerminal() bool {
	switch s {
	case StateDone, StateSkippedExists, StateAbortedDirty, StateFailedPush:
		return true
	default:
		return false
	}
}

// Succeeded reports whether the state is a successful terminal state.
// SKIPPED_EXISTS counts as success: it is a deliberate no-op.
func (s State) Succeeded() bool {
	return s == StateDone || s == StateSkippedExists
}

// MarshalText encodes the state by name for JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SourceControl is the narrow set of git operations the tagger needs.
type SourceControl interface {
	IsClean(ctx context.Context) (bool, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	CreateTag(ctx context.Context, tag, message string) error
	PushTag(ctx context.Context, remote, tag string) error
}

// Result describes how a release run ended.
type Result struct {
	// State is the state the run stopped in.
	State State `json:"state"`

	// Version is the manifest version that was released.
	Version model.Version `json:"version"`

	// Tag is the git tag computed from Version.
	Tag model.Tag `json:"tag"`

	// Remote is the remote the tag was (or would have been) pushed to.
	Remote string `json:"remote"`

	// Trace lists every state visited, in order, ending with State.
	Trace []State `json:"trace"`
}

// Option configures a Tagger.
type Option func(*Tagger)

// WithLogger sets the logger used for transition tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tagger) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tagger runs the release state machine against a SourceControl.
type Tagger struct {
	scm    SourceControl
	remote string
	logger *zap.Logger
}

// NewTagger creates a Tagger that pushes tags to remote.
func NewTagger(scm SourceControl, remote string, opts ...Option) *Tagger {
	t := &Tagger{
		scm:    scm,
		remote: remote,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// run carries the per-invocation state through the transitions.
type run struct {
	result *Result
	err    error
}

// transition performs the action of one non-terminal state and returns
// the next state. A non-nil error stops the machine in the current state.
type transition func(ctx context.Context, r *run) (State, error)

// Run executes the state machine for version until a terminal state is
// reached. Each action is attempted at most once.
//
// The returned error is nil only for DONE and SKIPPED_EXISTS. For
// ABORTED_DIRTY it is ErrWorkingTreeDirty, for FAILED_PUSH it wraps
// ErrTagPushRejected. If a query or tag creation fails, the result's State
// is the state in which the failure happened and the error is returned as is.
func (t *Tagger) Run(ctx context.Context, version model.Version) (*Result, error) {
	r := &run{result: &Result{
		State:   StateCheckClean,
		Version: version,
		Tag:     version.Tag(),
		Remote:  t.remote,
		Trace:   []State{StateCheckClean},
	}}

	if err := version.Validate(); err != nil {
		return r.result, err
	}

	transitions := map[State]transition{
		StateCheckClean:     t.checkClean,
		StateCheckTagExists: t.checkTagExists,
		StateCreateTag:      t.createTag,
		StatePushTag:        t.pushTag,
	}

	for !r.result.State.IsTerminal() {
		step := transitions[r.result.State]
		next, err := step(ctx, r)
		if err != nil {
			t.logger.Debug("release transition failed",
				zap.Stringer("state", r.result.State), zap.Error(err))
			return r.result, err
		}

		t.logger.Debug("release transition",
			zap.Stringer("from", r.result.State),
			zap.Stringer("to", next),
			zap.String("tag", r.result.Tag.String()))

		r.result.State = next
		r.result.Trace = append(r.result.Trace, next)
	}

	return r.result, r.err
}

func (t *Tagger) checkClean(ctx context.Context, r *run) (State, error) {
	clean, err := t.scm.IsClean(ctx)
	if err != nil {
		return 0, err
	}
	if !clean {
		r.err = ErrWorkingTreeDirty
		return StateAbortedDirty, nil
	}
	return StateCheckTagExists, nil
}

func (t *Tagger) checkTagExists(ctx context.Context, r *run) (State, error) {
	exists, err := t.scm.TagExists(ctx, r.result.Tag.String())
	if err != nil {
		return 0, err
	}
	if exists {
		return StateSkippedExists, nil
	}
	return StateCreateTag, nil
}

func (t *Tagger) createTag(ctx context.Context, r *run) (State, error) {
	if err := t.scm.CreateTag(ctx, r.result.Tag.String(), r.result.Tag.ReleaseMessage()); err != nil {
		return 0, err
	}
	return StatePushTag, nil
}

func (t *Tagger) pushTag(ctx context.Context, r *run) (State, error) {
	if err := t.scm.PushTag(ctx, t.remote, r.result.Tag.String()); err != nil {
		r.err = fmt.Errorf("%w: %s to %s: %w", ErrTagPushRejected, r.result.Tag, t.remote, err)
		return StateFailedPush, nil
	}
	return StateDone, nil
}
