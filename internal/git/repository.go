package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/shinji-kodama/releasekit/internal/model"
)

// Default tagger identity, used when neither the repository nor the
// global git config sets user.name / user.email.
const (
	defaultTaggerName  = "releasekit"
	defaultTaggerEmail = "releasekit@localhost"
)

// Repository is a git checkout opened for release operations.
type Repository struct {
	// Root is the top-level directory of the working tree.
	Root string

	repo *gogit.Repository

	// now is the clock used for tag timestamps.
	now func() time.Time
}

// Open opens the repository containing path. Parent directories are
// searched for the .git directory, like the git CLI does.
func Open(path string) (*Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGitError, fmt.Sprintf("not inside a Git repository: %s", path), err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGitError, "repository has no working tree", err)
	}

	return &Repository{
		Root: wt.Filesystem.Root(),
		repo: repo,
		now:  time.Now,
	}, nil
}

// IsClean reports whether the working tree has no staged or unstaged
// changes to tracked files. Untracked files are ignored, matching
// `git diff-index --quiet HEAD`.
func (r *Repository) IsClean(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return false, model.WrapCLIError(model.ExitGitError, "failed to open working tree", err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, model.WrapCLIError(model.ExitGitError, "failed to read working tree status", err)
	}

	return len(dirtyPaths(status)) == 0, nil
}

// DirtyPaths returns the sorted tracked paths with uncommitted changes.
// It is used for diagnostics only.
func (r *Repository) DirtyPaths() ([]string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGitError, "failed to open working tree", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGitError, "failed to read working tree status", err)
	}
	return dirtyPaths(status), nil
}

// dirtyPaths filters a go-git status down to modified tracked files.
func dirtyPaths(status gogit.Status) []string {
	var paths []string
	for path, fs := range status {
		if fs.Staging == gogit.Untracked && fs.Worktree == gogit.Untracked {
			continue
		}
		if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// TagExists reports whether a tag with the given name exists locally.
func (r *Repository) TagExists(ctx context.Context, tag string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := r.repo.Tag(tag)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gogit.ErrTagNotFound):
		return false, nil
	default:
		return false, model.WrapCLIError(model.ExitGitError, fmt.Sprintf("failed to look up tag %q", tag), err)
	}
}

// CreateTag creates an annotated tag pointing at HEAD.
func (r *Repository) CreateTag(ctx context.Context, tag, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tag == "" {
		return model.NewCLIError(model.ExitGitError, "tag name cannot be empty")
	}
	if message == "" {
		return model.NewCLIError(model.ExitGitError, "annotated tag message cannot be empty")
	}

	head, err := r.repo.Head()
	if err != nil {
		return model.WrapCLIError(model.ExitGitError, "failed to resolve HEAD", err)
	}

	_, err = r.repo.CreateTag(tag, head.Hash(), &gogit.CreateTagOptions{
		Tagger:  r.tagger(),
		Message: message,
	})
	if err != nil {
		return model.WrapCLIError(model.ExitGitError, fmt.Sprintf("failed to create tag %q", tag), err)
	}
	return nil
}

// tagger builds the tag signature from the merged local and global git
// config, falling back to a fixed identity.
func (r *Repository) tagger() *object.Signature {
	sig := &object.Signature{
		Name:  defaultTaggerName,
		Email: defaultTaggerEmail,
		When:  r.now(),
	}

	cfg, err := r.repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}

// TagTarget returns the commit hash a tag points to, peeling annotated tags.
func (r *Repository) TagTarget(tag string) (string, error) {
	ref, err := r.repo.Tag(tag)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGitError, fmt.Sprintf("failed to look up tag %q", tag), err)
	}

	obj, err := r.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		commit, err := obj.Commit()
		if err != nil {
			return "", model.WrapCLIError(model.ExitGitError, fmt.Sprintf("tag %q does not point at a commit", tag), err)
		}
		return commit.Hash.String(), nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		// Lightweight tag: the reference already names the commit.
		return ref.Hash().String(), nil
	default:
		return "", model.WrapCLIError(model.ExitGitError, fmt.Sprintf("failed to read tag %q", tag), err)
	}
}

// PushTag pushes refs/tags/<tag> to remote using the git CLI.
func (r *Repository) PushTag(ctx context.Context, remote, tag string) error {
	if remote == "" {
		return model.NewCLIError(model.ExitGitError, "remote name cannot be empty")
	}
	_, err := runGit(ctx, r.Root, "push", remote, "refs/tags/"+tag)
	return err
}

// runGit executes a git command with the given arguments in the specified directory.
//
// On success it returns stdout. On failure it returns a model.CLIError with
// ExitGitError, including stderr in the message for diagnostics.
func runGit(ctx context.Context, repoPath string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)

	// #nosec G204: args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, "git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}
