// Package git provides the source-control operations used by the release
// tagger.
//
// Local queries (working tree status, tag lookup) and annotated tag
// creation go through github.com/go-git/go-git/v5, which reads the
// repository directly without spawning processes. Pushing shells out to
// the git CLI so the user's credential helpers, SSH agent and remote
// configuration are honored exactly as they would be for a manual push.
//
// All errors from Git operations are wrapped in model.CLIError with
// ExitGitError so the CLI can map them to an exit code.
package git
