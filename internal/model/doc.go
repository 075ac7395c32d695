// Package model defines the domain types and value objects for the
// releasekit CLI.
//
// This package contains pure data structures: Version and Tag, the four
// ImageReference variants produced per release, and the Credential pair
// used for registry login. It also defines exit codes (ExitCode), the
// sentinel errors of the release error taxonomy, and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
