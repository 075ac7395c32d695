// Package manifest resolves the release version from the project manifest.
//
// The manifest is a TOML document (Cargo.toml for the exporter this tool
// releases). It is decoded with github.com/pelletier/go-toml and queried
// through typed accessors instead of scanning lines for a "version = "
// prefix, so nested tables and included manifests can never shadow the
// top-level version. File access goes through github.com/spf13/afero so
// tests can use an in-memory filesystem.
package manifest
