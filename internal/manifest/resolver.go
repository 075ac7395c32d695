package manifest

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/spf13/afero"

	"github.com/shinji-kodama/releasekit/internal/model"
)

// DefaultPath is the manifest file name used when none is configured.
const DefaultPath = "Cargo.toml"

// Resolver loads manifests from a filesystem.
type Resolver struct {
	fs afero.Fs
}

// NewResolver creates a Resolver backed by fs. A nil fs means the real OS
// filesystem.
func NewResolver(fs afero.Fs) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Resolver{fs: fs}
}

// Manifest is a decoded manifest document.
type Manifest struct {
	// Path is the file the manifest was loaded from.
	Path string

	tree *toml.Tree
}

// Load reads and decodes the manifest at path. Only that document is
// parsed; workspace members and included files are never followed. A key
// declared twice in one table is a parse error, not a first match.
func (r *Resolver) Load(path string) (*Manifest, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrManifestRead, path, err)
	}

	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid TOML: %v", model.ErrManifestRead, path, err)
	}

	return &Manifest{Path: path, tree: tree}, nil
}

// Resolve loads the manifest at path and returns its validated version.
func (r *Resolver) Resolve(path string) (model.Version, error) {
	m, err := r.Load(path)
	if err != nil {
		return "", err
	}
	return m.Version()
}

// Version returns the project version. Lookup order:
//
//	[package].version            (inherits [workspace.package].version when
//	                              set to { workspace = true })
//	[workspace.package].version  (virtual workspace manifests)
//	[project].version            (pyproject-style manifests)
//	version                      (top-level key)
//
// The first table that declares the key decides; later ones are ignored.
func (m *Manifest) Version() (model.Version, error) {
	raw, found, err := m.lookup("version")
	if err != nil {
		return "", err
	}
	if !found || raw == "" {
		return "", fmt.Errorf("%w: %s", model.ErrVersionNotFound, m.Path)
	}

	v := model.Version(raw)
	if err := v.Validate(); err != nil {
		return "", fmt.Errorf("%s: %w", m.Path, err)
	}
	return v, nil
}

// Name returns the package name, or "" when the manifest has none.
func (m *Manifest) Name() string {
	name, _, _ := m.lookup("name")
	return name
}

// Repository returns the package source repository URL, or "".
func (m *Manifest) Repository() string {
	repo, _, _ := m.lookup("repository")
	return repo
}

// lookup walks the tables in precedence order and returns the first
// declaration of key.
func (m *Manifest) lookup(key string) (string, bool, error) {
	if pkg, ok := m.tree.Get("package").(*toml.Tree); ok && pkg.Has(key) {
		return m.packageValue(pkg, key)
	}

	candidates := [][]string{
		{"workspace", "package", key},
		{"project", key},
		{key},
	}
	for _, path := range candidates {
		if !m.tree.HasPath(path) {
			continue
		}
		return stringValue(m.tree.GetPath(path), strings.Join(path, "."))
	}

	return "", false, nil
}

// packageValue returns pkg[key], resolving Cargo workspace inheritance.
func (m *Manifest) packageValue(pkg *toml.Tree, key string) (string, bool, error) {
	val := pkg.Get(key)

	if inherit, ok := val.(*toml.Tree); ok {
		if ws, _ := inherit.Get("workspace").(bool); !ws {
			return "", false, fmt.Errorf("%w: package.%s must be a string or { workspace = true }", model.ErrInvalidVersion, key)
		}
		path := []string{"workspace", "package", key}
		if !m.tree.HasPath(path) {
			return "", false, fmt.Errorf("%w: package.%s inherits from the workspace, but workspace.package.%s is not set",
				model.ErrVersionNotFound, key, key)
		}
		return stringValue(m.tree.GetPath(path), strings.Join(path, "."))
	}

	return stringValue(val, "package."+key)
}

// stringValue converts a decoded TOML value into a trimmed string.
func stringValue(val interface{}, name string) (string, bool, error) {
	s, ok := val.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s must be a string, got %T", model.ErrInvalidVersion, name, val)
	}
	return clean(s), true, nil
}

// clean strips whitespace and stray quote characters around a value.
func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
