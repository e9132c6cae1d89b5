// Package core provides shared types, errors, and the registry client system.
package core

// ManifestFile is the per-package manifest every workspace member carries.
const ManifestFile = "package.json"

// DependencyFields lists the manifest blocks that hold dependency ranges,
// in the order they are processed and reported.
var DependencyFields = []string{"dependencies", "devDependencies", "peerDependencies", "optionalDependencies"}

// VersionField is the ChangedCategory field used for a package's own version.
const VersionField = "version"

// PackageDigest identifies one workspace member.
type PackageDigest struct {
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Private  bool   `json:"private"`
	Location string `json:"location"` // absolute directory holding package.json
}

// VersionSource selects where authoritative versions come from.
type VersionSource string

const (
	SourceLocal    VersionSource = "local"
	SourceRegistry VersionSource = "registry"
	SourceTag      VersionSource = "tag"
	SourceAll      VersionSource = "all"
)

// ParseVersionSource accepts the canonical names plus the "npm" and "git" aliases.
func ParseVersionSource(s string) (VersionSource, error) {
	switch s {
	case "", "all":
		return SourceAll, nil
	case "local":
		return SourceLocal, nil
	case "registry", "npm":
		return SourceRegistry, nil
	case "tag", "git":
		return SourceTag, nil
	}
	return "", &UsageError{Msg: "unknown version source " + s}
}

// UsesRegistry reports whether the source consults package registries.
func (s VersionSource) UsesRegistry() bool {
	return s == SourceRegistry || s == SourceAll
}

// UsesTags reports whether the source consults VCS tags.
func (s VersionSource) UsesTags() bool {
	return s == SourceTag || s == SourceAll
}

// PickStrategy chooses among several published versions of one package.
type PickStrategy string

const (
	PickLatest    PickStrategy = "latest"
	PickMax       PickStrategy = "max"
	PickMaxStable PickStrategy = "max-stable"
)

// ParsePickStrategy parses a pick strategy; empty means max-stable.
func ParsePickStrategy(s string) (PickStrategy, error) {
	switch PickStrategy(s) {
	case "":
		return PickMaxStable, nil
	case PickLatest, PickMax, PickMaxStable:
		return PickStrategy(s), nil
	}
	return "", &UsageError{Msg: "unknown pick strategy " + s}
}

// ChangedDependency is a single rewritten value.
type ChangedDependency struct {
	Name       string `json:"name"`
	OldVersion string `json:"oldVersion"`
	NewVersion string `json:"newVersion"`
}

// ChangedCategory groups changes by manifest field.
type ChangedCategory struct {
	Field   string              `json:"field"`
	Changes []ChangedDependency `json:"changes"`
}

// ChangedPackage is the report every mutating operation returns per package.
type ChangedPackage struct {
	Name     string            `json:"name"`
	Location string            `json:"location"`
	Private  bool              `json:"private"`
	Changes  []ChangedCategory `json:"changes"`
}

// NewChangedPackage attaches a change list to a digest.
func NewChangedPackage(pkg PackageDigest, changes []ChangedCategory) ChangedPackage {
	return ChangedPackage{
		Name:     pkg.Name,
		Location: pkg.Location,
		Private:  pkg.Private,
		Changes:  changes,
	}
}
