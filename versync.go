// Package versync keeps the versions of a JavaScript monorepo consistent.
//
// It discovers the packages of a workspace (lerna, pnpm, yarn classic, yarn
// berry or npm workspaces), resolves an authoritative version for each from
// local manifests, release tags and the package registry, rewrites
// package.json files so inter-package references stay in step, and checks
// whether the repository is ready to publish.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/versync"
//		_ "github.com/git-pkgs/versync/all"
//	)
//
//	ws, err := versync.Open(".")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	changed, err := versync.SyncLocal(context.Background(), ws, versync.LocalOptions{
//		Source:    versync.SourceAll,
//		CheckOnly: true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, pkg := range changed {
//		fmt.Println(pkg.Name, pkg.Changes)
//	}
//
// Package manager clients register themselves on import. Import the all
// subpackage to register every supported client.
package versync

import (
	"context"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/internal/config"
	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/manifest"
	"github.com/git-pkgs/versync/internal/publish"
	"github.com/git-pkgs/versync/internal/reconcile"
	"github.com/git-pkgs/versync/internal/semver"
	"github.com/git-pkgs/versync/internal/versions"
	"github.com/git-pkgs/versync/internal/workspace"
)

// Re-export types from internal/core
type (
	// PackageDigest identifies one workspace package.
	PackageDigest = core.PackageDigest

	// VersionMap maps package names and wildcard patterns to versions.
	VersionMap = core.VersionMap

	// VersionSource selects where authoritative versions come from.
	VersionSource = core.VersionSource

	// PickStrategy chooses among several published versions.
	PickStrategy = core.PickStrategy

	// ChangedPackage reports the manifest changes made to one package.
	ChangedPackage = core.ChangedPackage

	ChangedCategory   = core.ChangedCategory
	ChangedDependency = core.ChangedDependency

	// Registry is implemented by every package manager client.
	Registry = core.Registry

	// RegistryOptions configure New.
	RegistryOptions = core.Options

	// Kind classifies errors returned by this package.
	Kind = core.Kind
)

// Re-export types from client
type (
	// Runner executes external programs.
	Runner = client.Runner

	// CommandError is returned when an external program fails.
	CommandError = client.CommandError

	// URLBuilder constructs registry URLs for a package.
	URLBuilder = client.URLBuilder
)

type (
	// Workspace is the per-run context for one repository.
	Workspace = workspace.Workspace

	// WorkspaceOption configures Open.
	WorkspaceOption = workspace.Option

	// Filter selects packages.
	Filter = workspace.Filter

	// RangeStrategy rewrites a dependency range for a new version.
	RangeStrategy = manifest.RangeStrategy

	// ReleaseType is an npm release increment.
	ReleaseType = semver.ReleaseType

	LocalOptions   = reconcile.LocalOptions
	DepsOptions    = reconcile.DepsOptions
	PublishOptions = publish.Options

	// Qualification is the result of CanPublish.
	Qualification = publish.Qualification
	FailureReason = publish.FailureReason
	ReasonKind    = publish.ReasonKind
	Availability  = publish.Availability
	Conflict      = publish.Conflict

	// Config is the project configuration.
	Config = config.Config
)

// Re-export constants
const (
	SourceLocal    = core.SourceLocal
	SourceRegistry = core.SourceRegistry
	SourceTag      = core.SourceTag
	SourceAll      = core.SourceAll

	PickLatest    = core.PickLatest
	PickMax       = core.PickMax
	PickMaxStable = core.PickMaxStable

	ClientNPM      = core.ClientNPM
	ClientPNPM     = core.ClientPNPM
	ClientYarn     = core.ClientYarn
	ClientYarnNext = core.ClientYarnNext
	ClientHTTP     = core.ClientHTTP

	Major      = semver.Major
	Minor      = semver.Minor
	Patch      = semver.Patch
	PreMajor   = semver.PreMajor
	PreMinor   = semver.PreMinor
	PrePatch   = semver.PrePatch
	PreRelease = semver.PreRelease

	ReasonGitNotClean            = publish.ReasonGitNotClean
	ReasonGitOutdated            = publish.ReasonGitOutdated
	ReasonLocalVersionOutdated   = publish.ReasonLocalVersionOutdated
	ReasonNextVersionUnavailable = publish.ReasonNextVersionUnavailable

	GitClean       = publish.StatusClean
	GitUncommitted = publish.StatusUncommitted
	GitConflicts   = publish.StatusConflicts

	ConflictTag      = publish.ConflictTag
	ConflictRegistry = publish.ConflictRegistry
)

// Re-export errors
var (
	ErrNotFound          = core.ErrNotFound
	ErrToolNotInstalled  = core.ErrToolNotInstalled
	ErrNotSupported      = core.ErrNotSupported
	ErrInvalidVersion    = core.ErrInvalidVersion
	ErrInvalidPattern    = core.ErrInvalidPattern
	ErrCorruptManifest   = core.ErrCorruptManifest
	ErrUnsupportedClient = core.ErrUnsupportedClient
	ErrUsage             = core.ErrUsage
	ErrNothingConfigured = core.ErrNothingConfigured
	ErrNoPackages        = reconcile.ErrNoPackages
)

// Workspace options.
var (
	WithLogger      = workspace.WithLogger
	WithRunner      = workspace.WithRunner
	WithClient      = workspace.WithClient
	WithRegistryURL = workspace.WithRegistryURL
	WithFetcher     = workspace.WithFetcher
	WithConcurrency = workspace.WithConcurrency
	WithGit         = workspace.WithGit
)

// Package filters.
var (
	IgnorePrivate Filter = workspace.IgnorePrivate
	Keyword              = workspace.Keyword
	Apply                = workspace.Apply
)

// Option parsers.
var (
	ParseVersionSource = core.ParseVersionSource
	ParsePickStrategy  = core.ParsePickStrategy
	ParseReleaseType   = semver.ParseReleaseType
)

// Range strategies.
var (
	Retain             RangeStrategy = manifest.Retain
	Prefix                           = manifest.Prefix
	ParseRangeStrategy               = manifest.ParseRangeStrategy
)

// Open creates a Workspace for the repository rooted at dir.
func Open(dir string, opts ...WorkspaceOption) (*Workspace, error) {
	return workspace.Open(dir, opts...)
}

// LoadConfig reads the project configuration under root.
func LoadConfig(root string) (*Config, error) {
	return config.Load(root)
}

// Resolve builds the version map for pkgs from source.
func Resolve(ctx context.Context, ws *Workspace, source VersionSource, pkgs []PackageDigest, pick PickStrategy) (*VersionMap, error) {
	return versions.Resolve(ctx, ws, source, pkgs, pick)
}

// NewVersionMap builds a VersionMap from names and patterns.
func NewVersionMap(entries map[string]string) (*VersionMap, error) {
	return core.NewVersionMap(entries)
}

// SyncLocal aligns workspace package versions and the references to them.
// It returns nil when nothing needed to change.
func SyncLocal(ctx context.Context, ws *Workspace, opts LocalOptions) ([]ChangedPackage, error) {
	return reconcile.SyncLocal(ctx, ws, opts)
}

// SyncDeps points the selected dependencies at their target versions.
// It returns ErrNothingConfigured when no names or versions were given.
func SyncDeps(ctx context.Context, ws *Workspace, opts DepsOptions) ([]ChangedPackage, error) {
	return reconcile.SyncDeps(ctx, ws, opts)
}

// ParseDependencyArgs splits "name", "name@version" and PURL arguments.
func ParseDependencyArgs(args []string) (names []string, versions map[string]string, err error) {
	return reconcile.ParseArgs(args)
}

// CanPublish reports whether the workspace is ready to release.
func CanPublish(ctx context.Context, ws *Workspace, opts PublishOptions) (*Qualification, error) {
	return publish.CanPublish(ctx, ws, opts)
}

// NextVersion applies an npm release increment.
func NextVersion(name, version string, releaseType ReleaseType, period string) (string, error) {
	return publish.NextVersion(name, version, releaseType, period)
}

// New creates a registry client for a package manager.
func New(clientName string, opts RegistryOptions) (Registry, error) {
	return core.New(clientName, opts)
}

// SupportedClients returns all registered package manager clients.
// Note: clients must be imported to be registered.
func SupportedClients() []string {
	return core.SupportedClients()
}

// DefaultURL returns the default registry URL for a client.
func DefaultURL(clientName string) string {
	return core.DefaultURL(clientName)
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "registry", "download", "metadata" and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	return client.BuildURLs(urls, name, version)
}

// PURL returns the npm Package URL for name at version.
func PURL(name, version string) string {
	return core.PURL(name, version)
}

// ParsePURL returns the package name and version of an npm Package URL.
func ParsePURL(purl string) (name, version string, err error) {
	return core.ParsePURL(purl)
}

// KindOf classifies err.
func KindOf(err error) Kind {
	return core.KindOf(err)
}
