// Package reconcile rewrites workspace manifests so that references between
// packages, and to selected third-party dependencies, point at the versions
// resolved for them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/manifest"
	"github.com/git-pkgs/versync/internal/versions"
	"github.com/git-pkgs/versync/internal/workspace"
)

// ErrNoPackages is returned when discovery and filtering leave nothing to sync.
var ErrNoPackages = errors.New("no packages found in current project")

// LocalOptions configure SyncLocal.
type LocalOptions struct {
	Source    core.VersionSource
	Pick      core.PickStrategy
	Range     manifest.RangeStrategy
	Exact     bool
	CheckOnly bool
	Filters   []workspace.Filter
}

// SyncLocal aligns every workspace package's own version, and every
// reference to it, with the version resolved from opts.Source. It returns
// nil when no manifest needed a change.
func SyncLocal(ctx context.Context, ws *workspace.Workspace, opts LocalOptions) ([]core.ChangedPackage, error) {
	all, err := ws.Packages(ctx)
	if err != nil {
		return nil, err
	}
	pkgs := workspace.Apply(all, opts.Filters...)
	if len(pkgs) == 0 {
		return nil, ErrNoPackages
	}
	if opts.Source == "" {
		opts.Source = core.SourceAll
	}
	if opts.Pick == "" {
		opts.Pick = core.PickMaxStable
	}

	targets, err := versions.Resolve(ctx, ws, opts.Source, pkgs, opts.Pick)
	if err != nil {
		return nil, err
	}
	ws.Logger().Debug("resolved package versions", "source", opts.Source, "pick", opts.Pick, "count", targets.Len())

	return updateAll(ctx, ws, pkgs, targets, opts.Range, opts.CheckOnly, opts.Exact, true)
}

// DepsOptions configure SyncDeps.
type DepsOptions struct {
	// Names lists dependencies to sync; wildcard patterns are expanded
	// over the dependencies the workspace actually uses. Names without an
	// entry in Versions are looked up in the registry.
	Names []string
	// Versions maps names or patterns to target versions and takes
	// precedence over registry results.
	Versions  map[string]string
	Pick      core.PickStrategy
	Range     manifest.RangeStrategy
	CheckOnly bool
}

// SyncDeps points the selected dependencies of every workspace package at
// their target versions. It returns core.ErrNothingConfigured when neither
// names nor versions were supplied, and nil when nothing changed.
func SyncDeps(ctx context.Context, ws *workspace.Workspace, opts DepsOptions) ([]core.ChangedPackage, error) {
	pkgs, err := ws.Packages(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Pick == "" {
		opts.Pick = core.PickMaxStable
	}

	explicit, err := core.NewVersionMap(opts.Versions)
	if err != nil {
		return nil, err
	}

	targets := explicit.Clone()
	if len(opts.Names) > 0 {
		names, err := ExpandNames(ctx, ws, opts.Names)
		if err != nil {
			return nil, err
		}
		var missing []string
		for _, n := range names {
			if _, ok := explicit.Get(n); !ok {
				missing = append(missing, n)
			}
		}
		if len(missing) > 0 {
			fetched, err := versions.Registry(ctx, ws, missing, opts.Pick)
			if err != nil {
				return nil, err
			}
			targets, err = core.NewVersionMap(fetched)
			if err != nil {
				return nil, err
			}
			for name, v := range explicit.Map() {
				if err := targets.Set(name, v); err != nil {
					return nil, err
				}
			}
		}
	}

	if targets.Len() == 0 {
		ws.Logger().Warn("no package names provided, nothing touched")
		return nil, core.ErrNothingConfigured
	}
	return updateAll(ctx, ws, pkgs, targets, opts.Range, opts.CheckOnly, false, false)
}

// ExpandNames replaces every wildcard pattern in names with the matching
// dependency names used anywhere in the workspace. Plain names pass
// through unchanged.
func ExpandNames(ctx context.Context, ws *workspace.Workspace, names []string) ([]string, error) {
	var plain, patterns []string
	for _, n := range names {
		if core.IsPattern(n) {
			if _, err := core.CompilePattern(n); err != nil {
				return nil, err
			}
			patterns = append(patterns, n)
			continue
		}
		plain = append(plain, n)
	}
	if len(patterns) == 0 {
		return plain, nil
	}

	deps, err := ws.AllDependencies(ctx)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, dep := range deps {
		for _, p := range patterns {
			if core.MatchPattern(p, dep) {
				matched = append(matched, dep)
				break
			}
		}
	}
	ws.Logger().Info("expanded package name patterns",
		"patterns", strings.Join(patterns, ", "), "count", len(matched), "packages", strings.Join(matched, " "))

	out := slices.Clone(plain)
	for _, m := range matched {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// updateAll updates the manifests concurrently and reports changes in
// package order. withVersion applies each package's own target version.
func updateAll(ctx context.Context, ws *workspace.Workspace, pkgs []core.PackageDigest, targets *core.VersionMap,
	strategy manifest.RangeStrategy, checkOnly, exact, withVersion bool) ([]core.ChangedPackage, error) {
	results := make([][]core.ChangedCategory, len(pkgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ws.Concurrency())
	for i, pkg := range pkgs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts := manifest.Options{
				CheckOnly: checkOnly,
				Exact:     exact,
				Logger:    ws.Logger(),
			}
			if withVersion {
				opts.Version, _ = targets.Get(pkg.Name)
			}
			changes, err := manifest.Update(pkg, targets, strategy, opts)
			if err != nil {
				return fmt.Errorf("updating %s: %w", pkg.Name, err)
			}
			results[i] = changes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var changed []core.ChangedPackage
	for i, changes := range results {
		if changes != nil {
			changed = append(changed, core.NewChangedPackage(pkgs[i], changes))
		}
	}
	return changed, nil
}
