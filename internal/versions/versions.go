// Package versions resolves an authoritative version for each workspace
// package from its manifest, the package registry and release tags.
package versions

import (
	"context"
	"errors"
	"sort"

	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/semver"
	"github.com/git-pkgs/versync/internal/vcs"
	"github.com/git-pkgs/versync/internal/workspace"
)

// Local returns the manifest version of every package that declares one.
func Local(pkgs []core.PackageDigest) map[string]string {
	out := make(map[string]string, len(pkgs))
	for _, p := range pkgs {
		if p.Name != "" && p.Version != "" {
			out[p.Name] = p.Version
		}
	}
	return out
}

// Registry picks a published version for each name. Lookups run
// concurrently; a failing package is logged and left out of the result.
func Registry(ctx context.Context, ws *workspace.Workspace, names []string, pick core.PickStrategy) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}
	reg, err := ws.Registry(ctx)
	if err != nil {
		return nil, err
	}

	found, failed := core.BulkPickVersions(ctx, reg, names, pick, ws.Concurrency())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := ws.Logger()
	for _, name := range sortedKeys(failed) {
		err := failed[name]
		if errors.Is(err, core.ErrNotFound) {
			log.Debug("package not published", "package", name, "client", reg.Client())
			continue
		}
		log.Warn("registry lookup failed", "package", name, "client", reg.Client(), "error", err)
	}
	return found, nil
}

// Tags derives versions from "<name>@<version>" release tags. Tags are
// fetched from origin first; an unavailable repository or remote degrades
// to a warning. With PickLatest the most recently created tag wins.
func Tags(ctx context.Context, ws *workspace.Workspace, names []string, pick core.PickStrategy) map[string]string {
	out := make(map[string]string)
	if len(names) == 0 {
		return out
	}
	log := ws.Logger()
	git := ws.Git()

	if err := ws.FetchTags(ctx); err != nil {
		log.Warn("could not fetch tags", "error", err)
	}
	tags, err := git.Tags(ctx)
	if err != nil {
		log.Warn("could not list tags", "error", err)
		return out
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	candidates := make(map[string][]string)
	for _, tag := range tags {
		name, version, ok := vcs.ParseTag(tag)
		if !ok || !want[name] || !semver.Valid(version) {
			continue
		}
		candidates[name] = append(candidates[name], version)
	}

	for name, vers := range candidates {
		var (
			v  string
			ok bool
		)
		switch pick {
		case core.PickLatest:
			v, ok = vers[0], true
		case core.PickMax:
			v, ok = semver.Max(vers...)
		default:
			v, ok = semver.MaxStable(vers...)
		}
		if ok {
			out[name] = v
		}
	}
	return out
}

// Resolve builds the version map for pkgs. Every enabled source
// contributes a candidate and the semver maximum wins. Private packages are
// never looked up in the registry. Names no source could resolve are
// omitted.
func Resolve(ctx context.Context, ws *workspace.Workspace, source core.VersionSource, pkgs []core.PackageDigest, pick core.PickStrategy) (*core.VersionMap, error) {
	local := Local(pkgs)

	var public, all []string
	for _, p := range pkgs {
		if p.Name == "" {
			continue
		}
		all = append(all, p.Name)
		if !p.Private {
			public = append(public, p.Name)
		}
	}

	var registry, tags map[string]string
	if source.UsesRegistry() {
		var err error
		registry, err = Registry(ctx, ws, public, pick)
		if err != nil {
			return nil, err
		}
	}
	if source.UsesTags() {
		tags = Tags(ctx, ws, all, pick)
	}

	resolved := make(map[string]string, len(all))
	for _, name := range all {
		v, ok := semver.Max(local[name], registry[name], tags[name])
		if !ok {
			ws.Logger().Debug("no version resolved", "package", name)
			continue
		}
		resolved[name] = v
	}
	return core.NewVersionMap(resolved)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
