package workspace

import (
	"context"
	"slices"
	"sort"

	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/manifest"
)

// Filter selects packages.
type Filter func(pkg core.PackageDigest) bool

// IgnorePrivate drops private packages, including the root.
func IgnorePrivate(pkg core.PackageDigest) bool {
	return !pkg.Private
}

// Keyword keeps packages whose manifest lists keyword.
func Keyword(keyword string) Filter {
	return func(pkg core.PackageDigest) bool {
		doc, err := manifest.ReadDir(pkg.Location)
		if err != nil {
			return false
		}
		return slices.Contains(doc.Keywords(), keyword)
	}
}

// Apply returns the packages every filter accepts, in input order.
func Apply(pkgs []core.PackageDigest, filters ...Filter) []core.PackageDigest {
	var out []core.PackageDigest
next:
	for _, p := range pkgs {
		for _, f := range filters {
			if !f(p) {
				continue next
			}
		}
		out = append(out, p)
	}
	return out
}

// AllDependencies returns the sorted union of dependency names referenced by
// any package manifest, across every dependency block.
func (w *Workspace) AllDependencies(ctx context.Context) ([]string, error) {
	pkgs, err := w.Packages(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, p := range pkgs {
		doc, err := manifest.ReadDir(p.Location)
		if err != nil {
			return nil, err
		}
		for _, n := range doc.DependencyNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
