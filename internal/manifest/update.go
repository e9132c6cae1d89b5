package manifest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/semver"
)

// Options control a single manifest update.
type Options struct {
	// CheckOnly computes the change list without writing.
	CheckOnly bool
	// Exact rewrites ranges even when they already admit the target.
	Exact bool
	// Version, when set, replaces the package's own version.
	Version string
	Logger  *slog.Logger
}

// Update rewrites the manifest of pkg so that dependencies named in targets
// point at their target versions. It returns nil when nothing changed.
func Update(pkg core.PackageDigest, targets *core.VersionMap, strategy RangeStrategy, opts Options) ([]core.ChangedCategory, error) {
	doc, err := ReadDir(pkg.Location)
	if err != nil {
		return nil, err
	}
	return UpdateDocument(doc, targets, strategy, opts)
}

// UpdateDocument is Update on an already parsed document.
func UpdateDocument(doc *Document, targets *core.VersionMap, strategy RangeStrategy, opts Options) ([]core.ChangedCategory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if strategy == nil {
		strategy = Retain
	}

	var changes []core.ChangedCategory

	if opts.Version != "" && opts.Version != doc.Version() {
		changes = append(changes, core.ChangedCategory{
			Field: core.VersionField,
			Changes: []core.ChangedDependency{{
				Name:       doc.Name(),
				OldVersion: doc.Version(),
				NewVersion: opts.Version,
			}},
		})
		doc.SetVersion(opts.Version)
	}

	for _, field := range core.DependencyFields {
		var fieldChanges []core.ChangedDependency
		for _, dep := range doc.Dependencies(field) {
			target, _, ok := targets.Lookup(dep.Name)
			if !ok || target == "" {
				continue
			}
			if !opts.Exact && semver.RangeSatisfies(dep.Range, target) {
				continue
			}

			next, err := strategy(dep.Name, dep.Range, target)
			if errors.Is(err, ErrComplexRange) {
				logger.Warn("leaving complex range untouched",
					"package", doc.label(), "field", field, "dependency", dep.Name, "range", dep.Range)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%s: %s %s: %w", doc.Path, field, dep.Name, err)
			}
			if next == dep.Range {
				continue
			}

			if err := doc.SetDependency(field, dep.Name, next); err != nil {
				return nil, err
			}
			fieldChanges = append(fieldChanges, core.ChangedDependency{
				Name:       dep.Name,
				OldVersion: dep.Range,
				NewVersion: next,
			})
		}
		if len(fieldChanges) > 0 {
			changes = append(changes, core.ChangedCategory{Field: field, Changes: fieldChanges})
		}
	}

	if len(changes) == 0 {
		return nil, nil
	}
	if !opts.CheckOnly {
		if err := doc.Write(); err != nil {
			return nil, err
		}
		logger.Debug("manifest updated", "path", doc.Path, "fields", len(changes))
	}
	return changes, nil
}
