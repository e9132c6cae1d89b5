package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/versync"
)

type filterFlags struct {
	ignorePrivate bool
	keyword       string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.ignorePrivate, "ignore-private", false, "Skip private packages")
	cmd.Flags().StringVar(&f.keyword, "keyword", "", "Only packages whose keywords include this value")
}

func (f *filterFlags) filters() []versync.Filter {
	var out []versync.Filter
	if f.ignorePrivate {
		out = append(out, versync.IgnorePrivate)
	}
	if f.keyword != "" {
		out = append(out, versync.Keyword(f.keyword))
	}
	return out
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newListCmd(a *app) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workspace packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := a.open()
			if err != nil {
				return err
			}
			pkgs, err := ws.Packages(cmd.Context())
			if err != nil {
				return err
			}
			pkgs = versync.Apply(pkgs, ff.filters()...)
			if a.jsonOut {
				return a.printJSON(pkgs)
			}
			for _, p := range pkgs {
				fmt.Fprintln(a.out, packageLine(ws.Root, p))
			}
			return nil
		},
	}
	ff.register(cmd)
	return cmd
}

func newChangedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "changed",
		Short: "List packages changed since their last release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := a.open()
			if err != nil {
				return err
			}
			pkgs, err := ws.Changed(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(pkgs)
			}
			if len(pkgs) == 0 {
				fmt.Fprintln(a.out, "no changed packages")
				return nil
			}
			for _, p := range pkgs {
				fmt.Fprintln(a.out, packageLine(ws.Root, p))
			}
			return nil
		},
	}
}

type syncLocalFlags struct {
	source    string
	pick      string
	rng       string
	exact     bool
	checkOnly bool
	filterFlags
}

func newSyncLocalCmd(a *app) *cobra.Command {
	var f syncLocalFlags
	cmd := &cobra.Command{
		Use:   "synclocal [source]",
		Short: "Sync workspace package versions and the references between them",
		Long: `Resolve every workspace package's version from the chosen source
(local, registry/npm, tag/git or all) and rewrite package.json files so that
versions and inter-package ranges agree.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && !cmd.Flags().Changed("source") {
				f.source = args[0]
			}
			changed, err := a.syncLocal(cmd, &f)
			if err != nil {
				return err
			}
			return a.reportChanges("package versions", changed, f.checkOnly)
		},
	}
	registerSyncLocalFlags(cmd, &f)
	return cmd
}

func registerSyncLocalFlags(cmd *cobra.Command, f *syncLocalFlags) {
	cmd.Flags().StringVar(&f.source, "source", "", "Version source: local, registry (npm), tag (git) or all")
	cmd.Flags().StringVar(&f.pick, "pick", "", "Version pick strategy: latest, max or max-stable")
	cmd.Flags().StringVar(&f.rng, "range", "", "Range strategy: retain, exact or a prefix such as ^ or ~")
	cmd.Flags().BoolVar(&f.exact, "exact", false, "Rewrite ranges even when they already admit the version")
	cmd.Flags().BoolVar(&f.checkOnly, "check", false, "Report changes without writing; exit 1 if any")
	f.filterFlags.register(cmd)
}

func (a *app) syncLocal(cmd *cobra.Command, f *syncLocalFlags) ([]versync.ChangedPackage, error) {
	ws, cfg, err := a.open()
	if err != nil {
		return nil, err
	}
	section := cfg.SyncLocal
	if f.source != "" {
		section.Source = f.source
	}
	if f.pick != "" {
		section.Pick = f.pick
	}
	if f.rng != "" {
		section.Range = f.rng
	}
	if f.exact {
		section.Exact = true
	}
	opts, err := section.Options()
	if err != nil {
		return nil, err
	}
	opts.CheckOnly = f.checkOnly
	opts.Filters = f.filters()

	ws.Logger().Info("syncing local package versions", "source", opts.Source)
	return versync.SyncLocal(cmd.Context(), ws, opts)
}

type syncDepsFlags struct {
	pick      string
	rng       string
	checkOnly bool
}

func newSyncDepsCmd(a *app) *cobra.Command {
	var f syncDepsFlags
	cmd := &cobra.Command{
		Use:   "syncdeps [name | name@version | pattern | purl]...",
		Short: "Sync dependency ranges to registry or explicit versions",
		Long: `Point the selected dependencies of every workspace package at a target
version. Names without a version are looked up in the registry; patterns
such as @babel/* expand to the matching dependencies in use. Without
arguments the syncdeps configuration is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, configured, err := a.syncDeps(cmd, args, &f)
			if err != nil {
				return err
			}
			if !configured {
				fmt.Fprintln(a.out, "no dependencies configured for syncdeps, nothing touched")
				return nil
			}
			return a.reportChanges("dependency versions", changed, f.checkOnly)
		},
	}
	cmd.Flags().StringVar(&f.pick, "pick", "", "Version pick strategy: latest, max or max-stable")
	cmd.Flags().StringVar(&f.rng, "range", "", "Range strategy: retain, exact or a prefix such as ^ or ~")
	cmd.Flags().BoolVar(&f.checkOnly, "check", false, "Report changes without writing; exit 1 if any")
	return cmd
}

// syncDeps reports configured=false when there was nothing to sync.
func (a *app) syncDeps(cmd *cobra.Command, args []string, f *syncDepsFlags) ([]versync.ChangedPackage, bool, error) {
	ws, cfg, err := a.open()
	if err != nil {
		return nil, false, err
	}

	names, vers := cfg.SyncDeps.Names, cfg.SyncDeps.Versions
	if len(args) > 0 {
		if names, vers, err = versync.ParseDependencyArgs(args); err != nil {
			return nil, false, err
		}
	}
	pick, err := versync.ParsePickStrategy(f.pick)
	if err != nil {
		return nil, false, err
	}
	rng, err := versync.ParseRangeStrategy(f.rng)
	if err != nil {
		return nil, false, err
	}

	changed, err := versync.SyncDeps(cmd.Context(), ws, versync.DepsOptions{
		Names:     names,
		Versions:  vers,
		Pick:      pick,
		Range:     rng,
		CheckOnly: f.checkOnly,
	})
	if errors.Is(err, versync.ErrNothingConfigured) {
		return nil, false, nil
	}
	return changed, true, err
}

type canPublishFlags struct {
	releaseType   string
	period        string
	checkCommit   bool
	useMaxVersion bool
}

func newCanPublishCmd(a *app) *cobra.Command {
	var f canPublishFlags
	cmd := &cobra.Command{
		Use:   "canpublish [release-type]",
		Short: "Check whether the workspace is ready to publish",
		Long: `Check the working tree, its sync with upstream, optionally that local
versions are already the maximum known, and that the next version of every
changed package is neither tagged nor published. Exits 1 when ineligible.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, cfg, err := a.open()
			if err != nil {
				return err
			}
			section := cfg.CanPublish
			if len(args) == 1 {
				section.ReleaseType = args[0]
			}
			if f.releaseType != "" {
				section.ReleaseType = f.releaseType
			}
			if f.period != "" {
				section.Period = f.period
			}
			if f.checkCommit {
				section.CheckCommit = true
			}
			if f.useMaxVersion {
				section.UseMaxVersion = true
			}
			opts, err := section.Options()
			if err != nil {
				return err
			}

			q, err := versync.CanPublish(cmd.Context(), ws, opts)
			if err != nil {
				return err
			}
			if a.jsonOut {
				if err := a.printJSON(q); err != nil {
					return err
				}
			} else {
				writeQualification(a.out, ws.Root, q)
			}
			if !q.Eligible {
				return errCheckFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.releaseType, "release-type", "", "Release type: major, minor, patch, premajor, preminor, prepatch, prerelease or alpha")
	cmd.Flags().StringVar(&f.period, "period", "", "Pre-release identifier (default alpha)")
	cmd.Flags().BoolVar(&f.checkCommit, "check-commit", false, "Treat any uncommitted change as blocking")
	cmd.Flags().BoolVar(&f.useMaxVersion, "use-max-version", false, "Require local versions to be the maximum known")
	return cmd
}

func newAllCmd(a *app) *cobra.Command {
	var local syncLocalFlags
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run synclocal followed by syncdeps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := a.syncLocal(cmd, &local)
			if err != nil {
				return err
			}
			localErr := a.reportChanges("package versions", changed, local.checkOnly)
			if localErr != nil && !errors.Is(localErr, errCheckFailed) {
				return localErr
			}

			deps := syncDepsFlags{pick: local.pick, rng: local.rng, checkOnly: local.checkOnly}
			changed, configured, err := a.syncDeps(cmd, nil, &deps)
			if err != nil {
				return err
			}
			if !configured {
				fmt.Fprintln(a.out, "no dependencies configured for syncdeps, nothing touched")
				return localErr
			}
			if err := a.reportChanges("dependency versions", changed, local.checkOnly); err != nil {
				return err
			}
			return localErr
		},
	}
	registerSyncLocalFlags(cmd, &local)
	return cmd
}

// reportChanges prints the change report. In check-only mode any change is
// a failure.
func (a *app) reportChanges(what string, changed []versync.ChangedPackage, checkOnly bool) error {
	if a.jsonOut {
		if err := a.printJSON(changed); err != nil {
			return err
		}
	} else {
		if len(changed) == 0 {
			fmt.Fprintf(a.out, "all %s are up to date, nothing touched\n", what)
		} else {
			if checkOnly {
				fmt.Fprintf(a.out, "the following package.json files need their %s updated:\n", what)
			} else {
				fmt.Fprintf(a.out, "the following package.json files had their %s updated:\n", what)
			}
			for _, t := range changedTrees(a.root, changed) {
				t.write(a.out, 1)
			}
		}
	}
	if checkOnly && len(changed) > 0 {
		return errCheckFailed
	}
	return nil
}
