// Package publish decides whether the workspace is ready to release: a clean
// and current working tree, locally synced versions, and next versions that
// are neither tagged nor published yet.
package publish

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/manifest"
	"github.com/git-pkgs/versync/internal/reconcile"
	"github.com/git-pkgs/versync/internal/semver"
	"github.com/git-pkgs/versync/internal/vcs"
	"github.com/git-pkgs/versync/internal/workspace"
)

// DefaultPeriod is the pre-release identifier used when none is given.
const DefaultPeriod = "alpha"

// ReasonKind names why publishing is blocked.
type ReasonKind string

const (
	ReasonGitNotClean            ReasonKind = "git-not-clean"
	ReasonGitOutdated            ReasonKind = "git-outdated"
	ReasonLocalVersionOutdated   ReasonKind = "local-version-outdated"
	ReasonNextVersionUnavailable ReasonKind = "next-version-unavailable"
)

// Working tree states.
const (
	StatusClean       = "clean"
	StatusUncommitted = "uncommitted"
	StatusConflicts   = "conflicts"
)

// GitStatus describes the working tree.
type GitStatus struct {
	Status string   `json:"status"`
	Files  []string `json:"files,omitempty"`
}

// SyncStatus describes the branch relative to its upstream.
type SyncStatus struct {
	UpToDate bool   `json:"upToDate"`
	Message  string `json:"message,omitempty"`
}

// ConflictSource names where a conflicting release was found.
type ConflictSource string

const (
	ConflictTag      ConflictSource = "tag"
	ConflictRegistry ConflictSource = "registry"
)

// Conflict is an existing release occupying the next version.
type Conflict struct {
	Source ConflictSource `json:"source"`
	Ref    string `json:"ref"`    // tag name or registry URL
	PURL   string `json:"purl,omitempty"`
}

// Availability reports whether one package's next version is free.
type Availability struct {
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	Location  string     `json:"location"`
	Private   bool       `json:"private"`
	Available bool       `json:"available"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// FailureReason is one blocker. Exactly one payload field is set, matching Kind.
type FailureReason struct {
	Kind        ReasonKind            `json:"type"`
	Git         *GitStatus            `json:"git,omitempty"`
	Sync        *SyncStatus           `json:"sync,omitempty"`
	Outdated    []core.ChangedPackage `json:"outdated,omitempty"`
	Unavailable []Availability        `json:"unavailable,omitempty"`
}

// Qualification is the result of CanPublish.
type Qualification struct {
	Eligible bool            `json:"eligible"`
	Reasons  []FailureReason `json:"reasons,omitempty"`
}

// Options configure CanPublish.
type Options struct {
	ReleaseType semver.ReleaseType
	// Period is the pre-release identifier for pre* release types.
	Period string
	// CheckCommit treats any uncommitted change as blocking; otherwise
	// only merge conflicts block.
	CheckCommit bool
	// UseMaxVersion requires every local version to already be the
	// maximum known across all sources.
	UseMaxVersion bool
}

// CanPublish runs every release check and accumulates all blockers.
func CanPublish(ctx context.Context, ws *workspace.Workspace, opts Options) (*Qualification, error) {
	log := ws.Logger()
	git := ws.Git()

	inGit := true
	if _, err := git.Root(ctx); err != nil {
		if !errors.Is(err, vcs.ErrNotRepository) {
			return nil, err
		}
		inGit = false
		log.Warn("current project is not in a git repository")
	} else if err := ws.FetchTags(ctx); err != nil {
		log.Warn("could not fetch tags", "error", err)
	}

	candidates, err := candidates(ctx, ws)
	if err != nil {
		return nil, err
	}

	var reasons []FailureReason
	if inGit {
		status, err := LocalStatus(ctx, git, opts.CheckCommit)
		if err != nil {
			return nil, err
		}
		if status.Status != StatusClean {
			reasons = append(reasons, FailureReason{Kind: ReasonGitNotClean, Git: status})
		}

		sync, err := UpstreamStatus(ctx, git)
		if err != nil {
			return nil, err
		}
		if !sync.UpToDate {
			reasons = append(reasons, FailureReason{Kind: ReasonGitOutdated, Sync: sync})
		}
	}

	if opts.UseMaxVersion {
		outdated, err := reconcile.SyncLocal(ctx, ws, reconcile.LocalOptions{
			Source:    core.SourceAll,
			Range:     manifest.Retain,
			CheckOnly: true,
		})
		if err != nil {
			return nil, err
		}
		if len(outdated) > 0 {
			reasons = append(reasons, FailureReason{Kind: ReasonLocalVersionOutdated, Outdated: outdated})
		}
	}

	if len(candidates) > 0 {
		unavailable, err := checkNextVersions(ctx, ws, candidates, opts, inGit)
		if err != nil {
			return nil, err
		}
		if len(unavailable) > 0 {
			reasons = append(reasons, FailureReason{Kind: ReasonNextVersionUnavailable, Unavailable: unavailable})
		}
	}

	return &Qualification{Eligible: len(reasons) == 0, Reasons: reasons}, nil
}

// candidates returns the changed packages, or every package when change
// detection is not available.
func candidates(ctx context.Context, ws *workspace.Workspace) ([]core.PackageDigest, error) {
	changed, err := ws.Changed(ctx)
	if errors.Is(err, core.ErrNotSupported) {
		ws.Logger().Warn("unable to detect changed packages, checking all packages", "reason", err)
		return ws.Packages(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		ws.Logger().Warn("no changed packages found, nothing to publish")
	}
	return changed, nil
}

// LocalStatus classifies "git status --porcelain". Without checkCommit only
// unmerged entries make the tree unclean.
func LocalStatus(ctx context.Context, git vcs.Client, checkCommit bool) (*GitStatus, error) {
	out, err := git.Status(ctx)
	if err != nil {
		return nil, err
	}
	entries := vcs.ParsePorcelain(out)
	if len(entries) == 0 {
		return &GitStatus{Status: StatusClean}, nil
	}
	if checkCommit {
		files := make([]string, len(entries))
		for i, e := range entries {
			files[i] = e.Path
		}
		return &GitStatus{Status: StatusUncommitted, Files: files}, nil
	}
	var conflicts []string
	for _, e := range entries {
		if e.Unmerged() {
			conflicts = append(conflicts, e.Path)
		}
	}
	if len(conflicts) > 0 {
		return &GitStatus{Status: StatusConflicts, Files: conflicts}, nil
	}
	return &GitStatus{Status: StatusClean}, nil
}

// UpstreamStatus reports whether the branch is level with or ahead of its
// upstream.
func UpstreamStatus(ctx context.Context, git vcs.Client) (*SyncStatus, error) {
	out, err := git.StatusUpstream(ctx)
	if err != nil {
		return nil, err
	}
	if vcs.UpToDate(out) {
		return &SyncStatus{UpToDate: true}, nil
	}
	return &SyncStatus{Message: vcs.UpstreamSummary(out)}, nil
}

// NextVersion applies releaseType to version. Pre-release types use period
// as the identifier, defaulting to DefaultPeriod.
func NextVersion(name, version string, releaseType semver.ReleaseType, period string) (string, error) {
	if releaseType == "" {
		releaseType = semver.Patch
	}
	identifier := ""
	if releaseType.IsPre() {
		identifier = period
		if identifier == "" {
			identifier = DefaultPeriod
		}
	}
	next, err := semver.Inc(version, releaseType, identifier)
	if err != nil {
		return "", &core.InvalidVersionError{Package: name, Version: version, Err: err}
	}
	return next, nil
}

func checkNextVersions(ctx context.Context, ws *workspace.Workspace, pkgs []core.PackageDigest, opts Options, checkGit bool) ([]Availability, error) {
	results := make([]Availability, len(pkgs))
	needRegistry := false
	for i, p := range pkgs {
		results[i] = Availability{Name: p.Name, Location: p.Location, Private: p.Private, Available: true}
		if p.Version == "" {
			continue
		}
		next, err := NextVersion(p.Name, p.Version, opts.ReleaseType, opts.Period)
		if err != nil {
			return nil, err
		}
		results[i].Version = next
		if !p.Private {
			needRegistry = true
		}
	}

	var reg core.Registry
	if needRegistry {
		var err error
		if reg, err = ws.Registry(ctx); err != nil {
			return nil, err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ws.Concurrency())
	for i := range results {
		r := &results[i]
		if r.Version == "" {
			continue
		}
		g.Go(func() error {
			return checkAvailability(ctx, ws, reg, r, checkGit)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var unavailable []Availability
	for _, r := range results {
		if !r.Available {
			unavailable = append(unavailable, r)
		}
	}
	return unavailable, nil
}

func checkAvailability(ctx context.Context, ws *workspace.Workspace, reg core.Registry, r *Availability, checkGit bool) error {
	if checkGit {
		tag := vcs.Tag(r.Name, r.Version)
		exists, err := ws.Git().TagExists(ctx, tag)
		if err != nil {
			return err
		}
		if exists {
			r.Available = false
			r.Conflicts = append(r.Conflicts, Conflict{Source: ConflictTag, Ref: tag})
		}
	}

	if r.Private || reg == nil {
		return nil
	}
	published, err := core.HasVersion(ctx, reg, r.Name, r.Version)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ws.Logger().Warn("could not check registry, assuming version is free",
			"package", r.Name, "version", r.Version, "error", err)
		return nil
	}
	if published {
		urls := reg.URLs()
		ref := urls.Registry(r.Name, r.Version)
		if ref == "" {
			ref = urls.Metadata(r.Name)
		}
		r.Available = false
		r.Conflicts = append(r.Conflicts, Conflict{Source: ConflictRegistry, Ref: ref, PURL: urls.PURL(r.Name, r.Version)})
	}
	return nil
}
