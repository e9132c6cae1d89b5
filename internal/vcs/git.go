// Package vcs wraps the git operations the release checks need. Tag listing
// and remote operations go through the git CLI so they honour the user's
// credentials; repository discovery and tag lookup use go-git.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/internal/core"
)

// ErrNotRepository is returned when the directory is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Client is the VCS surface consumed by version resolution and the
// publish checks.
type Client interface {
	Root(ctx context.Context) (string, error)
	FetchTags(ctx context.Context) error
	Tags(ctx context.Context) ([]string, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	Status(ctx context.Context) (string, error)
	StatusUpstream(ctx context.Context) (string, error)
}

// Git implements Client for the repository containing dir.
type Git struct {
	runner client.Runner
	dir    string

	once sync.Once
	repo *git.Repository
	root string
	err  error
}

func New(runner client.Runner, dir string) *Git {
	if runner == nil {
		runner = client.NewExecRunner()
	}
	return &Git{runner: runner, dir: dir}
}

func (g *Git) open() (*git.Repository, string, error) {
	g.once.Do(func() {
		repo, err := git.PlainOpenWithOptions(g.dir, &git.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			if errors.Is(err, git.ErrRepositoryNotExists) {
				g.err = fmt.Errorf("%s: %w", g.dir, ErrNotRepository)
			} else {
				g.err = err
			}
			return
		}
		g.repo = repo
		g.root = g.dir
		if wt, err := repo.Worktree(); err == nil {
			g.root = wt.Filesystem.Root()
		}
	})
	return g.repo, g.root, g.err
}

// Root returns the top of the work tree.
func (g *Git) Root(ctx context.Context) (string, error) {
	_, root, err := g.open()
	return root, err
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	out, err := g.runner.Run(ctx, g.dir, "git", args...)
	if err != nil {
		if client.NotInstalled(err) {
			return "", &core.ToolNotInstalledError{Tool: "git", Err: err}
		}
		return "", err
	}
	return out, nil
}

// FetchTags fetches tags from origin, pruning ones deleted upstream.
func (g *Git) FetchTags(ctx context.Context) error {
	_, err := g.run(ctx, "fetch", "origin", "--prune", "--tags")
	return err
}

// Tags lists tags, newest first.
func (g *Git) Tags(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "tag", "-l", "--sort=-creatordate")
	if err != nil {
		return nil, err
	}
	var tags []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

// TagExists reports whether refs/tags/<tag> exists locally.
func (g *Git) TagExists(ctx context.Context, tag string) (bool, error) {
	repo, _, err := g.open()
	if err != nil {
		return false, err
	}
	_, err = repo.Reference(plumbing.NewTagReferenceName(tag), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Status returns "git status --porcelain" output.
func (g *Git) Status(ctx context.Context) (string, error) {
	return g.run(ctx, "status", "--porcelain")
}

// StatusUpstream returns "git status -uno" output, which describes how the
// branch relates to its upstream.
func (g *Git) StatusUpstream(ctx context.Context) (string, error) {
	return g.run(ctx, "status", "-uno")
}

var tagPattern = regexp.MustCompile(`^((?:@[a-z0-9-~][a-z0-9-._~]*/)?[a-z0-9-~][a-z0-9-._~]*)@(\d.*)$`)

// ParseTag splits a "<name>@<version>" release tag. Tags that do not follow
// the convention report ok=false.
func ParseTag(tag string) (name, version string, ok bool) {
	m := tagPattern.FindStringSubmatch(tag)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Tag formats the release tag for a package version.
func Tag(name, version string) string {
	return name + "@" + version
}
