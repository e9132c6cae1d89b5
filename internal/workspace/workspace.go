// Package workspace discovers the packages of a JavaScript monorepo and
// holds the per-run context (runner, logger, registry client, VCS) the
// version engine works against.
package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/fetch"
	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/vcs"
)

// Workspace is the context of one run against a repository. Discovery,
// client detection and the registry client are computed once and reused.
type Workspace struct {
	// Root is the project root: the git work tree when it holds a
	// package.json, otherwise the nearest directory with one.
	Root string

	gitRoot string

	runner      client.Runner
	logger      *slog.Logger
	client      string
	registryURL string
	fetcher     fetch.FetcherInterface
	concurrency int
	git         vcs.Client

	pkgsOnce sync.Once
	pkgs     []core.PackageDigest
	pkgsErr  error

	clientOnce sync.Once
	clientName string
	clientErr  error

	regOnce sync.Once
	reg     core.Registry
	regErr  error

	fetchOnce sync.Once
	fetchErr  error
}

// Option configures a Workspace.
type Option func(*Workspace)

func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = l
	}
}

func WithRunner(r client.Runner) Option {
	return func(w *Workspace) {
		w.runner = r
	}
}

// WithClient forces the package manager identity instead of detecting it.
func WithClient(name string) Option {
	return func(w *Workspace) {
		w.client = name
	}
}

// WithRegistryURL points registry clients at a non-default registry.
func WithRegistryURL(u string) Option {
	return func(w *Workspace) {
		w.registryURL = u
	}
}

// WithFetcher sets the HTTP fetcher used by the "registry" client.
func WithFetcher(f fetch.FetcherInterface) Option {
	return func(w *Workspace) {
		w.fetcher = f
	}
}

// WithConcurrency bounds concurrent registry and VCS lookups.
func WithConcurrency(n int) Option {
	return func(w *Workspace) {
		w.concurrency = n
	}
}

// WithGit replaces the VCS client.
func WithGit(g vcs.Client) Option {
	return func(w *Workspace) {
		w.git = g
	}
}

// Open creates a Workspace for the project containing dir. The git work
// tree is the root when it holds a package.json; otherwise the nearest
// ancestor of dir (or dir itself) with a package.json is.
func Open(dir string, opts ...Option) (*Workspace, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	w := &Workspace{}
	for _, opt := range opts {
		opt(w)
	}
	if w.runner == nil {
		w.runner = client.NewExecRunner()
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if w.concurrency <= 0 {
		w.concurrency = core.DefaultConcurrency
	}
	if w.git == nil {
		w.git = vcs.New(w.runner, start)
	}

	if w.Root, err = w.projectRoot(start); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workspace) projectRoot(start string) (string, error) {
	if root, err := w.git.Root(context.Background()); err == nil && filepath.IsAbs(root) {
		w.gitRoot = filepath.Clean(root)
		if w.within(start) && hasManifest(w.gitRoot) {
			return w.gitRoot, nil
		}
	}
	for dir := start; ; {
		if hasManifest(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	path := filepath.Join(start, core.ManifestFile)
	return "", &core.CorruptManifestError{Path: path, Err: fmt.Errorf("no %s in %s or its parents: %w", core.ManifestFile, start, os.ErrNotExist)}
}

// within reports whether dir lies inside the git work tree.
func (w *Workspace) within(dir string) bool {
	rel, err := filepath.Rel(w.gitRoot, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, core.ManifestFile))
	return err == nil && !info.IsDir()
}

// GitRoot returns the git work tree found when the workspace was opened,
// or "" outside a repository.
func (w *Workspace) GitRoot() string {
	return w.gitRoot
}

// FetchTags fetches tags from origin once per workspace; later calls
// return the first result.
func (w *Workspace) FetchTags(ctx context.Context) error {
	w.fetchOnce.Do(func() {
		w.fetchErr = w.git.FetchTags(ctx)
	})
	return w.fetchErr
}

func (w *Workspace) Logger() *slog.Logger {
	return w.logger
}

func (w *Workspace) Runner() client.Runner {
	return w.runner
}

func (w *Workspace) Git() vcs.Client {
	return w.git
}

func (w *Workspace) Concurrency() int {
	return w.concurrency
}

// Packages returns every workspace package followed by the root package.
func (w *Workspace) Packages(ctx context.Context) ([]core.PackageDigest, error) {
	w.pkgsOnce.Do(func() {
		w.pkgs, w.pkgsErr = w.discover(ctx)
	})
	return w.pkgs, w.pkgsErr
}

func (w *Workspace) discover(ctx context.Context) ([]core.PackageDigest, error) {
	provider, err := w.detectProvider(ctx)
	if err != nil {
		return nil, err
	}

	var dirs []string
	if provider != nil {
		w.logger.Debug("discovering packages", "provider", provider.Name())
		dirs, err = provider.List(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", provider.Name(), err)
		}
	}

	rootDigest, err := readDigest(w.Root)
	if err != nil {
		return nil, err
	}
	rootDigest.Private = true

	seen := make(map[string]bool)
	var pkgs []core.PackageDigest
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(w.Root, dir)
		}
		dir = filepath.Clean(dir)
		if seen[dir] || dir == w.Root {
			continue
		}
		seen[dir] = true

		pkg, err := readDigest(dir)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return append(pkgs, rootDigest), nil
}

// Registry returns the registry client for the detected package manager.
func (w *Workspace) Registry(ctx context.Context) (core.Registry, error) {
	w.regOnce.Do(func() {
		name, err := w.Client(ctx)
		if err != nil {
			w.regErr = err
			return
		}
		baseURL := w.registryURL
		if baseURL == "" && name == core.ClientYarnNext {
			baseURL = w.yarnrcRegistry()
		}
		opts := core.Options{
			Runner:  w.runner,
			Dir:     w.Root,
			BaseURL: baseURL,
			Fetcher: w.fetcher,
		}
		if name == core.ClientHTTP && w.fetcher == nil {
			if baseURL == "" {
				baseURL = core.DefaultURL(name)
			}
			opts.Token = w.npmrcToken(baseURL)
		}
		w.reg, w.regErr = core.New(name, opts)
	})
	return w.reg, w.regErr
}

func (w *Workspace) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(w.Root, rel))
	return err == nil
}
