package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/manifest"
)

// Provider lists the package directories of one workspace mechanism.
type Provider interface {
	Name() string
	List(ctx context.Context, w *Workspace) ([]string, error)
}

func readDigest(dir string) (core.PackageDigest, error) {
	doc, err := manifest.ReadDir(dir)
	if err != nil {
		return core.PackageDigest{}, err
	}
	return core.PackageDigest{
		Name:     doc.Name(),
		Version:  doc.Version(),
		Private:  doc.Private(),
		Location: dir,
	}, nil
}

// detectProvider picks the workspace mechanism; nil means a single-package
// repository.
func (w *Workspace) detectProvider(ctx context.Context) (Provider, error) {
	if w.exists("lerna.json") {
		return lernaProvider{}, nil
	}
	if w.exists("pnpm-workspace.yaml") {
		return pnpmProvider{}, nil
	}

	root, err := manifest.ReadDir(w.Root)
	if err != nil {
		return nil, err
	}
	if !root.HasField("workspaces") {
		return nil, nil
	}

	name, err := w.Client(ctx)
	if err != nil {
		return nil, err
	}
	switch name {
	case core.ClientYarn:
		return yarnProvider{}, nil
	case core.ClientYarnNext:
		return berryProvider{}, nil
	}
	return globProvider{patterns: root.Workspaces()}, nil
}

var bannerLine = regexp.MustCompile(`^[\s\[\]]`)

// StripBanner drops log lines some CLIs print around their JSON output,
// keeping only lines that start with whitespace or a bracket.
func StripBanner(out string) string {
	var kept []string
	for _, line := range strings.Split(out, "\n") {
		if bannerLine.MatchString(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func (w *Workspace) run(ctx context.Context, tool string, name string, args ...string) (string, error) {
	out, err := w.runner.Run(ctx, w.Root, name, args...)
	if err != nil && client.NotInstalled(err) {
		return "", &core.ToolNotInstalledError{Tool: tool, Err: err}
	}
	return out, err
}

// requireLerna fails with ToolNotInstalled unless a local lerna is available.
func (w *Workspace) requireLerna(ctx context.Context) error {
	if _, err := w.runner.Run(ctx, w.Root, "npx", "--no-install", "lerna", "-v"); err != nil {
		return &core.ToolNotInstalledError{Tool: "lerna", Err: err}
	}
	return nil
}

type lernaProvider struct{}

func (lernaProvider) Name() string { return "lerna" }

func (lernaProvider) List(ctx context.Context, w *Workspace) ([]string, error) {
	if err := w.requireLerna(ctx); err != nil {
		return nil, err
	}
	out, err := w.run(ctx, "lerna", "npx", "--no-install", "lerna", "list", "-a", "--json")
	if err != nil {
		return nil, err
	}
	var entries []struct {
		Name     string `json:"name"`
		Location string `json:"location"`
	}
	if err := json.Unmarshal([]byte(StripBanner(out)), &entries); err != nil {
		return nil, fmt.Errorf("decoding lerna list output: %w", err)
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		dirs = append(dirs, e.Location)
	}
	return dirs, nil
}

type pnpmProvider struct{}

func (pnpmProvider) Name() string { return "pnpm" }

func (pnpmProvider) List(ctx context.Context, w *Workspace) ([]string, error) {
	patterns, err := PNPMPatterns(w.Root)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		w.logger.Warn("pnpm-workspace.yaml lists no packages")
		return nil, nil
	}
	out, err := w.run(ctx, "pnpm", "pnpm", "m", "ls", "--json")
	if err != nil {
		return nil, err
	}
	var entries []struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(StripBanner(out)), &entries); err != nil {
		return nil, fmt.Errorf("decoding pnpm ls output: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if filepath.Clean(e.Path) == w.Root {
			continue
		}
		dirs = append(dirs, e.Path)
	}
	return dirs, nil
}

// PNPMPatterns reads the "packages" globs of pnpm-workspace.yaml.
func PNPMPatterns(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, "pnpm-workspace.yaml"))
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("pnpm-workspace.yaml: %w", err)
	}
	return cfg.Packages, nil
}

type yarnProvider struct{}

func (yarnProvider) Name() string { return "yarn" }

func (yarnProvider) List(ctx context.Context, w *Workspace) ([]string, error) {
	out, err := w.run(ctx, "yarn", "yarn", "workspaces", "info", "--json")
	if err != nil {
		return nil, err
	}
	body := trimYarnEnvelope(out)
	var info map[string]struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal([]byte(body), &info); err != nil {
		return nil, fmt.Errorf("decoding yarn workspaces info output: %w", err)
	}

	names := make([]string, 0, len(info))
	for name := range info {
		names = append(names, name)
	}
	sort.Strings(names)
	dirs := make([]string, 0, len(names))
	for _, name := range names {
		dirs = append(dirs, info[name].Location)
	}
	return dirs, nil
}

// trimYarnEnvelope removes the "yarn workspaces vX" header and the
// "Done in Xs." footer yarn classic prints around the JSON body.
func trimYarnEnvelope(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) > 0 && !strings.HasPrefix(strings.TrimSpace(lines[0]), "{") {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && !strings.HasSuffix(strings.TrimSpace(lines[n-1]), "}") {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

type berryProvider struct{}

func (berryProvider) Name() string { return "yarn-next" }

func (berryProvider) List(ctx context.Context, w *Workspace) ([]string, error) {
	out, err := w.run(ctx, "yarn", "yarn", "workspaces", "list", "--json")
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry struct {
			Name     string `json:"name"`
			Location string `json:"location"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decoding yarn workspaces list output: %w", err)
		}
		if entry.Location == "." {
			continue
		}
		dirs = append(dirs, entry.Location)
	}
	return dirs, nil
}

// globProvider expands package.json "workspaces" globs the way npm does.
// Patterns starting with "!" exclude matches.
type globProvider struct {
	patterns []string
}

func (globProvider) Name() string { return "npm" }

func (p globProvider) List(ctx context.Context, w *Workspace) ([]string, error) {
	return ExpandGlobs(w.Root, p.patterns)
}

// ExpandGlobs returns the directories under root matching patterns that
// contain a package.json, sorted. node_modules is never searched.
func ExpandGlobs(root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	var include, exclude []string
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.TrimSuffix(p, "/"), "./")
		if strings.HasPrefix(p, "!") {
			exclude = append(exclude, strings.TrimPrefix(p[1:], "./"))
			continue
		}
		include = append(include, p)
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid workspace pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || excluded(m, exclude) || strings.Contains("/"+m+"/", "/node_modules/") {
				continue
			}
			info, err := fs.Stat(fsys, m)
			if err != nil || !info.IsDir() {
				continue
			}
			if _, err := fs.Stat(fsys, m+"/"+core.ManifestFile); err != nil {
				continue
			}
			seen[m] = true
			dirs = append(dirs, filepath.Join(root, filepath.FromSlash(m)))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func excluded(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
