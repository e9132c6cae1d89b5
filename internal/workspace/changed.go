package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/internal/core"
)

// ChangedNames returns the names of packages changed since their last
// release, as reported by lerna or changesets. Repositories using neither
// get a NotSupportedError so callers can fall back to all packages.
func (w *Workspace) ChangedNames(ctx context.Context) ([]string, error) {
	switch {
	case w.exists("lerna.json"):
		return w.lernaChanged(ctx)
	case w.exists(".changeset"):
		return w.changesetChanged(ctx)
	}
	return nil, &core.NotSupportedError{Op: "changed packages", Reason: "no lerna.json or .changeset directory"}
}

// Changed returns the discovered packages whose names ChangedNames reports.
func (w *Workspace) Changed(ctx context.Context) ([]core.PackageDigest, error) {
	names, err := w.ChangedNames(ctx)
	if err != nil {
		return nil, err
	}
	pkgs, err := w.Packages(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var changed []core.PackageDigest
	for _, p := range pkgs {
		if want[p.Name] {
			changed = append(changed, p)
		}
	}
	return changed, nil
}

func alreadyReleased(s string) bool {
	return strings.Contains(s, "is already released") || strings.Contains(s, "No changed packages")
}

func (w *Workspace) lernaChanged(ctx context.Context) ([]string, error) {
	if err := w.requireLerna(ctx); err != nil {
		return nil, err
	}
	out, err := w.run(ctx, "lerna", "npx", "--no-install", "lerna", "changed", "--json")
	if err != nil {
		// lerna exits non-zero when there is nothing to release
		var cerr *client.CommandError
		if errors.As(err, &cerr) && (alreadyReleased(cerr.Stderr) || alreadyReleased(out)) {
			return nil, nil
		}
		return nil, err
	}
	if alreadyReleased(out) {
		return nil, nil
	}
	body := StripBanner(out)
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	var entries []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, fmt.Errorf("decoding lerna changed output: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

func (w *Workspace) changesetChanged(ctx context.Context) ([]string, error) {
	tmp, err := os.CreateTemp("", "versync-changeset-*.json")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(path) }()

	// changeset resolves --output relative to the project
	rel, err := filepath.Rel(w.Root, path)
	if err != nil {
		rel = path
	}
	if _, err := w.run(ctx, "changeset", "npx", "--no-install", "changeset", "status", "--output", rel); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading changeset status: %w", err)
	}
	var status struct {
		Releases []struct {
			Name string `json:"name"`
		} `json:"releases"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decoding changeset status: %w", err)
	}
	names := make([]string, 0, len(status.Releases))
	for _, r := range status.Releases {
		names = append(names, r.Name)
	}
	return names, nil
}
