package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	_ "github.com/git-pkgs/versync/all"
	"github.com/git-pkgs/versync/client/clienttest"
	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/vcs"
	"github.com/git-pkgs/versync/internal/vcs/vcstest"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func open(t *testing.T, root string, runner *clienttest.FakeRunner, opts ...Option) *Workspace {
	t.Helper()
	opts = append([]Option{WithRunner(runner)}, opts...)
	w, err := Open(root, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return w
}

func names(pkgs []core.PackageDigest) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.Name
	}
	return out
}

func TestOpenRequiresManifest(t *testing.T) {
	_, err := Open(t.TempDir())
	if !errors.Is(err, core.ErrCorruptManifest) {
		t.Errorf("expected ErrCorruptManifest, got %v", err)
	}
}

func TestOpenResolvesProjectRoot(t *testing.T) {
	monorepo := func(t *testing.T) string {
		t.Helper()
		root := t.TempDir()
		writeFile(t, root, "package.json", `{"name": "mono", "private": true, "workspaces": ["packages/*"]}`)
		writeFile(t, root, "packages/a/package.json", `{"name": "a", "version": "1.0.0"}`)
		writeFile(t, root, "packages/a/src/index.js", "")
		writeFile(t, root, "packages/b/package.json", `{"name": "b", "version": "1.0.0"}`)
		return root
	}

	t.Run("git root with manifest", func(t *testing.T) {
		root := monorepo(t)
		w := open(t, filepath.Join(root, "packages", "a"), clienttest.NewFakeRunner(), WithGit(&vcstest.Fake{RootDir: root}))
		if w.Root != root || w.GitRoot() != root {
			t.Fatalf("Root = %q, GitRoot = %q, want %q", w.Root, w.GitRoot(), root)
		}
		pkgs, err := w.Packages(context.Background())
		if err != nil {
			t.Fatalf("Packages: %v", err)
		}
		if got := names(pkgs); !reflect.DeepEqual(got, []string{"a", "b", "mono"}) {
			t.Errorf("Packages = %v", got)
		}
		if pkgs[0].Private {
			t.Error("a should not be marked private")
		}
	})

	t.Run("git root without manifest", func(t *testing.T) {
		repo := t.TempDir()
		app := filepath.Join(repo, "app")
		writeFile(t, app, "package.json", `{"name": "app", "version": "1.0.0"}`)
		writeFile(t, app, "src/index.js", "")

		w := open(t, filepath.Join(app, "src"), clienttest.NewFakeRunner(), WithGit(&vcstest.Fake{RootDir: repo}))
		if w.Root != app {
			t.Errorf("Root = %q, want %q", w.Root, app)
		}
	})

	t.Run("outside git", func(t *testing.T) {
		root := monorepo(t)
		fake := &vcstest.Fake{RootErr: vcs.ErrNotRepository}
		w := open(t, filepath.Join(root, "packages", "a", "src"), clienttest.NewFakeRunner(), WithGit(fake))
		if want := filepath.Join(root, "packages", "a"); w.Root != want {
			t.Errorf("Root = %q, want nearest manifest %q", w.Root, want)
		}
		if w.GitRoot() != "" {
			t.Errorf("GitRoot = %q outside a repository", w.GitRoot())
		}
	})

	t.Run("git root elsewhere", func(t *testing.T) {
		root := monorepo(t)
		w := open(t, root, clienttest.NewFakeRunner(), WithGit(&vcstest.Fake{RootDir: filepath.Join(root, "packages", "b")}))
		if w.Root != root {
			t.Errorf("Root = %q, want %q", w.Root, root)
		}
	})
}

func TestFetchTagsOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "solo"}`)
	fake := &vcstest.Fake{FetchErr: errors.New("offline")}
	w := open(t, root, clienttest.NewFakeRunner(), WithGit(fake))

	for range 3 {
		if err := w.FetchTags(context.Background()); err == nil {
			t.Error("expected the first fetch error to be kept")
		}
	}
	if fake.Fetched != 1 {
		t.Errorf("fetched %d times, want 1", fake.Fetched)
	}
}

func TestSinglePackage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "solo", "version": "1.0.0"}`)

	pkgs, err := open(t, root, clienttest.NewFakeRunner()).Packages(context.Background())
	if err != nil {
		t.Fatalf("Packages: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected only the root, got %v", pkgs)
	}
	if pkgs[0].Name != "solo" || !pkgs[0].Private || pkgs[0].Location != root {
		t.Errorf("unexpected root digest %+v", pkgs[0])
	}
}

func TestNPMWorkspaces(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root", "workspaces": ["packages/*", "tools/**", "!packages/ignored"]}`)
	writeFile(t, root, "package-lock.json", `{}`)
	writeFile(t, root, "packages/b/package.json", `{"name": "b", "version": "1.0.0"}`)
	writeFile(t, root, "packages/a/package.json", `{"name": "a", "version": "2.0.0", "private": true}`)
	writeFile(t, root, "packages/ignored/package.json", `{"name": "ignored"}`)
	writeFile(t, root, "packages/empty/README.md", `nothing here`)
	writeFile(t, root, "tools/nested/cli/package.json", `{"name": "cli", "version": "0.1.0"}`)
	writeFile(t, root, "tools/nested/cli/node_modules/dep/package.json", `{"name": "dep"}`)

	w := open(t, root, clienttest.NewFakeRunner())
	pkgs, err := w.Packages(context.Background())
	if err != nil {
		t.Fatalf("Packages: %v", err)
	}
	if got, want := names(pkgs), []string{"a", "b", "cli", "root"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Packages = %v, want %v", got, want)
	}
	if !pkgs[0].Private || pkgs[1].Private {
		t.Errorf("private flags not read: %+v", pkgs[:2])
	}
	if pkgs[1].Location != filepath.Join(root, "packages", "b") {
		t.Errorf("Location = %q", pkgs[1].Location)
	}

	again, _ := w.Packages(context.Background())
	if &again[0] != &pkgs[0] {
		t.Error("Packages should be memoized")
	}
}

func TestWorkspacesObjectForm(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root", "workspaces": {"packages": ["libs/*"]}}`)
	writeFile(t, root, "libs/x/package.json", `{"name": "x"}`)

	pkgs, err := open(t, root, clienttest.NewFakeRunner(), WithClient("npm")).Packages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := names(pkgs); !reflect.DeepEqual(got, []string{"x", "root"}) {
		t.Errorf("Packages = %v", got)
	}
}

func TestLernaWorkspaces(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root"}`)
	writeFile(t, root, "lerna.json", `{"version": "independent"}`)
	writeFile(t, root, "packages/a/package.json", `{"name": "a", "version": "1.0.0"}`)
	writeFile(t, root, "packages/b/package.json", `{"name": "b", "version": "1.1.0"}`)

	out := "lerna notice cli v6.6.2\n[\n  {\n    \"name\": \"a\",\n    \"location\": \"" + filepath.Join(root, "packages/a") +
		"\"\n  },\n  {\n    \"name\": \"b\",\n    \"location\": \"" + filepath.Join(root, "packages/b") + "\"\n  }\n]\nlerna success found 2 packages\n"
	runner := clienttest.NewFakeRunner().
		On("npx --no-install lerna -v", "6.6.2\n").
		On("npx --no-install lerna list -a --json", out)

	pkgs, err := open(t, root, runner).Packages(context.Background())
	if err != nil {
		t.Fatalf("Packages: %v", err)
	}
	if got := names(pkgs); !reflect.DeepEqual(got, []string{"a", "b", "root"}) {
		t.Errorf("Packages = %v", got)
	}
}

func TestLernaNotInstalled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root"}`)
	writeFile(t, root, "lerna.json", `{}`)

	_, err := open(t, root, clienttest.NewFakeRunner()).Packages(context.Background())
	if !errors.Is(err, core.ErrToolNotInstalled) {
		t.Errorf("expected ErrToolNotInstalled, got %v", err)
	}
}

func TestLernaMissingManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root"}`)
	writeFile(t, root, "lerna.json", `{}`)
	runner := clienttest.NewFakeRunner().
		On("npx --no-install lerna -v", "6.6.2").
		On("npx --no-install lerna list -a --json", `[{"name": "ghost", "location": "packages/ghost"}]`)

	_, err := open(t, root, runner).Packages(context.Background())
	if !errors.Is(err, core.ErrCorruptManifest) {
		t.Errorf("expected ErrCorruptManifest, got %v", err)
	}
}

func TestPNPMWorkspaces(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root"}`)
	writeFile(t, root, "pnpm-workspace.yaml", "packages:\n  - 'packages/*'\n")
	writeFile(t, root, "packages/a/package.json", `{"name": "a", "version": "1.0.0"}`)

	out := `[{"name":"root","path":"` + root + `","private":false},{"name":"a","version":"1.0.0","path":"` +
		filepath.Join(root, "packages/a") + `","private":false}]`
	runner := clienttest.NewFakeRunner().On("pnpm m ls --json", out)

	w := open(t, root, runner)
	pkgs, err := w.Packages(context.Background())
	if err != nil {
		t.Fatalf("Packages: %v", err)
	}
	if got := names(pkgs); !reflect.DeepEqual(got, []string{"a", "root"}) {
		t.Errorf("Packages = %v", got)
	}
	if c, _ := w.Client(context.Background()); c != core.ClientPNPM {
		t.Errorf("Client = %q", c)
	}
}

func TestPNPMEmptyWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root"}`)
	writeFile(t, root, "pnpm-workspace.yaml", "packages: []\n")

	runner := clienttest.NewFakeRunner()
	pkgs, err := open(t, root, runner).Packages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 1 || runner.Called("pnpm m ls --json") {
		t.Errorf("expected root only without running pnpm, got %v", pkgs)
	}
}

func TestYarnClassicWorkspaces(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root", "workspaces": ["packages/*"]}`)
	writeFile(t, root, "yarn.lock", "")
	writeFile(t, root, "packages/a/package.json", `{"name": "a", "version": "1.0.0"}`)
	writeFile(t, root, "packages/b/package.json", `{"name": "b", "version": "1.0.0"}`)

	out := "yarn workspaces v1.22.19\n{\n  \"b\": {\"location\": \"packages/b\"},\n  \"a\": {\"location\": \"packages/a\"}\n}\nDone in 0.04s.\n"
	runner := clienttest.NewFakeRunner().
		On("yarn --version", "1.22.19\n").
		On("yarn workspaces info --json", out)

	w := open(t, root, runner)
	pkgs, err := w.Packages(context.Background())
	if err != nil {
		t.Fatalf("Packages: %v", err)
	}
	if got := names(pkgs); !reflect.DeepEqual(got, []string{"a", "b", "root"}) {
		t.Errorf("Packages = %v", got)
	}
}

func TestYarnBerryWorkspaces(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root", "packageManager": "yarn@4.1.0", "workspaces": ["packages/*"]}`)
	writeFile(t, root, "packages/a/package.json", `{"name": "a", "version": "1.0.0"}`)

	out := `{"location":".","name":"root"}
{"location":"packages/a","name":"a"}
`
	runner := clienttest.NewFakeRunner().On("yarn workspaces list --json", out)

	pkgs, err := open(t, root, runner).Packages(context.Background())
	if err != nil {
		t.Fatalf("Packages: %v", err)
	}
	if got := names(pkgs); !reflect.DeepEqual(got, []string{"a", "root"}) {
		t.Errorf("Packages = %v", got)
	}
}

func TestStripBanner(t *testing.T) {
	in := "lerna notice cli v6\n[\n  {\"name\": \"a\"}\n]\nlerna success\n"
	if got, want := StripBanner(in), "[\n  {\"name\": \"a\"}\n]"; got != want {
		t.Errorf("StripBanner = %q, want %q", got, want)
	}
}

func TestTrimYarnEnvelope(t *testing.T) {
	in := "yarn workspaces v1.22.19\n{\n  \"a\": {}\n}\nDone in 0.02s.\n"
	if got, want := trimYarnEnvelope(in), "{\n  \"a\": {}\n}"; got != want {
		t.Errorf("trimYarnEnvelope = %q, want %q", got, want)
	}
}

func TestRegistryUsesDetectedClient(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"name": "root", "packageManager": "yarn@3.6.0"}`)
	writeFile(t, root, ".yarnrc.yml", "npmRegistryServer: \"https://npm.example.com\"\n")

	reg, err := open(t, root, clienttest.NewFakeRunner()).Registry(context.Background())
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if reg.Client() != core.ClientYarnNext {
		t.Errorf("Client = %q", reg.Client())
	}
	if got := reg.URLs().Metadata("a"); got != "https://npm.example.com/a" {
		t.Errorf("Metadata URL = %q", got)
	}
}
