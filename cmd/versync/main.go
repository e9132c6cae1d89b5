// Package main provides the versync CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/versync"
	_ "github.com/git-pkgs/versync/all"
	"github.com/git-pkgs/versync/internal/vcs"
)

// errCheckFailed makes the process exit non-zero after the report has
// already been printed.
var errCheckFailed = errors.New("check failed")

// app holds global flags and the collaborators commands share.
type app struct {
	dir         string
	debug       bool
	jsonOut     bool
	client      string
	registry    string
	concurrency int

	// root is the absolute project root once a workspace is open.
	root string

	// runner and git replace the real collaborators in tests.
	runner versync.Runner
	git    vcs.Client

	out    io.Writer
	errOut io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "versync",
		Short: "Keep monorepo package versions and dependency ranges consistent",
		Long: `versync discovers the packages of a JavaScript monorepo, resolves each
package's version from its manifest, release tags and the registry, rewrites
package.json files to match, and checks whether the repository is ready to
publish.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.dir, "cwd", "C", ".", "Project root")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Print results as JSON")
	root.PersistentFlags().StringVar(&a.client, "client", "", "Package manager client (npm, pnpm, yarn, yarn-next, registry)")
	root.PersistentFlags().StringVar(&a.registry, "registry", "", "Registry URL")
	root.PersistentFlags().IntVar(&a.concurrency, "concurrency", 0, "Maximum concurrent registry and git lookups")

	root.AddCommand(
		newListCmd(a),
		newChangedCmd(a),
		newSyncLocalCmd(a),
		newSyncDepsCmd(a),
		newCanPublishCmd(a),
		newAllCmd(a),
	)
	return root
}

func (a *app) logger() *slog.Logger {
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
}

// open loads the configuration and opens the workspace; flags override
// configuration values.
func (a *app) open() (*versync.Workspace, *versync.Config, error) {
	var hooks []versync.WorkspaceOption
	if a.runner != nil {
		hooks = append(hooks, versync.WithRunner(a.runner))
	}
	if a.git != nil {
		hooks = append(hooks, versync.WithGit(a.git))
	}
	// Configuration lives at the project root, which may be above a.dir.
	found, err := versync.Open(a.dir, hooks...)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := versync.LoadConfig(found.Root)
	if err != nil {
		return nil, nil, err
	}
	log := a.logger()
	if cfg.Path != "" {
		log.Debug("loaded configuration", "path", cfg.Path)
	}

	opts := append(cfg.WorkspaceOptions(), versync.WithLogger(log))
	if a.client != "" {
		opts = append(opts, versync.WithClient(a.client))
	}
	if a.registry != "" {
		opts = append(opts, versync.WithRegistryURL(a.registry))
	}
	if a.concurrency > 0 {
		opts = append(opts, versync.WithConcurrency(a.concurrency))
	}
	opts = append(opts, hooks...)

	ws, err := versync.Open(found.Root, opts...)
	if err != nil {
		return nil, nil, err
	}
	a.root = ws.Root
	return ws, cfg, nil
}

// execute runs the command line and returns the process exit code.
func execute(a *app, args []string) int {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintln(a.errOut, "Error:", err)
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(&app{out: os.Stdout, errOut: os.Stderr}, os.Args[1:]))
}
