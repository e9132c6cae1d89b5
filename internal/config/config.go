// Package config loads project settings from .versync.yaml, versync.yaml
// or the "versync" key of the root package.json.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/manifest"
	"github.com/git-pkgs/versync/internal/publish"
	"github.com/git-pkgs/versync/internal/reconcile"
	"github.com/git-pkgs/versync/internal/semver"
	"github.com/git-pkgs/versync/internal/workspace"
)

// Files are probed in order; the first one found wins.
var Files = []string{".versync.yaml", ".versync.yml", "versync.yaml", "versync.yml"}

// ManifestKey is the package.json key holding inline configuration.
const ManifestKey = "versync"

type Config struct {
	Client      string     `yaml:"client"`
	Registry    string     `yaml:"registry"`
	Concurrency int        `yaml:"concurrency"`
	SyncLocal   SyncLocal  `yaml:"synclocal"`
	SyncDeps    Deps       `yaml:"syncdeps"`
	CanPublish  CanPublish `yaml:"canpublish"`

	// Path is the file the configuration came from; empty when defaults
	// are in use.
	Path string `yaml:"-"`
}

type SyncLocal struct {
	Source string `yaml:"source"`
	Pick   string `yaml:"pick"`
	Range  string `yaml:"range"`
	Exact  bool   `yaml:"exact"`
}

type CanPublish struct {
	ReleaseType   string `yaml:"releaseType"`
	Period        string `yaml:"period"`
	CheckCommit   bool   `yaml:"checkCommit"`
	UseMaxVersion bool   `yaml:"useMaxVersion"`
}

// Deps is the syncdeps setting. It accepts either a list of arguments
// ("react", "@babel/*", "lodash@4.17.21", PURLs) or a mapping of name to
// version where an empty version means "look it up".
type Deps struct {
	Names    []string
	Versions map[string]string
}

func (d *Deps) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		names, versions, err := reconcile.ParseArgs(items)
		if err != nil {
			return err
		}
		d.Names, d.Versions = names, versions
	case yaml.MappingNode:
		var m map[string]string
		if err := n.Decode(&m); err != nil {
			return err
		}
		d.Versions = make(map[string]string)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if m[k] == "" {
				d.Names = append(d.Names, k)
				continue
			}
			d.Versions[k] = m[k]
		}
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return fmt.Errorf("line %d: syncdeps must be a list or a mapping", n.Line)
	default:
		return fmt.Errorf("line %d: syncdeps must be a list or a mapping", n.Line)
	}
	return nil
}

// Empty reports whether no dependency was configured.
func (d Deps) Empty() bool {
	return len(d.Names) == 0 && len(d.Versions) == 0
}

// Load reads the configuration for the project at root. A project without
// configuration yields the zero Config.
func Load(root string) (*Config, error) {
	for _, name := range Files {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return parse(path, data)
	}

	doc, err := manifest.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	raw, ok := doc.Get(ManifestKey)
	if !ok {
		return &Config{}, nil
	}
	return parse(doc.Path, raw)
}

func parse(path string, data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &core.UsageError{Msg: fmt.Sprintf("%s: %v", path, err)}
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every enumerated value so that bad configuration fails
// before any work starts.
func (c *Config) Validate() error {
	if c.Client != "" && !core.IsSupportedClient(c.Client) {
		return &core.UnsupportedClientError{Client: c.Client}
	}
	if c.Concurrency < 0 {
		return &core.UsageError{Msg: fmt.Sprintf("concurrency must not be negative, got %d", c.Concurrency)}
	}
	if _, err := c.SyncLocal.Options(); err != nil {
		return err
	}
	if _, err := c.CanPublish.Options(); err != nil {
		return err
	}
	return nil
}

// WorkspaceOptions translates the project-wide settings.
func (c *Config) WorkspaceOptions() []workspace.Option {
	var opts []workspace.Option
	if c.Client != "" {
		opts = append(opts, workspace.WithClient(c.Client))
	}
	if c.Registry != "" {
		opts = append(opts, workspace.WithRegistryURL(c.Registry))
	}
	if c.Concurrency > 0 {
		opts = append(opts, workspace.WithConcurrency(c.Concurrency))
	}
	return opts
}

// Options converts the synclocal section.
func (s SyncLocal) Options() (reconcile.LocalOptions, error) {
	source, err := core.ParseVersionSource(s.Source)
	if err != nil {
		return reconcile.LocalOptions{}, err
	}
	pick, err := core.ParsePickStrategy(s.Pick)
	if err != nil {
		return reconcile.LocalOptions{}, err
	}
	rng, err := manifest.ParseRangeStrategy(s.Range)
	if err != nil {
		return reconcile.LocalOptions{}, err
	}
	return reconcile.LocalOptions{Source: source, Pick: pick, Range: rng, Exact: s.Exact}, nil
}

// Options converts the canpublish section.
func (c CanPublish) Options() (publish.Options, error) {
	rt, err := semver.ParseReleaseType(c.ReleaseType)
	if err != nil {
		return publish.Options{}, &core.UsageError{Msg: err.Error()}
	}
	return publish.Options{
		ReleaseType:   rt,
		Period:        c.Period,
		CheckCommit:   c.CheckCommit,
		UseMaxVersion: c.UseMaxVersion,
	}, nil
}
