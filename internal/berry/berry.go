// Package berry provides the yarn 2+ ("yarn-next") CLI client.
package berry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/npm"
)

func init() {
	core.Register(core.ClientYarnNext, npm.DefaultURL, func(opts core.Options) core.Registry {
		return New(opts)
	})
}

// Registry runs "yarn npm info". Yarn 2+ reads its registry from
// .yarnrc.yml, so BaseURL only affects the URLs reported.
type Registry struct {
	runner client.Runner
	dir    string
	urls   *client.NPMURLs
}

func New(opts core.Options) *Registry {
	if opts.BaseURL == "" {
		opts.BaseURL = npm.DefaultURL
	}
	if opts.Runner == nil {
		opts.Runner = client.NewExecRunner()
	}
	return &Registry{
		runner: opts.Runner,
		dir:    opts.Dir,
		urls:   npm.URLs(opts.BaseURL),
	}
}

func (r *Registry) Client() string {
	return core.ClientYarnNext
}

func (r *Registry) URLs() client.URLBuilder {
	return r.urls
}

type fields struct {
	Version  string   `json:"version"`
	Versions []string `json:"versions"`
}

func (r *Registry) Latest(ctx context.Context, name string) (string, error) {
	f, err := r.info(ctx, name, "version")
	if err != nil {
		return "", err
	}
	if f.Version == "" {
		return "", &core.NotFoundError{Client: core.ClientYarnNext, Name: name}
	}
	return f.Version, nil
}

func (r *Registry) Versions(ctx context.Context, name string) ([]string, error) {
	f, err := r.info(ctx, name, "versions")
	if err != nil {
		return nil, err
	}
	return f.Versions, nil
}

func (r *Registry) info(ctx context.Context, name, field string) (fields, error) {
	out, err := r.runner.Run(ctx, r.dir, "yarn", "npm", "info", name, "--fields", field, "--json")
	if err != nil {
		return fields{}, npm.CommandFailure(core.ClientYarnNext, "yarn", name, err)
	}
	var f fields
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &f); err != nil {
		return fields{}, fmt.Errorf("yarn-next: decoding %s of %s: %w", field, name, err)
	}
	return f, nil
}
