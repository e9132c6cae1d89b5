// Package yarn provides the yarn classic (1.x) CLI client.
package yarn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/npm"
)

const DefaultURL = "https://registry.yarnpkg.com"

func init() {
	core.Register(core.ClientYarn, DefaultURL, func(opts core.Options) core.Registry {
		return New(opts)
	})
}

type Registry struct {
	runner  client.Runner
	dir     string
	baseURL string
	urls    *client.NPMURLs
}

func New(opts core.Options) *Registry {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURL
	}
	if opts.Runner == nil {
		opts.Runner = client.NewExecRunner()
	}
	return &Registry{
		runner:  opts.Runner,
		dir:     opts.Dir,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		urls:    npm.URLs(opts.BaseURL),
	}
}

func (r *Registry) Client() string {
	return core.ClientYarn
}

func (r *Registry) URLs() client.URLBuilder {
	return r.urls
}

// inspect is the envelope yarn classic wraps "info --json" output in.
type inspect struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (r *Registry) Latest(ctx context.Context, name string) (string, error) {
	data, err := r.info(ctx, name, "version")
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil || v == "" {
		return "", &core.NotFoundError{Client: core.ClientYarn, Name: name}
	}
	return v, nil
}

func (r *Registry) Versions(ctx context.Context, name string) ([]string, error) {
	data, err := r.info(ctx, name, "versions")
	if err != nil {
		return nil, err
	}
	versions, err := npm.DecodeVersions(data)
	if err != nil {
		return nil, &core.NotFoundError{Client: core.ClientYarn, Name: name}
	}
	return versions, nil
}

func (r *Registry) info(ctx context.Context, name, field string) (json.RawMessage, error) {
	args := []string{"info", name, field, "--json"}
	if r.baseURL != DefaultURL {
		args = append(args, "--registry", r.baseURL)
	}
	out, err := r.runner.Run(ctx, r.dir, "yarn", args...)
	if err != nil {
		return nil, npm.CommandFailure(core.ClientYarn, "yarn", name, err)
	}

	// yarn may print warnings as separate JSON lines before the payload
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var env inspect
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			continue
		}
		switch env.Type {
		case "inspect":
			return env.Data, nil
		case "error":
			return nil, &core.NotFoundError{Client: core.ClientYarn, Name: name}
		}
	}
	return nil, fmt.Errorf("yarn: no inspect payload for %s", name)
}
