// Package npm provides the npm CLI registry client. pnpm shares its output
// format and reuses this implementation.
package npm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/internal/core"
)

const (
	DefaultURL = "https://registry.npmjs.org"
	webURL     = "https://www.npmjs.com"
)

func init() {
	core.Register(core.ClientNPM, DefaultURL, func(opts core.Options) core.Registry {
		return New(opts)
	})
}

// Registry answers version queries by running "<bin> info".
type Registry struct {
	client  string
	bin     string
	runner  client.Runner
	dir     string
	baseURL string
	urls    *client.NPMURLs
}

func New(opts core.Options) *Registry {
	return NewWithBinary(core.ClientNPM, "npm", opts)
}

// NewWithBinary builds a client for any CLI whose "info" subcommand
// prints npm-style JSON.
func NewWithBinary(clientName, bin string, opts core.Options) *Registry {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURL
	}
	if opts.Runner == nil {
		opts.Runner = client.NewExecRunner()
	}
	return &Registry{
		client:  clientName,
		bin:     bin,
		runner:  opts.Runner,
		dir:     opts.Dir,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		urls:    URLs(opts.BaseURL),
	}
}

// URLs returns the URL builder for an npm-compatible registry at baseURL.
func URLs(baseURL string) *client.NPMURLs {
	u := &client.NPMURLs{BaseURL: baseURL, PURLFn: core.PURL}
	if strings.TrimSuffix(baseURL, "/") == DefaultURL {
		u.WebURL = webURL
	}
	return u
}

func (r *Registry) Client() string {
	return r.client
}

func (r *Registry) URLs() client.URLBuilder {
	return r.urls
}

func (r *Registry) Latest(ctx context.Context, name string) (string, error) {
	out, err := r.info(ctx, name, "version")
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", &core.NotFoundError{Client: r.client, Name: name}
	}
	var v string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		return "", fmt.Errorf("%s: decoding version of %s: %w", r.client, name, err)
	}
	return v, nil
}

func (r *Registry) Versions(ctx context.Context, name string) ([]string, error) {
	out, err := r.info(ctx, name, "versions")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, &core.NotFoundError{Client: r.client, Name: name}
	}
	versions, err := DecodeVersions([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("%s: decoding versions of %s: %w", r.client, name, err)
	}
	return versions, nil
}

func (r *Registry) info(ctx context.Context, name, field string) (string, error) {
	args := []string{"info", name, field, "--json"}
	if r.baseURL != DefaultURL {
		args = append(args, "--registry", r.baseURL)
	}
	out, err := r.runner.Run(ctx, r.dir, r.bin, args...)
	if err != nil {
		return "", CommandFailure(r.client, r.bin, name, err)
	}
	return strings.TrimSpace(out), nil
}

// DecodeVersions accepts a JSON array of versions or, for packages with a
// single release, a bare JSON string.
func DecodeVersions(data []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []string{single}, nil
}

var notFoundMarkers = []string{"E404", "404 Not Found", "Response Code: 404", "Received invalid response from npm", "not found"}

// CommandFailure maps a failed package manager invocation onto the error
// kinds callers branch on.
func CommandFailure(clientName, tool, pkg string, err error) error {
	if client.NotInstalled(err) {
		return &core.ToolNotInstalledError{Tool: tool, Err: err}
	}
	var cerr *client.CommandError
	if errors.As(err, &cerr) {
		for _, marker := range notFoundMarkers {
			if strings.Contains(cerr.Stderr, marker) {
				return &core.NotFoundError{Client: clientName, Name: pkg}
			}
		}
	}
	return fmt.Errorf("%s: querying %s: %w", clientName, pkg, err)
}
