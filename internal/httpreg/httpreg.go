// Package httpreg queries npm-compatible registries over HTTP, without a
// package manager CLI.
package httpreg

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/fetch"
	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/npm"
	"github.com/git-pkgs/versync/internal/semver"
)

func init() {
	core.Register(core.ClientHTTP, npm.DefaultURL, func(opts core.Options) core.Registry {
		return New(opts)
	})
}

type Registry struct {
	fetcher fetch.FetcherInterface
	urls    *client.NPMURLs
}

func New(opts core.Options) *Registry {
	if opts.BaseURL == "" {
		opts.BaseURL = npm.DefaultURL
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(
			fetch.WithAccept(fetch.AcceptAbbreviated),
			fetch.WithToken(opts.Token),
		))
	}
	return &Registry{
		fetcher: opts.Fetcher,
		urls:    npm.URLs(strings.TrimSuffix(opts.BaseURL, "/")),
	}
}

func (r *Registry) Client() string {
	return core.ClientHTTP
}

func (r *Registry) URLs() client.URLBuilder {
	return r.urls
}

// packument is the subset of the abbreviated package document we read.
type packument struct {
	Name     string              `json:"name"`
	DistTags map[string]string   `json:"dist-tags"`
	Versions map[string]struct{} `json:"versions"`
}

func (r *Registry) fetchPackument(ctx context.Context, name string) (*packument, error) {
	var doc packument
	if err := fetch.GetJSON(ctx, r.fetcher, r.urls.Metadata(name), &doc); err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			return nil, &core.NotFoundError{Client: core.ClientHTTP, Name: name}
		}
		return nil, fmt.Errorf("registry: %s: %w", name, err)
	}
	return &doc, nil
}

func (r *Registry) Latest(ctx context.Context, name string) (string, error) {
	doc, err := r.fetchPackument(ctx, name)
	if err != nil {
		return "", err
	}
	latest := doc.DistTags["latest"]
	if latest == "" {
		return "", &core.NotFoundError{Client: core.ClientHTTP, Name: name}
	}
	return latest, nil
}

// Versions returns published versions in ascending semver order; entries
// that do not parse sort last.
func (r *Registry) Versions(ctx context.Context, name string) ([]string, error) {
	doc, err := r.fetchPackument(ctx, name)
	if err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(doc.Versions))
	for v := range doc.Versions {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		a, errA := semver.ParseVersion(versions[i])
		b, errB := semver.ParseVersion(versions[j])
		switch {
		case errA != nil && errB != nil:
			return versions[i] < versions[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return semver.Compare(a, b) < 0
	})
	return versions, nil
}
