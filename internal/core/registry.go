package core

import (
	"context"
	"sort"
	"sync"

	"github.com/git-pkgs/versync/client"
	"github.com/git-pkgs/versync/fetch"
)

// Package manager client identities.
const (
	ClientNPM      = "npm"
	ClientPNPM     = "pnpm"
	ClientYarn     = "yarn"
	ClientYarnNext = "yarn-next"
	// ClientHTTP talks to the registry over HTTP instead of a CLI.
	ClientHTTP = "registry"
)

// Registry is the interface implemented by every package manager client.
type Registry interface {
	// Client returns the identity this registry was registered under.
	Client() string

	// Latest returns the version the registry's "latest" tag points at.
	Latest(ctx context.Context, name string) (string, error)

	// Versions returns every published version in registry order.
	Versions(ctx context.Context, name string) ([]string, error)

	// URLs returns the URL builder for this registry.
	URLs() client.URLBuilder
}

// Options carries what a Factory needs to build a Registry.
type Options struct {
	// Runner executes package manager CLIs. Nil means client.NewExecRunner().
	Runner client.Runner
	// Dir is the working directory CLI clients run in.
	Dir string
	// BaseURL overrides the registry's default URL.
	BaseURL string
	// Fetcher is used by HTTP clients. Nil lets the client build its own.
	Fetcher fetch.FetcherInterface
	// Token authenticates a client-built fetcher.
	Token string
}

// Factory creates a registry from options with defaults already applied.
type Factory func(opts Options) Registry

var (
	factories = make(map[string]Factory)
	defaults  = make(map[string]string)
	mu        sync.RWMutex
)

// Register adds a client factory. defaultURL is the registry the client
// talks to when Options.BaseURL is empty.
func Register(name string, defaultURL string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
	defaults[name] = defaultURL
}

// New creates the registry client registered under name.
func New(name string, opts Options) (Registry, error) {
	mu.RLock()
	factory, ok := factories[name]
	defaultURL := defaults[name]
	mu.RUnlock()

	if !ok {
		return nil, &UnsupportedClientError{Client: name}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultURL
	}
	if opts.Runner == nil {
		opts.Runner = client.NewExecRunner()
	}
	return factory(opts), nil
}

// SupportedClients returns all registered client identities, sorted.
func SupportedClients() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupportedClient reports whether name has a registered factory.
func IsSupportedClient(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[name]
	return ok
}

// DefaultURL returns the default registry URL for a client.
func DefaultURL(name string) string {
	mu.RLock()
	defer mu.RUnlock()
	return defaults[name]
}
