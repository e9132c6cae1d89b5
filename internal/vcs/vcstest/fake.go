// Package vcstest provides an in-memory vcs.Client for tests.
package vcstest

import (
	"context"
	"slices"
)

// Fake answers every vcs.Client method from its fields. A non-nil Err
// field makes the matching method fail.
type Fake struct {
	RootDir     string
	TagList     []string // newest first
	Porcelain   string
	Upstream    string
	RootErr     error
	FetchErr    error
	TagsErr     error
	StatusErr   error
	UpstreamErr error

	Fetched int
}

func (f *Fake) Root(ctx context.Context) (string, error) {
	return f.RootDir, f.RootErr
}

func (f *Fake) FetchTags(ctx context.Context) error {
	f.Fetched++
	return f.FetchErr
}

func (f *Fake) Tags(ctx context.Context) ([]string, error) {
	if f.TagsErr != nil {
		return nil, f.TagsErr
	}
	return append([]string(nil), f.TagList...), nil
}

func (f *Fake) TagExists(ctx context.Context, tag string) (bool, error) {
	if f.TagsErr != nil {
		return false, f.TagsErr
	}
	return slices.Contains(f.TagList, tag), nil
}

func (f *Fake) Status(ctx context.Context) (string, error) {
	return f.Porcelain, f.StatusErr
}

func (f *Fake) StatusUpstream(ctx context.Context) (string, error) {
	if f.UpstreamErr != nil {
		return "", f.UpstreamErr
	}
	if f.Upstream == "" {
		return "On branch main\nYour branch is up to date with 'origin/main'.\n", nil
	}
	return f.Upstream, nil
}
