package core

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/git-pkgs/versync/internal/semver"
)

// DefaultConcurrency bounds concurrent registry lookups.
const DefaultConcurrency = 10

// PickVersion selects one published version of name according to pick.
// A package without usable versions yields a NotFoundError.
func PickVersion(ctx context.Context, reg Registry, name string, pick PickStrategy) (string, error) {
	if pick == PickLatest {
		v, err := reg.Latest(ctx, name)
		if err != nil {
			return "", err
		}
		if v == "" {
			return "", &NotFoundError{Client: reg.Client(), Name: name}
		}
		return v, nil
	}

	versions, err := reg.Versions(ctx, name)
	if err != nil {
		return "", err
	}

	var (
		v  string
		ok bool
	)
	if pick == PickMax {
		v, ok = semver.Max(versions...)
	} else {
		v, ok = semver.MaxStable(versions...)
	}
	if !ok {
		return "", &NotFoundError{Client: reg.Client(), Name: name}
	}
	return v, nil
}

// HasVersion reports whether version of name is published. An unknown
// package is not an error.
func HasVersion(ctx context.Context, reg Registry, name, version string) (bool, error) {
	versions, err := reg.Versions(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return slices.Contains(versions, version), nil
}

// BulkPickVersions picks versions for many packages in parallel. Failures
// are isolated per package: successful names land in the first map, failed
// ones in the second.
func BulkPickVersions(ctx context.Context, reg Registry, names []string, pick PickStrategy, concurrency int) (map[string]string, map[string]error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make(map[string]string)
	failures := make(map[string]error)
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				failures[n] = ctx.Err()
				mu.Unlock()
				return
			}

			v, err := PickVersion(ctx, reg, n, pick)
			mu.Lock()
			if err != nil {
				failures[n] = err
			} else {
				results[n] = v
			}
			mu.Unlock()
		}(name)
	}

	wg.Wait()
	return results, failures
}
