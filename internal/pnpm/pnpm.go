// Package pnpm registers the pnpm CLI client. pnpm prints the same JSON as
// npm for "info" queries.
package pnpm

import (
	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/npm"
)

func init() {
	core.Register(core.ClientPNPM, npm.DefaultURL, func(opts core.Options) core.Registry {
		return New(opts)
	})
}

func New(opts core.Options) *npm.Registry {
	return npm.NewWithBinary(core.ClientPNPM, "pnpm", opts)
}
