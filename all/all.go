// Package all imports every package manager client.
//
// Import this package for its side effects to register all clients:
//
//	import (
//		"github.com/git-pkgs/versync"
//		_ "github.com/git-pkgs/versync/all"
//	)
//
//	clients := versync.SupportedClients()
//	// ["npm", "pnpm", "registry", "yarn", "yarn-next"]
package all

import (
	_ "github.com/git-pkgs/versync/internal/berry"
	_ "github.com/git-pkgs/versync/internal/httpreg"
	_ "github.com/git-pkgs/versync/internal/npm"
	_ "github.com/git-pkgs/versync/internal/pnpm"
	_ "github.com/git-pkgs/versync/internal/yarn"
)
