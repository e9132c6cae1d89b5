package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/manifest"
)

// Client returns the package manager identity for the repository.
//
// Resolution order: an explicit WithClient value, the root "packageManager"
// field, package manager rc and lock files, lerna.json "npmClient", then npm.
func (w *Workspace) Client(ctx context.Context) (string, error) {
	w.clientOnce.Do(func() {
		w.clientName, w.clientErr = w.detectClient(ctx)
		if w.clientErr == nil {
			w.logger.Debug("package manager detected", "client", w.clientName)
		}
	})
	return w.clientName, w.clientErr
}

func (w *Workspace) detectClient(ctx context.Context) (string, error) {
	if w.client != "" {
		if !core.IsSupportedClient(w.client) {
			return "", &core.UnsupportedClientError{Client: w.client}
		}
		return w.client, nil
	}

	root, err := manifest.ReadDir(w.Root)
	if err != nil {
		return "", err
	}
	if pm := root.PackageManager(); pm != "" {
		return fromPackageManager(pm)
	}

	switch {
	case w.exists(".yarnrc.yml"):
		return core.ClientYarnNext, nil
	case w.exists(".yarnrc"):
		return core.ClientYarn, nil
	case w.exists("pnpm-workspace.yaml"), w.exists(".pnpmfile.cjs"), w.exists("pnpm-lock.yaml"):
		return core.ClientPNPM, nil
	case w.exists("yarn.lock"):
		return w.classifyYarn(ctx), nil
	case w.exists(".npmrc"), w.exists("package-lock.json"):
		return core.ClientNPM, nil
	}

	if npmClient := w.lernaNPMClient(); npmClient != "" {
		switch npmClient {
		case "yarn":
			return w.classifyYarn(ctx), nil
		case core.ClientNPM, core.ClientPNPM:
			return npmClient, nil
		}
		return "", &core.UnsupportedClientError{Client: npmClient}
	}

	return core.ClientNPM, nil
}

// fromPackageManager maps a corepack "packageManager" value such as
// "yarn@3.6.0+sha256.abc" onto a client identity.
func fromPackageManager(pm string) (string, error) {
	name, version, _ := strings.Cut(pm, "@")
	switch name {
	case core.ClientNPM, core.ClientPNPM:
		return name, nil
	case "yarn":
		if strings.HasPrefix(version, "0.") || strings.HasPrefix(version, "1.") {
			return core.ClientYarn, nil
		}
		return core.ClientYarnNext, nil
	}
	return "", &core.UnsupportedClientError{Client: name}
}

// classifyYarn asks the installed yarn for its version. Yarn classic is
// assumed when it cannot be run.
func (w *Workspace) classifyYarn(ctx context.Context) string {
	out, err := w.runner.Run(ctx, w.Root, "yarn", "--version")
	if err != nil {
		w.logger.Warn("could not determine yarn version, assuming yarn classic", "error", err)
		return core.ClientYarn
	}
	v := strings.TrimSpace(out)
	if strings.HasPrefix(v, "0.") || strings.HasPrefix(v, "1.") {
		return core.ClientYarn
	}
	return core.ClientYarnNext
}

func (w *Workspace) lernaNPMClient() string {
	data, err := os.ReadFile(filepath.Join(w.Root, "lerna.json"))
	if err != nil {
		return ""
	}
	var cfg struct {
		NPMClient string `json:"npmClient"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		w.logger.Warn("ignoring unreadable lerna.json", "error", err)
		return ""
	}
	return cfg.NPMClient
}

// yarnrcRegistry returns npmRegistryServer from .yarnrc.yml, if any.
func (w *Workspace) yarnrcRegistry() string {
	data, err := os.ReadFile(filepath.Join(w.Root, ".yarnrc.yml"))
	if err != nil {
		return ""
	}
	var cfg struct {
		NPMRegistryServer string `yaml:"npmRegistryServer"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		w.logger.Warn("ignoring unreadable .yarnrc.yml", "error", err)
		return ""
	}
	return cfg.NPMRegistryServer
}

// npmrcToken returns the _authToken the project .npmrc scopes to
// registryURL, choosing the longest matching "//host/path/:_authToken"
// key. ${VAR} references are expanded from the environment.
func (w *Workspace) npmrcToken(registryURL string) string {
	data, err := os.ReadFile(filepath.Join(w.Root, ".npmrc"))
	if err != nil {
		return ""
	}
	target := strings.TrimSuffix(registryURL, "/") + "/"
	if i := strings.Index(target, "//"); i >= 0 {
		target = target[i:]
	}

	var token string
	best := -1
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		scope, ok := strings.CutSuffix(strings.TrimSpace(key), ":_authToken")
		if !ok || !strings.HasPrefix(scope, "//") {
			continue
		}
		if !strings.HasSuffix(scope, "/") {
			scope += "/"
		}
		if strings.HasPrefix(target, scope) && len(scope) > best {
			best = len(scope)
			token = os.ExpandEnv(strings.Trim(strings.TrimSpace(value), `"`))
		}
	}
	return token
}
