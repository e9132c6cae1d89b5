package reconcile

import (
	"fmt"
	"strings"

	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/semver"
)

// ParseArgs splits dependency arguments into bare names (or patterns) and
// explicit versions. Accepted forms are "name", "@scope/*", "name@1.2.3",
// "@scope/name@1.2.3" and "pkg:npm/%40scope/name@1.2.3".
func ParseArgs(args []string) (names []string, versions map[string]string, err error) {
	versions = make(map[string]string)
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			return nil, nil, &core.InvalidPatternError{Pattern: arg}
		}

		var name, version string
		if core.IsPURL(arg) {
			name, version, err = core.ParsePURL(arg)
			if err != nil {
				return nil, nil, &core.UsageError{Msg: fmt.Sprintf("invalid package url %q: %v", arg, err)}
			}
		} else {
			name, version = splitNameVersion(arg)
			if strings.HasSuffix(arg, "@") {
				return nil, nil, &core.UsageError{Msg: fmt.Sprintf("missing version in %q", arg)}
			}
		}

		if name == "" {
			return nil, nil, &core.UsageError{Msg: fmt.Sprintf("missing package name in %q", arg)}
		}
		if core.IsPattern(name) {
			if _, err := core.CompilePattern(name); err != nil {
				return nil, nil, err
			}
		}
		if version == "" {
			names = append(names, name)
			continue
		}
		if !semver.Valid(version) {
			return nil, nil, &core.InvalidVersionError{Package: name, Version: version}
		}
		versions[name] = version
	}
	return names, versions, nil
}

// splitNameVersion splits at the last "@" that is not the leading scope marker.
func splitNameVersion(arg string) (name, version string) {
	i := strings.LastIndex(arg, "@")
	if i <= 0 {
		return arg, ""
	}
	return arg[:i], arg[i+1:]
}
