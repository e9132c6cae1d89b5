package manifest

import (
	"errors"
	"strings"
	"unicode"

	"github.com/git-pkgs/versync/internal/core"
	"github.com/git-pkgs/versync/internal/semver"
)

// ErrComplexRange is returned by a RangeStrategy that refuses to rewrite a
// compound range such as ">=1.0.0 <2.0.0" or "^1.0.0 || ^2.0.0".
var ErrComplexRange = errors.New("complex range left untouched")

// RangeStrategy computes the new range for a dependency. Returning oldRange
// leaves the entry unchanged.
type RangeStrategy func(name, oldRange, newVersion string) (string, error)

// Prefixes accepted by Prefix, "" meaning an exact pin.
var Prefixes = []string{"^", "~", ">=", ">", "=", "<", "<=", ""}

// Retain keeps the operator prefix of the old range and swaps in the new
// version: "^1.0.0" -> "^1.2.0", "~0.3" -> "~1.2.0". Unparseable ranges and
// "*" are returned unchanged.
func Retain(name, oldRange, newVersion string) (string, error) {
	if !rewritable(oldRange) {
		return oldRange, nil
	}
	if isComplex(oldRange) {
		return oldRange, ErrComplexRange
	}
	i := strings.IndexFunc(oldRange, unicode.IsDigit)
	if i < 0 {
		return oldRange, nil
	}
	return oldRange[:i] + bare(newVersion), nil
}

// Prefix returns a strategy that writes prefix followed by the bare version.
// "=" behaves like an exact pin. Ranges Retain leaves alone are kept here
// too.
func Prefix(prefix string) RangeStrategy {
	if prefix == "=" {
		prefix = ""
	}
	return func(name, oldRange, newVersion string) (string, error) {
		if !rewritable(oldRange) {
			return oldRange, nil
		}
		if isComplex(oldRange) {
			return oldRange, ErrComplexRange
		}
		return prefix + bare(newVersion), nil
	}
}

// ParseRangeStrategy maps a configuration value onto a strategy. "" and
// "retain" keep existing prefixes; "exact" pins; anything in Prefixes is
// used literally.
func ParseRangeStrategy(s string) (RangeStrategy, error) {
	switch s {
	case "", "retain":
		return Retain, nil
	case "exact":
		return Prefix(""), nil
	}
	for _, p := range Prefixes {
		if p != "" && p == s {
			return Prefix(p), nil
		}
	}
	return nil, &core.UsageError{Msg: "unknown range strategy " + s}
}

var rangeOperators = []string{">=", "<=", "^", "~", ">", "<", "="}

// rewritable reports whether rng is a semver range that pins a concrete
// version: a digit, or an operator followed by a digit. "*", "x",
// "latest", "workspace:^1.0.0" and file or git specifiers are not.
func rewritable(rng string) bool {
	rng = strings.TrimSpace(rng)
	if !semver.ValidRange(rng) {
		return false
	}
	for _, op := range rangeOperators {
		if rest, ok := strings.CutPrefix(rng, op); ok {
			rng = strings.TrimSpace(rest)
			break
		}
	}
	return rng != "" && unicode.IsDigit(rune(rng[0]))
}

func isComplex(rng string) bool {
	return strings.Contains(rng, "||") || strings.ContainsFunc(strings.TrimSpace(rng), unicode.IsSpace)
}

// bare strips any leading non-digit characters, turning "v1.2.0" or
// "^1.2.0" into "1.2.0".
func bare(version string) string {
	if i := strings.IndexFunc(version, unicode.IsDigit); i > 0 {
		return version[i:]
	}
	return version
}
