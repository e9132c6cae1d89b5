// Package semver wraps github.com/Masterminds/semver/v3 with the handful of
// npm-flavoured operations the version engine needs.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a semantic version.
type Version struct {
	v *mm.Version
}

// Constraint is a version range such as "^1.2.0" or ">=1.0.0 <2.0.0".
type Constraint struct {
	c *mm.Constraints
}

func ParseVersion(raw string) (Version, error) {
	v, err := mm.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

func ParseConstraint(raw string) (Constraint, error) {
	c, err := mm.NewConstraint(strings.TrimSpace(raw))
	if err != nil {
		return Constraint{}, fmt.Errorf("semver: parse constraint %q: %w", raw, err)
	}
	return Constraint{c: c}, nil
}

// Valid reports whether raw parses as a version.
func Valid(raw string) bool {
	_, err := ParseVersion(raw)
	return err == nil
}

// ValidRange reports whether raw parses as a range.
func ValidRange(raw string) bool {
	_, err := ParseConstraint(raw)
	return err == nil
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Prerelease returns the pre-release part without the leading hyphen.
func (v Version) Prerelease() string {
	if v.v == nil {
		return ""
	}
	return v.v.Prerelease()
}

// Stable reports whether v has no pre-release part.
func (v Version) Stable() bool {
	return v.v != nil && v.v.Prerelease() == ""
}

func Satisfies(v Version, c Constraint) bool {
	if v.v == nil || c.c == nil {
		return false
	}
	return c.c.Check(v.v)
}

// RangeSatisfies reports whether version satisfies rangeStr. Either side
// failing to parse counts as not satisfied.
func RangeSatisfies(rangeStr, version string) bool {
	c, err := ParseConstraint(rangeStr)
	if err != nil {
		return false
	}
	v, err := ParseVersion(version)
	if err != nil {
		return false
	}
	return Satisfies(v, c)
}

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
func Compare(a, b Version) int {
	if a.v == nil && b.v == nil {
		return 0
	}
	if a.v == nil {
		return -1
	}
	if b.v == nil {
		return 1
	}
	return a.v.Compare(b.v)
}

// Max returns the greatest parseable version among vers, keeping its
// original spelling. Empty and unparseable entries are ignored; ok is false
// when nothing parsed. Ties keep the first occurrence.
func Max(vers ...string) (string, bool) {
	return pick(vers, false)
}

// MaxStable is Max restricted to versions without a pre-release part,
// falling back to Max when every candidate is a pre-release.
func MaxStable(vers ...string) (string, bool) {
	if s, ok := pick(vers, true); ok {
		return s, true
	}
	return pick(vers, false)
}

func pick(vers []string, stableOnly bool) (string, bool) {
	var best Version
	bestRaw := ""
	found := false
	for _, raw := range vers {
		if raw == "" {
			continue
		}
		v, err := ParseVersion(raw)
		if err != nil {
			continue
		}
		if stableOnly && !v.Stable() {
			continue
		}
		if !found || Compare(v, best) > 0 {
			best, bestRaw, found = v, raw, true
		}
	}
	return bestRaw, found
}

// ReleaseType is an npm release increment.
type ReleaseType string

const (
	Major      ReleaseType = "major"
	Minor      ReleaseType = "minor"
	Patch      ReleaseType = "patch"
	PreMajor   ReleaseType = "premajor"
	PreMinor   ReleaseType = "preminor"
	PrePatch   ReleaseType = "prepatch"
	PreRelease ReleaseType = "prerelease"
	// Alpha is an alias for PreRelease.
	Alpha ReleaseType = "alpha"
)

// ReleaseTypes lists every accepted release type.
var ReleaseTypes = []ReleaseType{Major, Minor, Patch, PreRelease, PrePatch, PreMinor, PreMajor, Alpha}

// ParseReleaseType validates s; empty means patch.
func ParseReleaseType(s string) (ReleaseType, error) {
	if s == "" {
		return Patch, nil
	}
	for _, rt := range ReleaseTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	return "", fmt.Errorf("semver: unknown release type %q", s)
}

// IsPre reports whether rt produces a pre-release.
func (rt ReleaseType) IsPre() bool {
	return strings.HasPrefix(string(rt), "pre") || rt == Alpha
}

type parts struct {
	major, minor, patch uint64
	pre                 []string
}

func (p parts) String() string {
	s := fmt.Sprintf("%d.%d.%d", p.major, p.minor, p.patch)
	if len(p.pre) > 0 {
		s += "-" + strings.Join(p.pre, ".")
	}
	return s
}

// Inc applies an npm-style release increment to raw. identifier labels
// pre-releases ("alpha" in 1.2.4-alpha.0) and is ignored for plain releases.
// Build metadata is dropped.
func Inc(raw string, rt ReleaseType, identifier string) (string, error) {
	v, err := ParseVersion(raw)
	if err != nil {
		return "", err
	}
	p := parts{major: v.v.Major(), minor: v.v.Minor(), patch: v.v.Patch()}
	if pre := v.v.Prerelease(); pre != "" {
		p.pre = strings.Split(pre, ".")
	}

	switch rt {
	case Major:
		if p.minor != 0 || p.patch != 0 || len(p.pre) == 0 {
			p.major++
		}
		p.minor, p.patch, p.pre = 0, 0, nil
	case Minor:
		if p.patch != 0 || len(p.pre) == 0 {
			p.minor++
		}
		p.patch, p.pre = 0, nil
	case Patch:
		if len(p.pre) == 0 {
			p.patch++
		}
		p.pre = nil
	case PreMajor:
		p.major++
		p.minor, p.patch, p.pre = 0, 0, nil
		p.pre = incPre(p.pre, identifier)
	case PreMinor:
		p.minor++
		p.patch, p.pre = 0, nil
		p.pre = incPre(p.pre, identifier)
	case PrePatch:
		p.patch++
		p.pre = incPre(nil, identifier)
	case PreRelease, Alpha:
		if len(p.pre) == 0 {
			p.patch++
		}
		p.pre = incPre(p.pre, identifier)
	default:
		return "", fmt.Errorf("semver: unknown release type %q", rt)
	}

	next := p.String()
	if _, err := ParseVersion(next); err != nil {
		return "", err
	}
	return next, nil
}

// incPre bumps the trailing numeric pre-release part, appending 0 when none
// exists, then applies identifier the way npm does.
func incPre(pre []string, identifier string) []string {
	if len(pre) == 0 {
		pre = []string{"0"}
	} else {
		pre = append([]string(nil), pre...)
		bumped := false
		for i := len(pre) - 1; i >= 0; i-- {
			if n, err := strconv.ParseUint(pre[i], 10, 64); err == nil {
				pre[i] = strconv.FormatUint(n+1, 10)
				bumped = true
				break
			}
		}
		if !bumped {
			pre = append(pre, "0")
		}
	}
	if identifier == "" {
		return pre
	}
	if pre[0] == identifier {
		if len(pre) < 2 {
			return []string{identifier, "0"}
		}
		if _, err := strconv.ParseUint(pre[1], 10, 64); err != nil {
			return []string{identifier, "0"}
		}
		return pre
	}
	return []string{identifier, "0"}
}
