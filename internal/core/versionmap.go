package core

import (
	"regexp"
	"sort"
	"strings"
)

// VersionMap maps package names, or wildcard patterns such as "@scope/*",
// to versions. Exact names win over patterns; among matching patterns the
// longest one wins. The zero value is ready to use.
type VersionMap struct {
	exact    map[string]string
	patterns []versionPattern
}

type versionPattern struct {
	pattern string
	re      *regexp.Regexp
	version string
}

// NewVersionMap builds a VersionMap from a plain map.
func NewVersionMap(entries map[string]string) (*VersionMap, error) {
	m := &VersionMap{}
	// sorted for a deterministic tie order between equal-length patterns
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := m.Set(k, entries[k]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IsPattern reports whether name contains a wildcard.
func IsPattern(name string) bool {
	return strings.Contains(name, "*")
}

var starRun = regexp.MustCompile(`\*+`)

// CompilePattern turns a wildcard pattern into an anchored regular
// expression where "*" matches any run of characters.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.Trim(pattern, "*") == "" {
		return nil, &InvalidPatternError{Pattern: pattern}
	}
	parts := strings.Split(starRun.ReplaceAllString(pattern, "*"), "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// MatchPattern reports whether name matches pattern. Invalid patterns match
// nothing.
func MatchPattern(pattern, name string) bool {
	if !IsPattern(pattern) {
		return pattern == name
	}
	re, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// Set records version for a name or pattern, replacing any previous value.
func (m *VersionMap) Set(name, version string) error {
	if !IsPattern(name) {
		if name == "" {
			return &InvalidPatternError{Pattern: name}
		}
		if m.exact == nil {
			m.exact = make(map[string]string)
		}
		m.exact[name] = version
		return nil
	}

	re, err := CompilePattern(name)
	if err != nil {
		return err
	}
	for i := range m.patterns {
		if m.patterns[i].pattern == name {
			m.patterns[i].version = version
			return nil
		}
	}
	m.patterns = append(m.patterns, versionPattern{pattern: name, re: re, version: version})
	sort.SliceStable(m.patterns, func(i, j int) bool {
		return len(m.patterns[i].pattern) > len(m.patterns[j].pattern)
	})
	return nil
}

// Get returns the version stored under an exact name.
func (m *VersionMap) Get(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.exact[name]
	return v, ok
}

// Lookup resolves name against exact entries first, then against the
// longest matching pattern. exact reports which of the two answered.
func (m *VersionMap) Lookup(name string) (version string, exact bool, ok bool) {
	if m == nil {
		return "", false, false
	}
	if v, found := m.exact[name]; found {
		return v, true, true
	}
	for _, p := range m.patterns {
		if p.re.MatchString(name) {
			return p.version, false, true
		}
	}
	return "", false, false
}

// Delete removes an exact name or a pattern.
func (m *VersionMap) Delete(name string) {
	if m == nil {
		return
	}
	delete(m.exact, name)
	for i, p := range m.patterns {
		if p.pattern == name {
			m.patterns = append(m.patterns[:i], m.patterns[i+1:]...)
			return
		}
	}
}

// Len returns the number of exact names plus patterns.
func (m *VersionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.exact) + len(m.patterns)
}

// Names returns the exact names, sorted.
func (m *VersionMap) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.exact))
	for n := range m.exact {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Patterns returns the wildcard patterns, most specific first.
func (m *VersionMap) Patterns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.patterns))
	for i, p := range m.patterns {
		out[i] = p.pattern
	}
	return out
}

// Map returns every entry, exact and pattern, as a plain map.
func (m *VersionMap) Map() map[string]string {
	out := make(map[string]string, m.Len())
	if m == nil {
		return out
	}
	for k, v := range m.exact {
		out[k] = v
	}
	for _, p := range m.patterns {
		out[p.pattern] = p.version
	}
	return out
}

// Clone returns an independent copy.
func (m *VersionMap) Clone() *VersionMap {
	c := &VersionMap{}
	if m == nil {
		return c
	}
	if m.exact != nil {
		c.exact = make(map[string]string, len(m.exact))
		for k, v := range m.exact {
			c.exact[k] = v
		}
	}
	c.patterns = append([]versionPattern(nil), m.patterns...)
	return c
}
