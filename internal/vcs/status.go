package vcs

import "strings"

// StatusEntry is one line of "git status --porcelain".
type StatusEntry struct {
	Code string // two-letter XY code
	Path string
}

var unmergedCodes = map[string]bool{
	"DD": true, "AU": true, "UD": true, "UA": true, "DU": true, "AA": true, "UU": true,
}

// Unmerged reports whether the entry is a merge conflict.
func (e StatusEntry) Unmerged() bool {
	return unmergedCodes[e.Code]
}

// ParsePorcelain parses porcelain v1 output.
func ParsePorcelain(out string) []StatusEntry {
	var entries []StatusEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		entries = append(entries, StatusEntry{Code: line[:2], Path: line[3:]})
	}
	return entries
}

// UpToDate reports whether "git status -uno" output says the branch is level
// with or ahead of its upstream.
func UpToDate(out string) bool {
	return strings.Contains(out, "is up to date with") || strings.Contains(out, "is ahead of")
}

// UpstreamSummary condenses "git status -uno" output into a single line.
func UpstreamSummary(out string) string {
	s := strings.ReplaceAll(out, "Your branch", "")
	if i := strings.Index(s, "On branch "); i >= 0 {
		rest := s[i+len("On branch "):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl:]
		} else {
			rest = ""
		}
		s = s[:i] + rest
	}
	return strings.Join(strings.Fields(s), " ")
}
