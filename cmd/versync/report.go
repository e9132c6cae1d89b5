package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/versync"
)

// tree is a titled message with nested children, printed two spaces deeper
// per level.
type tree struct {
	title    string
	children []tree
}

func leaf(format string, args ...any) tree {
	return tree{title: fmt.Sprintf(format, args...)}
}

func (t tree) write(w io.Writer, indent int) {
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", indent), t.title)
	for _, c := range t.children {
		c.write(w, indent+1)
	}
}

// shorten renders loc relative to root, "." for the root itself.
func shorten(root, loc string) string {
	rel, err := filepath.Rel(root, loc)
	if err != nil || rel == "" {
		return loc
	}
	return rel
}

func packageLine(root string, p versync.PackageDigest) string {
	line := p.Name
	if p.Version != "" {
		line += "@" + p.Version
	}
	line += " (" + shorten(root, p.Location) + ")"
	if p.Private {
		line += " private"
	}
	return line
}

func changedTrees(root string, changed []versync.ChangedPackage) []tree {
	out := make([]tree, 0, len(changed))
	for _, pkg := range changed {
		t := tree{title: fmt.Sprintf("%s(%s)", pkg.Name, shorten(root, pkg.Location))}
		for _, cat := range pkg.Changes {
			field := tree{title: cat.Field}
			for _, c := range cat.Changes {
				field.children = append(field.children, leaf("%s: %s => %s", c.Name, c.OldVersion, c.NewVersion))
			}
			t.children = append(t.children, field)
		}
		out = append(out, t)
	}
	return out
}

func writeQualification(w io.Writer, root string, q *versync.Qualification) {
	if q.Eligible {
		fmt.Fprintln(w, "ready to publish")
		return
	}
	fmt.Fprintln(w, "not ready to publish:")
	for _, r := range q.Reasons {
		reasonTree(root, r).write(w, 1)
	}
}

func reasonTree(root string, r versync.FailureReason) tree {
	switch r.Kind {
	case versync.ReasonGitNotClean:
		title := "local git has uncommitted changes:"
		if r.Git.Status == versync.GitConflicts {
			title = "local git has unresolved conflicts:"
		}
		t := tree{title: title}
		for _, f := range r.Git.Files {
			t.children = append(t.children, leaf("%s", f))
		}
		return t
	case versync.ReasonGitOutdated:
		return tree{title: "local branch is not up to date with upstream:", children: []tree{leaf("%s", r.Sync.Message)}}
	case versync.ReasonLocalVersionOutdated:
		return tree{title: "local versions are not the latest:", children: changedTrees(root, r.Outdated)}
	case versync.ReasonNextVersionUnavailable:
		t := tree{title: "next versions are already released:"}
		for _, a := range r.Unavailable {
			pkg := tree{title: fmt.Sprintf("%s(%s)", a.Name, shorten(root, a.Location))}
			for _, c := range a.Conflicts {
				if c.Source == versync.ConflictTag {
					pkg.children = append(pkg.children, leaf("git tag %s exists", c.Ref))
					continue
				}
				pkg.children = append(pkg.children, leaf("version %s is on the registry: %s", a.Version, c.Ref))
			}
			t.children = append(t.children, pkg)
		}
		return t
	}
	return leaf("%s", r.Kind)
}
