// Package manifest reads, edits and rewrites package.json files while
// keeping key order, indentation and trailing whitespace intact.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/git-pkgs/versync/internal/core"
)

const defaultIndent = "  "

// Document is a parsed package.json.
type Document struct {
	Path string

	data     *orderedmap.OrderedMap
	indent   string
	trailing string
}

// Dependency is one entry of a dependency block.
type Dependency struct {
	Name  string
	Range string
}

// Read loads the package.json at path. A missing or unparseable file is a
// CorruptManifestError.
func Read(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.CorruptManifestError{Path: path, Err: err}
	}
	return Parse(path, raw)
}

// ReadDir loads dir/package.json.
func ReadDir(dir string) (*Document, error) {
	return Read(filepath.Join(dir, core.ManifestFile))
}

var trailingSpace = regexp.MustCompile(`\}(\s+)$`)

// Parse parses raw manifest bytes; path is only used for error reporting
// and writing.
func Parse(path string, raw []byte) (*Document, error) {
	data := orderedmap.New()
	data.SetEscapeHTML(false)
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, &core.CorruptManifestError{Path: path, Err: err}
	}

	doc := &Document{Path: path, data: data, indent: DetectIndent(raw)}
	if m := trailingSpace.FindSubmatch(raw); m != nil {
		doc.trailing = string(m[1])
	}
	return doc, nil
}

// DetectIndent returns the leading whitespace of the first indented line,
// or two spaces when the document has none.
func DetectIndent(raw []byte) string {
	for _, line := range bytes.Split(raw, []byte("\n")) {
		trimmed := bytes.TrimLeft(line, " \t")
		if len(trimmed) == 0 || len(trimmed) == len(line) {
			continue
		}
		return string(line[:len(line)-len(trimmed)])
	}
	return defaultIndent
}

// Indent returns the indentation the document will be written with.
func (d *Document) Indent() string {
	return d.indent
}

func (d *Document) str(key string) string {
	v, ok := d.data.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (d *Document) Name() string {
	return d.str("name")
}

func (d *Document) Version() string {
	return d.str("version")
}

func (d *Document) Private() bool {
	v, ok := d.data.Get("private")
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// PackageManager returns the "packageManager" field, e.g. "pnpm@9.1.0".
func (d *Document) PackageManager() string {
	return d.str("packageManager")
}

// Keywords returns the "keywords" array.
func (d *Document) Keywords() []string {
	v, ok := d.data.Get("keywords")
	if !ok {
		return nil
	}
	return stringSlice(v)
}

// Workspaces returns the workspace globs, accepting both the array form and
// the {"packages": [...]} form.
func (d *Document) Workspaces() []string {
	v, ok := d.data.Get("workspaces")
	if !ok {
		return nil
	}
	if m, ok := v.(orderedmap.OrderedMap); ok {
		pkgs, ok := m.Get("packages")
		if !ok {
			return nil
		}
		return stringSlice(pkgs)
	}
	return stringSlice(v)
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Dependencies returns the string entries of a dependency block in file order.
func (d *Document) Dependencies(field string) []Dependency {
	block, ok := d.block(field)
	if !ok {
		return nil
	}
	var deps []Dependency
	for _, name := range block.Keys() {
		v, _ := block.Get(name)
		if rng, ok := v.(string); ok {
			deps = append(deps, Dependency{Name: name, Range: rng})
		}
	}
	return deps
}

// DependencyNames returns every name used in any dependency block.
func (d *Document) DependencyNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, field := range core.DependencyFields {
		for _, dep := range d.Dependencies(field) {
			if !seen[dep.Name] {
				seen[dep.Name] = true
				names = append(names, dep.Name)
			}
		}
	}
	return names
}

func (d *Document) block(field string) (orderedmap.OrderedMap, bool) {
	v, ok := d.data.Get(field)
	if !ok {
		return orderedmap.OrderedMap{}, false
	}
	m, ok := v.(orderedmap.OrderedMap)
	return m, ok
}

// SetVersion replaces the "version" field, appending it when absent.
func (d *Document) SetVersion(version string) {
	d.data.Set("version", version)
}

// SetDependency replaces the range of an existing dependency entry.
func (d *Document) SetDependency(field, name, rng string) error {
	block, ok := d.block(field)
	if !ok {
		return fmt.Errorf("%s: no %s block", d.Path, field)
	}
	if _, ok := block.Get(name); !ok {
		return fmt.Errorf("%s: %s has no entry for %s", d.Path, field, name)
	}
	block.Set(name, rng)
	d.data.Set(field, block)
	return nil
}

// Get returns a top-level value. Nested objects are returned as JSON.
func (d *Document) Get(key string) (json.RawMessage, bool) {
	v, ok := d.data.Get(key)
	if !ok {
		return nil, false
	}
	raw, err := marshal(v)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Bytes serializes the document with its original indentation and
// trailing whitespace.
func (d *Document) Bytes() ([]byte, error) {
	compact, err := marshal(d.data)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", d.indent); err != nil {
		return nil, err
	}
	out.WriteString(d.trailing)
	return out.Bytes(), nil
}

// Write replaces the file on disk atomically.
func (d *Document) Write() error {
	if d.Path == "" {
		return errors.New("manifest: document has no path")
	}
	data, err := d.Bytes()
	if err != nil {
		return fmt.Errorf("manifest: encoding %s: %w", d.Path, err)
	}
	return writeFileAtomic(d.Path, data)
}

func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("manifest: writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("manifest: writing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return fmt.Errorf("manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("manifest: replacing %s: %w", path, err)
	}
	return nil
}

// HasField reports whether key is present at the top level.
func (d *Document) HasField(key string) bool {
	_, ok := d.data.Get(key)
	return ok
}

// label names the document in log lines.
func (d *Document) label() string {
	if n := d.Name(); n != "" {
		return n
	}
	return strings.TrimSuffix(d.Path, "/"+core.ManifestFile)
}
