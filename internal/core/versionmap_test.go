package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern string
		match   []string
		noMatch []string
		wantErr bool
	}{
		{"@scope/*", []string{"@scope/a", "@scope/", "@scope/a/b"}, []string{"@other/a", "scope/a", "x@scope/a"}, false},
		{"@scope/pre-*", []string{"@scope/pre-a"}, []string{"@scope/a"}, false},
		{"*-plugin", []string{"eslint-plugin", "x-plugin"}, []string{"plugin", "eslint-plugin-x"}, false},
		{"a.b*", []string{"a.b", "a.bc"}, []string{"axb"}, false},
		{"@s/**x", []string{"@s/x", "@s/yx"}, []string{"@s/xy"}, false},
		{"", nil, nil, true},
		{"*", nil, nil, true},
		{"***", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			re, err := CompilePattern(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CompilePattern(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPattern) {
					t.Errorf("expected ErrInvalidPattern, got %v", err)
				}
				return
			}
			for _, s := range tt.match {
				if !re.MatchString(s) {
					t.Errorf("%q should match %q", tt.pattern, s)
				}
			}
			for _, s := range tt.noMatch {
				if re.MatchString(s) {
					t.Errorf("%q should not match %q", tt.pattern, s)
				}
			}
		})
	}
}

func TestVersionMapLookup(t *testing.T) {
	m, err := NewVersionMap(map[string]string{
		"@scope/*":     "1.0.0",
		"@scope/pre-*": "2.0.0",
		"@scope/exact": "3.0.0",
	})
	if err != nil {
		t.Fatalf("NewVersionMap: %v", err)
	}

	tests := []struct {
		name      string
		want      string
		wantExact bool
		wantOK    bool
	}{
		{"@scope/exact", "3.0.0", true, true},
		{"@scope/pre-x", "2.0.0", false, true},
		{"@scope/y", "1.0.0", false, true},
		{"other", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, exact, ok := m.Lookup(tt.name)
			if got != tt.want || exact != tt.wantExact || ok != tt.wantOK {
				t.Errorf("Lookup(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.name, got, exact, ok, tt.want, tt.wantExact, tt.wantOK)
			}
		})
	}
}

func TestVersionMapInvalidPattern(t *testing.T) {
	_, err := NewVersionMap(map[string]string{"**": "1.0.0"})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
	var m VersionMap
	if err := m.Set("", "1.0.0"); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("expected ErrInvalidPattern for empty name, got %v", err)
	}
}

func TestVersionMapSetReplaces(t *testing.T) {
	var m VersionMap
	_ = m.Set("a", "1.0.0")
	_ = m.Set("a", "1.1.0")
	_ = m.Set("@s/*", "1.0.0")
	_ = m.Set("@s/*", "2.0.0")

	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	want := map[string]string{"a": "1.1.0", "@s/*": "2.0.0"}
	if got := m.Map(); !reflect.DeepEqual(got, want) {
		t.Errorf("Map() = %v, want %v", got, want)
	}
}

func TestVersionMapDeleteAndClone(t *testing.T) {
	m, _ := NewVersionMap(map[string]string{"a": "1.0.0", "b": "2.0.0", "@x/*": "3.0.0"})
	c := m.Clone()
	m.Delete("a")
	m.Delete("@x/*")

	if got := m.Names(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Names() after delete = %v", got)
	}
	if len(m.Patterns()) != 0 {
		t.Errorf("Patterns() after delete = %v", m.Patterns())
	}
	if c.Len() != 3 {
		t.Errorf("clone was mutated: Len() = %d", c.Len())
	}
}

func TestVersionMapNil(t *testing.T) {
	var m *VersionMap
	if _, _, ok := m.Lookup("a"); ok {
		t.Error("nil map should not resolve anything")
	}
	if m.Len() != 0 || len(m.Map()) != 0 {
		t.Error("nil map should be empty")
	}
}

func TestMatchPattern(t *testing.T) {
	if !MatchPattern("@s/*", "@s/a") {
		t.Error("expected @s/* to match @s/a")
	}
	if !MatchPattern("react", "react") || MatchPattern("react", "react-dom") {
		t.Error("non-pattern should match by equality only")
	}
	if MatchPattern("*", "anything") {
		t.Error("invalid pattern should match nothing")
	}
}
