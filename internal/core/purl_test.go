package core

import (
	"testing"
)

func TestPURL(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{"lodash", "", "pkg:npm/lodash"},
		{"lodash", "4.17.21", "pkg:npm/lodash@4.17.21"},
		{"@babel/core", "7.24.0", "pkg:npm/%40babel/core@7.24.0"},
		{"@babel/core", "", "pkg:npm/%40babel/core"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := PURL(tt.name, tt.version); got != tt.want {
				t.Errorf("PURL(%q, %q) = %q, want %q", tt.name, tt.version, got, tt.want)
			}
		})
	}
}

func TestParsePURL(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantVer  string
		wantErr  bool
	}{
		{"pkg:npm/lodash", "lodash", "", false},
		{"pkg:npm/lodash@4.17.21", "lodash", "4.17.21", false},
		{"pkg:npm/%40babel/core", "@babel/core", "", false},
		{"pkg:npm/%40babel/core@7.24.0", "@babel/core", "7.24.0", false},
		{"pkg:npm/@babel/core@7.24.0", "@babel/core", "7.24.0", false},

		{"pkg:cargo/serde@1.0.0", "", "", true}, // not npm
		{"npm/lodash", "", "", true},            // missing pkg: prefix
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, version, err := ParsePURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if version != tt.wantVer {
				t.Errorf("version = %q, want %q", version, tt.wantVer)
			}
		})
	}
}

func TestPURLRoundTrip(t *testing.T) {
	for _, name := range []string{"react", "@types/node", "@my-org/pkg.name"} {
		name2, ver, err := ParsePURL(PURL(name, "1.2.3-beta.1"))
		if err != nil {
			t.Fatalf("ParsePURL(PURL(%q)): %v", name, err)
		}
		if name2 != name || ver != "1.2.3-beta.1" {
			t.Errorf("round trip of %q gave %q@%q", name, name2, ver)
		}
	}
}

func TestIsPURL(t *testing.T) {
	if !IsPURL("pkg:npm/react") {
		t.Error("expected pkg:npm/react to be a purl")
	}
	if IsPURL("react@18.0.0") {
		t.Error("expected react@18.0.0 not to be a purl")
	}
}
