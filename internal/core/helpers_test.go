package core

import (
	"context"
	"errors"
	"testing"

	"github.com/git-pkgs/versync/client"
)

type stubRegistry struct {
	latest   map[string]string
	versions map[string][]string
	fail     map[string]error
}

func (s *stubRegistry) Client() string { return "stub" }

func (s *stubRegistry) Latest(ctx context.Context, name string) (string, error) {
	if err := s.fail[name]; err != nil {
		return "", err
	}
	v, ok := s.latest[name]
	if !ok {
		return "", &NotFoundError{Client: "stub", Name: name}
	}
	return v, nil
}

func (s *stubRegistry) Versions(ctx context.Context, name string) ([]string, error) {
	if err := s.fail[name]; err != nil {
		return nil, err
	}
	v, ok := s.versions[name]
	if !ok {
		return nil, &NotFoundError{Client: "stub", Name: name}
	}
	return v, nil
}

func (s *stubRegistry) URLs() client.URLBuilder {
	return &client.NPMURLs{BaseURL: "https://registry.example"}
}

func newStub() *stubRegistry {
	return &stubRegistry{
		latest: map[string]string{"a": "1.0.0", "b": "2.0.0-beta.1"},
		versions: map[string][]string{
			"a": {"0.9.0", "1.0.0", "1.1.0-rc.0"},
			"b": {"2.0.0-alpha.0", "2.0.0-beta.1"},
		},
		fail: map[string]error{"boom": errors.New("network down")},
	}
}

func TestPickVersion(t *testing.T) {
	reg := newStub()
	tests := []struct {
		name string
		pick PickStrategy
		want string
	}{
		{"a", PickLatest, "1.0.0"},
		{"a", PickMax, "1.1.0-rc.0"},
		{"a", PickMaxStable, "1.0.0"},
		{"b", PickMaxStable, "2.0.0-beta.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+string(tt.pick), func(t *testing.T) {
			got, err := PickVersion(context.Background(), reg, tt.name, tt.pick)
			if err != nil {
				t.Fatalf("PickVersion: %v", err)
			}
			if got != tt.want {
				t.Errorf("PickVersion = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := PickVersion(context.Background(), reg, "missing", PickMax); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHasVersion(t *testing.T) {
	reg := newStub()
	ctx := context.Background()

	if ok, err := HasVersion(ctx, reg, "a", "1.0.0"); err != nil || !ok {
		t.Errorf("HasVersion(a, 1.0.0) = %v, %v", ok, err)
	}
	if ok, err := HasVersion(ctx, reg, "a", "3.0.0"); err != nil || ok {
		t.Errorf("HasVersion(a, 3.0.0) = %v, %v", ok, err)
	}
	if ok, err := HasVersion(ctx, reg, "missing", "1.0.0"); err != nil || ok {
		t.Errorf("HasVersion on unknown package = %v, %v", ok, err)
	}
	if _, err := HasVersion(ctx, reg, "boom", "1.0.0"); err == nil {
		t.Error("expected error to propagate")
	}
}

func TestBulkPickVersions(t *testing.T) {
	reg := newStub()
	got, failed := BulkPickVersions(context.Background(), reg, []string{"a", "b", "missing", "boom"}, PickMaxStable, 2)

	if got["a"] != "1.0.0" || got["b"] != "2.0.0-beta.1" {
		t.Errorf("unexpected results: %v", got)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 results, got %d", len(got))
	}
	if !errors.Is(failed["missing"], ErrNotFound) {
		t.Errorf("missing: %v", failed["missing"])
	}
	if failed["boom"] == nil {
		t.Error("expected boom to fail")
	}
}

func TestBulkPickVersionsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, _ := BulkPickVersions(ctx, newStub(), []string{"a"}, PickLatest, 1)
	if len(got) > 1 {
		t.Errorf("unexpected results after cancel: %v", got)
	}
}
