package yarn

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/git-pkgs/versync/client/clienttest"
	"github.com/git-pkgs/versync/internal/core"
)

func TestLatest(t *testing.T) {
	runner := clienttest.NewFakeRunner().
		On("yarn info react version --json", `{"type":"inspect","data":"18.3.1"}`+"\n")

	got, err := New(core.Options{Runner: runner}).Latest(context.Background(), "react")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got != "18.3.1" {
		t.Errorf("Latest = %q", got)
	}
}

func TestVersionsSkipsWarnings(t *testing.T) {
	out := `{"type":"warning","data":"package.json: No license field"}
{"type":"inspect","data":["1.0.0","1.1.0"]}
`
	runner := clienttest.NewFakeRunner().On("yarn info left-pad versions --json", out)

	got, err := New(core.Options{Runner: runner}).Versions(context.Background(), "left-pad")
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if want := []string{"1.0.0", "1.1.0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Versions = %v, want %v", got, want)
	}
}

func TestErrorEnvelope(t *testing.T) {
	runner := clienttest.NewFakeRunner().
		On("yarn info ghost version --json", `{"type":"error","data":"Received invalid response from npm."}`)

	_, err := New(core.Options{Runner: runner}).Latest(context.Background(), "ghost")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNotFoundExit(t *testing.T) {
	runner := clienttest.NewFakeRunner().
		Fail("yarn info ghost versions --json", "error Received invalid response from npm.")

	_, err := New(core.Options{Runner: runner}).Versions(context.Background(), "ghost")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
