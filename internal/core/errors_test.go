package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{errors.New("x"), KindUnknown},
		{&NotFoundError{Client: "npm", Name: "a"}, KindNotFound},
		{&ToolNotInstalledError{Tool: "lerna"}, KindToolNotInstalled},
		{&NotSupportedError{Op: "changed", Reason: "no tool"}, KindNotSupported},
		{&InvalidVersionError{Version: "x"}, KindInvalidVersion},
		{&InvalidPatternError{Pattern: "*"}, KindInvalidPattern},
		{&CorruptManifestError{Path: "p", Err: errors.New("bad")}, KindCorruptManifest},
		{&UnsupportedClientError{Client: "bun"}, KindUnsupportedClient},
		{&UsageError{Msg: "bad flag"}, KindUsage},
		{fmt.Errorf("wrapped: %w", ErrNothingConfigured), KindNothingConfigured},
		{fmt.Errorf("wrapped: %w", &NotSupportedError{Op: "x"}), KindNotSupported},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestToolNotInstalledErrorUnwrap(t *testing.T) {
	cause := errors.New("exec: not found")
	err := &ToolNotInstalledError{Tool: "pnpm", Err: cause}
	if !errors.Is(err, ErrToolNotInstalled) || !errors.Is(err, cause) {
		t.Errorf("expected both sentinel and cause, got %v", err)
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := &NotFoundError{Client: "npm", Name: "react", Version: "99.0.0"}
	if !strings.Contains(err.Error(), "99.0.0") {
		t.Errorf("message missing version: %s", err)
	}
}

func TestInvalidVersionErrorMessage(t *testing.T) {
	err := &InvalidVersionError{Package: "a", Version: "x.y"}
	if got := err.Error(); got != `package a's version "x.y" is invalid` {
		t.Errorf("unexpected message %q", got)
	}
}
