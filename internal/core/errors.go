package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below unwraps to one of these so
// callers can branch with errors.Is.
var (
	// ErrNotFound is returned when a package or version is not found.
	ErrNotFound = errors.New("not found")

	ErrToolNotInstalled  = errors.New("tool not installed")
	ErrNotSupported      = errors.New("not supported")
	ErrInvalidVersion    = errors.New("invalid version")
	ErrInvalidPattern    = errors.New("invalid package name pattern")
	ErrCorruptManifest   = errors.New("corrupt manifest")
	ErrUnsupportedClient = errors.New("unsupported package manager client")
	ErrUsage             = errors.New("usage error")

	// ErrNothingConfigured is returned by dependency sync when neither
	// package names nor versions were supplied.
	ErrNothingConfigured = errors.New("nothing configured")
)

// Kind enumerates the error categories callers may need to branch on.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindToolNotInstalled
	KindNotSupported
	KindInvalidVersion
	KindInvalidPattern
	KindCorruptManifest
	KindUnsupportedClient
	KindUsage
	KindNothingConfigured
)

var kindSentinels = []struct {
	kind Kind
	err  error
}{
	{KindNotFound, ErrNotFound},
	{KindToolNotInstalled, ErrToolNotInstalled},
	{KindNotSupported, ErrNotSupported},
	{KindInvalidVersion, ErrInvalidVersion},
	{KindInvalidPattern, ErrInvalidPattern},
	{KindCorruptManifest, ErrCorruptManifest},
	{KindUnsupportedClient, ErrUnsupportedClient},
	{KindUsage, ErrUsage},
	{KindNothingConfigured, ErrNothingConfigured},
}

// KindOf classifies err. Wrapped errors are unwrapped.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindUnknown
}

// NotFoundError wraps ErrNotFound with additional context.
type NotFoundError struct {
	Client  string
	Name    string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s: package %s version %s not found", e.Client, e.Name, e.Version)
	}
	return fmt.Sprintf("%s: package %s not found", e.Client, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ToolNotInstalledError is returned when a detected workspace tool or
// package manager cannot be invoked.
type ToolNotInstalledError struct {
	Tool string
	Err  error
}

func (e *ToolNotInstalledError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s is not installed or not invokable: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s is not installed or not invokable", e.Tool)
}

func (e *ToolNotInstalledError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolNotInstalled}
	}
	return []error{ErrToolNotInstalled, e.Err}
}

// NotSupportedError marks an operation this repository cannot serve, so the
// caller can substitute a fallback.
type NotSupportedError struct {
	Op     string
	Reason string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s not supported: %s", e.Op, e.Reason)
}

func (e *NotSupportedError) Unwrap() error {
	return ErrNotSupported
}

// InvalidVersionError is returned when a version cannot be parsed or
// incremented.
type InvalidVersionError struct {
	Package string
	Version string
	Err     error
}

func (e *InvalidVersionError) Error() string {
	msg := fmt.Sprintf("version %q", e.Version)
	if e.Package != "" {
		msg = fmt.Sprintf("package %s's version %q", e.Package, e.Version)
	}
	if e.Err != nil {
		return msg + " is invalid: " + e.Err.Error()
	}
	return msg + " is invalid"
}

func (e *InvalidVersionError) Unwrap() error {
	return ErrInvalidVersion
}

// InvalidPatternError is returned for empty or wildcard-only name patterns.
type InvalidPatternError struct {
	Pattern string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid package name pattern %q", e.Pattern)
}

func (e *InvalidPatternError) Unwrap() error {
	return ErrInvalidPattern
}

// CorruptManifestError is returned when a package.json is missing or
// cannot be parsed.
type CorruptManifestError struct {
	Path string
	Err  error
}

func (e *CorruptManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *CorruptManifestError) Unwrap() []error {
	return []error{ErrCorruptManifest, e.Err}
}

// UnsupportedClientError is returned for an unknown package manager identity.
type UnsupportedClientError struct {
	Client string
}

func (e *UnsupportedClientError) Error() string {
	return fmt.Sprintf("package manager %q is not supported (supported: %s)",
		e.Client, strings.Join(SupportedClients(), ", "))
}

func (e *UnsupportedClientError) Unwrap() error {
	return ErrUnsupportedClient
}

// UsageError reports invalid caller input such as an unknown option value.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

func (e *UsageError) Unwrap() error {
	return ErrUsage
}
