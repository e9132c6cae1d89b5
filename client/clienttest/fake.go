// Package clienttest provides a scripted client.Runner for tests.
package clienttest

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"

	"github.com/git-pkgs/versync/client"
)

type response struct {
	stdout string
	err    error
}

// FakeRunner answers commands from a table keyed by the full command line
// ("npm info react version --json"). Unknown commands fail as if the
// executable were missing.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]response
	handlers  []handler
	calls     []Call
}

// HandlerFunc computes a response from the invocation.
type HandlerFunc func(dir string, args []string) (string, error)

type handler struct {
	prefix string
	fn     HandlerFunc
}

// Call records one invocation.
type Call struct {
	Dir  string
	Line string
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string]response)}
}

// On registers stdout for a command line.
func (f *FakeRunner) On(line, stdout string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[line] = response{stdout: stdout}
	return f
}

// Fail makes a command line exit with code 1 and the given stderr.
func (f *FakeRunner) Fail(line, stderr string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[line] = response{err: &client.CommandError{
		Name:     line,
		ExitCode: 1,
		Stderr:   stderr,
		Err:      errors.New("exit status 1"),
	}}
	return f
}

// Handle routes every command line starting with prefix to fn. Exact
// entries registered with On, Fail or FailWith take precedence.
func (f *FakeRunner) Handle(prefix string, fn HandlerFunc) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler{prefix: prefix, fn: fn})
	return f
}

// FailWith makes a command line return err verbatim.
func (f *FakeRunner) FailWith(line string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[line] = response{err: err}
	return f
}

func (f *FakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line := client.CommandLine(name, args...)

	f.mu.Lock()
	f.calls = append(f.calls, Call{Dir: dir, Line: line})
	resp, ok := f.responses[line]
	var fn HandlerFunc
	if !ok {
		for _, h := range f.handlers {
			if strings.HasPrefix(line, h.prefix) {
				fn = h.fn
				break
			}
		}
	}
	f.mu.Unlock()

	if ok {
		return resp.stdout, resp.err
	}
	if fn != nil {
		return fn(dir, args)
	}
	return "", &client.CommandError{Name: name, Args: args, ExitCode: -1, Err: exec.ErrNotFound}
}

// Calls returns every command line run so far, in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Called reports whether line was run at least once.
func (f *FakeRunner) Called(line string) bool {
	for _, c := range f.Calls() {
		if c.Line == line {
			return true
		}
	}
	return false
}
