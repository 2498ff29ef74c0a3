package helpers

import (
	"context"
	"strings"
	"sync"

	"github.com/mscherer/site-builder/internal/errors"
	"github.com/mscherer/site-builder/internal/executor"
)

type fakeRule struct {
	prefix string
	output string
	fail   bool
	hook   func(executor.Command)
}

// FakeRunner records commands instead of executing them. Rules are matched
// against the joined argument vector by prefix; the first match wins and
// unmatched commands succeed with no output.
type FakeRunner struct {
	mu    sync.Mutex
	calls []executor.Command
	rules []fakeRule
}

// NewFakeRunner creates a runner where every command succeeds.
func NewFakeRunner() *FakeRunner { return &FakeRunner{} }

// Succeed makes commands starting with prefix print output.
func (f *FakeRunner) Succeed(prefix, output string) *FakeRunner {
	return f.add(fakeRule{prefix: prefix, output: output})
}

// Fail makes commands starting with prefix exit non-zero after printing output.
func (f *FakeRunner) Fail(prefix, output string) *FakeRunner {
	return f.add(fakeRule{prefix: prefix, output: output, fail: true})
}

// Hook runs fn (e.g. to create build output) when a command starting with prefix runs.
func (f *FakeRunner) Hook(prefix string, fn func(executor.Command)) *FakeRunner {
	return f.add(fakeRule{prefix: prefix, hook: fn})
}

func (f *FakeRunner) add(r fakeRule) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, r)
	return f
}

func (f *FakeRunner) Run(_ context.Context, cmd executor.Command) (executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	var rule *fakeRule
	line := cmd.String()
	for i := range f.rules {
		if strings.HasPrefix(line, f.rules[i].prefix) {
			rule = &f.rules[i]
			break
		}
	}
	f.mu.Unlock()

	if rule == nil {
		return executor.Result{}, nil
	}
	if rule.hook != nil {
		rule.hook(cmd)
	}
	if rule.fail {
		return executor.Result{Output: rule.output}, &errors.StageFailure{
			Stage:  cmd.Stage,
			Output: rule.output,
			Cause:  errors.New(errors.CategoryInternal, errors.SeverityFatal, "exit status 1"),
		}
	}
	return executor.Result{Output: rule.output}, nil
}

// Calls returns the commands run so far.
func (f *FakeRunner) Calls() []executor.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executor.Command(nil), f.calls...)
}

// Commands returns the joined argument vectors run so far.
func (f *FakeRunner) Commands() []string {
	calls := f.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.String())
	}
	return out
}

// Ran reports whether any command starting with prefix was run.
func (f *FakeRunner) Ran(prefix string) bool {
	for _, c := range f.Commands() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// Stages returns the stage of every command run, in order.
func (f *FakeRunner) Stages() []errors.Stage {
	calls := f.Calls()
	out := make([]errors.Stage, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Stage)
	}
	return out
}
