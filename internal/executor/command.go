// Package executor runs external commands described by immutable Command
// values and classifies their failures by stage.
package executor

import (
	"maps"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/mscherer/site-builder/internal/errors"
)

// Command describes one external command invocation. Values are immutable:
// the With* methods return modified copies.
type Command struct {
	Stage errors.Stage
	Dir   string
	Env   map[string]string // overlay on top of the process environment
	Args  []string
}

// New returns a Command for stage run in dir.
func New(stage errors.Stage, dir string, args ...string) Command {
	return Command{Stage: stage, Dir: dir, Args: slices.Clone(args)}
}

// WithEnv returns a copy of c whose overlay additionally contains env.
// Keys in env replace existing overlay keys.
func (c Command) WithEnv(env map[string]string) Command {
	merged := make(map[string]string, len(c.Env)+len(env))
	maps.Copy(merged, c.Env)
	maps.Copy(merged, env)
	c.Env = merged
	c.Args = slices.Clone(c.Args)
	return c
}

// String renders the argument vector for log lines.
func (c Command) String() string { return strings.Join(c.Args, " ") }

// Environ merges the overlay onto base (KEY=VALUE entries). Overlay keys
// replace base entries; new keys are appended in sorted order.
func (c Command) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(c.Env))
	seen := make(map[string]bool, len(c.Env))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if v, ok := c.Env[k]; ok {
			if !seen[k] {
				out = append(out, k+"="+v)
				seen[k] = true
			}
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

// ProcessEnviron returns Environ over the current process environment.
func (c Command) ProcessEnviron() []string { return c.Environ(os.Environ()) }
