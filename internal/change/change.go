// Package change decides whether a cycle rebuilds, from the upstream snapshot
// and the persisted status.
package change

import (
	"sort"
	"strings"
	"time"

	"github.com/mscherer/site-builder/internal/git"
	"github.com/mscherer/site-builder/internal/state"
)

// Reason names one trigger for a rebuild.
type Reason string

const (
	ReasonForced    Reason = "forced"
	ReasonInterval  Reason = "interval"
	ReasonCommit    Reason = "commit"
	ReasonSubmodule Reason = "submodule"
)

// Input gathers everything the decision depends on.
type Input struct {
	Prior    state.Status
	Current  git.Snapshot
	Force    bool
	Interval *time.Duration // nil: no forced periodic rebuild
	Now      time.Time
}

// Decision is the outcome of Decide.
type Decision struct {
	Rebuild           bool
	Reasons           []Reason
	ChangedSubmodules []string // sorted; new or moved submodules
}

// String renders the reasons for log lines, or "up-to-date".
func (d Decision) String() string {
	if !d.Rebuild {
		return "up-to-date"
	}
	parts := make([]string, len(d.Reasons))
	for i, r := range d.Reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// Decide rebuilds when any trigger holds: force, the interval elapsed since
// the last build, a new upstream commit, or a submodule whose commit differs
// from (or is missing in) the prior record. Submodules that disappeared do
// not trigger a rebuild on their own.
func Decide(in Input) Decision {
	var d Decision

	if in.Force {
		d.Reasons = append(d.Reasons, ReasonForced)
	}

	if in.Interval != nil {
		last, ok := in.Prior.LastBuildTime()
		if !ok {
			last = time.Unix(0, 0)
		}
		if in.Now.Sub(last) > *in.Interval {
			d.Reasons = append(d.Reasons, ReasonInterval)
		}
	}

	if in.Current.Commit != in.Prior.LastBuildCommit {
		d.Reasons = append(d.Reasons, ReasonCommit)
	}

	for path, commit := range in.Current.Submodules {
		if prev, ok := in.Prior.SubmoduleCommits[path]; !ok || prev != commit {
			d.ChangedSubmodules = append(d.ChangedSubmodules, path)
		}
	}
	if len(d.ChangedSubmodules) > 0 {
		sort.Strings(d.ChangedSubmodules)
		d.Reasons = append(d.Reasons, ReasonSubmodule)
	}

	d.Rebuild = len(d.Reasons) > 0
	return d
}
