package state

import (
	"maps"
	"strconv"
	"time"
)

// HumanLayout matches the C library's %c rendering in the POSIX locale.
const HumanLayout = time.ANSIC

// Status is the persisted record of the last cycle.
type Status struct {
	LastBuild        string            `yaml:"last_build,omitempty"` // unix seconds
	LastBuildCommit  string            `yaml:"last_build_commit,omitempty"`
	LastBuildHuman   string            `yaml:"last_build_human,omitempty"`
	SubmoduleCommits map[string]string `yaml:"submodule_commits"`
}

// Built returns the record written after a build at the given time.
func Built(commit string, submodules map[string]string, at time.Time) Status {
	return Status{
		LastBuild:        strconv.FormatInt(at.Unix(), 10),
		LastBuildCommit:  commit,
		LastBuildHuman:   at.Local().Format(HumanLayout),
		SubmoduleCommits: copySubmodules(submodules),
	}
}

// Observed returns the record for a cycle that found nothing to build: the
// upstream state is replaced while the build timestamps of s carry over.
func (s Status) Observed(commit string, submodules map[string]string) Status {
	return Status{
		LastBuild:        s.LastBuild,
		LastBuildCommit:  commit,
		LastBuildHuman:   s.LastBuildHuman,
		SubmoduleCommits: copySubmodules(submodules),
	}
}

// LastBuildTime parses LastBuild. A missing or unparsable value reports false.
func (s Status) LastBuildTime() (time.Time, bool) {
	if s.LastBuild == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(s.LastBuild, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// IsZero reports whether nothing was ever recorded.
func (s Status) IsZero() bool {
	return s.LastBuild == "" && s.LastBuildCommit == "" && len(s.SubmoduleCommits) == 0
}

func copySubmodules(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	maps.Copy(out, in)
	return out
}
