// Package builder holds the closed table of supported site generators and
// dispatches the install and build stages for one of them.
package builder

import (
	"maps"
	"path/filepath"
	"slices"

	"github.com/mscherer/site-builder/internal/errors"
)

// Kind names a supported site generator.
type Kind string

const (
	KindMiddleman   Kind = "middleman"
	KindJekyll      Kind = "jekyll"
	KindAsciiBinder Kind = "ascii_binder"
	KindPlanet      Kind = "planet"
	KindNikola      Kind = "nikola"
)

// Profile describes how a generator is built and deployed.
type Profile struct {
	Kind          Kind
	Env           map[string]string
	BuildCommand  []string
	OutputSubdir  string
	DeployCommand []string // nil: no builder-specific deployment
}

// HasDeploy reports whether the builder can publish without rsync.
func (p Profile) HasDeploy() bool { return len(p.DeployCommand) > 0 }

// OutputDir returns the generator's output directory inside checkout.
func (p Profile) OutputDir(checkout string) string {
	return filepath.Join(checkout, filepath.FromSlash(p.OutputSubdir))
}

func (p Profile) clone() Profile {
	p.Env = maps.Clone(p.Env)
	p.BuildCommand = slices.Clone(p.BuildCommand)
	p.DeployCommand = slices.Clone(p.DeployCommand)
	return p
}

var profiles = map[Kind]Profile{
	KindMiddleman: {
		Kind:          KindMiddleman,
		BuildCommand:  []string{"bundle", "exec", "middleman", "build", "--verbose"},
		OutputSubdir:  "build",
		DeployCommand: []string{"bundle", "exec", "middleman", "deploy", "--no-build-before"},
	},
	// Incremental mode produced stale indexes, so full builds only.
	KindJekyll: {
		Kind:         KindJekyll,
		Env:          map[string]string{"JEKYLL_ENV": "production"},
		BuildCommand: []string{"bundle", "exec", "jekyll", "build", "--verbose", "--trace"},
		OutputSubdir: "_site",
	},
	KindAsciiBinder: {
		Kind:         KindAsciiBinder,
		BuildCommand: []string{"bundle", "exec", "asciibinder", "package", "--site=main", "--log-level=debug"},
		OutputSubdir: "_package/main",
	},
	KindPlanet: {
		Kind:         KindPlanet,
		BuildCommand: []string{"/srv/builder/planet-venus/planet.py", "-v", "planet.ini"},
		OutputSubdir: "build",
	},
	KindNikola: {
		Kind:         KindNikola,
		BuildCommand: []string{"../.local/bin/nikola", "build"},
		OutputSubdir: "output",
	},
}

// Lookup returns a copy of the profile for kind, or an UnknownBuilder
// configuration error.
func Lookup(kind string) (Profile, error) {
	p, ok := profiles[Kind(kind)]
	if !ok {
		return Profile{}, errors.UnknownBuilder(kind)
	}
	return p.clone(), nil
}

// Kinds lists the supported builders in sorted order.
func Kinds() []Kind {
	return slices.Sorted(maps.Keys(profiles))
}
