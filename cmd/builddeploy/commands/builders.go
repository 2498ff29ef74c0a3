package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/mscherer/site-builder/internal/builder"
)

// BuildersCmd implements the 'builders' command.
type BuildersCmd struct{}

func (b *BuildersCmd) Run(g *Global) error {
	w := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BUILDER\tOUTPUT\tBUILD\tDEPLOY")
	for _, kind := range builder.Kinds() {
		p, err := builder.Lookup(string(kind))
		if err != nil {
			return err
		}
		deploy := "rsync"
		if p.HasDeploy() {
			deploy = strings.Join(p.DeployCommand, " ")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, p.OutputSubdir, strings.Join(p.BuildCommand, " "), deploy)
	}
	return w.Flush()
}
