package main

import (
	"os"

	"github.com/mscherer/site-builder/cmd/builddeploy/commands"
)

func main() {
	os.Exit(commands.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
