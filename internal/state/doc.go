// Package state persists the record of the last observed upstream state of a
// project: the commit built, when, and the commit of every submodule.
//
// The record is a small YAML file rewritten wholesale (temp file + rename)
// after each cycle; entries are never merged with the previous content.
package state
