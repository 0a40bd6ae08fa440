// Package fileutil holds small filesystem helpers shared by the container
// runtime and analysis pipeline: host/container path pairing, and
// permission-tolerant copy/move/remove used when manipulating read-only
// or intentionally-locked-down tree layers.
package fileutil

import "path/filepath"

// DualPath is a path that exists both on the host and, under a possibly
// different prefix, inside a container/chroot. Add extends both halves by
// the same relative components in lockstep.
type DualPath struct {
	outside, inside string
}

func NewDualPath(outside, inside string) DualPath {
	return DualPath{outside: outside, inside: inside}
}

func (dp DualPath) Outside() string { return dp.outside }
func (dp DualPath) Inside() string  { return dp.inside }

func (dp DualPath) Add(components ...string) DualPath {
	return NewDualPath(
		filepath.Join(append([]string{dp.outside}, components...)...),
		filepath.Join(append([]string{dp.inside}, components...)...))
}
