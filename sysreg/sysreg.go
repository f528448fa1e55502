// This file is part of Arrêt.
//
// Arrêt is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Arrêt is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Arrêt.  If not, see <https://www.gnu.org/licenses/>.

// Package sysreg maps a loaded system's description string (§3 System,
// matching debugif.System.Description) to platform-specific metadata:
// interrupt kind names and optional trace options that go beyond plain
// CPU execution/memory tracing (BIOS call logs, GPU command logs).
package sysreg

import "github.com/arret/arret/debugif"

// TraceSession is a running instance of a TraceOption, owning whatever
// subscriptions it created. Unlike the debug ABI's single-dispatch-function
// module boundary, each subscription here carries its own closure handler,
// so a session needs only to remember how to tear itself down.
type TraceSession interface {
	Stop(core debugif.Core)
}

// TraceOption is one selectable, system-specific trace source (§4.F). Start
// subscribes whatever events the option needs and arranges for log to be
// called with a formatted line on each one; the returned session never
// requests a core halt.
type TraceOption struct {
	Label string
	Start func(core debugif.Core, log func(line string)) (TraceSession, error)
}

// Descriptor is the process-wide immutable metadata for one system
// description string.
type Descriptor struct {
	Description  string
	IntNames     []string // indexed by interrupt kind (Event.Kind)
	TraceOptions []TraceOption
}

// IntName returns the name of interrupt kind idx, or "" if unnamed or out
// of range (some kinds, e.g. PSX bit 8, have no standard name).
func (d *Descriptor) IntName(idx int) string {
	if idx < 0 || idx >= len(d.IntNames) {
		return ""
	}
	return d.IntNames[idx]
}

var registry = map[string]*Descriptor{}

// Register installs d into the process-wide registry, keyed by
// d.Description. Called from each system's init().
func Register(d *Descriptor) {
	registry[d.Description] = d
}

// Lookup returns the Descriptor for description, or nil if unrecognized.
func Lookup(description string) *Descriptor {
	return registry[description]
}
