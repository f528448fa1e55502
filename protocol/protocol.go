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

// Package protocol implements the command protocol (§4.I): a line tokeniser,
// verb dispatcher, and JSON response writer, served over a one-shot-per-
// connection TCP server and a matching client.
package protocol

import (
	"io"
	"sync"

	"github.com/arret/arret/breakpoint"
	"github.com/arret/arret/capture"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
	"github.com/arret/arret/memsearch"
	"github.com/arret/arret/rundbg"
	"github.com/arret/arret/symbols"
	"github.com/arret/arret/trace"
)

const logTag = "protocol"

// HostFrame describes the current geometry and identity a frontend
// (corehost) exposes to the "info" verb.
type HostFrame struct {
	CoreName    string
	CoreVersion string
	Width       uint32
	Height      uint32
	FPS         float64
	SampleRate  float64
}

// Host is the emulator-host collaborator (§4.J) that the command protocol
// needs beyond debugif.Core: frame geometry, content description, save
// states, button overrides, and the PNG-able frame buffer. Splitting this
// out (rather than importing corehost directly) keeps protocol decoupled
// from corehost's own concrete type, the same seam rundbg.CoreRunner uses
// to stay free of a corehost import.
type Host interface {
	Info() HostFrame
	ContentInfo() (string, bool)
	FrameBuffer() (width, height int, pixels []uint32)
	SaveState(slot int) error
	LoadState(slot int) error
	SetButtonOverride(id int, pressed bool)
	ClearButtonOverride(id int)
	SetManualInput(on bool)
	Reset()

	// ContentPathBase returns the loaded content path with its extension
	// stripped, the base "bp save"/"bp load"/"sym" default sibling-file
	// path is built from. Returns false if no content is loaded.
	ContentPathBase() (string, bool)
}

// FrontendHandler lets an embedding frontend claim verbs the base protocol
// does not recognise (§4.I "may register a sub-dispatcher"). It returns
// false if it did not recognise cmd, in which case the dispatcher reports
// "unknown command".
type FrontendHandler func(cmd, arg1, arg2, rest, line string, w io.Writer) bool

// Dispatcher owns every collaborator the command protocol dispatches
// against and serializes command processing behind one mutex, matching the
// "multiple connections serialized (one command at a time)" requirement of
// §4.I: rather than port the original's poll()-from-a-single-thread
// integration verbatim, each TCP connection is handled on its own goroutine
// (idiomatic Go) and Process itself provides the serialization point.
type Dispatcher struct {
	mu sync.Mutex

	core    debugif.Core
	runtime *rundbg.Engine
	bp      *breakpoint.Engine
	tracer  *trace.Engine
	syms    *symbols.Store
	host    Host
	logPerm logger.Permission

	searchMu     sync.Mutex
	search       *memsearch.Search
	searchRegion string

	frontend FrontendHandler

	capture *capture.Engine

	runningMu sync.Mutex
	running   bool
}

// NewDispatcher creates a dispatcher wired to the given collaborators. host
// may be nil; verbs that need it (info, content, screen, save, load, input,
// manual, reset) report an error instead of panicking.
func NewDispatcher(core debugif.Core, runtime *rundbg.Engine, bp *breakpoint.Engine, tracer *trace.Engine, syms *symbols.Store, host Host, logPerm logger.Permission) *Dispatcher {
	return &Dispatcher{
		core:    core,
		runtime: runtime,
		bp:      bp,
		tracer:  tracer,
		syms:    syms,
		host:    host,
		logPerm: logPerm,
		running: true,
	}
}

// SetFrontend installs a sub-dispatcher for verbs this package does not
// recognise.
func (d *Dispatcher) SetFrontend(fn FrontendHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frontend = fn
}

// SetCapture wires a GPU capture engine into the "capture" verb (§4.G).
// Systems with no GPU capture support (anything but the PSX misc-event
// "GP0" source) simply never call this, and "capture" reports "no debug
// support".
func (d *Dispatcher) SetCapture(c *capture.Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capture = c
}

// Running reports whether the runtime should keep serving commands; it goes
// false once "quit" has been processed.
func (d *Dispatcher) Running() bool {
	d.runningMu.Lock()
	defer d.runningMu.Unlock()
	return d.running
}

func (d *Dispatcher) stop() {
	d.runningMu.Lock()
	d.running = false
	d.runningMu.Unlock()
}

// Process parses one command line and writes its JSON response(s) to w,
// serialized against every other call to Process on this dispatcher.
func (d *Dispatcher) Process(line string, w io.Writer) {
	line = trimTrailing(line)
	if line == "" {
		return
	}

	cmd, arg1, arg2, rest, nargs := tokenize(line)

	d.mu.Lock()
	defer d.mu.Unlock()

	if handler, ok := verbTable[cmd]; ok {
		handler(d, w, arg1, arg2, rest, line, nargs)
		return
	}

	if d.frontend != nil && d.frontend(cmd, arg1, arg2, rest, line, w) {
		return
	}

	errf(w, "unknown command: %s", jsonEscape(cmd))
}

type verbFunc func(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int)

var verbTable = map[string]verbFunc{}

func registerVerb(name string, fn verbFunc) {
	verbTable[name] = fn
}
