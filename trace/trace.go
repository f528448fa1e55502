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

// Package trace implements the execution trace engine (§4.E): a fixed-size
// ring buffer of formatted instruction lines fed by broad, all-address
// execution subscriptions on selected CPUs, with optional bank-prefixed,
// SP-indented, register-annotated line formatting and an optional mirrored
// output file.
package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/arret/arret/arch"
	"github.com/arret/arret/arreterr"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
)

// LineWidth caps a single formatted trace line, matching the original's
// fixed-size line buffer.
const LineWidth = 256

// RingCapacity is the number of lines the in-memory ring retains.
const RingCapacity = 1 << 16

const logTag = "trace"

type cpuState struct {
	cpu     debugif.CPU
	id      string
	enabled bool
	subID   debugif.SubscriptionID
	spReg   int // -1 if unknown
	pcReg   int
	mmap    cpuMMap
}

type mmapEntry struct {
	base, end uint64
	bank      int
}

type cpuMMap struct {
	entries   []mmapEntry
	bankWidth int
	addrWidth int
}

// Engine owns one trace session: its ring buffer, per-CPU subscriptions,
// and formatting options.
type Engine struct {
	mu sync.Mutex

	core    debugif.Core
	logPerm logger.Permission

	ring       []string
	head       uint64
	readPos    uint64
	totalLines uint64

	active    bool
	registers bool
	indent    bool

	file     io.WriteCloser
	filePath string

	cpus        []cpuState
	subToCPU    map[debugif.SubscriptionID]int
	cpuSettings map[string]bool

	// skipFunc, when set, reports the address the runtime is currently
	// suppressing on cpu (the resume-time skip map, §4.H) so a trace line
	// is not logged for the single re-fired event that resuming from a
	// breakpoint or step otherwise produces.
	skipFunc func(cpu debugif.CPU) (uint64, bool)
}

// NewEngine creates an idle trace engine bound to core.
func NewEngine(core debugif.Core, logPerm logger.Permission) *Engine {
	return &Engine{
		core:        core,
		logPerm:     logPerm,
		ring:        make([]string, RingCapacity),
		subToCPU:    map[debugif.SubscriptionID]int{},
		cpuSettings: map[string]bool{},
	}
}

func regIndex(cpuType debugif.CPUType, name string) int {
	d := arch.Lookup(cpuType)
	if d == nil {
		return -1
	}
	for _, r := range d.Registers {
		if r.Name == name {
			return r.Index
		}
	}
	return -1
}

func buildMMap(cpu debugif.CPU) cpuMMap {
	cm := cpuMMap{addrWidth: 4}
	mem := cpu.MemoryRegion()
	if mem == nil {
		return cm
	}
	if mem.Base()+mem.Size() > 0x10000 {
		cm.addrWidth = 8
	}

	maxBank := -1
	for _, m := range mem.MemoryMap() {
		cm.entries = append(cm.entries, mmapEntry{base: m.Base, end: m.End, bank: m.Bank})
		if m.Bank > maxBank {
			maxBank = m.Bank
		}
	}
	if maxBank >= 0 {
		cm.bankWidth = 1
		for v := maxBank; v >= 10; v /= 10 {
			cm.bankWidth++
		}
	}
	return cm
}

func (cm cpuMMap) bankFor(addr uint64) int {
	for _, e := range cm.entries {
		if addr >= e.base && addr <= e.end {
			return e.bank
		}
	}
	return -1
}

func (e *Engine) populateCPUs() {
	e.cpus = nil
	sys := e.core.System()
	primary := sys.PrimaryCPU()
	for _, cpu := range sys.CPUs() {
		id := cpu.ID()
		enabled, ok := e.cpuSettings[id]
		if !ok {
			enabled = cpu == primary
		}
		e.cpus = append(e.cpus, cpuState{
			cpu:     cpu,
			id:      id,
			enabled: enabled,
			subID:   -1,
			spReg:   regIndex(cpu.Type(), "SP"),
			pcReg:   regIndex(cpu.Type(), "PC"),
			mmap:    buildMMap(cpu),
		})
	}
}

func (e *Engine) syncSubscriptionsLocked() {
	for i := range e.cpus {
		if e.cpus[i].subID >= 0 {
			e.core.Unsubscribe(e.cpus[i].subID)
			e.cpus[i].subID = -1
		}
	}
	e.subToCPU = map[debugif.SubscriptionID]int{}

	if !e.active {
		return
	}

	for i := range e.cpus {
		if !e.cpus[i].enabled {
			continue
		}
		idx := i
		sub := debugif.Subscription{
			Kind:  debugif.SubExecution,
			CPU:   e.cpus[i].cpu,
			Begin: 0,
			End:   ^uint64(0),
			Step:  debugif.StepPlain,
		}
		sid := e.core.Subscribe(sub, e.handlerFor(idx))
		if sid >= 0 {
			e.cpus[i].subID = sid
			e.subToCPU[sid] = idx
		} else {
			logger.Logf(e.logPerm, logTag, "failed to subscribe for CPU %s", e.cpus[i].id)
		}
	}
}

// Start begins tracing. If path is non-empty, trace lines are also
// appended to that file. Restarts a running session first.
func (e *Engine) Start(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		e.stopLocked()
	}

	e.head, e.readPos, e.totalLines = 0, 0, 0
	for i := range e.ring {
		e.ring[i] = ""
	}

	e.filePath = ""
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		e.file = f
		e.filePath = path
	}

	e.populateCPUs()
	e.active = true
	e.syncSubscriptionsLocked()

	logger.Logf(e.logPerm, logTag, "started (file: %q)", e.filePath)
	return nil
}

// Stop ends the current trace session, unsubscribing every trace
// subscription and closing the mirrored file if one is open.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if !e.active {
		return
	}
	e.active = false
	e.syncSubscriptionsLocked()
	if e.file != nil {
		e.file.Close()
		e.file = nil
	}
	logger.Logf(e.logPerm, logTag, "stopped (%d lines)", e.totalLines)
	e.filePath = ""
}

// Active reports whether a trace session is running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetCPUEnabled enables or disables tracing on cpuID (empty = primary CPU),
// applying immediately if a session is active and persisting the setting
// for future sessions.
func (e *Engine) SetCPUEnabled(cpuID string, enable bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	resolved := cpuID
	if resolved == "" {
		resolved = e.core.System().PrimaryCPU().ID()
	}
	e.cpuSettings[resolved] = enable

	if e.active {
		for i := range e.cpus {
			if e.cpus[i].id == resolved {
				e.cpus[i].enabled = enable
				e.syncSubscriptionsLocked()
				return nil
			}
		}
	}

	for _, cpu := range e.core.System().CPUs() {
		if cpu.ID() == resolved {
			return nil
		}
	}
	return arreterr.New(arreterr.UnknownCPU, resolved)
}

// CPUEnabled reports whether cpuID is enabled for tracing.
func (e *Engine) CPUEnabled(cpuID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	resolved := cpuID
	if resolved == "" {
		resolved = e.core.System().PrimaryCPU().ID()
	}
	for _, tc := range e.cpus {
		if tc.id == resolved {
			return tc.enabled
		}
	}
	if v, ok := e.cpuSettings[resolved]; ok {
		return v
	}
	primary := e.core.System().PrimaryCPU()
	return primary != nil && primary.ID() == resolved
}

// SetSkipFunc installs the runtime's skip-map lookup so trace lines are
// suppressed for the resume-time re-fire the skip map exists to hide.
func (e *Engine) SetSkipFunc(fn func(cpu debugif.CPU) (uint64, bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skipFunc = fn
}

// SetRegisters toggles the "; reg=val ..." suffix.
func (e *Engine) SetRegisters(on bool) { e.mu.Lock(); e.registers = on; e.mu.Unlock() }

// Registers reports the current register-annotation setting.
func (e *Engine) Registers() bool { e.mu.Lock(); defer e.mu.Unlock(); return e.registers }

// SetIndent toggles SP-based indentation.
func (e *Engine) SetIndent(on bool) { e.mu.Lock(); e.indent = on; e.mu.Unlock() }

// Indent reports the current indentation setting.
func (e *Engine) Indent() bool { e.mu.Lock(); defer e.mu.Unlock(); return e.indent }

// FilePath returns the mirrored output file path, or "" if none.
func (e *Engine) FilePath() string { e.mu.Lock(); defer e.mu.Unlock(); return e.filePath }

// TotalLines returns the monotonic count of lines traced this session.
func (e *Engine) TotalLines() uint64 { e.mu.Lock(); defer e.mu.Unlock(); return e.totalLines }

func (e *Engine) ringWrite(line string) {
	idx := e.head % RingCapacity
	e.ring[idx] = line
	e.head++
	e.totalLines++
}

// ReadNew returns up to maxLines lines added since the last call,
// advancing the read cursor. If the ring has wrapped past the last read
// position, the cursor jumps forward to the oldest still-available line.
func (e *Engine) ReadNew(maxLines int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	available := e.head - e.readPos
	if available > RingCapacity {
		e.readPos = e.head - RingCapacity
		available = RingCapacity
	}

	toRead := uint64(maxLines)
	if toRead > available {
		toRead = available
	}

	out := make([]string, 0, toRead)
	for i := uint64(0); i < toRead; i++ {
		idx := (e.readPos + i) % RingCapacity
		out = append(out, e.ring[idx])
	}
	e.readPos += toRead
	return out
}

func stripAtMarkers(s string) string {
	return strings.ReplaceAll(s, "@", "")
}

// handlerFor returns the debugif.Handler for the trace subscription owning
// cpuIdx. It formats and records one trace line per invocation and never
// requests a halt.
func (e *Engine) handlerFor(cpuIdx int) debugif.Handler {
	return func(sub debugif.SubscriptionID, event debugif.Event) bool {
		e.mu.Lock()
		defer e.mu.Unlock()

		if event.Type != debugif.EventExecution {
			return false
		}
		if cpuIdx < 0 || cpuIdx >= len(e.cpus) {
			return false
		}
		tc := e.cpus[cpuIdx]
		cpu := event.CPU
		pc := event.Address

		if e.skipFunc != nil {
			if skipPC, ok := e.skipFunc(cpu); ok && skipPC == pc {
				return false
			}
		}

		mem := cpu.MemoryRegion()
		if mem == nil {
			return false
		}

		d := arch.Lookup(cpu.Type())
		maxInsn := 4
		if d != nil {
			maxInsn = d.MaxInstructionSize
		}
		if maxInsn > 16 {
			maxInsn = 16
		}
		buf := make([]byte, maxInsn)
		for i := range buf {
			buf[i] = mem.Peek(pc+uint64(i), false)
		}

		var text string
		if d != nil {
			insns := d.Disassemble(buf, pc)
			if len(insns) > 0 {
				text = stripAtMarkers(insns[0].Text)
			}
		}
		if text == "" {
			text = "???"
		}

		var b strings.Builder

		if e.indent && tc.spReg >= 0 {
			sp := cpu.GetRegister(tc.spReg)
			depth := int(sp % 64)
			for i := 0; i < depth && b.Len() < LineWidth-2; i++ {
				b.WriteByte(' ')
			}
		}

		if tc.mmap.bankWidth > 0 {
			if bank := tc.mmap.bankFor(pc); bank >= 0 {
				fmt.Fprintf(&b, "%*d:", tc.mmap.bankWidth, bank)
			} else {
				fmt.Fprintf(&b, "%*s ", tc.mmap.bankWidth, "")
			}
		}

		fmt.Fprintf(&b, "%0*X: %s", tc.mmap.addrWidth, pc, text)

		if e.registers && d != nil {
			b.WriteString(" ; ")
			first := true
			for _, tr := range d.TraceRegisters {
				if tr.Index == tc.pcReg {
					continue
				}
				if !first {
					b.WriteByte(' ')
				}
				first = false
				val := cpu.GetRegister(tr.Index)
				digits := tr.Bits / 4
				fmt.Fprintf(&b, "%s=%0*X", tr.Name, digits, val)
			}
		}

		line := b.String()
		if len(line) > LineWidth-1 {
			line = line[:LineWidth-1]
		}

		e.ringWrite(line)
		if e.file != nil {
			fmt.Fprintln(e.file, line)
		}

		return false
	}
}
