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

package arch

import "github.com/arret/arret/debugif"

// RegLayoutEntry describes one register for UI presentation purposes.
type RegLayoutEntry struct {
	Name  string
	Index int
	Bits  int
}

// TraceReg describes one register the trace engine formats into its
// register column (§4.E), everything except PC.
type TraceReg struct {
	Name  string
	Index int
	Bits  int
}

// DisassembleFunc decodes bytes starting at base into a sequence of
// Instructions (§4.A). Implementations are pure: no global state, no
// allocation beyond the returned slice, stable output for a given input.
type DisassembleFunc func(bytes []byte, base uint64) []Instruction

// StackTraceStatus is the terminal outcome of a stack unwind (§4.A.1, §7).
type StackTraceStatus int

const (
	StackOK StackTraceStatus = iota
	StackMaxDepth
	StackScanLimit
	StackInvalidSP
	StackInvalidRA
	StackReadError
)

func (s StackTraceStatus) String() string {
	switch s {
	case StackOK:
		return "OK"
	case StackMaxDepth:
		return "MAX_DEPTH"
	case StackScanLimit:
		return "SCAN_LIMIT"
	case StackInvalidSP:
		return "INVALID_SP"
	case StackInvalidRA:
		return "INVALID_RA"
	case StackReadError:
		return "READ_ERROR"
	default:
		return "UNKNOWN"
	}
}

// UnknownFuncAddr marks a stack frame whose function start could not be
// determined by the prologue scan.
const UnknownFuncAddr = ^uint64(0)

// StackFrame is one entry of a StackTrace.
type StackFrame struct {
	PC, SP   uint64
	FuncAddr uint64 // UnknownFuncAddr if not determined
}

// StackTrace is the result of unwinding a call chain (§4.A.1).
type StackTrace struct {
	Status StackTraceStatus
	Frames []StackFrame
}

// StackTraceFunc unwinds the call stack of cpu using its addressable
// memory region, up to maxDepth frames.
type StackTraceFunc func(cpu debugif.CPU, maxDepth int) StackTrace

// Descriptor is the process-wide immutable table entry for one CPU type
// (§3 Architecture descriptor).
type Descriptor struct {
	Type              debugif.CPUType
	MaxInstructionSize int
	Alignment         int
	Registers         []RegLayoutEntry
	TraceRegisters    []TraceReg
	DelaySlots        int
	Disassemble       DisassembleFunc
	StackTrace        StackTraceFunc // nil if unsupported
	CallingConventions []string
}

// registry is the process-wide immutable table keyed by CPU-type tag.
var registry = map[debugif.CPUType]*Descriptor{}

// Register installs a Descriptor into the process-wide registry. Called
// from each architecture's init().
func Register(d *Descriptor) {
	registry[d.Type] = d
}

// Lookup returns the Descriptor for t, or nil if unsupported.
func Lookup(t debugif.CPUType) *Descriptor {
	return registry[t]
}

// All returns every registered Descriptor, ordered by CPUType for stable
// iteration (used by the registry graph dump and the "cpu" command verb).
func All() []*Descriptor {
	out := make([]*Descriptor, 0, len(registry))
	for _, t := range []debugif.CPUType{
		debugif.CPUZ80, debugif.CPUMOS6502, debugif.CPU65816,
		debugif.CPUR3000A, debugif.CPULR35902,
	} {
		if d, ok := registry[t]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Disassemble looks up the Descriptor for cpuType and disassembles bytes
// starting at base. Returns nil if the CPU type is unsupported.
func Disassemble(bytes []byte, base uint64, cpuType debugif.CPUType) []Instruction {
	d := Lookup(cpuType)
	if d == nil {
		return nil
	}
	return d.Disassemble(bytes, base)
}
