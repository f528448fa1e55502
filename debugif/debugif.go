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

// Package debugif defines the debug ABI (§4.K): the tagged-union event
// system, subscription types, and the CPU/memory/system descriptors an
// emulator core exposes to the debugger runtime. It is deliberately a thin,
// dependency-free package of types and interfaces — the core itself
// (dynamic loading, the emulator-host callback surface) is an external
// collaborator per the purpose and scope of this system, not something
// this package implements.
package debugif

// APIVersion is the current debug ABI version. A frontend fills its own
// FrontendAPIVersion when calling SetDebugger; a core reports its
// CoreAPIVersion in the Interface it hands back.
const APIVersion = 1

// CPUType tags the instruction-set architecture of a CPU descriptor. It
// indexes the architecture registry (see the arch package).
type CPUType int

const (
	CPUUnknown CPUType = iota
	CPUZ80
	CPUMOS6502
	CPU65816
	CPUR3000A
	CPULR35902
)

func (t CPUType) String() string {
	switch t {
	case CPUZ80:
		return "z80"
	case CPUMOS6502:
		return "6502"
	case CPU65816:
		return "65816"
	case CPUR3000A:
		return "r3000a"
	case CPULR35902:
		return "lr35902"
	default:
		return "unknown"
	}
}

// MemOp is a bitmask of memory/IO operation kinds, used both by breakpoint
// records (§3 Breakpoint record) and memory subscriptions.
type MemOp int

const (
	OpNone MemOp = 0
	OpRead MemOp = 1 << iota
	OpWrite
	OpExec
)

func (m MemOp) String() string {
	s := ""
	if m&OpExec != 0 {
		s += "X"
	}
	if m&OpRead != 0 {
		s += "R"
	}
	if m&OpWrite != 0 {
		s += "W"
	}
	if s == "" {
		return "-"
	}
	return s
}

// StepMode selects how an execution subscription advances (§3 Subscription).
type StepMode int

const (
	StepPlain StepMode = iota
	StepSkipInterrupt
	StepCurrentSubroutine
	StepOut
)

// MemoryMap describes one range of a Memory region's address space,
// optionally aliasing into another (banked or mirrored) region.
type MemoryMap struct {
	Base, End uint64 // inclusive range [Base, End]
	Bank      int    // -1 if not bank-tagged
	Source    Memory // nil if this range has no backing source
	SourceBase uint64
}

// Memory is the external collaborator exposing a byte-addressable span of
// emulator memory (§3 Memory region).
type Memory interface {
	ID() string
	Description() string
	Base() uint64
	Size() uint64
	Peek(addr uint64, sideEffects bool) uint8
	Poke(addr uint64, value uint8)

	// MemoryMap returns the ordered, non-overlapping ranges backing this
	// region, or nil if the region has no map (it is itself primary
	// storage).
	MemoryMap() []MemoryMap

	// GetBankAddress synthesizes a MemoryMap entry as if bank were
	// selected at addr; used by symbols.ResolveBank. Returns false if the
	// region does not support banked addressing.
	GetBankAddress(addr uint64, bank int) (MemoryMap, bool)
}

// CPU is the external collaborator exposing one processor of a System
// (§3 CPU).
type CPU interface {
	ID() string
	Description() string
	Type() CPUType
	IsPrimary() bool
	MemoryRegion() Memory
	GetRegister(idx int) uint64
	SetRegister(idx int, value uint64)

	// DelaySlot reports the branch-delay-slot count for pipelined
	// architectures (0 for typical CPUs, 1 for MIPS-style). A CPU that
	// does not model delay slots may return 0 unconditionally.
	DelaySlot() int
}

// MiscBreakpoint is a platform-specific tagged event source distinct from
// CPU execution/memory watchpoints (e.g. PSX "GP0").
type MiscBreakpoint struct {
	Name string
}

// System is the external collaborator describing a loaded emulator system
// (§3 System).
type System interface {
	Description() string
	CPUs() []CPU
	MemoryRegions() []Memory
	MiscBreakpoints() []MiscBreakpoint
	PrimaryCPU() CPU
}

// SubscriptionKind tags the variant of a Subscription (§3 Subscription).
type SubscriptionKind int

const (
	SubExecution SubscriptionKind = iota
	SubMemory
	SubRegister
	SubIO
	SubInterrupt
	SubMisc
)

// Subscription is a core-thread-visible request to report one event class.
type Subscription struct {
	Kind SubscriptionKind

	CPU    CPU     // Execution, Register, IO, Interrupt
	Memory Memory  // Memory
	Misc   *MiscBreakpoint

	Begin, End uint64 // address range; broad = [0,MAX], point = [addr,addr]
	Op         MemOp  // Memory subscriptions
	Step       StepMode
}

// SubscriptionID identifies a live subscription. Non-negative on success,
// negative on failure. Never reused until Unsubscribe.
type SubscriptionID int64

// EventType tags the variant of an Event (§3 Event, §6 debug ABI event union).
type EventType int

const (
	EventTick EventType = iota
	EventExecution
	EventInterrupt
	EventMemory
	EventRegister
	EventIO
	EventMisc
)

// Event is the tagged variant of a debug ABI callback invocation.
type Event struct {
	Type    EventType
	CanHalt bool

	CPU     CPU
	Address uint64

	// Interrupt
	Kind       int
	ReturnAddr uint64
	VectorAddr uint64

	// Memory / IO
	Memory Memory
	Op     MemOp
	Value  uint64

	// Register
	Reg      int
	NewValue uint64

	// Misc
	Misc     *MiscBreakpoint
	MiscArgs [4]uint64
	MiscData []byte
}

// Handler is the frontend-supplied event callback. Returning true for a
// CanHalt event requests a clean core halt; for a !CanHalt event the
// return value is ignored (the handler must itself block the calling
// thread if it wants to halt, per §3 Event / §5 Suspension points).
type Handler func(sub SubscriptionID, event Event) bool

// Core is the subset of the emulator-host ABI (§4.J) this system depends
// on directly for subscription management; the rest of the callback
// surface (video/audio/input/save-state) lives in corehost as it is
// implemented by this backend, not by the core.
type Core interface {
	System() System
	Subscribe(sub Subscription, handler Handler) SubscriptionID
	Unsubscribe(id SubscriptionID)
}
