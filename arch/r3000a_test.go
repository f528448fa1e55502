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

import (
	"testing"

	"github.com/arret/arret/debugif"
)

func le32(w uint32) []byte {
	return []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

func TestDisassembleR3000A_NOP(t *testing.T) {
	out := DisassembleR3000A(le32(0x00000000), 0x80001000)
	if len(out) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(out))
	}
	want := Instruction{Address: 0x80001000, Length: 4, Text: "NOP"}
	if out[0] != want {
		t.Fatalf("got %+v, want %+v", out[0], want)
	}
}

func TestDisassembleR3000A_JAL(t *testing.T) {
	out := DisassembleR3000A(le32(0x0C100000), 0x80001000)
	if len(out) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(out))
	}
	want := Instruction{Address: 0x80001000, Length: 4, Text: "JAL $@80400000", BreaksFlow: true, HasTarget: true, Target: 0x80400000}
	if out[0] != want {
		t.Fatalf("got %+v, want %+v", out[0], want)
	}
}

func TestDisassembleR3000A_MovePseudoOp(t *testing.T) {
	// OR $4,$0,$5 -> MOVE a0,a1  (op=0 SPECIAL, funct=0x25 OR, rs=0)
	word := uint32(0x25)&0x3F | uint32(4)<<11 | uint32(0)<<21 | uint32(5)<<16
	out := DisassembleR3000A(le32(word), 0x80001004)
	if out[0].Text != "MOVE a0,a1" {
		t.Fatalf("got %q", out[0].Text)
	}
}

func TestDisassembleR3000A_LIPseudoOp(t *testing.T) {
	// ADDIU $4,$0,10 -> LI a0,10 (op=0x09, rs=0)
	word := uint32(0x09)<<26 | uint32(0)<<21 | uint32(4)<<16 | uint32(10)
	out := DisassembleR3000A(le32(word), 0x80001008)
	if out[0].Text != "LI a0,10" {
		t.Fatalf("got %q", out[0].Text)
	}
}

func TestDisassembleR3000A_BPseudoOp(t *testing.T) {
	// BEQ $0,$0,imm -> B target (op=0x04, rs=rt=0)
	word := uint32(0x04)<<26 | uint32(0)<<21 | uint32(0)<<16 | uint32(0xFFFF) // imm=-1 -> back to itself
	out := DisassembleR3000A(le32(word), 0x80001010)
	want := Instruction{Address: 0x80001010, Length: 4, Text: "B $@80001010", BreaksFlow: true, HasTarget: true, Target: 0x80001010}
	if out[0] != want {
		t.Fatalf("got %+v, want %+v", out[0], want)
	}
}

func TestDisassembleR3000A_J(t *testing.T) {
	word := uint32(0x02)<<26 | uint32(0x00100000)
	out := DisassembleR3000A(le32(word), 0x80001000)
	if !out[0].HasTarget || out[0].Target != 0x80400000 || !out[0].BreaksFlow {
		t.Fatalf("got %+v", out[0])
	}
}

func TestDisassembleR3000A_InvalidOpcode(t *testing.T) {
	// SPECIAL funct field with no assignment
	word := uint32(0x3F) // op=0, funct=0x3F unused
	out := DisassembleR3000A(le32(word), 0x80001000)
	if !out[0].IsError {
		t.Fatalf("expected invalid opcode to be flagged as error, got %+v", out[0])
	}
}

func TestR3000ADescriptor_Registered(t *testing.T) {
	d := Lookup(debugif.CPUR3000A)
	if d == nil {
		t.Fatal("expected R3000A descriptor to be registered")
	}
	if d.DelaySlots != 1 {
		t.Fatalf("expected 1 delay slot, got %d", d.DelaySlots)
	}
	if len(d.Registers) != 32 {
		t.Fatalf("expected 32 registers, got %d", len(d.Registers))
	}
}

// fakeMemory implements debugif.Memory over a flat byte slice based at 0,
// used to exercise the stack unwinder against constructed instruction
// streams.
type fakeMemory struct {
	data map[uint64]byte
}

func newFakeMemory() *fakeMemory { return &fakeMemory{data: map[uint64]byte{}} }

func (f *fakeMemory) putWord(addr uint64, w uint32) {
	f.data[addr] = byte(w)
	f.data[addr+1] = byte(w >> 8)
	f.data[addr+2] = byte(w >> 16)
	f.data[addr+3] = byte(w >> 24)
}

func (f *fakeMemory) ID() string          { return "ram" }
func (f *fakeMemory) Description() string { return "fake ram" }
func (f *fakeMemory) Base() uint64        { return 0x80000000 }
func (f *fakeMemory) Size() uint64        { return 0x200000 }
func (f *fakeMemory) Peek(addr uint64, sideEffects bool) uint8 {
	return f.data[addr]
}
func (f *fakeMemory) Poke(addr uint64, value uint8)     { f.data[addr] = value }
func (f *fakeMemory) MemoryMap() []debugif.MemoryMap    { return nil }
func (f *fakeMemory) GetBankAddress(addr uint64, bank int) (debugif.MemoryMap, bool) {
	return debugif.MemoryMap{}, false
}

type fakeCPU struct {
	mem  *fakeMemory
	regs map[int]uint64
}

func (c *fakeCPU) ID() string                  { return "r3000a" }
func (c *fakeCPU) Description() string         { return "fake r3000a" }
func (c *fakeCPU) Type() debugif.CPUType       { return debugif.CPUR3000A }
func (c *fakeCPU) IsPrimary() bool             { return true }
func (c *fakeCPU) MemoryRegion() debugif.Memory { return c.mem }
func (c *fakeCPU) GetRegister(idx int) uint64  { return c.regs[idx] }
func (c *fakeCPU) SetRegister(idx int, value uint64) { c.regs[idx] = value }
func (c *fakeCPU) DelaySlot() int              { return 1 }

func TestR3000AStackTrace_LeafFunction(t *testing.T) {
	mem := newFakeMemory()
	cpu := &fakeCPU{mem: mem, regs: map[int]uint64{
		R3000A_PC: 0x80001000,
		R3000A_SP: 0x801FFF00,
		R3000A_RA: 0,
	}}
	trace := r3000AStackTrace(cpu, 8)
	if trace.Status != StackOK {
		t.Fatalf("expected StackOK, got %v", trace.Status)
	}
	if len(trace.Frames) != 1 || trace.Frames[0].FuncAddr != UnknownFuncAddr {
		t.Fatalf("expected single leaf frame with unknown func addr, got %+v", trace.Frames)
	}
}

// TestR3000AStackTrace_OneCaller covers the caller frame the unwinder pushes
// once it resolves a saved ra off the stack. Per §4.A.1 and
// r3000a_stack.cpp's r3000a_stack_trace, the first (innermost) frame is
// always pushed with an unresolved func addr; the callee's scanned func
// addr is attached to the *caller* frame pushed at the end of the same
// iteration, not to the innermost frame itself.
func TestR3000AStackTrace_OneCaller(t *testing.T) {
	mem := newFakeMemory()

	// callee at 0x80001000: addiu sp,sp,-0x20 ; sw ra,0x1C(sp) ; ... ; jr ra
	mem.putWord(0x80001000, 0x27BDFFE0) // addiu $sp,$sp,-32
	mem.putWord(0x80001004, 0xAFBF001C) // sw $ra,0x1C($sp)

	// caller's saved return address, pointing back into caller code
	callerRA := uint64(0x80002010)
	sp := uint64(0x801FFEE0)

	cpu := &fakeCPU{mem: mem, regs: map[int]uint64{
		R3000A_PC: 0x80001008, // mid-function, past prologue
		R3000A_SP: sp,
		R3000A_RA: callerRA,
	}}
	mem.putWord(sp+0x1C, uint32(callerRA))

	// maxDepth=1 isolates the single unwind step under test: the caller's
	// own (unpopulated) memory would otherwise let the backward scan reach
	// all the way back into the callee's prologue.
	trace := r3000AStackTrace(cpu, 1)
	if len(trace.Frames) != 2 {
		t.Fatalf("expected two frames, got %+v", trace.Frames)
	}
	if trace.Frames[0].FuncAddr != UnknownFuncAddr {
		t.Fatalf("expected the innermost frame's func addr to stay unresolved, got %#x", trace.Frames[0].FuncAddr)
	}
	if trace.Frames[1].PC != callerRA || trace.Frames[1].SP != sp+0x20 {
		t.Fatalf("expected the caller frame at pc=%#x sp=%#x, got %+v", callerRA, sp+0x20, trace.Frames[1])
	}
	if trace.Frames[1].FuncAddr != 0x80001000 {
		t.Fatalf("expected the caller frame to carry the callee's scanned func addr 0x80001000, got %#x", trace.Frames[1].FuncAddr)
	}
}

// TestR3000AStackTrace_SavedRAZero verifies that a saved return address of 0
// is the canonical end of the call chain (§4.A.1: "if return_address == 0:
// return OK"), not an INVALID_RA error. The original still pushes the
// (pc=0) terminal frame before returning OK, so two frames are expected.
func TestR3000AStackTrace_SavedRAZero(t *testing.T) {
	mem := newFakeMemory()
	mem.putWord(0x80001000, 0x27BDFFE0) // addiu $sp,$sp,-32
	mem.putWord(0x80001004, 0xAFBF001C) // sw $ra,0x1c($sp)

	sp := uint64(0x801FFEE0)
	cpu := &fakeCPU{mem: mem, regs: map[int]uint64{
		R3000A_PC: 0x80001008,
		R3000A_SP: sp,
		R3000A_RA: 0x80002010,
	}}
	mem.putWord(sp+0x1C, 0) // saved ra on the stack is the terminator

	trace := r3000AStackTrace(cpu, 8)
	if trace.Status != StackOK {
		t.Fatalf("expected StackOK for a zero saved return address, got %v", trace.Status)
	}
	if len(trace.Frames) != 2 {
		t.Fatalf("expected two frames (the frame and the zero-pc terminator), got %+v", trace.Frames)
	}
	if trace.Frames[1].PC != 0 {
		t.Fatalf("expected the terminal frame's pc to be zero, got %#x", trace.Frames[1].PC)
	}
}

// TestR3000AStackTrace_NoRASaveAtLeaf_FallsBackToLiveRA covers the depth==0
// branch of the spec's RA-save step: a function that allocates a frame but
// never spills ra to the stack is not a scan failure, it uses the still-live
// ra register as the next return address and keeps unwinding.
func TestR3000AStackTrace_NoRASaveAtLeaf_FallsBackToLiveRA(t *testing.T) {
	mem := newFakeMemory()
	mem.putWord(0x80001000, 0x27BDFFE0) // addiu $sp,$sp,-32 (no sw ra anywhere)

	callerPC := uint64(0x80002010) // depth 0's live ra register
	cpu := &fakeCPU{mem: mem, regs: map[int]uint64{
		R3000A_PC: 0x80001008,
		R3000A_SP: 0x801FFEE0,
		R3000A_RA: callerPC,
	}}

	// maxDepth=1 isolates the fallback under test from the caller's own
	// (unresolvable) unwind step.
	trace := r3000AStackTrace(cpu, 1)
	if len(trace.Frames) != 2 {
		t.Fatalf("expected two frames, got %+v", trace.Frames)
	}
	if trace.Frames[1].PC != callerPC {
		t.Fatalf("expected the caller frame's pc to fall back to the live ra register %#x, got %#x", callerPC, trace.Frames[1].PC)
	}
	if trace.Frames[1].FuncAddr != 0x80001000 {
		t.Fatalf("expected the caller frame to carry the leaf's scanned func addr 0x80001000, got %#x", trace.Frames[1].FuncAddr)
	}
}

// TestR3000AStackTrace_NoRASaveAtDepth_ReturnsScanLimit covers the depth>0
// branch of the spec's RA-save step: a non-leaf frame whose ra save cannot
// be found is a genuine scan failure, reported as SCAN_LIMIT rather than a
// silently truncated OK trace.
func TestR3000AStackTrace_NoRASaveAtDepth_ReturnsScanLimit(t *testing.T) {
	mem := newFakeMemory()

	// frame A (innermost): full prologue + ra save
	mem.putWord(0x80001000, 0x27BDFFE0) // addiu $sp,$sp,-32
	mem.putWord(0x80001004, 0xAFBF001C) // sw $ra,0x1c($sp)

	// frame B (caller): allocates a frame but never spills ra
	mem.putWord(0x80002000, 0x27BDFFF0) // addiu $sp,$sp,-16

	sp0 := uint64(0x801FFEE0)
	nextRA := uint64(0x80002008) // mid-function, past frame B's prologue
	mem.putWord(sp0+0x1C, uint32(nextRA))

	cpu := &fakeCPU{mem: mem, regs: map[int]uint64{
		R3000A_PC: 0x80001008,
		R3000A_SP: sp0,
		R3000A_RA: 0x80002000, // dummy but valid/aligned; depth 0 resolves ra from the stack instead
	}}

	trace := r3000AStackTrace(cpu, 8)
	if trace.Status != StackScanLimit {
		t.Fatalf("expected StackScanLimit when a non-leaf frame has no resolvable ra save, got %v", trace.Status)
	}
	if len(trace.Frames) != 2 {
		t.Fatalf("expected two frames, got %+v", trace.Frames)
	}
	if trace.Frames[1].FuncAddr != 0x80001000 {
		t.Fatalf("expected the second frame to carry frame A's scanned func addr 0x80001000, got %#x", trace.Frames[1].FuncAddr)
	}
}

// TestR3000AStackTrace_InvalidRA_Misaligned covers the r3000a_stack.cpp
// check that rejects a candidate return address that isn't a valid,
// word-aligned RAM address before any scanning is attempted (§4.A.1,
// r3000a_stack.cpp:69-76). An unaligned ra is a corrupt stack, not a clean
// end of chain.
func TestR3000AStackTrace_InvalidRA_Misaligned(t *testing.T) {
	mem := newFakeMemory()
	mem.putWord(0x80001000, 0x27BDFFE0) // addiu $sp,$sp,-32

	cpu := &fakeCPU{mem: mem, regs: map[int]uint64{
		R3000A_PC: 0x80001008,
		R3000A_SP: 0x801FFEE0,
		R3000A_RA: 0x80001ABB, // misaligned
	}}

	trace := r3000AStackTrace(cpu, 8)
	if trace.Status != StackInvalidRA {
		t.Fatalf("expected StackInvalidRA for a misaligned ra register, got %v", trace.Status)
	}
	if len(trace.Frames) != 1 {
		t.Fatalf("expected only the innermost frame, got %+v", trace.Frames)
	}
}

// TestR3000AStackTrace_InvalidRA_OutOfRAM covers the same check when the
// candidate return address is aligned but outside any recognized RAM
// window.
func TestR3000AStackTrace_InvalidRA_OutOfRAM(t *testing.T) {
	mem := newFakeMemory()
	mem.putWord(0x80001000, 0x27BDFFE0) // addiu $sp,$sp,-32

	cpu := &fakeCPU{mem: mem, regs: map[int]uint64{
		R3000A_PC: 0x80001008,
		R3000A_SP: 0x801FFEE0,
		R3000A_RA: 0xDEAD0000, // outside KUSEG/KSEG0/KSEG1
	}}

	trace := r3000AStackTrace(cpu, 8)
	if trace.Status != StackInvalidRA {
		t.Fatalf("expected StackInvalidRA for an out-of-RAM ra register, got %v", trace.Status)
	}
	if len(trace.Frames) != 1 {
		t.Fatalf("expected only the innermost frame, got %+v", trace.Frames)
	}
}
