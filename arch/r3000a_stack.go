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

const (
	r3000aMaxFrames       = 64
	r3000aPrologueScanWin = 2000    // instructions scanned backward for addiu sp,sp,-N (§4.A.1)
	r3000aRAScanWin       = 10      // instructions scanned forward for sw ra,off(sp) (§4.A.1)
	r3000aMaxFrameSize    = 0x10000 // frame sizes above this are treated as a bad scan
)

func r3000aIsRAMAddr(addr uint64) bool {
	switch {
	case addr < 0x00200000: // KUSEG
		return true
	case addr >= 0x80000000 && addr < 0x80200000: // KSEG0
		return true
	case addr >= 0xA0000000 && addr < 0xA0200000: // KSEG1
		return true
	default:
		return false
	}
}

func r3000aRead32(mem debugif.Memory, addr uint64) (uint32, bool) {
	if !r3000aIsRAMAddr(addr) || addr%4 != 0 {
		return 0, false
	}
	b0 := mem.Peek(addr, false)
	b1 := mem.Peek(addr+1, false)
	b2 := mem.Peek(addr+2, false)
	b3 := mem.Peek(addr+3, false)
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24, true
}

// r3000aFindPrologue scans backward from pc for "addiu sp,sp,-N"
// (0x27BD____ with a negative 16-bit immediate), bounded by
// r3000aPrologueScanWin instructions, and returns the frame size and the
// address of the instruction itself (the function's likely entry vicinity).
func r3000aFindPrologue(mem debugif.Memory, pc uint64) (funcAddr uint64, frameSize uint32, found bool) {
	addr := pc
	for i := 0; i < r3000aPrologueScanWin; i++ {
		if addr < 4 {
			break
		}
		addr -= 4
		word, ok := r3000aRead32(mem, addr)
		if !ok {
			return 0, 0, false
		}
		if word&0xFFFF0000 == 0x27BD0000 {
			imm := int16(word & 0xFFFF)
			if imm < 0 {
				return addr, uint32(-int32(imm)), true
			}
		}
	}
	return 0, 0, false
}

// r3000aFindRASave scans forward from funcAddr for "sw ra,offset(sp)"
// (0xAFBF____), bounded by r3000aRAScanWin instructions and by boundPC (the
// scan never looks past the pc it is trying to explain).
func r3000aFindRASave(mem debugif.Memory, funcAddr, boundPC uint64) (offset int32, found bool) {
	addr := funcAddr
	for i := 0; i < r3000aRAScanWin && addr < boundPC; i++ {
		word, ok := r3000aRead32(mem, addr)
		if !ok {
			return 0, false
		}
		if word&0xFFFF0000 == 0xAFBF0000 {
			return int32(int16(word & 0xFFFF)), true
		}
		addr += 4
	}
	return 0, false
}

// r3000AStackTrace unwinds the R3000A call chain by scanning function
// prologues rather than following frame pointers, since the o32 ABI has
// none (§4.A.1). Grounded on r3000a_stack.cpp's r3000a_stack_trace: the
// first frame is always pushed with an unresolved func addr (it is pc/sp
// as reported by the CPU, never itself the target of a prologue scan); each
// iteration instead scans the *current* frame's pc for its prologue and
// attaches that func_start to the *caller* frame pushed at the end of the
// same iteration.
func r3000AStackTrace(cpu debugif.CPU, maxDepth int) StackTrace {
	if maxDepth <= 0 || maxDepth > r3000aMaxFrames {
		maxDepth = r3000aMaxFrames
	}
	mem := cpu.MemoryRegion()
	if mem == nil {
		return StackTrace{Status: StackReadError}
	}
	pc := cpu.GetRegister(R3000A_PC)
	sp := cpu.GetRegister(R3000A_SP)
	ra := cpu.GetRegister(R3000A_RA)

	frames := []StackFrame{{PC: pc, SP: sp, FuncAddr: UnknownFuncAddr}}

	for depth := 0; depth < maxDepth; depth++ {
		if ra == 0 {
			return StackTrace{Status: StackOK, Frames: frames}
		}
		if ra%4 != 0 || !r3000aIsRAMAddr(ra) {
			return StackTrace{Status: StackInvalidRA, Frames: frames}
		}

		funcAddr, frameSize, foundPrologue := r3000aFindPrologue(mem, pc)
		if foundPrologue && frameSize > r3000aMaxFrameSize {
			return StackTrace{Status: StackScanLimit, Frames: frames}
		}

		var raOffset int32
		var foundRA bool
		if foundPrologue {
			raOffset, foundRA = r3000aFindRASave(mem, funcAddr, pc)
		}

		var nextRA uint64
		switch {
		case foundRA:
			// ra was saved to the stack: read it.
			savedRA, ok := r3000aRead32(mem, sp+uint64(int64(raOffset)))
			if !ok {
				return StackTrace{Status: StackReadError, Frames: frames}
			}
			nextRA = uint64(savedRA)
		case depth == 0:
			// Leaf function: ra is still live in the register. No prologue
			// found yet is fine here, it just means the frame has no size.
			nextRA = ra
			if !foundPrologue {
				frameSize = 0
			}
		default:
			// Non-leaf, non-first frame with no sw ra found: cannot continue.
			return StackTrace{Status: StackScanLimit, Frames: frames}
		}

		nextSP := sp + uint64(frameSize)
		if frameSize > 0 {
			if nextSP < sp || nextSP%4 != 0 {
				return StackTrace{Status: StackInvalidSP, Frames: frames}
			}
		}

		callerFuncAddr := UnknownFuncAddr
		if foundPrologue {
			callerFuncAddr = funcAddr
		}
		frames = append(frames, StackFrame{PC: nextRA, SP: nextSP, FuncAddr: callerFuncAddr})

		if nextRA == 0 {
			return StackTrace{Status: StackOK, Frames: frames}
		}

		pc = nextRA
		sp = nextSP
		ra = nextRA
	}

	return StackTrace{Status: StackMaxDepth, Frames: frames}
}
