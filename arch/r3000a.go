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
	"fmt"

	"github.com/arret/arret/debugif"
)

var r3000aGPR = [32]string{
	"$0", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

func init() {
	Register(&Descriptor{
		Type:               debugif.CPUR3000A,
		MaxInstructionSize: 4,
		Alignment:          4,
		DelaySlots:         1,
		Disassemble:        DisassembleR3000A,
		StackTrace:         r3000AStackTrace,
		CallingConventions: []string{"o32"},
		Registers: func() []RegLayoutEntry {
			out := make([]RegLayoutEntry, 32)
			for i, n := range r3000aGPR {
				out[i] = RegLayoutEntry{Name: n, Index: i, Bits: 32}
			}
			return out
		}(),
		TraceRegisters: func() []TraceReg {
			out := make([]TraceReg, 0, 32)
			for i, n := range r3000aGPR {
				if n == "$0" {
					continue
				}
				out = append(out, TraceReg{Name: n, Index: i, Bits: 32})
			}
			return out
		}(),
	})
}

// R3000A register indices used by stack unwinding, mirroring
// rd_R3000A_PC/SP/RA of the debug ABI header.
const (
	R3000A_PC = 32
	R3000A_SP = 29
	R3000A_RA = 31
)

func r3000aFields(word uint32) (op, rs, rt, rd, shamt, funct byte, imm16 uint16, imm26 uint32) {
	op = byte(word >> 26)
	rs = byte((word >> 21) & 0x1F)
	rt = byte((word >> 16) & 0x1F)
	rd = byte((word >> 11) & 0x1F)
	shamt = byte((word >> 6) & 0x1F)
	funct = byte(word & 0x3F)
	imm16 = uint16(word & 0xFFFF)
	imm26 = word & 0x03FFFFFF
	return
}

func signExt16(v uint16) int32 { return int32(int16(v)) }

// DisassembleR3000A implements the field-encoded MIPS R3000A disassembler
// (§4.A, subtable dispatch on SPECIAL/REGIMM/COP0/COP2-GTE) including the
// canonical pseudo-op recognition.
func DisassembleR3000A(bytes []byte, base uint64) []Instruction {
	var out []Instruction
	pos := 0

	for pos+4 <= len(bytes) {
		addr := base + uint64(pos)
		word := uint32(bytes[pos]) | uint32(bytes[pos+1])<<8 | uint32(bytes[pos+2])<<16 | uint32(bytes[pos+3])<<24
		out = append(out, r3000aDecodeOne(word, addr))
		pos += 4
	}
	if pos < len(bytes) {
		// truncated trailing bytes: stop, per "disassembly aborts
		// gracefully if base_addr is misaligned... stop at first
		// truncated instruction" (§4.A).
	}
	return out
}

func r3000aDecodeOne(word uint32, addr uint64) Instruction {
	op, rs, rt, rd, shamt, funct, imm16, imm26 := r3000aFields(word)
	pc4 := addr + 4

	switch op {
	case 0x00: // SPECIAL
		return r3000aSpecial(word, addr, rs, rt, rd, shamt, funct)
	case 0x01: // REGIMM
		return r3000aRegimm(word, addr, rs, rt, imm16)
	case 0x10: // COP0
		return r3000aCop0(word, addr, rs, rt, rd)
	case 0x12: // COP2 / GTE
		return r3000aCop2(word, addr, rs, rt, rd)

	case 0x02: // J
		target := (addr & 0xFFFFFFFFF0000000) | uint64(imm26)<<2
		return withTarget(addr, "J", target, BreaksFlow)
	case 0x03: // JAL
		target := (addr & 0xFFFFFFFFF0000000) | uint64(imm26)<<2
		return withTarget(addr, "JAL", target, BreaksFlow)

	case 0x04: // BEQ
		if rs == 0 && rt == 0 {
			return withTarget(addr, "B", branchTarget(pc4, imm16), RelativeTarget|BreaksFlow)
		}
		return withTarget(addr, fmt.Sprintf("BEQ %s,%s", r3000aGPR[rs], r3000aGPR[rt]), branchTarget(pc4, imm16), RelativeTarget)
	case 0x05: // BNE
		return withTarget(addr, fmt.Sprintf("BNE %s,%s", r3000aGPR[rs], r3000aGPR[rt]), branchTarget(pc4, imm16), RelativeTarget)
	case 0x06: // BLEZ
		return withTarget(addr, fmt.Sprintf("BLEZ %s", r3000aGPR[rs]), branchTarget(pc4, imm16), RelativeTarget)
	case 0x07: // BGTZ
		return withTarget(addr, fmt.Sprintf("BGTZ %s", r3000aGPR[rs]), branchTarget(pc4, imm16), RelativeTarget)

	case 0x08: // ADDI
		return immArith(addr, "ADDI", rt, rs, imm16)
	case 0x09: // ADDIU
		if rs == 0 {
			return plainInstr(addr, fmt.Sprintf("LI %s,%d", r3000aGPR[rt], signExt16(imm16)))
		}
		return immArith(addr, "ADDIU", rt, rs, imm16)
	case 0x0A: // SLTI
		return immArith(addr, "SLTI", rt, rs, imm16)
	case 0x0B: // SLTIU
		return immArith(addr, "SLTIU", rt, rs, imm16)
	case 0x0C: // ANDI
		return immLogic(addr, "ANDI", rt, rs, imm16)
	case 0x0D: // ORI
		return immLogic(addr, "ORI", rt, rs, imm16)
	case 0x0E: // XORI
		return immLogic(addr, "XORI", rt, rs, imm16)
	case 0x0F: // LUI
		return plainInstr(addr, fmt.Sprintf("LUI %s,$%04X", r3000aGPR[rt], imm16))

	case 0x20: // LB
		return memInstr(addr, "LB", rt, rs, imm16)
	case 0x21: // LH
		return memInstr(addr, "LH", rt, rs, imm16)
	case 0x23: // LW
		return memInstr(addr, "LW", rt, rs, imm16)
	case 0x24: // LBU
		return memInstr(addr, "LBU", rt, rs, imm16)
	case 0x25: // LHU
		return memInstr(addr, "LHU", rt, rs, imm16)
	case 0x28: // SB
		return memInstr(addr, "SB", rt, rs, imm16)
	case 0x29: // SH
		return memInstr(addr, "SH", rt, rs, imm16)
	case 0x2B: // SW
		return memInstr(addr, "SW", rt, rs, imm16)
	case 0x32: // LWC2 (GTE data load)
		return memInstr(addr, "LWC2", rt, rs, imm16)
	case 0x3A: // SWC2 (GTE data store)
		return memInstr(addr, "SWC2", rt, rs, imm16)

	default:
		return dwError(addr, word)
	}
}

func withTarget(addr uint64, mnemonic string, target uint64, flags Flag) Instruction {
	return Instruction{
		Address:    addr,
		Length:     4,
		Text:       fmt.Sprintf("%s $@%08X", mnemonic, target),
		BreaksFlow: flags&BreaksFlow != 0,
		HasTarget:  true,
		Target:     target,
	}
}

func plainInstr(addr uint64, text string) Instruction {
	return Instruction{Address: addr, Length: 4, Text: text}
}

func branchTarget(pc4 uint64, imm16 uint16) uint64 {
	return uint64(int64(pc4) + int64(signExt16(imm16))*4)
}

func immArith(addr uint64, mnemonic string, rt, rs byte, imm16 uint16) Instruction {
	return plainInstr(addr, fmt.Sprintf("%s %s,%s,%d", mnemonic, r3000aGPR[rt], r3000aGPR[rs], signExt16(imm16)))
}

func immLogic(addr uint64, mnemonic string, rt, rs byte, imm16 uint16) Instruction {
	return plainInstr(addr, fmt.Sprintf("%s %s,%s,$%04X", mnemonic, r3000aGPR[rt], r3000aGPR[rs], imm16))
}

func memInstr(addr uint64, mnemonic string, rt, rs byte, imm16 uint16) Instruction {
	off := signExt16(imm16)
	return plainInstr(addr, fmt.Sprintf("%s %s,%d(%s)", mnemonic, r3000aGPR[rt], off, r3000aGPR[rs]))
}

// r3000aSpecial decodes the SPECIAL subtable (funct field), including the
// canonical SLL $0,$0,0 -> NOP and OR rd,$0,rt -> MOVE pseudo-ops.
func r3000aSpecial(word uint32, addr uint64, rs, rt, rd, shamt, funct byte) Instruction {
	switch funct {
	case 0x00: // SLL
		if word == 0 {
			return plainInstr(addr, "NOP")
		}
		return plainInstr(addr, fmt.Sprintf("SLL %s,%s,%d", r3000aGPR[rd], r3000aGPR[rt], shamt))
	case 0x02: // SRL
		return plainInstr(addr, fmt.Sprintf("SRL %s,%s,%d", r3000aGPR[rd], r3000aGPR[rt], shamt))
	case 0x03: // SRA
		return plainInstr(addr, fmt.Sprintf("SRA %s,%s,%d", r3000aGPR[rd], r3000aGPR[rt], shamt))
	case 0x04: // SLLV
		return plainInstr(addr, fmt.Sprintf("SLLV %s,%s,%s", r3000aGPR[rd], r3000aGPR[rt], r3000aGPR[rs]))
	case 0x06: // SRLV
		return plainInstr(addr, fmt.Sprintf("SRLV %s,%s,%s", r3000aGPR[rd], r3000aGPR[rt], r3000aGPR[rs]))
	case 0x07: // SRAV
		return plainInstr(addr, fmt.Sprintf("SRAV %s,%s,%s", r3000aGPR[rd], r3000aGPR[rt], r3000aGPR[rs]))
	case 0x08: // JR
		return Instruction{Address: addr, Length: 4, Text: fmt.Sprintf("JR %s", r3000aGPR[rs]), BreaksFlow: rs == R3000A_RA || true}
	case 0x09: // JALR
		return Instruction{Address: addr, Length: 4, Text: fmt.Sprintf("JALR %s,%s", r3000aGPR[rd], r3000aGPR[rs]), BreaksFlow: true}
	case 0x0C: // SYSCALL
		return plainInstr(addr, "SYSCALL")
	case 0x0D: // BREAK
		return plainInstr(addr, "BREAK")
	case 0x10: // MFHI
		return plainInstr(addr, fmt.Sprintf("MFHI %s", r3000aGPR[rd]))
	case 0x11: // MTHI
		return plainInstr(addr, fmt.Sprintf("MTHI %s", r3000aGPR[rs]))
	case 0x12: // MFLO
		return plainInstr(addr, fmt.Sprintf("MFLO %s", r3000aGPR[rd]))
	case 0x13: // MTLO
		return plainInstr(addr, fmt.Sprintf("MTLO %s", r3000aGPR[rs]))
	case 0x18: // MULT
		return plainInstr(addr, fmt.Sprintf("MULT %s,%s", r3000aGPR[rs], r3000aGPR[rt]))
	case 0x19: // MULTU
		return plainInstr(addr, fmt.Sprintf("MULTU %s,%s", r3000aGPR[rs], r3000aGPR[rt]))
	case 0x1A: // DIV
		return plainInstr(addr, fmt.Sprintf("DIV %s,%s", r3000aGPR[rs], r3000aGPR[rt]))
	case 0x1B: // DIVU
		return plainInstr(addr, fmt.Sprintf("DIVU %s,%s", r3000aGPR[rs], r3000aGPR[rt]))
	case 0x20: // ADD
		return plainInstr(addr, fmt.Sprintf("ADD %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	case 0x21: // ADDU
		if rs == 0 {
			return plainInstr(addr, fmt.Sprintf("MOVE %s,%s", r3000aGPR[rd], r3000aGPR[rt]))
		}
		return plainInstr(addr, fmt.Sprintf("ADDU %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	case 0x22: // SUB
		return plainInstr(addr, fmt.Sprintf("SUB %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	case 0x23: // SUBU
		return plainInstr(addr, fmt.Sprintf("SUBU %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	case 0x24: // AND
		return plainInstr(addr, fmt.Sprintf("AND %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	case 0x25: // OR
		if rs == 0 {
			return plainInstr(addr, fmt.Sprintf("MOVE %s,%s", r3000aGPR[rd], r3000aGPR[rt]))
		}
		return plainInstr(addr, fmt.Sprintf("OR %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	case 0x26: // XOR
		return plainInstr(addr, fmt.Sprintf("XOR %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	case 0x27: // NOR
		return plainInstr(addr, fmt.Sprintf("NOR %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	case 0x2A: // SLT
		return plainInstr(addr, fmt.Sprintf("SLT %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	case 0x2B: // SLTU
		return plainInstr(addr, fmt.Sprintf("SLTU %s,%s,%s", r3000aGPR[rd], r3000aGPR[rs], r3000aGPR[rt]))
	default:
		return dwError(addr, word)
	}
}

func r3000aRegimm(word uint32, addr uint64, rs, rt byte, imm16 uint16) Instruction {
	pc4 := addr + 4
	switch rt {
	case 0x00: // BLTZ
		return withTarget(addr, fmt.Sprintf("BLTZ %s", r3000aGPR[rs]), branchTarget(pc4, imm16), RelativeTarget)
	case 0x01: // BGEZ
		return withTarget(addr, fmt.Sprintf("BGEZ %s", r3000aGPR[rs]), branchTarget(pc4, imm16), RelativeTarget)
	case 0x10: // BLTZAL
		return withTarget(addr, fmt.Sprintf("BLTZAL %s", r3000aGPR[rs]), branchTarget(pc4, imm16), RelativeTarget)
	case 0x11: // BGEZAL
		return withTarget(addr, fmt.Sprintf("BGEZAL %s", r3000aGPR[rs]), branchTarget(pc4, imm16), RelativeTarget)
	default:
		return dwError(addr, word)
	}
}

func r3000aCop0(word uint32, addr uint64, rs, rt, rd byte) Instruction {
	switch rs {
	case 0x00: // MFC0
		return plainInstr(addr, fmt.Sprintf("MFC0 %s,$%d", r3000aGPR[rt], rd))
	case 0x04: // MTC0
		return plainInstr(addr, fmt.Sprintf("MTC0 %s,$%d", r3000aGPR[rt], rd))
	case 0x10: // RFE (cop func in low bits, word & 0x3F == 0x10)
		if word&0x3F == 0x10 {
			return plainInstr(addr, "RFE")
		}
		return dwError(addr, word)
	default:
		return dwError(addr, word)
	}
}

// r3000aCop2 decodes the COP2/GTE subtable: bit 25 selects an immediate
// GTE command funct, otherwise rs selects MFC2/CFC2/MTC2/CTC2/BCn (§4.A).
func r3000aCop2(word uint32, addr uint64, rs, rt, rd byte) Instruction {
	if word&(1<<25) != 0 {
		funct := word & 0x1FFFFFF
		return plainInstr(addr, fmt.Sprintf("COP2 $%07X", funct))
	}
	switch rs {
	case 0x00: // MFC2
		return plainInstr(addr, fmt.Sprintf("MFC2 %s,$%d", r3000aGPR[rt], rd))
	case 0x02: // CFC2
		return plainInstr(addr, fmt.Sprintf("CFC2 %s,$%d", r3000aGPR[rt], rd))
	case 0x04: // MTC2
		return plainInstr(addr, fmt.Sprintf("MTC2 %s,$%d", r3000aGPR[rt], rd))
	case 0x06: // CTC2
		return plainInstr(addr, fmt.Sprintf("CTC2 %s,$%d", r3000aGPR[rt], rd))
	case 0x08: // BC2
		return plainInstr(addr, "BC2")
	default:
		return dwError(addr, word)
	}
}
