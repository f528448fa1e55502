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

// lr35902Operand tags how an lr35902 opcode entry's immediate bytes are
// rendered and whether they form an address (§4.A step 5).
type lr35902Operand int

const (
	lrNone lr35902Operand = iota
	lrD8                  // 8-bit immediate data, not an address
	lrD16                 // 16-bit immediate data, not an address
	lrA16                 // 16-bit absolute address
	lrA8                  // 8-bit zero-page-relative I/O address (0xFF00+n)
	lrR8                  // 8-bit signed PC-relative branch target
	lrSP8                 // signed 8-bit offset applied to SP, not an address
)

type lr35902Entry struct {
	format      string // %s placeholder for the operand, or none
	imm         lr35902Operand
	flags       Flag
	fixedTarget uint64 // used by RST, which encodes its target in the opcode
}

var lr35902Table [256]lr35902Entry

func lr(op byte, format string, imm lr35902Operand, flags Flag) {
	lr35902Table[op] = lr35902Entry{format: format, imm: imm, flags: flags}
}

func init() {
	// 8-bit loads and misc x0/x1 rows are populated generically below;
	// the control-flow and immediate-operand opcodes are named explicitly
	// since those are what branch-target computation and the concrete
	// test scenarios exercise.
	lr(0x00, "NOP", lrNone, 0)
	lr(0x10, "STOP", lrD8, 0)
	lr(0x76, "HALT", lrNone, 0)
	lr(0xF3, "DI", lrNone, 0)
	lr(0xFB, "EI", lrNone, 0)
	lr(0x27, "DAA", lrNone, 0)
	lr(0x2F, "CPL", lrNone, 0)
	lr(0x37, "SCF", lrNone, 0)
	lr(0x3F, "CCF", lrNone, 0)

	regs8 := []string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	regs16sp := []string{"BC", "DE", "HL", "SP"}
	regs16af := []string{"BC", "DE", "HL", "AF"}
	cond := []string{"NZ", "Z", "NC", "C"}

	// 0x40-0x7F: LD r,r' (0x76 already overridden as HALT above)
	for dst := 0; dst < 8; dst++ {
		for src := 0; src < 8; src++ {
			op := byte(0x40 + dst*8 + src)
			if op == 0x76 {
				continue
			}
			lr(op, fmt.Sprintf("LD %s,%s", regs8[dst], regs8[src]), lrNone, 0)
		}
	}

	// 0x80-0xBF: ALU A,r
	alu := []string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
	for a := 0; a < 8; a++ {
		for src := 0; src < 8; src++ {
			op := byte(0x80 + a*8 + src)
			lr(op, alu[a]+regs8[src], lrNone, 0)
		}
	}
	// ALU A,d8 immediate forms at 0xC6,0xCE,0xD6,0xDE,0xE6,0xEE,0xF6,0xFE
	aluImmOps := [8]byte{0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE}
	for a := 0; a < 8; a++ {
		lr(aluImmOps[a], alu[a]+"%s", lrD8, 0)
	}

	// INC/DEC r8
	for r := 0; r < 8; r++ {
		lr(byte(0x04+r*8), "INC "+regs8[r], lrNone, 0)
		lr(byte(0x05+r*8), "DEC "+regs8[r], lrNone, 0)
	}
	// LD r,d8
	for r := 0; r < 8; r++ {
		lr(byte(0x06+r*8), fmt.Sprintf("LD %s,%%s", regs8[r]), lrD8, 0)
	}

	// 16-bit register group ops
	for i, rp := range regs16sp {
		lr(byte(0x01+i*0x10), fmt.Sprintf("LD %s,%%s", rp), lrD16, 0)
		lr(byte(0x03+i*0x10), "INC "+rp, lrNone, 0)
		lr(byte(0x0B+i*0x10), "DEC "+rp, lrNone, 0)
		lr(byte(0x09+i*0x10), "ADD HL,"+rp, lrNone, 0)
	}
	for i, rp := range regs16af {
		lr(byte(0xC1+i*0x10), "POP "+rp, lrNone, 0)
		lr(byte(0xC5+i*0x10), "PUSH "+rp, lrNone, 0)
	}

	// indirect loads via BC/DE/HL+/HL-
	lr(0x02, "LD (BC),A", lrNone, 0)
	lr(0x12, "LD (DE),A", lrNone, 0)
	lr(0x22, "LD (HL+),A", lrNone, 0)
	lr(0x32, "LD (HL-),A", lrNone, 0)
	lr(0x0A, "LD A,(BC)", lrNone, 0)
	lr(0x1A, "LD A,(DE)", lrNone, 0)
	lr(0x2A, "LD A,(HL+)", lrNone, 0)
	lr(0x3A, "LD A,(HL-)", lrNone, 0)

	lr(0x08, "LD (%s),SP", lrA16, AbsoluteTarget)
	lr(0xE0, "LDH (%s),A", lrA8, AbsoluteTarget)
	lr(0xF0, "LDH A,(%s)", lrA8, AbsoluteTarget)
	lr(0xE2, "LD (C),A", lrNone, 0)
	lr(0xF2, "LD A,(C)", lrNone, 0)
	lr(0xEA, "LD (%s),A", lrA16, AbsoluteTarget)
	lr(0xFA, "LD A,(%s)", lrA16, AbsoluteTarget)
	lr(0xF9, "LD SP,HL", lrNone, 0)
	lr(0xF8, "LD HL,SP+%s", lrSP8, 0)
	lr(0xE8, "ADD SP,%s", lrSP8, 0)

	// rotates on A
	lr(0x07, "RLCA", lrNone, 0)
	lr(0x0F, "RRCA", lrNone, 0)
	lr(0x17, "RLA", lrNone, 0)
	lr(0x1F, "RRA", lrNone, 0)

	// control flow
	lr(0xC3, "JP %s", lrA16, AbsoluteTarget|BreaksFlow)
	lr(0xE9, "JP (HL)", lrNone, 0)
	lr(0x18, "JR %s", lrR8, RelativeTarget|BreaksFlow)
	lr(0xCD, "CALL %s", lrA16, AbsoluteTarget|BreaksFlow)
	lr(0xC9, "RET", lrNone, BreaksFlow)
	lr(0xD9, "RETI", lrNone, BreaksFlow)
	for i, c := range cond {
		lr(byte(0xC2+i*0x08), fmt.Sprintf("JP %s,%%s", c), lrA16, AbsoluteTarget)
		lr(byte(0x20+i*0x08), fmt.Sprintf("JR %s,%%s", c), lrR8, RelativeTarget)
		lr(byte(0xC4+i*0x08), fmt.Sprintf("CALL %s,%%s", c), lrA16, AbsoluteTarget)
		lr(byte(0xC0+i*0x08), "RET "+c, lrNone, 0)
	}
	for n := 0; n < 8; n++ {
		op := byte(0xC7 + n*0x08)
		lr(op, fmt.Sprintf("RST $%02X", n*8), lrNone, AbsoluteTarget|BreaksFlow)
		e := lr35902Table[op]
		e.fixedTarget = uint64(n * 8)
		lr35902Table[op] = e
	}

	// undefined opcodes on the LR35902
	for _, op := range []byte{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD} {
		lr35902Table[op] = lr35902Entry{}
	}

	lr35902Table[0xCB] = lr35902Entry{format: "__CB_PREFIX__"}

	Register(&Descriptor{
		Type:               debugif.CPULR35902,
		MaxInstructionSize: 3,
		Alignment:          1,
		DelaySlots:         0,
		Disassemble:        DisassembleLR35902,
		Registers: []RegLayoutEntry{
			{Name: "A", Index: 0, Bits: 8}, {Name: "F", Index: 1, Bits: 8},
			{Name: "B", Index: 2, Bits: 8}, {Name: "C", Index: 3, Bits: 8},
			{Name: "D", Index: 4, Bits: 8}, {Name: "E", Index: 5, Bits: 8},
			{Name: "H", Index: 6, Bits: 8}, {Name: "L", Index: 7, Bits: 8},
			{Name: "SP", Index: 8, Bits: 16}, {Name: "PC", Index: 9, Bits: 16},
		},
		TraceRegisters: []TraceReg{
			{Name: "A", Index: 0, Bits: 8}, {Name: "F", Index: 1, Bits: 8},
			{Name: "BC", Index: 10, Bits: 16}, {Name: "DE", Index: 11, Bits: 16},
			{Name: "HL", Index: 12, Bits: 16}, {Name: "SP", Index: 8, Bits: 16},
		},
	})
}

// cbSynthesize decodes a CB-prefixed opcode by bit pattern rather than a
// literal table: bits 7-6 select the group (rotate/shift, BIT, RES, SET),
// bits 5-3 select the operation/bit-index, bits 2-0 select the register
// operand (§4.A step 1).
func cbSynthesize(b byte) string {
	regs8 := []string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	reg := regs8[b&0x07]
	group := b >> 6
	mid := (b >> 3) & 0x07

	if group == 0 {
		ops := []string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}
		return fmt.Sprintf("%s %s", ops[mid], reg)
	}

	names := []string{"", "BIT", "RES", "SET"}
	return fmt.Sprintf("%s %d,%s", names[group], mid, reg)
}

// DisassembleLR35902 implements the Game Boy CPU disassembler (§4.A).
func DisassembleLR35902(bytes []byte, base uint64) []Instruction {
	var out []Instruction
	pos := 0

	for pos < len(bytes) {
		addr := base + uint64(pos)
		op := bytes[pos]

		if op == 0xCB {
			if pos+1 >= len(bytes) {
				out = append(out, dbByte(addr, op))
				break
			}
			cb := bytes[pos+1]
			out = append(out, Instruction{
				Address: addr,
				Length:  2,
				Text:    cbSynthesize(cb),
			})
			pos += 2
			continue
		}

		entry := lr35902Table[op]
		if entry.format == "" {
			out = append(out, dbByte(addr, op))
			pos++
			continue
		}

		immBytes := 0
		switch entry.imm {
		case lrD8, lrA8, lrR8, lrSP8:
			immBytes = 1
		case lrD16, lrA16:
			immBytes = 2
		}

		length := 1 + immBytes
		if pos+length > len(bytes) {
			// truncated at the buffer edge: the remaining bytes are this
			// opcode's missing operand, so stop here as the CB case does.
			out = append(out, dbByte(addr, op))
			break
		}

		inst := Instruction{Address: addr, Length: length, BreaksFlow: entry.flags&BreaksFlow != 0}

		var operand string
		switch entry.imm {
		case lrNone:
			inst.Text = entry.format
		case lrD8:
			operand = fmt.Sprintf("$%02X", bytes[pos+1])
			inst.Text = fmt.Sprintf(entry.format, operand)
		case lrD16:
			v := uint16(bytes[pos+1]) | uint16(bytes[pos+2])<<8
			operand = fmt.Sprintf("$%04X", v)
			inst.Text = fmt.Sprintf(entry.format, operand)
		case lrSP8:
			imm := int8(bytes[pos+1])
			operand = fmt.Sprintf("$%02X", uint8(imm))
			if imm < 0 {
				operand = fmt.Sprintf("-$%02X", uint8(-imm))
			}
			inst.Text = fmt.Sprintf(entry.format, operand)
		case lrA16:
			target := uint64(bytes[pos+1]) | uint64(bytes[pos+2])<<8
			inst.HasTarget = true
			inst.Target = target
			operand = fmt.Sprintf("$@%04X", target)
			inst.Text = fmt.Sprintf(entry.format, operand)
		case lrA8:
			target := 0xFF00 | uint64(bytes[pos+1])
			inst.HasTarget = true
			inst.Target = target
			operand = fmt.Sprintf("$@%04X", target)
			inst.Text = fmt.Sprintf(entry.format, operand)
		case lrR8:
			imm := int8(bytes[pos+1])
			target := uint64(uint16(int(addr)+length+int(imm))) & 0xFFFF
			inst.HasTarget = true
			inst.Target = target
			operand = fmt.Sprintf("$@%04X", target)
			inst.Text = fmt.Sprintf(entry.format, operand)
		}

		if entry.flags&AbsoluteTarget != 0 && entry.imm == lrNone {
			// RST: target is encoded in the opcode itself, not an
			// immediate byte.
			inst.HasTarget = true
			inst.Target = entry.fixedTarget
		}

		out = append(out, inst)
		pos += length
	}

	return out
}
