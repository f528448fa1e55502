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

type mos6502Mode int

const (
	m6502Impl mos6502Mode = iota
	m6502Acc
	m6502Imm
	m6502Zp
	m6502ZpX
	m6502ZpY
	m6502Abs
	m6502AbsX
	m6502AbsY
	m6502IndX
	m6502IndY
	m6502Ind // JMP (a16) only
	m6502Rel
)

type mos6502Entry struct {
	mnemonic string
	mode     mos6502Mode
	flags    Flag
}

var mos6502Table [256]mos6502Entry

func m6502(op byte, mnemonic string, mode mos6502Mode, flags Flag) {
	mos6502Table[op] = mos6502Entry{mnemonic: mnemonic, mode: mode, flags: flags}
}

func init() {
	type row struct {
		op       byte
		mnemonic string
		mode     mos6502Mode
		flags    Flag
	}

	rows := []row{
		{0x00, "BRK", m6502Impl, BreaksFlow},
		{0xEA, "NOP", m6502Impl, 0},

		// flag/register ops
		{0x18, "CLC", m6502Impl, 0}, {0x38, "SEC", m6502Impl, 0},
		{0x58, "CLI", m6502Impl, 0}, {0x78, "SEI", m6502Impl, 0},
		{0xB8, "CLV", m6502Impl, 0}, {0xD8, "CLD", m6502Impl, 0},
		{0xF8, "SED", m6502Impl, 0},
		{0xAA, "TAX", m6502Impl, 0}, {0x8A, "TXA", m6502Impl, 0},
		{0xA8, "TAY", m6502Impl, 0}, {0x98, "TYA", m6502Impl, 0},
		{0xBA, "TSX", m6502Impl, 0}, {0x9A, "TXS", m6502Impl, 0},
		{0xE8, "INX", m6502Impl, 0}, {0xC8, "INY", m6502Impl, 0},
		{0xCA, "DEX", m6502Impl, 0}, {0x88, "DEY", m6502Impl, 0},
		{0x48, "PHA", m6502Impl, 0}, {0x68, "PLA", m6502Impl, 0},
		{0x08, "PHP", m6502Impl, 0}, {0x28, "PLP", m6502Impl, 0},

		// control flow
		{0x4C, "JMP", m6502Abs, AbsoluteTarget | BreaksFlow},
		{0x6C, "JMP", m6502Ind, BreaksFlow},
		{0x20, "JSR", m6502Abs, AbsoluteTarget | BreaksFlow},
		{0x60, "RTS", m6502Impl, BreaksFlow},
		{0x40, "RTI", m6502Impl, BreaksFlow},

		// branches, all relative, none unconditional so none set BreaksFlow
		{0x10, "BPL", m6502Rel, RelativeTarget}, {0x30, "BMI", m6502Rel, RelativeTarget},
		{0x50, "BVC", m6502Rel, RelativeTarget}, {0x70, "BVS", m6502Rel, RelativeTarget},
		{0x90, "BCC", m6502Rel, RelativeTarget}, {0xB0, "BCS", m6502Rel, RelativeTarget},
		{0xD0, "BNE", m6502Rel, RelativeTarget}, {0xF0, "BEQ", m6502Rel, RelativeTarget},

		// accumulator shifts
		{0x0A, "ASL", m6502Acc, 0}, {0x4A, "LSR", m6502Acc, 0},
		{0x2A, "ROL", m6502Acc, 0}, {0x6A, "ROR", m6502Acc, 0},

		{0x24, "BIT", m6502Zp, 0}, {0x2C, "BIT", m6502Abs, 0},
	}

	// ALU family: ORA, AND, EOR, ADC, STA, LDA, CMP, SBC across the
	// standard 8 addressing-mode columns (immediate absent for STA).
	type alu struct {
		name string
		imm  byte
		zp   byte
		zpx  byte
		abs  byte
		absx byte
		absy byte
		indx byte
		indy byte
		hasImm bool
	}
	alus := []alu{
		{"ORA", 0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11, true},
		{"AND", 0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31, true},
		{"EOR", 0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51, true},
		{"ADC", 0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71, true},
		{"STA", 0x00, 0x85, 0x95, 0x8D, 0x9D, 0x99, 0x81, 0x91, false},
		{"LDA", 0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1, true},
		{"CMP", 0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1, true},
		{"SBC", 0xE9, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1, true},
	}
	for _, a := range alus {
		if a.hasImm {
			rows = append(rows, row{a.imm, a.name, m6502Imm, 0})
		}
		rows = append(rows, row{a.zp, a.name, m6502Zp, 0})
		rows = append(rows, row{a.zpx, a.name, m6502ZpX, 0})
		rows = append(rows, row{a.abs, a.name, m6502Abs, 0})
		rows = append(rows, row{a.absx, a.name, m6502AbsX, 0})
		rows = append(rows, row{a.absy, a.name, m6502AbsY, 0})
		rows = append(rows, row{a.indx, a.name, m6502IndX, 0})
		rows = append(rows, row{a.indy, a.name, m6502IndY, 0})
	}

	// read-modify-write family: ASL, LSR, ROL, ROR, INC, DEC across
	// zp/zp,X/abs/abs,X
	type rmw struct {
		name string
		zp, zpx, abs, absx byte
	}
	rmws := []rmw{
		{"ASL", 0x06, 0x16, 0x0E, 0x1E},
		{"LSR", 0x46, 0x56, 0x4E, 0x5E},
		{"ROL", 0x26, 0x36, 0x2E, 0x3E},
		{"ROR", 0x66, 0x76, 0x6E, 0x7E},
		{"INC", 0xE6, 0xF6, 0xEE, 0xFE},
		{"DEC", 0xC6, 0xD6, 0xCE, 0xDE},
	}
	for _, r := range rmws {
		rows = append(rows, row{r.zp, r.name, m6502Zp, 0})
		rows = append(rows, row{r.zpx, r.name, m6502ZpX, 0})
		rows = append(rows, row{r.abs, r.name, m6502Abs, 0})
		rows = append(rows, row{r.absx, r.name, m6502AbsX, 0})
	}

	// LDX/STX (zp,Y and abs,Y instead of X), LDY/STY/CPX/CPY (no Y forms)
	rows = append(rows,
		row{0xA2, "LDX", m6502Imm, 0}, row{0xA6, "LDX", m6502Zp, 0},
		row{0xB6, "LDX", m6502ZpY, 0}, row{0xAE, "LDX", m6502Abs, 0},
		row{0xBE, "LDX", m6502AbsY, 0},
		row{0x86, "STX", m6502Zp, 0}, row{0x96, "STX", m6502ZpY, 0},
		row{0x8E, "STX", m6502Abs, 0},

		row{0xA0, "LDY", m6502Imm, 0}, row{0xA4, "LDY", m6502Zp, 0},
		row{0xB4, "LDY", m6502ZpX, 0}, row{0xAC, "LDY", m6502Abs, 0},
		row{0xBC, "LDY", m6502AbsX, 0},
		row{0x84, "STY", m6502Zp, 0}, row{0x94, "STY", m6502ZpX, 0},
		row{0x8C, "STY", m6502Abs, 0},

		row{0xE0, "CPX", m6502Imm, 0}, row{0xE4, "CPX", m6502Zp, 0},
		row{0xEC, "CPX", m6502Abs, 0},
		row{0xC0, "CPY", m6502Imm, 0}, row{0xC4, "CPY", m6502Zp, 0},
		row{0xCC, "CPY", m6502Abs, 0},
	)

	for _, r := range rows {
		m6502(r.op, r.mnemonic, r.mode, r.flags)
	}

	Register(&Descriptor{
		Type:               debugif.CPUMOS6502,
		MaxInstructionSize: 3,
		Alignment:          1,
		DelaySlots:         0,
		Disassemble:        DisassembleMOS6502,
		Registers: []RegLayoutEntry{
			{Name: "A", Index: 0, Bits: 8}, {Name: "X", Index: 1, Bits: 8},
			{Name: "Y", Index: 2, Bits: 8}, {Name: "SP", Index: 3, Bits: 8},
			{Name: "P", Index: 4, Bits: 8}, {Name: "PC", Index: 5, Bits: 16},
		},
		TraceRegisters: []TraceReg{
			{Name: "A", Index: 0, Bits: 8}, {Name: "X", Index: 1, Bits: 8},
			{Name: "Y", Index: 2, Bits: 8}, {Name: "SP", Index: 3, Bits: 8},
			{Name: "P", Index: 4, Bits: 8},
		},
	})
}

// DisassembleMOS6502 implements the 6502 disassembler (§4.A).
func DisassembleMOS6502(bytes []byte, base uint64) []Instruction {
	var out []Instruction
	pos := 0

	for pos < len(bytes) {
		addr := base + uint64(pos)
		op := bytes[pos]
		entry := mos6502Table[op]
		if entry.mnemonic == "" {
			out = append(out, dbByte(addr, op))
			pos++
			continue
		}

		immBytes := 0
		switch entry.mode {
		case m6502Imm, m6502Zp, m6502ZpX, m6502ZpY, m6502IndX, m6502IndY, m6502Rel:
			immBytes = 1
		case m6502Abs, m6502AbsX, m6502AbsY, m6502Ind:
			immBytes = 2
		}
		length := 1 + immBytes
		if pos+length > len(bytes) {
			out = append(out, dbByte(addr, op))
			pos++
			continue
		}

		inst := Instruction{Address: addr, Length: length, BreaksFlow: entry.flags&BreaksFlow != 0}

		switch entry.mode {
		case m6502Impl:
			inst.Text = entry.mnemonic
		case m6502Acc:
			inst.Text = entry.mnemonic + " A"
		case m6502Imm:
			inst.Text = fmt.Sprintf("%s #$%02X", entry.mnemonic, bytes[pos+1])
		case m6502Zp:
			inst.HasTarget, inst.Target = true, uint64(bytes[pos+1])
			inst.Text = fmt.Sprintf("%s $@%02X", entry.mnemonic, bytes[pos+1])
		case m6502ZpX:
			inst.HasTarget, inst.Target = true, uint64(bytes[pos+1])
			inst.Text = fmt.Sprintf("%s $@%02X,X", entry.mnemonic, bytes[pos+1])
		case m6502ZpY:
			inst.HasTarget, inst.Target = true, uint64(bytes[pos+1])
			inst.Text = fmt.Sprintf("%s $@%02X,Y", entry.mnemonic, bytes[pos+1])
		case m6502IndX:
			inst.HasTarget, inst.Target = true, uint64(bytes[pos+1])
			inst.Text = fmt.Sprintf("%s ($@%02X,X)", entry.mnemonic, bytes[pos+1])
		case m6502IndY:
			inst.HasTarget, inst.Target = true, uint64(bytes[pos+1])
			inst.Text = fmt.Sprintf("%s ($@%02X),Y", entry.mnemonic, bytes[pos+1])
		case m6502Abs:
			target := uint64(bytes[pos+1]) | uint64(bytes[pos+2])<<8
			inst.HasTarget, inst.Target = true, target
			inst.Text = fmt.Sprintf("%s $@%04X", entry.mnemonic, target)
		case m6502AbsX:
			target := uint64(bytes[pos+1]) | uint64(bytes[pos+2])<<8
			inst.HasTarget, inst.Target = true, target
			inst.Text = fmt.Sprintf("%s $@%04X,X", entry.mnemonic, target)
		case m6502AbsY:
			target := uint64(bytes[pos+1]) | uint64(bytes[pos+2])<<8
			inst.HasTarget, inst.Target = true, target
			inst.Text = fmt.Sprintf("%s $@%04X,Y", entry.mnemonic, target)
		case m6502Ind:
			target := uint64(bytes[pos+1]) | uint64(bytes[pos+2])<<8
			inst.Text = fmt.Sprintf("%s ($@%04X)", entry.mnemonic, target)
		case m6502Rel:
			imm := int8(bytes[pos+1])
			target := uint64(uint16(int(addr) + length + int(imm)))
			inst.HasTarget, inst.Target = true, target
			inst.Text = fmt.Sprintf("%s $@%04X", entry.mnemonic, target)
		}

		out = append(out, inst)
		pos += length
	}

	return out
}
