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

// Package arch implements the table-driven multi-architecture disassembler
// (§4.A), branch-target computation, and stack unwinding by prologue
// scanning (§4.A.1).
package arch

import "fmt"

// Flag is a bitmask of opcode-table entry properties (§4.A).
type Flag int

const (
	// BreaksFlow marks an unconditional non-sequential instruction.
	BreaksFlow Flag = 1 << iota
	// AbsoluteTarget marks a format that consumes the immediate as an
	// address.
	AbsoluteTarget
	// RelativeTarget marks a format whose target is PC + length +
	// sign-extended immediate.
	RelativeTarget
)

// Instruction is the result of disassembling one opcode (§3 Instruction).
type Instruction struct {
	Address uint64
	Length  int

	// Text is the mnemonic, with embedded address markers: the sequence
	// "@<hexdigits>" designates that the following hex digits are an
	// operand address (§3 Address marker).
	Text string

	BreaksFlow bool
	HasTarget  bool
	Target     uint64
	IsError    bool
}

// dbByte formats the "DB $XX" pseudo-instruction used for undefined or
// truncated opcodes (§4.A step 2).
func dbByte(addr uint64, b byte) Instruction {
	return Instruction{
		Address: addr,
		Length:  1,
		Text:    fmt.Sprintf("DB $%02X", b),
		IsError: true,
	}
}

// dwError formats the "DW <hex>" pseudo-instruction used for invalid
// field-encoded opcodes (§4.A "Invalid opcodes produce is_error=true
// single-unit DW <hex> output").
func dwError(addr uint64, word uint32) Instruction {
	return Instruction{
		Address: addr,
		Length:  4,
		Text:    fmt.Sprintf("DW $%08X", word),
		IsError: true,
	}
}
