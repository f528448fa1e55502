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

package protocol

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/arret/arret/arch"
	"github.com/arret/arret/debugif"
)

func init() {
	registerVerb("dump", verbDump)
	registerVerb("dis", verbDis)
}

// verbDump implements "dump <id> [start size [path]]" (§4.I): a hex dump of
// a memory region with bank/address columns and a line break at every
// 16-byte boundary or memory-map boundary, optionally redirected to a file
// instead of the response stream.
func verbDump(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if !d.hasDebug() {
		errf(w, "no debug support")
		return
	}
	fields := splitFields(line, 5)
	// fields[0] == "dump"
	id := fields[1]
	if id == "" {
		errf(w, "usage: dump <id> [start size [path]]")
		return
	}
	mem := d.findMemory(id)
	if mem == nil {
		errf(w, "unknown memory region: %s", jsonEscape(id))
		return
	}

	start := mem.Base()
	size := mem.Size()
	var path string

	switch {
	case fields[2] == "":
		// use whole region
	case fields[3] == "":
		errf(w, "usage: dump <id> [start size [path]]")
		return
	default:
		start = parseUint(fields[2])
		size = parseUint(fields[3])
		if fields[4] != "" {
			path = strings.TrimRight(fields[4], " \t")
		}
	}

	if size == 0 {
		errf(w, "memory region has unknown size; specify start and size")
		return
	}

	text := hexDump(mem, start, size)

	if path != "" {
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			errf(w, "cannot open file: %s", jsonEscape(path))
			return
		}
		okf(w, `"path":"%s"`, jsonEscape(path))
		return
	}
	io.WriteString(w, text)
}

// hexDump formats [start,start+size) of mem, replicating do_dump: a new
// line at start, every 16-byte boundary, and every memory-map base address,
// with an optional bank-column prefix.
func hexDump(mem debugif.Memory, start, size uint64) string {
	end := start + size
	maps := mem.MemoryMap()
	hasMMap := len(maps) > 0

	bankWidth := 0
	if hasMMap {
		maxBank := int64(0)
		for _, m := range maps {
			if int64(m.Bank) > maxBank {
				maxBank = int64(m.Bank)
			}
		}
		bankWidth = 1
		for v := maxBank; v >= 10; v /= 10 {
			bankWidth++
		}
	}

	maxAddr := uint64(0)
	if end > 0 {
		maxAddr = end - 1
	}
	addrWidth := 1
	for v := maxAddr; v >= 16; v /= 16 {
		addrWidth++
	}

	bankFor := func(addr uint64) int {
		for _, m := range maps {
			if addr >= m.Base && addr <= m.End {
				return m.Bank
			}
		}
		return -1
	}

	var b strings.Builder
	firstLine := true

	for addr := start; addr < end; addr++ {
		newLine := addr == start || addr%16 == 0
		if !newLine && hasMMap {
			for _, m := range maps {
				if m.Base == addr {
					newLine = true
					break
				}
			}
		}

		if newLine {
			if !firstLine {
				b.WriteByte('\n')
			}
			firstLine = false

			bank := bankFor(addr)
			if hasMMap {
				if bank >= 0 {
					fmt.Fprintf(&b, "%*d:", bankWidth, bank)
				} else {
					fmt.Fprintf(&b, "%*s:", bankWidth, "")
				}
			}
			fmt.Fprintf(&b, "%0*X:", addrWidth, addr)

			pad := 1 + int(addr%16)*3
			for i := 0; i < pad; i++ {
				b.WriteByte(' ')
			}
		}

		fmt.Fprintf(&b, "%02X", mem.Peek(addr, false))

		next := addr + 1
		if next < end {
			nextNL := next%16 == 0
			if !nextNL && hasMMap {
				for _, m := range maps {
					if m.Base == next {
						nextNL = true
						break
					}
				}
			}
			if !nextNL {
				b.WriteByte(' ')
			}
		}
	}

	if !firstLine {
		b.WriteByte('\n')
	}
	return b.String()
}

// verbDis implements "dis [cpu] [region.]<start>-<end>" (§4.I): disassembles
// an inclusive address range, prefixing symbol-label lines, a PC marker
// character, and an optional bank column, resolving "@"-marked operand
// addresses to labels and appending a cropped comment.
func verbDis(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if !d.hasDebug() {
		errf(w, "no debug support")
		return
	}
	if nargs < 2 {
		errf(w, "usage: dis [cpu] [region.]<start>-<end>")
		return
	}

	sys := d.core.System()
	cpus := sys.CPUs()

	var cpu debugif.CPU
	var rangeArg string

	if len(cpus) > 1 {
		cpu = d.findCPU(arg1)
		if cpu == nil {
			errf(w, "unknown cpu: %s (multi-CPU system requires cpu argument)", jsonEscape(arg1))
			return
		}
		if nargs < 3 {
			errf(w, "usage: dis <cpu> [region.]<start>-<end>")
			return
		}
		rangeArg = arg2
	} else {
		if c := d.findCPU(arg1); c != nil {
			if nargs < 3 {
				errf(w, "usage: dis [cpu] [region.]<start>-<end>")
				return
			}
			cpu = c
			rangeArg = arg2
		} else {
			cpu = sys.PrimaryCPU()
			rangeArg = arg1
		}
	}
	if cpu == nil {
		errf(w, "no cpu available")
		return
	}

	regionID, rangeStr := "", rangeArg
	if dot := strings.IndexByte(rangeArg, '.'); dot > 0 {
		regionID = rangeArg[:dot]
		rangeStr = rangeArg[dot+1:]
	}

	dash := strings.IndexByte(rangeStr, '-')
	if dash < 0 {
		errf(w, "bad range (expected start-end): %s", jsonEscape(rangeArg))
		return
	}
	start, errS := strconv.ParseUint(rangeStr[:dash], 16, 64)
	endAddr, errE := strconv.ParseUint(rangeStr[dash+1:], 16, 64)
	if errS != nil || errE != nil {
		errf(w, "bad range: %s", jsonEscape(rangeArg))
		return
	}
	if endAddr < start {
		errf(w, "end < start")
		return
	}

	var mem debugif.Memory
	if regionID != "" {
		mem = d.findMemory(regionID)
	} else {
		mem = cpu.MemoryRegion()
	}
	if mem == nil {
		name := regionID
		if name == "" {
			name = "(cpu default)"
		}
		errf(w, "unknown memory region: %s", jsonEscape(name))
		return
	}

	pcIdx := pcIndex(cpu.Type())
	pc := ^uint64(0)
	if pcIdx >= 0 {
		pc = cpu.GetRegister(pcIdx)
	}

	addrWidth := 4
	if mem.Size() > 0x10000 {
		addrWidth = 8
	}

	byteCount := endAddr - start + 1
	buf := make([]byte, byteCount)
	for i := range buf {
		buf[i] = mem.Peek(start+uint64(i), false)
	}

	insns := arch.Disassemble(buf, start, cpu.Type())

	maps := mem.MemoryMap()
	hasMMap := len(maps) > 0
	bankFor := func(addr uint64) int {
		for _, m := range maps {
			if addr >= m.Base && addr <= m.End {
				return m.Bank
			}
		}
		return -1
	}

	bankColW := 0
	if hasMMap {
		maxBank := int64(-1)
		for _, insn := range insns {
			if insn.Address > endAddr {
				break
			}
			if b := int64(bankFor(insn.Address)); b > maxBank {
				maxBank = b
			}
		}
		if maxBank >= 0 {
			bankColW = 1
			for v := maxBank; v >= 10; v /= 10 {
				bankColW++
			}
		}
	}

	var b strings.Builder
	memID := mem.ID()

	for _, insn := range insns {
		if insn.Address > endAddr {
			break
		}

		resolved, resolveErr := d.syms.Resolve(memID, insn.Address)
		haveLabel := resolveErr == nil
		if haveLabel {
			if label, ok := d.syms.Label(resolved.Region, resolved.Addr); ok {
				fmt.Fprintf(&b, "%s:\n", label)
			}
		}

		marker := byte(':')
		if insn.Address == pc {
			marker = '>'
		} else if pc > insn.Address && pc < insn.Address+uint64(insn.Length) {
			marker = '~'
		}

		if bankColW > 0 {
			if bank := bankFor(insn.Address); bank >= 0 {
				fmt.Fprintf(&b, "%*d:", bankColW, bank)
			} else {
				fmt.Fprintf(&b, "%*s ", bankColW, "")
			}
		}

		text := resolveAddrMarkers(insn.Text, memID, d.syms)
		fmt.Fprintf(&b, "%0*X%c %s", addrWidth, insn.Address, marker, text)

		if haveLabel {
			if comment, ok := d.syms.Comment(resolved.Region, resolved.Addr); ok {
				fmt.Fprintf(&b, " ; %s", cropComment(comment))
			}
		}

		b.WriteByte('\n')
		if insn.BreaksFlow {
			b.WriteByte('\n')
		}
	}

	io.WriteString(w, b.String())
}

// cropComment returns comment's first line, cropped to 24 characters with a
// trailing ellipsis if either the line or the whole comment was truncated.
func cropComment(comment string) string {
	line := comment
	truncatedByNewline := false
	if nl := strings.IndexByte(comment, '\n'); nl >= 0 {
		line = comment[:nl]
		truncatedByNewline = true
	}
	if len(line) > 24 {
		return line[:24] + "..."
	}
	if truncatedByNewline {
		return line + "..."
	}
	return line
}
