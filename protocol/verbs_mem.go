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
	"strconv"
	"strings"

	"github.com/arret/arret/arch"
)

func init() {
	registerVerb("input", verbInput)
	registerVerb("peek", verbPeek)
	registerVerb("poke", verbPoke)
	registerVerb("reg", verbReg)
}

// joypadID maps a libretro-style joypad button name to its device ID,
// grounded on the RETRO_DEVICE_ID_JOYPAD_* constants.
var joypadID = map[string]int{
	"b": 0, "y": 1, "select": 2, "start": 3,
	"up": 4, "down": 5, "left": 6, "right": 7,
	"a": 8, "x": 9, "l": 10, "r": 11,
	"l2": 12, "r2": 13, "l3": 14, "r3": 15,
}

func verbInput(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if nargs < 3 {
		errf(w, "usage: input <button> <0|1>")
		return
	}
	id, ok := joypadID[strings.ToLower(arg1)]
	if !ok {
		errf(w, "unknown button: %s", jsonEscape(arg1))
		return
	}
	if d.host == nil {
		errf(w, "no host available")
		return
	}
	v, _ := strconv.Atoi(arg2)
	if v != 0 {
		d.host.SetButtonOverride(id, true)
	} else {
		d.host.SetButtonOverride(id, false)
	}
	okf(w, "")
}

func parseUint(s string) uint64 {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, _ := strconv.ParseUint(s, base, 64)
	return v
}

func verbPeek(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if !d.hasDebug() {
		errf(w, "no debug support")
		return
	}
	if nargs < 2 {
		errf(w, "usage: peek <addr> [len]")
		return
	}
	addr := parseUint(arg1)
	plen := 1
	if nargs >= 3 {
		plen = int(parseUint(arg2))
	}
	if plen < 1 {
		plen = 1
	}
	if plen > 256 {
		plen = 256
	}

	mem := d.core.System().PrimaryCPU().MemoryRegion()
	if mem == nil {
		errf(w, "no memory region available")
		return
	}

	var b []byte
	b = append(b, fmt.Sprintf(`{"ok":true,"addr":"0x%04x","data":[`, addr)...)
	for i := 0; i < plen; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, fmt.Sprintf("%d", mem.Peek(addr+uint64(i), false))...)
	}
	b = append(b, "]}\n"...)
	w.Write(b)
}

func verbPoke(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if !d.hasDebug() {
		errf(w, "no debug support")
		return
	}
	if nargs < 3 {
		errf(w, "usage: poke <addr> <byte>...")
		return
	}
	addr := parseUint(arg1)

	mem := d.core.System().PrimaryCPU().MemoryRegion()
	if mem == nil {
		errf(w, "no memory region available")
		return
	}

	all := arg2
	if nargs >= 4 {
		all = arg2 + " " + rest
	}
	count := 0
	for _, tok := range strings.Fields(all) {
		val := uint8(parseUint(tok))
		mem.Poke(addr+uint64(count), val)
		count++
	}
	okf(w, `"written":%d`, count)
}

func verbReg(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if !d.hasDebug() {
		errf(w, "no debug support")
		return
	}
	cpu := d.core.System().PrimaryCPU()

	if nargs < 2 {
		desc := arch.Lookup(cpu.Type())
		var b []byte
		b = append(b, `{"ok":true,"registers":{`...)
		first := true
		if desc != nil {
			for _, r := range desc.Registers {
				if !first {
					b = append(b, ',')
				}
				first = false
				b = append(b, fmt.Sprintf(`"%s":%d`, r.Name, cpu.GetRegister(r.Index))...)
			}
		}
		b = append(b, "}}\n"...)
		w.Write(b)
		return
	}

	entry, ok := registerByName(cpu.Type(), arg1)
	if !ok {
		errf(w, "unknown register: %s", jsonEscape(arg1))
		return
	}

	if nargs >= 3 {
		val := parseUint(arg2)
		cpu.SetRegister(entry.Index, val)
		okf(w, "")
		return
	}

	okf(w, `"%s":%d`, arg1, cpu.GetRegister(entry.Index))
}
