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

	"github.com/arret/arret/symbols"
)

func init() {
	registerVerb("sym", verbSym)
}

func verbSym(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if nargs < 2 {
		errf(w, "usage: sym label|comment get|set|delete ... | sym list | sym save|load [path]")
		return
	}
	if d.syms == nil {
		errf(w, "no debug support")
		return
	}

	if arg1 == "list" {
		symList(d, w)
		return
	}
	if arg1 == "save" {
		symSave(d, w, line, nargs)
		return
	}
	if arg1 == "load" {
		symLoad(d, w, line, nargs)
		return
	}

	if arg1 != "label" && arg1 != "comment" {
		errf(w, "unknown sym subcommand: %s", jsonEscape(arg1))
		return
	}
	isLabel := arg1 == "label"

	// fields: "sym", "label"/"comment", <sub_cmd>, <addrspec>, <value...>
	fields := splitFields(line, 5)
	subCmd, addrspec, value := fields[2], fields[3], fields[4]
	if addrspec == "" {
		errf(w, "usage: sym %s get|set|delete <addrspec> [value]", arg1)
		return
	}

	region, addr, bank, haveBank, err := parseAddrSpec(d, addrspec)
	if err != nil {
		errf(w, "%s", jsonEscape(err.Error()))
		return
	}

	var resolved symbols.ResolvedAddr
	if haveBank {
		resolved, err = d.syms.ResolveBank(region, addr, bank)
	} else {
		resolved, err = d.syms.Resolve(region, addr)
	}
	if err != nil {
		if haveBank {
			errf(w, "cannot resolve %s bank 0x%x at 0x%x", jsonEscape(region), bank, addr)
		} else {
			errf(w, "%s", jsonEscape(err.Error()))
		}
		return
	}

	switch subCmd {
	case "get":
		symGet(d, w, isLabel, resolved)
	case "delete":
		if isLabel {
			d.syms.DeleteLabel(resolved.Region, resolved.Addr)
		} else {
			d.syms.DeleteComment(resolved.Region, resolved.Addr)
		}
		okf(w, "")
	case "set":
		symSet(d, w, isLabel, arg1, resolved, value)
	default:
		errf(w, "unknown sym %s subcommand: %s", arg1, jsonEscape(subCmd))
	}
}

func symList(d *Dispatcher, w io.Writer) {
	var b []byte
	b = append(b, `{"ok":true,"symbols":[`...)
	for i, sym := range d.syms.List() {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, fmt.Sprintf(`{"region":"%s","addr":%d`, jsonEscape(sym.Region), sym.Addr)...)
		if sym.Label != "" {
			b = append(b, fmt.Sprintf(`,"label":"%s"`, jsonEscape(sym.Label))...)
		}
		if sym.Comment != "" {
			b = append(b, fmt.Sprintf(`,"comment":"%s"`, jsonEscape(sym.Comment))...)
		}
		b = append(b, '}')
	}
	b = append(b, "]}\n"...)
	w.Write(b)
}

// symPath resolves the path argument for "sym save"/"sym load": an explicit
// third field if given, otherwise the sibling "<rombase>.sym.json" of the
// loaded content.
func symPath(d *Dispatcher, line string, nargs int) (string, bool) {
	if nargs >= 3 {
		fields := splitFields(line, 3)
		if fields[2] != "" {
			return strings.TrimRight(fields[2], " \t"), true
		}
	}
	if d.host == nil {
		return "", false
	}
	base, ok := d.host.ContentPathBase()
	if !ok || base == "" {
		return "", false
	}
	return base + ".sym.json", true
}

func symSave(d *Dispatcher, w io.Writer, line string, nargs int) {
	path, ok := symPath(d, line, nargs)
	if !ok {
		errf(w, "no content loaded and no path given")
		return
	}
	if err := d.syms.Save(path); err != nil {
		errf(w, "failed to save symbols to %s", jsonEscape(path))
		return
	}
	okf(w, `"path":"%s"`, jsonEscape(path))
}

func symLoad(d *Dispatcher, w io.Writer, line string, nargs int) {
	path, ok := symPath(d, line, nargs)
	if !ok {
		errf(w, "no content loaded and no path given")
		return
	}
	if err := d.syms.Load(path); err != nil {
		errf(w, "failed to load symbols from %s", jsonEscape(path))
		return
	}
	okf(w, `"path":"%s","count":%d`, jsonEscape(path), d.syms.Count())
}

func symGet(d *Dispatcher, w io.Writer, isLabel bool, resolved symbols.ResolvedAddr) {
	if isLabel {
		if label, ok := d.syms.Label(resolved.Region, resolved.Addr); ok {
			okf(w, `"label":"%s"`, jsonEscape(label))
		} else {
			okf(w, `"label":null`)
		}
		return
	}
	if comment, ok := d.syms.Comment(resolved.Region, resolved.Addr); ok {
		okf(w, `"comment":"%s"`, jsonEscape(comment))
	} else {
		okf(w, `"comment":null`)
	}
}

func symSet(d *Dispatcher, w io.Writer, isLabel bool, kind string, resolved symbols.ResolvedAddr, value string) {
	value = strings.TrimRight(value, " \t\r\n")
	if value == "" {
		errf(w, "usage: sym %s set <addrspec> <value>", kind)
		return
	}
	if isLabel {
		if err := d.syms.SetLabel(resolved.Region, resolved.Addr, value); err != nil {
			errf(w, "invalid label: must match [a-zA-Z_][a-zA-Z0-9_]*")
			return
		}
	} else {
		d.syms.SetComment(resolved.Region, resolved.Addr, value)
	}
	okf(w, "")
}

// parseAddrSpec parses "<hex>", "region.<hex>", or "region.<bank_hex>:<hex>"
// (§4.B addrspec grammar). A bare hex address defaults its region to the
// primary CPU's memory region.
func parseAddrSpec(d *Dispatcher, spec string) (region string, addr uint64, bank int, haveBank bool, err error) {
	dot := strings.IndexByte(spec, '.')
	var remainder string
	if dot < 0 {
		if !d.hasDebug() {
			return "", 0, 0, false, fmt.Errorf("no debug support for default region")
		}
		cpu := d.core.System().PrimaryCPU()
		mem := cpu.MemoryRegion()
		if mem == nil {
			return "", 0, 0, false, fmt.Errorf("no debug support for default region")
		}
		region = mem.ID()
		remainder = spec
	} else {
		if dot == 0 {
			return "", 0, 0, false, fmt.Errorf("bad addrspec: %s", spec)
		}
		region = spec[:dot]
		remainder = spec[dot+1:]
	}

	if colon := strings.IndexByte(remainder, ':'); colon >= 0 {
		bankVal, e1 := strconv.ParseInt(remainder[:colon], 16, 64)
		addrVal, e2 := strconv.ParseUint(remainder[colon+1:], 16, 64)
		if e1 != nil || e2 != nil {
			return "", 0, 0, false, fmt.Errorf("bad addrspec: %s", spec)
		}
		return region, addrVal, int(bankVal), true, nil
	}

	addrVal, e := strconv.ParseUint(remainder, 16, 64)
	if e != nil {
		return "", 0, 0, false, fmt.Errorf("bad addrspec: %s", spec)
	}
	return region, addrVal, 0, false, nil
}
