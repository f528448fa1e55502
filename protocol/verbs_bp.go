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

	"github.com/arret/arret/breakpoint"
)

func init() {
	registerVerb("bp", verbBP)
}

func verbBP(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if nargs < 2 {
		errf(w, "usage: bp add|delete|enable|disable|list|clear|save|load ...")
		return
	}
	if d.bp == nil {
		errf(w, "no debug support")
		return
	}

	switch arg1 {
	case "add":
		bpAdd(d, w, line)
	case "delete":
		bpDelete(d, w, arg2, nargs)
	case "enable":
		bpEnable(d, w, arg2, nargs, true)
	case "disable":
		bpEnable(d, w, arg2, nargs, false)
	case "list":
		bpList(d, w)
	case "clear":
		d.bp.Clear()
		okf(w, "")
	case "save":
		bpSave(d, w, line, nargs)
	case "load":
		bpLoad(d, w, line, nargs)
	default:
		errf(w, "unknown bp subcommand: %s", jsonEscape(arg1))
	}
}

// bpAdd implements "bp add [cpu.]<addr> [flags] [condition...]": an
// optional "cpu." prefix on the address, then either a flags string (any
// combination of X, R, W, T) or free-form condition text, disambiguated by
// whether every character of the second token belongs to the flag alphabet.
func bpAdd(d *Dispatcher, w io.Writer, line string) {
	// fields: "bp", "add", <addr>, <flags-or-condition-start>, <rest>
	fields := splitFields(line, 5)
	if fields[2] == "" {
		errf(w, "usage: bp add [cpu.]<addr> [flags] [condition...]")
		return
	}
	addrTok := fields[2]

	cpuID := ""
	if dot := strings.IndexByte(addrTok, '.'); dot > 0 {
		cpuID = addrTok[:dot]
		addrTok = addrTok[dot+1:]
	}
	addr, err := strconv.ParseUint(addrTok, 16, 64)
	if err != nil {
		errf(w, "usage: bp add [cpu.]<addr> [flags] [condition...]")
		return
	}

	flags := breakpoint.Execute
	temporary := false
	condition := ""

	if len(fields) >= 4 && fields[3] != "" {
		token := fields[3]
		if isFlagsToken(token) {
			flags = 0
			for _, c := range strings.ToUpper(token) {
				switch c {
				case 'X':
					flags |= breakpoint.Execute
				case 'R':
					flags |= breakpoint.Read
				case 'W':
					flags |= breakpoint.Write
				case 'T':
					temporary = true
				}
			}
			if len(fields) >= 5 {
				condition = fields[4]
			}
		} else {
			condition = token
			if len(fields) >= 5 && fields[4] != "" {
				condition = token + " " + fields[4]
			}
		}
	}
	condition = strings.TrimRight(condition, " \t")

	id, err := d.bp.Add(addr, flags, true, temporary, condition, cpuID)
	if err != nil {
		errf(w, "subscription failed (core may not support this breakpoint type)")
		return
	}
	okf(w, `"id":%d`, id)
}

// isFlagsToken reports whether every character of token belongs to the
// breakpoint flags alphabet {X,R,W,T} (case-insensitive), the same
// character-class sniff the original uses to tell a flags string from the
// start of a free-form condition.
func isFlagsToken(token string) bool {
	for _, c := range strings.ToUpper(token) {
		if c != 'X' && c != 'R' && c != 'W' && c != 'T' {
			return false
		}
	}
	return true
}

func bpDelete(d *Dispatcher, w io.Writer, arg2 string, nargs int) {
	if nargs < 3 {
		errf(w, "usage: bp delete <id>")
		return
	}
	id, _ := strconv.Atoi(arg2)
	if err := d.bp.Delete(id); err != nil {
		errf(w, "breakpoint %d not found", id)
		return
	}
	okf(w, "")
}

func bpEnable(d *Dispatcher, w io.Writer, arg2 string, nargs int, enable bool) {
	if nargs < 3 {
		if enable {
			errf(w, "usage: bp enable <id>")
		} else {
			errf(w, "usage: bp disable <id>")
		}
		return
	}
	id, _ := strconv.Atoi(arg2)
	if err := d.bp.SetEnabled(id, enable); err != nil {
		errf(w, "breakpoint %d not found or subscription failed", id)
		return
	}
	okf(w, "")
}

func bpList(d *Dispatcher, w io.Writer) {
	var b []byte
	b = append(b, `{"ok":true,"breakpoints":[`...)
	for i, bp := range d.bp.List() {
		if i > 0 {
			b = append(b, ',')
		}
		flagsStr := []byte("---")
		if bp.Flags&breakpoint.Execute != 0 {
			flagsStr[0] = 'X'
		}
		if bp.Flags&breakpoint.Read != 0 {
			flagsStr[1] = 'R'
		}
		if bp.Flags&breakpoint.Write != 0 {
			flagsStr[2] = 'W'
		}
		b = append(b, fmt.Sprintf(`{"id":%d,"address":"0x%04x","enabled":%s,"temporary":%s,"flags":"%s","condition":"%s","cpu":"%s"}`,
			bp.ID, bp.Address, boolStr(bp.Enabled), boolStr(bp.Temporary),
			flagsStr, jsonEscape(bp.Condition), jsonEscape(bp.CPUID))...)
	}
	b = append(b, "]}\n"...)
	w.Write(b)
}

func bpPath(d *Dispatcher, line string, nargs int) (string, bool) {
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
	return base + ".bp", true
}

func bpSave(d *Dispatcher, w io.Writer, line string, nargs int) {
	path, ok := bpPath(d, line, nargs)
	if !ok {
		errf(w, "no content loaded and no path given")
		return
	}
	if err := d.bp.Save(path); err != nil {
		errf(w, "failed to save breakpoints to %s", jsonEscape(path))
		return
	}
	okf(w, `"path":"%s"`, jsonEscape(path))
}

func bpLoad(d *Dispatcher, w io.Writer, line string, nargs int) {
	path, ok := bpPath(d, line, nargs)
	if !ok {
		errf(w, "no content loaded and no path given")
		return
	}
	n, err := d.bp.Load(path)
	if err != nil {
		errf(w, "failed to load breakpoints from %s", jsonEscape(path))
		return
	}
	okf(w, `"path":"%s","count":%d`, jsonEscape(path), n)
}
