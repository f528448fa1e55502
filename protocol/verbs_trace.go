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
	"io"
	"strings"
)

func init() {
	registerVerb("trace", verbTrace)
}

func verbTrace(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if nargs < 2 {
		errf(w, "usage: trace on|off|status|cpu|registers|indent ...")
		return
	}
	if d.tracer == nil {
		errf(w, "no debug support")
		return
	}

	switch arg1 {
	case "on":
		traceOn(d, w, line, nargs)
	case "off":
		lines := d.tracer.TotalLines()
		d.tracer.Stop()
		okf(w, `"tracing":false,"lines":%d`, lines)
	case "status":
		okf(w, `"tracing":%s,"lines":%d,"registers":%s,"indent":%s,"file":"%s"`,
			boolStr(d.tracer.Active()), d.tracer.TotalLines(),
			boolStr(d.tracer.Registers()), boolStr(d.tracer.Indent()),
			jsonEscape(d.tracer.FilePath()))
	case "cpu":
		traceCPU(d, w, arg2, rest, nargs)
	case "registers":
		traceBoolSetting(d, w, arg2, nargs, "registers", d.tracer.SetRegisters, d.tracer.Registers)
	case "indent":
		traceBoolSetting(d, w, arg2, nargs, "indent", d.tracer.SetIndent, d.tracer.Indent)
	default:
		errf(w, "unknown trace subcommand: %s", jsonEscape(arg1))
	}
}

func traceOn(d *Dispatcher, w io.Writer, line string, nargs int) {
	path := ""
	if nargs >= 3 {
		fields := splitFields(line, 3)
		path = strings.TrimRight(fields[2], " \t")
	}
	if err := d.tracer.Start(path); err != nil {
		errf(w, "failed to start trace")
		return
	}
	if path != "" {
		okf(w, `"tracing":true,"file":"%s"`, jsonEscape(path))
		return
	}
	okf(w, `"tracing":true`)
}

func traceCPU(d *Dispatcher, w io.Writer, arg2, rest string, nargs int) {
	if nargs < 4 {
		errf(w, "usage: trace cpu <name> on|off")
		return
	}
	var enable bool
	switch rest {
	case "on":
		enable = true
	case "off":
		enable = false
	default:
		errf(w, "usage: trace cpu <name> on|off")
		return
	}
	if err := d.tracer.SetCPUEnabled(arg2, enable); err != nil {
		errf(w, "unknown cpu: %s", jsonEscape(arg2))
		return
	}
	okf(w, `"cpu":"%s","enabled":%s`, jsonEscape(arg2), boolStr(enable))
}

func traceBoolSetting(d *Dispatcher, w io.Writer, arg2 string, nargs int, name string, set func(bool), get func() bool) {
	if nargs < 3 {
		errf(w, "usage: trace %s on|off", name)
		return
	}
	switch arg2 {
	case "on":
		set(true)
	case "off":
		set(false)
	default:
		errf(w, "usage: trace %s on|off", name)
		return
	}
	okf(w, `"%s":%s`, name, boolStr(get()))
}
