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
)

func init() {
	registerVerb("quit", verbQuit)
	registerVerb("info", verbInfo)
	registerVerb("content", verbContent)
	registerVerb("reset", verbReset)
	registerVerb("manual", verbManual)
	registerVerb("cpu", verbCPU)
	registerVerb("regions", verbRegions)
}

func verbQuit(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	okf(w, "")
	d.stop()
}

func verbInfo(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if d.host == nil {
		errf(w, "no host information available")
		return
	}
	info := d.host.Info()
	okf(w, `"core":"%s","version":"%s","width":%d,"height":%d,"fps":%.2f,"sample_rate":%.0f,"debug":%s`,
		jsonEscape(info.CoreName), jsonEscape(info.CoreVersion),
		info.Width, info.Height, info.FPS, info.SampleRate,
		boolStr(d.hasDebug()))
}

func verbContent(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if !d.hasDebug() {
		errf(w, "no debug support")
		return
	}
	if d.host == nil {
		errf(w, "no content loaded")
		return
	}
	info, ok := d.host.ContentInfo()
	if !ok {
		errf(w, "no content info available")
		return
	}
	okf(w, `"info":"%s"`, jsonEscape(info))
}

func verbReset(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if d.host == nil {
		errf(w, "no host available")
		return
	}
	d.host.Reset()
	okf(w, "")
}

func verbManual(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if nargs < 2 {
		errf(w, "usage: manual on|off")
		return
	}
	if d.host == nil {
		errf(w, "no host available")
		return
	}
	switch arg1 {
	case "on":
		d.host.SetManualInput(true)
		okf(w, `"manual":true`)
	case "off":
		d.host.SetManualInput(false)
		okf(w, `"manual":false`)
	default:
		errf(w, "usage: manual on|off")
	}
}

func verbCPU(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if !d.hasDebug() {
		errf(w, "no debug support")
		return
	}
	var b []byte
	b = append(b, `{"ok":true,"cpus":[`...)
	for i, c := range d.core.System().CPUs() {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, fmt.Sprintf(`{"id":"%s","description":"%s","primary":%s}`,
			jsonEscape(c.ID()), jsonEscape(c.Description()), boolStr(c.IsPrimary()))...)
	}
	b = append(b, "]}\n"...)
	w.Write(b)
}

func verbRegions(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if !d.hasDebug() {
		errf(w, "no debug support")
		return
	}
	var b []byte
	b = append(b, `{"ok":true,"regions":[`...)
	for i, m := range d.regions() {
		if i > 0 {
			b = append(b, ',')
		}
		hasMMap := len(m.MemoryMap()) > 0
		b = append(b, fmt.Sprintf(`{"id":"%s","description":"%s","base_address":"0x%x","size":%d,"has_mmap":%s}`,
			jsonEscape(m.ID()), jsonEscape(m.Description()), m.Base(), m.Size(), boolStr(hasMMap))...)
	}
	b = append(b, "]}\n"...)
	w.Write(b)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
