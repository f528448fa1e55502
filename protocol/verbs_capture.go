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

	"github.com/arret/arret/capture"
)

func init() {
	registerVerb("capture", verbCapture)
}

// verbCapture implements "capture start|stop|status|events [from]" (§4.G):
// start/stop a GPU VRAM capture session and inspect its recorded events
// without ever putting the full compressed VRAM diffs on the wire (a
// client that needs a diff calls "capture events" for the index and
// fetches it through the in-process API instead).
func verbCapture(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if d.capture == nil {
		errf(w, "no debug support")
		return
	}
	if nargs < 2 {
		errf(w, "usage: capture start|stop|status|events [from]")
		return
	}

	switch arg1 {
	case "start":
		if err := d.capture.Start(); err != nil {
			errf(w, "%s", jsonEscape(err.Error()))
			return
		}
		okf(w, "")
	case "stop":
		d.capture.Stop()
		okf(w, "")
	case "status":
		okf(w, `"active":%t`, d.capture.Active())
	case "events":
		verbCaptureEvents(d, w, arg2, nargs)
	default:
		errf(w, "usage: capture start|stop|status|events [from]")
	}
}

func verbCaptureEvents(d *Dispatcher, w io.Writer, fromArg string, nargs int) {
	from := 0
	if nargs >= 3 {
		n, err := strconv.Atoi(fromArg)
		if err != nil || n < 0 {
			errf(w, "usage: capture events [from]")
			return
		}
		from = n
	}

	events := d.capture.Events()
	if from > len(events) {
		from = len(events)
	}

	var b strings.Builder
	b.WriteString(`{"ok":true,"count":`)
	fmt.Fprintf(&b, "%d", len(events))
	b.WriteString(`,"events":[`)
	for i, ev := range events[from:] {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"index":%d,"kind":"%s","port":%d,"source":%d,"keyframe":%t,"pc":%d,"frame":%d,"rect":[%d,%d,%d,%d]}`,
			from+i, captureKindString(ev.Kind), ev.Port, ev.Source, ev.IsKeyframe, ev.PC, ev.FrameNumber,
			ev.DiffX, ev.DiffY, ev.DiffW, ev.DiffH)
	}
	b.WriteString("]}\n")
	io.WriteString(w, b.String())
}

func captureKindString(k capture.EventKind) string {
	if k == capture.FrameBoundary {
		return "frame"
	}
	return "command"
}
