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
	"strconv"
	"time"

	"github.com/arret/arret/debugif"
	"github.com/arret/arret/rundbg"
)

const (
	minRunFrames = 1
	maxRunFrames = 10000
	maxPollTicks = 10000
	pollInterval = 100 * time.Microsecond
)

func init() {
	registerVerb("run", verbRun)
	registerVerb("s", verbStep(debugif.StepPlain))
	registerVerb("so", verbStep(debugif.StepCurrentSubroutine))
	registerVerb("sout", verbStep(debugif.StepOut))
}

// resumeIfBlocked implements the run/step pre-flight shared by every
// execution-control verb (§4.I): if the core is parked BLOCKED from a
// previous hit, acknowledge that hit, mark a fresh skip address on every
// CPU, and let the parked goroutine continue before starting new frames.
func resumeIfBlocked(d *Dispatcher) {
	if d.runtime.State() != rundbg.Blocked {
		return
	}
	d.runtime.AckHit()
	d.runtime.PrepareResume()
	for i := 0; i < maxPollTicks; i++ {
		s := d.runtime.State()
		if s != rundbg.Blocked {
			if s == rundbg.Done {
				d.runtime.AckDone()
			}
			return
		}
		time.Sleep(pollInterval)
	}
}

// verbRun implements "run [N]" (§4.I): resumes a BLOCKED core if necessary,
// then runs up to N frames (clamped to [1,10000]), stopping early on a
// breakpoint hit or a fresh BLOCKED state.
func verbRun(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if !d.hasDebug() || d.runtime == nil {
		errf(w, "no debug support")
		return
	}

	count := 1
	if nargs >= 2 {
		n, err := strconv.Atoi(arg1)
		if err != nil {
			errf(w, "bad frame count: %s", jsonEscape(arg1))
			return
		}
		count = n
	}
	if count < minRunFrames {
		count = minRunFrames
	}
	if count > maxRunFrames {
		count = maxRunFrames
	}

	resumeIfBlocked(d)

	actual := 0
	wasBlocked := false
	for ; actual < count; actual++ {
		d.runtime.RunFrameAsync()
		if !waitForFrame(d.runtime) {
			wasBlocked = true
			actual++
			break
		}
		if _, ok := d.runtime.LastHit(); ok {
			actual++
			break
		}
	}

	if hit, ok := d.runtime.LastHit(); ok {
		d.runtime.AckHit()
		if wasBlocked {
			okf(w, `"frames":%d,"breakpoint":%d,"blocked":true`, actual, hit)
		} else {
			okf(w, `"frames":%d,"breakpoint":%d`, actual, hit)
		}
		return
	}
	okf(w, `"frames":%d`, actual)
}

// waitForFrame polls the runtime until the frame started by RunFrameAsync
// either completes (returns true, leaving the engine acked back to IDLE) or
// the core parks itself BLOCKED (returns false).
func waitForFrame(e *rundbg.Engine) bool {
	for i := 0; i < maxPollTicks; i++ {
		switch e.State() {
		case rundbg.Done:
			e.AckDone()
			return true
		case rundbg.Blocked:
			return false
		}
		time.Sleep(pollInterval)
	}
	return false
}

// verbStep returns a verb handler for one of the three step verbs ("s",
// "so", "sout"), each identical but for the step mode it installs.
func verbStep(mode debugif.StepMode) verbFunc {
	return func(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
		if !d.hasDebug() || d.runtime == nil {
			errf(w, "no debug support")
			return
		}

		cpuID := ""
		if nargs >= 2 {
			cpuID = arg1
		}

		resumeIfBlocked(d)

		if err := d.runtime.StepBegin(mode, cpuID); err != nil {
			errf(w, "step subscribe failed")
			return
		}

		frames := 0
		for i := 0; i < maxPollTicks; i++ {
			d.runtime.RunFrameAsync()
			if !waitForFrame(d.runtime) {
				break
			}
			frames++
			if d.runtime.StepComplete() {
				break
			}
			if _, ok := d.runtime.LastHit(); ok {
				break
			}
		}

		d.runtime.FinishStep()

		if hit, ok := d.runtime.LastHit(); ok {
			d.runtime.AckHit()
			okf(w, `"frames":%d,"breakpoint":%d`, frames, hit)
			return
		}
		okf(w, `"frames":%d`, frames)
	}
}
