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

// Package rundbg implements the debugger runtime (§4.H): the core-thread
// state machine, the resume-time skip map, stepping, and the halt/BLOCKED
// decision every breakpoint and step subscription funnels through.
package rundbg

import (
	"sync"
	"sync/atomic"

	"github.com/arret/arret/arch"
	"github.com/arret/arret/arreterr"
	"github.com/arret/arret/assert"
	"github.com/arret/arret/breakpoint"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
	"github.com/arret/arret/trace"
)

const logTag = "rundbg"

// CoreRunner runs one frame of emulation on the calling goroutine,
// synchronously invoking any debug ABI event handler the running frame
// triggers. It is implemented by corehost (§4.J): rundbg treats it as an
// external collaborator, the same way it treats debugif.Core.
type CoreRunner interface {
	RunFrame()
}

func pcIndex(cpuType debugif.CPUType) int {
	d := arch.Lookup(cpuType)
	if d == nil {
		return -1
	}
	for _, r := range d.Registers {
		if r.Name == "PC" {
			return r.Index
		}
	}
	return -1
}

type skipEntry struct {
	addr  uint64
	subID debugif.SubscriptionID
}

// Engine owns the core thread's run state for one loaded system: the
// IDLE/RUNNING/DONE/BLOCKED machine, the skip map, and the single-step
// subscription. It is wired as the breakpoint engine's HitHandler so both
// breakpoints and steps share one halt/BLOCKED decision.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	core    debugif.Core
	runner  CoreRunner
	bp      *breakpoint.Engine
	tracer  *trace.Engine
	logPerm logger.Permission

	state State

	skip map[string]skipEntry // CPU ID -> skip record

	stepActive   bool
	stepComplete bool
	stepSub      debugif.SubscriptionID
	stepCPUID    string

	blockedWaiting bool
	resumeSignal   bool

	lastHit int
	hasHit  bool

	// coreGoroutine identifies the goroutine currently inside RunFrame, i.e.
	// standing in for the core thread of §5. Event-handler paths that run
	// synchronously inside the core's run call (haltDecision, the skip
	// handlers) are expected to observe the same id every time; a mismatch
	// would mean an event fired outside the run call that produced it,
	// violating the "all events for a given core-run are delivered ...  on
	// the core thread" ordering guarantee. Checked, not enforced: a
	// violation is logged, never panicked, matching §7's recovery policy.
	coreGoroutine atomic.Uint64
}

// assertCoreThread logs a warning if the calling goroutine is not the one
// currently inside RunFrame. A zero recorded id (no frame in flight) is not
// considered a violation, since handlers may legitimately fire during
// synchronous setup/teardown called directly from the UI thread (e.g. a
// step's own StepBegin race is impossible, but tests invoke handlers
// directly without a RunFrame wrapper).
func (e *Engine) assertCoreThread(where string) {
	want := e.coreGoroutine.Load()
	if want == 0 {
		return
	}
	if got := assert.GetGoRoutineID(); got != want {
		logger.Logf(e.logPerm, logTag, "%s observed off the core-run goroutine (want %d, got %d)", where, want, got)
	}
}

// NewEngine creates an idle runtime bound to core and runner, wiring itself
// into bp's (and, if non-nil, tracer's) skip-map filter and bp's hit
// decision.
func NewEngine(core debugif.Core, runner CoreRunner, bp *breakpoint.Engine, tracer *trace.Engine, logPerm logger.Permission) *Engine {
	e := &Engine{
		core:    core,
		runner:  runner,
		bp:      bp,
		tracer:  tracer,
		logPerm: logPerm,
		skip:    map[string]skipEntry{},
	}
	e.cond = sync.NewCond(&e.mu)
	bp.SetSkipFunc(e.skipFor)
	bp.SetOnHit(e.HitHandler)
	if tracer != nil {
		tracer.SetSkipFunc(e.skipFor)
	}
	return e
}

// HitHandler is the breakpoint.HitHandler this runtime wires as bp's onHit
// via SetOnHit: it applies the common halt/BLOCKED decision, while
// breakpoint.Engine itself queues the deferred delete for temporary
// breakpoints.
func (e *Engine) HitHandler(bp breakpoint.Breakpoint, event debugif.Event) bool {
	e.assertCoreThread("HitHandler")
	e.mu.Lock()
	e.lastHit = bp.ID
	e.hasHit = true
	e.mu.Unlock()
	return e.haltDecision(event)
}

// LastHit reports the ID of the most recent breakpoint hit not yet
// acknowledged by AckHit, mirroring ar_bp_hit().
func (e *Engine) LastHit() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastHit, e.hasHit
}

// AckHit clears the pending hit flag, mirroring ar_bp_ack_hit().
func (e *Engine) AckHit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hasHit = false
}

// haltDecision implements the tail of §4.H's on_event: a CanHalt event
// requests a clean core halt; a !CanHalt event blocks the calling
// goroutine (standing in for the core thread) until ResumeBlocked is
// called.
func (e *Engine) haltDecision(event debugif.Event) bool {
	if event.CanHalt {
		return true
	}

	e.mu.Lock()
	e.state = Blocked
	e.blockedWaiting = true
	logger.Logf(e.logPerm, logTag, "blocked at %#x", event.Address)
	for !e.resumeSignal {
		e.cond.Wait()
	}
	e.resumeSignal = false
	e.blockedWaiting = false
	e.state = Running
	e.mu.Unlock()
	return false
}

// ResumeBlocked signals a goroutine parked in haltDecision to continue.
// Safe to call whether or not the runtime is actually blocked.
func (e *Engine) ResumeBlocked() {
	e.mu.Lock()
	e.resumeSignal = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// State reports the current core-thread state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AckDone transitions DONE -> IDLE, matching ack_done().
func (e *Engine) AckDone() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Done {
		e.state = Idle
	}
}

// skipFor reports the address currently suppressed on cpu, for
// breakpoint.Engine and trace.Engine's skip filters.
func (e *Engine) skipFor(cpu debugif.CPU) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.skip[cpu.ID()]
	if !ok {
		return 0, false
	}
	return rec.addr, true
}

// SetSkip records cpu's current PC as its skip address and installs a
// temporary broad execution subscription used purely to observe PC
// advancement: once an event reports a different address the entry (and
// its subscription) is dropped. Skip-map temp subscriptions never request
// a halt.
func (e *Engine) SetSkip(cpu debugif.CPU) {
	pcReg := pcIndex(cpu.Type())
	if pcReg < 0 {
		return
	}
	pc := cpu.GetRegister(pcReg)

	e.mu.Lock()
	old, hadOld := e.skip[cpu.ID()]
	e.mu.Unlock()
	if hadOld {
		e.core.Unsubscribe(old.subID)
	}

	sub := debugif.Subscription{
		Kind:  debugif.SubExecution,
		CPU:   cpu,
		Begin: 0,
		End:   ^uint64(0),
		Step:  debugif.StepPlain,
	}
	id := e.core.Subscribe(sub, e.skipHandler(cpu.ID()))

	e.mu.Lock()
	e.skip[cpu.ID()] = skipEntry{addr: pc, subID: id}
	e.mu.Unlock()
}

// SetSkipAll calls SetSkip for every CPU in the loaded system, matching
// the "before any resume" invocation of set_skip() in §4.H.
func (e *Engine) SetSkipAll() {
	for _, cpu := range e.core.System().CPUs() {
		e.SetSkip(cpu)
	}
}

func (e *Engine) skipHandler(cpuID string) debugif.Handler {
	return func(sub debugif.SubscriptionID, event debugif.Event) bool {
		if event.Type != debugif.EventExecution {
			return false
		}
		e.mu.Lock()
		rec, ok := e.skip[cpuID]
		if ok && rec.addr != event.Address {
			delete(e.skip, cpuID)
		}
		e.mu.Unlock()
		if ok && rec.addr != event.Address {
			e.core.Unsubscribe(sub)
		}
		return false
	}
}

// clearSkip drops cpuID's skip entry immediately, used when a step or
// resume supersedes a previous skip before it naturally expires.
func (e *Engine) clearSkip(cpuID string) {
	e.mu.Lock()
	rec, ok := e.skip[cpuID]
	if ok {
		delete(e.skip, cpuID)
	}
	e.mu.Unlock()
	if ok {
		e.core.Unsubscribe(rec.subID)
	}
}

// StepBegin installs a broad execution subscription in the given step mode
// on cpuID (empty = primary CPU) and marks a step in progress. For every
// mode but debugif.StepOut it also calls SetSkip on that CPU, to avoid an
// immediate fire at the address the step began from.
func (e *Engine) StepBegin(mode debugif.StepMode, cpuID string) error {
	e.mu.Lock()
	if e.stepActive {
		e.mu.Unlock()
		return arreterr.New(arreterr.CoreBlocked)
	}
	e.mu.Unlock()

	cpu := e.findCPU(cpuID)
	if cpu == nil {
		return arreterr.New(arreterr.UnknownCPU, cpuID)
	}

	if mode != debugif.StepOut {
		e.SetSkip(cpu)
	}

	sub := debugif.Subscription{
		Kind:  debugif.SubExecution,
		CPU:   cpu,
		Begin: 0,
		End:   ^uint64(0),
		Step:  mode,
	}
	id := e.core.Subscribe(sub, e.stepHandler())
	if id < 0 {
		return arreterr.New(arreterr.SubscriptionFailed, cpuID)
	}

	e.mu.Lock()
	e.stepActive = true
	e.stepComplete = false
	e.stepSub = id
	e.stepCPUID = cpu.ID()
	e.mu.Unlock()
	return nil
}

func (e *Engine) findCPU(cpuID string) debugif.CPU {
	if cpuID == "" {
		return e.core.System().PrimaryCPU()
	}
	for _, c := range e.core.System().CPUs() {
		if c.ID() == cpuID {
			return c
		}
	}
	return nil
}

func (e *Engine) stepHandler() debugif.Handler {
	return func(sub debugif.SubscriptionID, event debugif.Event) bool {
		e.assertCoreThread("stepHandler")
		if event.Type != debugif.EventExecution {
			return false
		}
		if skipPC, ok := e.skipFor(event.CPU); ok && skipPC == event.Address {
			return false
		}

		e.mu.Lock()
		e.stepComplete = true
		e.mu.Unlock()

		return e.haltDecision(event)
	}
}

// StepComplete reports whether the active step has fired, without
// consuming the flag; call FinishStep once observed to tear its
// subscription down.
func (e *Engine) StepComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepActive && e.stepComplete
}

// FinishStep tears down the step subscription after StepComplete has been
// observed true. A no-op if no step is active.
func (e *Engine) FinishStep() {
	e.mu.Lock()
	if !e.stepActive {
		e.mu.Unlock()
		return
	}
	sub := e.stepSub
	e.stepActive = false
	e.stepComplete = false
	e.mu.Unlock()
	e.core.Unsubscribe(sub)
}

// StepActive reports whether a step subscription is currently installed.
func (e *Engine) StepActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepActive
}

// PrepareResume implements the run verb's pre-flight when the core is
// BLOCKED (§4.I): it records a fresh skip address for every CPU, then
// signals the blocked goroutine to continue.
func (e *Engine) PrepareResume() {
	e.SetSkipAll()
	e.ResumeBlocked()
}

// RunFrame runs one frame synchronously on the calling goroutine, blocking
// until the frame completes (possibly having paused and resumed internally
// any number of times, including any time the core thread spends parked in
// BLOCKED until ResumeBlocked). Deferred breakpoint deletes are flushed
// after the frame completes.
func (e *Engine) RunFrame() {
	e.coreGoroutine.Store(assert.GetGoRoutineID())

	e.mu.Lock()
	e.state = Running
	e.mu.Unlock()

	e.runner.RunFrame()

	// runner.RunFrame only returns once every handler invocation it made
	// has itself returned, so any BLOCKED wait started during this frame
	// has already been resumed and cleared by the time we get here.
	e.mu.Lock()
	e.state = Done
	e.mu.Unlock()

	e.coreGoroutine.Store(0)

	if e.bp != nil {
		e.bp.FlushDeferred()
	}
}

// RunFrameAsync starts RunFrame on a new goroutine and returns immediately;
// callers poll State to observe completion.
func (e *Engine) RunFrameAsync() {
	go e.RunFrame()
}
