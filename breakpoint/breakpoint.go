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

// Package breakpoint implements the breakpoint engine (§4.D): monotone-id
// breakpoint records synced onto debug ABI subscriptions, with the
// "sync_subscriptions" pattern of tearing down and rebuilding every
// breakpoint subscription after each mutation, and deferred deletion of
// temporary breakpoints from within an event handler.
package breakpoint

import (
	"sync"

	"github.com/arret/arret/arreterr"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
)

// Flags is a bitmask of watched operations, reusing debugif.MemOp's bit
// layout so a breakpoint's flags translate directly into a subscription's
// memory operation mask.
type Flags = debugif.MemOp

const (
	Execute = debugif.OpExec
	Read    = debugif.OpRead
	Write   = debugif.OpWrite
)

// Breakpoint is one address/CPU-scoped stop condition (§3 Breakpoint record).
type Breakpoint struct {
	ID        int
	Address   uint64
	Enabled   bool
	Temporary bool
	Flags     Flags
	Condition string // opaque, unevaluated (§2 Open Questions)
	CPUID     string // empty = primary CPU
}

const logTag = "breakpoint"

// HitHandler is invoked when a breakpoint's subscription fires. Returning
// true requests a clean core halt, mirroring debugif.Handler.
type HitHandler func(bp Breakpoint, event debugif.Event) bool

// Engine owns the breakpoint table for one loaded system and keeps its
// debug ABI subscriptions in sync with it.
type Engine struct {
	mu sync.Mutex

	core   debugif.Core
	onHit  HitHandler
	logPerm logger.Permission

	bps    map[int]Breakpoint
	nextID int

	subToBP   map[debugif.SubscriptionID]int
	subFailed map[int]bool

	deferredDeletes []int

	autoSave bool
	savePath func() string

	// skipFunc, when set, reports the address the runtime is currently
	// suppressing on cpu (the resume-time skip map, §4.H): an execution
	// event landing there is not treated as a fresh hit.
	skipFunc func(cpu debugif.CPU) (uint64, bool)
}

// NewEngine creates an empty breakpoint engine bound to core. onHit is
// called whenever a breakpoint subscription fires.
func NewEngine(core debugif.Core, onHit HitHandler, logPerm logger.Permission) *Engine {
	return &Engine{
		core:      core,
		onHit:     onHit,
		logPerm:   logPerm,
		bps:       map[int]Breakpoint{},
		nextID:    1,
		subToBP:   map[debugif.SubscriptionID]int{},
		subFailed: map[int]bool{},
	}
}

// SetOnHit replaces the hit handler consulted for every breakpoint,
// letting the debugger runtime wire its halt/BLOCKED decision in after
// both engines have been constructed.
func (e *Engine) SetOnHit(onHit HitHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onHit = onHit
}

// SetSkipFunc installs the runtime's skip-map lookup so a breakpoint does
// not re-fire on the single execution event a resume from that same
// address would otherwise produce.
func (e *Engine) SetSkipFunc(fn func(cpu debugif.CPU) (uint64, bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skipFunc = fn
}

// SetAutoSave enables or disables saving to path() after every mutation.
func (e *Engine) SetAutoSave(on bool, path func() string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoSave = on
	e.savePath = path
}

func (e *Engine) autoSaveLocked() {
	if !e.autoSave || e.savePath == nil {
		return
	}
	path := e.savePath()
	if path == "" {
		return
	}
	if err := e.saveLocked(path); err != nil {
		logger.Logf(e.logPerm, logTag, "auto-save failed: %v", err)
	}
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

// syncSubscriptionsLocked tears down every breakpoint subscription and
// rebuilds it from the current table, mirroring the original's
// sync_subscriptions: it is simpler and less error-prone than diffing the
// old and new subscription sets on every mutation.
func (e *Engine) syncSubscriptionsLocked() {
	for sub := range e.subToBP {
		e.core.Unsubscribe(sub)
	}
	e.subToBP = map[debugif.SubscriptionID]int{}
	e.subFailed = map[int]bool{}

	for id, bp := range e.bps {
		if !bp.Enabled {
			continue
		}
		cpu := e.findCPU(bp.CPUID)
		if cpu == nil {
			e.subFailed[id] = true
			continue
		}

		if bp.Flags&Execute != 0 {
			sub := debugif.Subscription{
				Kind:  debugif.SubExecution,
				CPU:   cpu,
				Begin: bp.Address,
				End:   bp.Address,
				Step:  debugif.StepPlain,
			}
			sid := e.core.Subscribe(sub, e.handlerFor(id))
			if sid >= 0 {
				e.subToBP[sid] = id
			} else {
				e.subFailed[id] = true
			}
		}

		if bp.Flags&(Read|Write) != 0 {
			mem := cpu.MemoryRegion()
			if mem == nil {
				e.subFailed[id] = true
				continue
			}
			var op debugif.MemOp
			if bp.Flags&Read != 0 {
				op |= debugif.OpRead
			}
			if bp.Flags&Write != 0 {
				op |= debugif.OpWrite
			}
			sub := debugif.Subscription{
				Kind:   debugif.SubMemory,
				Memory: mem,
				Begin:  bp.Address,
				End:    bp.Address,
				Op:     op,
			}
			sid := e.core.Subscribe(sub, e.handlerFor(id))
			if sid >= 0 {
				e.subToBP[sid] = id
			} else {
				e.subFailed[id] = true
			}
		}
	}
}

func (e *Engine) handlerFor(id int) debugif.Handler {
	return func(sub debugif.SubscriptionID, event debugif.Event) bool {
		e.mu.Lock()
		bp, ok := e.bps[id]
		skip := e.skipFunc
		e.mu.Unlock()
		if !ok {
			return false
		}
		if event.Type == debugif.EventExecution && skip != nil {
			if skipPC, ok := skip(event.CPU); ok && skipPC == event.Address {
				return false
			}
		}
		halt := true
		if e.onHit != nil {
			halt = e.onHit(bp, event)
		}
		if bp.Temporary {
			e.DeferDelete(id)
		}
		return halt
	}
}

// Add creates a new enabled or disabled breakpoint and returns its ID, or
// an error if the requested subscriptions could not be established (e.g.
// an unknown CPU ID).
func (e *Engine) Add(addr uint64, flags Flags, enabled, temporary bool, condition, cpuID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	bp := Breakpoint{ID: id, Address: addr, Enabled: enabled, Temporary: temporary, Flags: flags, Condition: condition, CPUID: cpuID}
	e.bps[id] = bp
	e.syncSubscriptionsLocked()

	if e.subFailed[id] {
		delete(e.bps, id)
		e.syncSubscriptionsLocked()
		return 0, arreterr.New(arreterr.SubscriptionFailed, cpuID)
	}

	e.autoSaveLocked()
	return id, nil
}

// Delete removes a breakpoint by ID.
func (e *Engine) Delete(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.bps[id]; !ok {
		return arreterr.New(arreterr.BreakpointUnknown, id)
	}
	delete(e.bps, id)
	e.syncSubscriptionsLocked()
	e.autoSaveLocked()
	return nil
}

// SetEnabled toggles a breakpoint's enabled state, rolling back if the
// resulting subscription cannot be established.
func (e *Engine) SetEnabled(id int, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	bp, ok := e.bps[id]
	if !ok {
		return arreterr.New(arreterr.BreakpointUnknown, id)
	}
	old := bp.Enabled
	bp.Enabled = enabled
	e.bps[id] = bp
	e.syncSubscriptionsLocked()

	if e.subFailed[id] {
		bp.Enabled = old
		e.bps[id] = bp
		e.syncSubscriptionsLocked()
		return arreterr.New(arreterr.SubscriptionFailed, id)
	}

	e.autoSaveLocked()
	return nil
}

// SetTemporary marks a breakpoint for auto-deletion on its next hit.
func (e *Engine) SetTemporary(id int, temporary bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	bp, ok := e.bps[id]
	if !ok {
		return arreterr.New(arreterr.BreakpointUnknown, id)
	}
	bp.Temporary = temporary
	e.bps[id] = bp
	e.autoSaveLocked()
	return nil
}

// Replace overwrites every field of an existing breakpoint, rolling back
// entirely if the new subscription set fails.
func (e *Engine) Replace(id int, addr uint64, flags Flags, enabled, temporary bool, condition, cpuID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	old, ok := e.bps[id]
	if !ok {
		return arreterr.New(arreterr.BreakpointUnknown, id)
	}

	e.bps[id] = Breakpoint{ID: id, Address: addr, Enabled: enabled, Temporary: temporary, Flags: flags, Condition: condition, CPUID: cpuID}
	e.syncSubscriptionsLocked()

	if e.subFailed[id] {
		e.bps[id] = old
		e.syncSubscriptionsLocked()
		return arreterr.New(arreterr.SubscriptionFailed, id)
	}

	e.autoSaveLocked()
	return nil
}

// Get returns a breakpoint by ID.
func (e *Engine) Get(id int) (Breakpoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bp, ok := e.bps[id]
	return bp, ok
}

// List returns every breakpoint, unordered.
func (e *Engine) List() []Breakpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Breakpoint, 0, len(e.bps))
	for _, bp := range e.bps {
		out = append(out, bp)
	}
	return out
}

// Count returns the number of breakpoints.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bps)
}

// Clear removes every breakpoint.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bps = map[int]Breakpoint{}
	e.syncSubscriptionsLocked()
	e.autoSaveLocked()
}

// SubToID returns the breakpoint ID owning sub, or (0, false) if sub does
// not belong to a breakpoint.
func (e *Engine) SubToID(sub debugif.SubscriptionID) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.subToBP[sub]
	return id, ok
}

// DeferDelete queues a breakpoint for deletion once FlushDeferred is
// called, safe to invoke from within a hit handler where deleting the
// breakpoint (and its own subscription) immediately would be unsafe.
func (e *Engine) DeferDelete(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deferredDeletes = append(e.deferredDeletes, id)
}

// FlushDeferred deletes every breakpoint queued by DeferDelete. Called by
// the debugger runtime once execution has actually suspended.
func (e *Engine) FlushDeferred() {
	e.mu.Lock()
	pending := e.deferredDeletes
	e.deferredDeletes = nil
	e.mu.Unlock()

	for _, id := range pending {
		_ = e.Delete(id)
	}
}

// Save and Load persist the breakpoint table to and from the ASCII format
// in persist.go.
