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

package rundbg

import (
	"testing"
	"time"

	"github.com/arret/arret/breakpoint"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
)

type fakeMemR struct{ data map[uint64]uint8 }

func (m *fakeMemR) ID() string          { return "ram" }
func (m *fakeMemR) Description() string { return "ram" }
func (m *fakeMemR) Base() uint64        { return 0 }
func (m *fakeMemR) Size() uint64        { return 0x10000 }
func (m *fakeMemR) Peek(addr uint64, sideEffects bool) uint8 { return m.data[addr] }
func (m *fakeMemR) Poke(addr uint64, value uint8)            { m.data[addr] = value }
func (m *fakeMemR) MemoryMap() []debugif.MemoryMap           { return nil }
func (m *fakeMemR) GetBankAddress(addr uint64, bank int) (debugif.MemoryMap, bool) {
	return debugif.MemoryMap{}, false
}

type fakeCPUR struct {
	id   string
	mem  *fakeMemR
	regs [16]uint64
}

func (c *fakeCPUR) ID() string                   { return c.id }
func (c *fakeCPUR) Description() string          { return c.id }
func (c *fakeCPUR) Type() debugif.CPUType        { return debugif.CPUMOS6502 }
func (c *fakeCPUR) IsPrimary() bool              { return true }
func (c *fakeCPUR) MemoryRegion() debugif.Memory { return c.mem }
func (c *fakeCPUR) GetRegister(idx int) uint64   { return c.regs[idx] }
func (c *fakeCPUR) SetRegister(idx int, value uint64) { c.regs[idx] = value }
func (c *fakeCPUR) DelaySlot() int               { return 0 }

type fakeSystemR struct {
	cpu *fakeCPUR
}

func (s *fakeSystemR) Description() string                      { return "fake" }
func (s *fakeSystemR) CPUs() []debugif.CPU                      { return []debugif.CPU{s.cpu} }
func (s *fakeSystemR) MemoryRegions() []debugif.Memory          { return []debugif.Memory{s.cpu.mem} }
func (s *fakeSystemR) MiscBreakpoints() []debugif.MiscBreakpoint { return nil }
func (s *fakeSystemR) PrimaryCPU() debugif.CPU                  { return s.cpu }

type fakeCoreR struct {
	sys      *fakeSystemR
	nextID   debugif.SubscriptionID
	handlers map[debugif.SubscriptionID]debugif.Handler
	subs     map[debugif.SubscriptionID]debugif.Subscription
}

func newFakeCoreR() *fakeCoreR {
	mem := &fakeMemR{data: map[uint64]uint8{}}
	cpu := &fakeCPUR{id: "cpu0", mem: mem}
	return &fakeCoreR{
		sys:      &fakeSystemR{cpu: cpu},
		handlers: map[debugif.SubscriptionID]debugif.Handler{},
		subs:     map[debugif.SubscriptionID]debugif.Subscription{},
	}
}

func (c *fakeCoreR) System() debugif.System { return c.sys }
func (c *fakeCoreR) Subscribe(sub debugif.Subscription, handler debugif.Handler) debugif.SubscriptionID {
	c.nextID++
	c.handlers[c.nextID] = handler
	c.subs[c.nextID] = sub
	return c.nextID
}
func (c *fakeCoreR) Unsubscribe(id debugif.SubscriptionID) {
	delete(c.handlers, id)
	delete(c.subs, id)
}

// fireExecution invokes every currently-subscribed handler for cpu at pc, in
// map-iteration (arbitrary) order, returning true if any requested a halt.
func (c *fakeCoreR) fireExecution(cpu debugif.CPU, pc uint64) bool {
	halted := false
	for id, h := range c.handlers {
		if h(id, debugif.Event{Type: debugif.EventExecution, CPU: cpu, Address: pc, CanHalt: true}) {
			halted = true
		}
	}
	return halted
}

// fakeRunner drives a scripted sequence of core-thread activity when
// RunFrame is called, standing in for corehost's retro_run() loop.
type fakeRunner struct {
	fn func()
}

func (r *fakeRunner) RunFrame() {
	if r.fn != nil {
		r.fn()
	}
}

func newRuntime(core *fakeCoreR, runner CoreRunner) (*Engine, *breakpoint.Engine) {
	bp := breakpoint.NewEngine(core, nil, logger.Allow)
	e := NewEngine(core, runner, bp, nil, logger.Allow)
	return e, bp
}

func TestInitialState_Idle(t *testing.T) {
	core := newFakeCoreR()
	e, _ := newRuntime(core, &fakeRunner{})
	if e.State() != Idle {
		t.Fatalf("expected Idle, got %v", e.State())
	}
}

func TestRunFrame_CleanHaltReachesDone(t *testing.T) {
	core := newFakeCoreR()
	runner := &fakeRunner{}
	e, bp := newRuntime(core, runner)

	if _, err := bp.Add(0x1234, breakpoint.Execute, true, false, "", ""); err != nil {
		t.Fatal(err)
	}

	runner.fn = func() {
		core.fireExecution(core.sys.cpu, 0x1234)
	}

	e.RunFrame()
	if e.State() != Done {
		t.Fatalf("expected Done after clean halt, got %v", e.State())
	}
}

func TestRunFrame_BlockedResumesAndCompletes(t *testing.T) {
	core := newFakeCoreR()
	runner := &fakeRunner{}
	e, bp := newRuntime(core, runner)

	if _, err := bp.Add(0x2000, breakpoint.Execute, true, false, "", ""); err != nil {
		t.Fatal(err)
	}

	runner.fn = func() {
		core.handlerRoundtrip(0x2000)
	}

	go e.RunFrame()

	deadline := time.Now().Add(2 * time.Second)
	for e.State() != Blocked {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for Blocked, last state %v", e.State())
		}
		time.Sleep(time.Millisecond)
	}

	e.PrepareResume()

	deadline2 := time.Now().Add(2 * time.Second)
	for e.State() != Done {
		if time.Now().After(deadline2) {
			t.Fatalf("timed out waiting for Done, last state %v", e.State())
		}
		time.Sleep(time.Millisecond)
	}
}

// handlerRoundtrip fires a !CanHalt execution event at addr through a single
// subscribed handler (the last one map iteration yields), on the calling
// goroutine; the handler blocks until the runtime is resumed.
func (c *fakeCoreR) handlerRoundtrip(addr uint64) {
	var handler debugif.Handler
	var sid debugif.SubscriptionID
	for id, h := range c.handlers {
		sid, handler = id, h
	}
	handler(sid, debugif.Event{Type: debugif.EventExecution, CPU: c.sys.cpu, Address: addr, CanHalt: false})
}

func TestStepBegin_UnknownCPU(t *testing.T) {
	core := newFakeCoreR()
	e, _ := newRuntime(core, &fakeRunner{})
	if err := e.StepBegin(debugif.StepPlain, "nope"); err == nil {
		t.Fatal("expected error for unknown CPU")
	}
}

func TestStepBegin_CompletesOnMatchingEvent(t *testing.T) {
	core := newFakeCoreR()
	e, _ := newRuntime(core, &fakeRunner{})

	if err := e.StepBegin(debugif.StepPlain, ""); err != nil {
		t.Fatal(err)
	}
	if e.StepComplete() {
		t.Fatal("expected step incomplete before any event")
	}

	// The skip subscription (installed for the current PC, 0) and the
	// step subscription both fire; the skip entry suppresses nothing here
	// since the step lands away from the skip address.
	core.fireExecution(core.sys.cpu, 0x0100)

	if !e.StepComplete() {
		t.Fatal("expected step complete after a matching execution event")
	}
	e.FinishStep()
	if e.StepActive() {
		t.Fatal("expected step inactive after FinishStep")
	}
}

func TestSetSkip_SuppressesReFireAtSameAddress(t *testing.T) {
	core := newFakeCoreR()
	e, bp := newRuntime(core, &fakeRunner{})

	if _, err := bp.Add(0x3000, breakpoint.Execute, true, false, "", ""); err != nil {
		t.Fatal(err)
	}

	core.sys.cpu.regs[5] = 0x3000 // PC register index for MOS6502
	e.SetSkip(core.sys.cpu)

	halted := core.fireExecution(core.sys.cpu, 0x3000)
	if halted {
		t.Fatal("expected skip to suppress the breakpoint re-fire")
	}
}

func TestSetSkip_DropsEntryOnceCPUAdvances(t *testing.T) {
	core := newFakeCoreR()
	e, bp := newRuntime(core, &fakeRunner{})

	if _, err := bp.Add(0x4000, breakpoint.Execute, true, false, "", ""); err != nil {
		t.Fatal(err)
	}

	core.sys.cpu.regs[5] = 0x4000
	e.SetSkip(core.sys.cpu)

	// Any event elsewhere first drops the skip subscription's own entry...
	core.fireExecution(core.sys.cpu, 0x4001)

	// ...so a later hit at the original address is no longer suppressed.
	halted := core.fireExecution(core.sys.cpu, 0x4000)
	if !halted {
		t.Fatal("expected breakpoint to fire once its skip entry expired")
	}
}
