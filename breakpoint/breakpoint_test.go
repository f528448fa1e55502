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

package breakpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
)

type fakeMem struct{ id string }

func (m *fakeMem) ID() string          { return m.id }
func (m *fakeMem) Description() string { return m.id }
func (m *fakeMem) Base() uint64        { return 0 }
func (m *fakeMem) Size() uint64        { return 0x10000 }
func (m *fakeMem) Peek(addr uint64, sideEffects bool) uint8 { return 0 }
func (m *fakeMem) Poke(addr uint64, value uint8)            {}
func (m *fakeMem) MemoryMap() []debugif.MemoryMap           { return nil }
func (m *fakeMem) GetBankAddress(addr uint64, bank int) (debugif.MemoryMap, bool) {
	return debugif.MemoryMap{}, false
}

type fakeCPUBP struct {
	id  string
	mem *fakeMem
}

func (c *fakeCPUBP) ID() string                   { return c.id }
func (c *fakeCPUBP) Description() string          { return c.id }
func (c *fakeCPUBP) Type() debugif.CPUType        { return debugif.CPUMOS6502 }
func (c *fakeCPUBP) IsPrimary() bool              { return true }
func (c *fakeCPUBP) MemoryRegion() debugif.Memory { return c.mem }
func (c *fakeCPUBP) GetRegister(idx int) uint64   { return 0 }
func (c *fakeCPUBP) SetRegister(idx int, value uint64) {}
func (c *fakeCPUBP) DelaySlot() int               { return 0 }

type fakeSystemBP struct{ cpu *fakeCPUBP }

func (s *fakeSystemBP) Description() string             { return "fake" }
func (s *fakeSystemBP) CPUs() []debugif.CPU              { return []debugif.CPU{s.cpu} }
func (s *fakeSystemBP) MemoryRegions() []debugif.Memory  { return []debugif.Memory{s.cpu.mem} }
func (s *fakeSystemBP) MiscBreakpoints() []debugif.MiscBreakpoint { return nil }
func (s *fakeSystemBP) PrimaryCPU() debugif.CPU          { return s.cpu }

// fakeCore is an in-memory debugif.Core that always succeeds and lets tests
// fire subscribed handlers directly.
type fakeCore struct {
	sys      *fakeSystemBP
	nextID   debugif.SubscriptionID
	handlers map[debugif.SubscriptionID]debugif.Handler
	fail     bool
}

func newFakeCore() *fakeCore {
	mem := &fakeMem{id: "ram"}
	cpu := &fakeCPUBP{id: "cpu0", mem: mem}
	return &fakeCore{sys: &fakeSystemBP{cpu: cpu}, handlers: map[debugif.SubscriptionID]debugif.Handler{}}
}

func (c *fakeCore) System() debugif.System { return c.sys }
func (c *fakeCore) Subscribe(sub debugif.Subscription, handler debugif.Handler) debugif.SubscriptionID {
	if c.fail {
		return -1
	}
	c.nextID++
	c.handlers[c.nextID] = handler
	return c.nextID
}
func (c *fakeCore) Unsubscribe(id debugif.SubscriptionID) { delete(c.handlers, id) }

func TestAddAndGet(t *testing.T) {
	core := newFakeCore()
	e := NewEngine(core, nil, logger.Allow)

	id, err := e.Add(0x100, Execute, true, false, "", "")
	if err != nil {
		t.Fatal(err)
	}
	bp, ok := e.Get(id)
	if !ok || bp.Address != 0x100 {
		t.Fatalf("got %+v, %v", bp, ok)
	}
}

func TestAdd_RollsBackOnSubscriptionFailure(t *testing.T) {
	core := newFakeCore()
	core.fail = true
	e := NewEngine(core, nil, logger.Allow)

	if _, err := e.Add(0x100, Execute, true, false, "", ""); err == nil {
		t.Fatal("expected subscription failure to be reported")
	}
	if e.Count() != 0 {
		t.Fatalf("expected rollback to leave no breakpoints, got %d", e.Count())
	}
}

func TestDelete_UnknownID(t *testing.T) {
	core := newFakeCore()
	e := NewEngine(core, nil, logger.Allow)
	if err := e.Delete(999); err == nil {
		t.Fatal("expected error deleting unknown breakpoint")
	}
}

func TestHandlerFor_InvokesOnHitAndDefersTemporaryDeletion(t *testing.T) {
	core := newFakeCore()
	var hit bool
	e := NewEngine(core, func(bp Breakpoint, event debugif.Event) bool {
		hit = true
		return true
	}, logger.Allow)

	id, err := e.Add(0x200, Execute, true, true, "", "")
	if err != nil {
		t.Fatal(err)
	}

	// find the subscription id for this handler and fire it
	for sid := range core.handlers {
		core.handlers[sid](sid, debugif.Event{Type: debugif.EventExecution, Address: 0x200})
	}

	if !hit {
		t.Fatal("expected onHit to be called")
	}
	e.FlushDeferred()
	if _, ok := e.Get(id); ok {
		t.Fatal("expected temporary breakpoint to be deleted after flush")
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	core := newFakeCore()
	e := NewEngine(core, nil, logger.Allow)

	if _, err := e.Add(0x100, Execute, true, false, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Add(0x200, Read|Write, false, true, "x>1", "cpu0"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "test.bp")
	if err := e.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded := NewEngine(newFakeCore(), nil, logger.Allow)
	n, err := loaded.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || loaded.Count() != 2 {
		t.Fatalf("expected 2 breakpoints after load, got n=%d count=%d", n, loaded.Count())
	}
}

func TestLoad_SkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bp")
	data := "# a comment\n\n0100 X\ncpu0.0200 rwd cond text\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(newFakeCore(), nil, logger.Allow)
	if _, err := e.Load(path); err != nil {
		t.Fatal(err)
	}
	if e.Count() != 2 {
		t.Fatalf("expected 2 breakpoints, got %d", e.Count())
	}
}
