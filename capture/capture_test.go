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

package capture

import (
	"encoding/binary"
	"testing"

	"github.com/arret/arret/debugif"
)

func TestQCompressRoundTrip(t *testing.T) {
	data := make([]byte, vramBytes)
	for i := range data {
		data[i] = byte(i)
	}
	compressed := qcompress(data)
	out, ok := qdecompress(compressed, vramBytes)
	if !ok {
		t.Fatal("expected successful decompress")
	}
	if string(out) != string(data) {
		t.Fatal("round trip mismatch")
	}
}

func TestQDecompress_WrongLength(t *testing.T) {
	compressed := qcompress([]byte{1, 2, 3})
	if _, ok := qdecompress(compressed, 4); ok {
		t.Fatal("expected failure on length mismatch")
	}
}

type fakeVRAM struct{ data []byte }

func (m *fakeVRAM) ID() string          { return "vram" }
func (m *fakeVRAM) Description() string { return "vram" }
func (m *fakeVRAM) Base() uint64        { return 0 }
func (m *fakeVRAM) Size() uint64        { return vramBytes }
func (m *fakeVRAM) Peek(addr uint64, sideEffects bool) uint8 { return m.data[addr] }
func (m *fakeVRAM) Poke(addr uint64, value uint8)            { m.data[addr] = value }
func (m *fakeVRAM) MemoryMap() []debugif.MemoryMap           { return nil }
func (m *fakeVRAM) GetBankAddress(addr uint64, bank int) (debugif.MemoryMap, bool) {
	return debugif.MemoryMap{}, false
}

type fakeSystemCap struct {
	mem  *fakeVRAM
	misc []debugif.MiscBreakpoint
}

func (s *fakeSystemCap) Description() string             { return "psx" }
func (s *fakeSystemCap) CPUs() []debugif.CPU              { return nil }
func (s *fakeSystemCap) MemoryRegions() []debugif.Memory  { return []debugif.Memory{s.mem} }
func (s *fakeSystemCap) MiscBreakpoints() []debugif.MiscBreakpoint { return s.misc }
func (s *fakeSystemCap) PrimaryCPU() debugif.CPU          { return nil }

type fakeCoreCap struct {
	sys      *fakeSystemCap
	nextID   debugif.SubscriptionID
	handlers map[debugif.SubscriptionID]debugif.Handler
}

func newFakeCoreCap() *fakeCoreCap {
	mem := &fakeVRAM{data: make([]byte, vramBytes)}
	sys := &fakeSystemCap{mem: mem, misc: []debugif.MiscBreakpoint{{Name: "GP0"}}}
	return &fakeCoreCap{sys: sys, handlers: map[debugif.SubscriptionID]debugif.Handler{}}
}

func (c *fakeCoreCap) System() debugif.System { return c.sys }
func (c *fakeCoreCap) Subscribe(sub debugif.Subscription, handler debugif.Handler) debugif.SubscriptionID {
	c.nextID++
	c.handlers[c.nextID] = handler
	return c.nextID
}
func (c *fakeCoreCap) Unsubscribe(id debugif.SubscriptionID) { delete(c.handlers, id) }

func gp0PostEvent(words []uint32) debugif.Event {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return debugif.Event{
		Type:     debugif.EventMisc,
		MiscArgs: [4]uint64{0, 0, 0, 0},
		MiscData: data,
	}
}

func TestStart_RecordsInitialKeyframe(t *testing.T) {
	core := newFakeCoreCap()
	e := NewEngine(core)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	events := e.Events()
	if len(events) != 1 || !events[0].IsKeyframe {
		t.Fatalf("expected 1 initial keyframe event, got %+v", events)
	}
}

func TestOnEvent_FillRectRecordsDiff(t *testing.T) {
	core := newFakeCoreCap()
	e := NewEngine(core)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	var handler debugif.Handler
	for _, h := range core.handlers {
		handler = h
	}

	// FillRect: op=0x02, color, pos, size
	words := []uint32{0x02FF0000, 0x00100010, 0x00200020}
	handler(1, gp0PostEvent(words))

	events := e.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	last := events[len(events)-1]
	if !last.IsKeyframe || len(last.Diff) == 0 {
		t.Fatalf("expected a VRAM diff for FillRect, got %+v", last)
	}
}

func TestOnEvent_CPUToVRAMDefersDiff(t *testing.T) {
	core := newFakeCoreCap()
	e := NewEngine(core)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	var handler debugif.Handler
	for _, h := range core.handlers {
		handler = h
	}

	// CPU>VRAM: op=0xA0
	words := []uint32{0xA0000000, 0x00100010, 0x00200020}
	handler(1, gp0PostEvent(words))

	events := e.Events()
	last := events[len(events)-1]
	if last.IsKeyframe {
		t.Fatal("expected deferred diff to not be resolved yet")
	}

	e.FrameBoundary()
	events = e.Events()
	// events: [initial keyframe, cpu>vram (now resolved), frame boundary]
	cpuEvent := events[1]
	if !cpuEvent.IsKeyframe || len(cpuEvent.Diff) == 0 {
		t.Fatalf("expected deferred diff resolved after frame boundary, got %+v", cpuEvent)
	}
}

func TestReconstruct_WalksBackToNearestSnapshot(t *testing.T) {
	core := newFakeCoreCap()
	e := NewEngine(core)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	e.FrameBoundary()

	out, ok := e.Reconstruct(1) // frame boundary event, should walk back to index 0
	if !ok || len(out) != vramBytes {
		t.Fatalf("expected successful reconstruct, got ok=%v len=%d", ok, len(out))
	}
}

func TestStart_FailsWithoutGP0Breakpoint(t *testing.T) {
	core := newFakeCoreCap()
	core.sys.misc = nil
	e := NewEngine(core)
	if err := e.Start(); err == nil {
		t.Fatal("expected failure without GP0 misc breakpoint")
	}
}
