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
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arret/arret/breakpoint"
	"github.com/arret/arret/capture"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
	"github.com/arret/arret/rundbg"
	"github.com/arret/arret/symbols"
)

type fakeMem struct {
	id   string
	data map[uint64]uint8
}

func newFakeMem(id string) *fakeMem { return &fakeMem{id: id, data: map[uint64]uint8{}} }

func (m *fakeMem) ID() string              { return m.id }
func (m *fakeMem) Description() string     { return m.id }
func (m *fakeMem) Base() uint64            { return 0 }
func (m *fakeMem) Size() uint64            { return 0x10000 }
func (m *fakeMem) Peek(a uint64, _ bool) uint8 { return m.data[a] }
func (m *fakeMem) Poke(a uint64, v uint8)  { m.data[a] = v }
func (m *fakeMem) MemoryMap() []debugif.MemoryMap { return nil }
func (m *fakeMem) GetBankAddress(addr uint64, bank int) (debugif.MemoryMap, bool) {
	return debugif.MemoryMap{}, false
}

type fakeCPU struct {
	id   string
	mem  *fakeMem
	regs [16]uint64
}

func (c *fakeCPU) ID() string                    { return c.id }
func (c *fakeCPU) Description() string           { return c.id }
func (c *fakeCPU) Type() debugif.CPUType         { return debugif.CPUMOS6502 }
func (c *fakeCPU) IsPrimary() bool               { return true }
func (c *fakeCPU) MemoryRegion() debugif.Memory  { return c.mem }
func (c *fakeCPU) GetRegister(idx int) uint64    { return c.regs[idx] }
func (c *fakeCPU) SetRegister(idx int, v uint64) { c.regs[idx] = v }
func (c *fakeCPU) DelaySlot() int                { return 0 }

type fakeSystem struct {
	cpu *fakeCPU
}

func (s *fakeSystem) Description() string                { return "fake" }
func (s *fakeSystem) CPUs() []debugif.CPU                { return []debugif.CPU{s.cpu} }
func (s *fakeSystem) MemoryRegions() []debugif.Memory     { return []debugif.Memory{s.cpu.mem} }
func (s *fakeSystem) MiscBreakpoints() []debugif.MiscBreakpoint { return nil }
func (s *fakeSystem) PrimaryCPU() debugif.CPU             { return s.cpu }

type fakeCore struct {
	sys       *fakeSystem
	nextSubID debugif.SubscriptionID
}

func (c *fakeCore) System() debugif.System { return c.sys }
func (c *fakeCore) Subscribe(sub debugif.Subscription, handler debugif.Handler) debugif.SubscriptionID {
	c.nextSubID++
	return c.nextSubID
}
func (c *fakeCore) Unsubscribe(id debugif.SubscriptionID) {}

type fakeHost struct {
	info         HostFrame
	contentPath  string
	hasContent   bool
	buttons      map[int]bool
	manual       bool
	resetCalls   int
	saveSlots    map[int]bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{buttons: map[int]bool{}, saveSlots: map[int]bool{}}
}

func (h *fakeHost) Info() HostFrame { return h.info }
func (h *fakeHost) ContentInfo() (string, bool) {
	return h.contentPath, h.hasContent
}
func (h *fakeHost) FrameBuffer() (int, int, []uint32) { return 0, 0, nil }
func (h *fakeHost) SaveState(slot int) error          { h.saveSlots[slot] = true; return nil }
func (h *fakeHost) LoadState(slot int) error          { return nil }
func (h *fakeHost) SetButtonOverride(id int, pressed bool) { h.buttons[id] = pressed }
func (h *fakeHost) ClearButtonOverride(id int)             { delete(h.buttons, id) }
func (h *fakeHost) SetManualInput(on bool)                 { h.manual = on }
func (h *fakeHost) Reset()                                 { h.resetCalls++ }
func (h *fakeHost) ContentPathBase() (string, bool) {
	if !h.hasContent {
		return "", false
	}
	return strings.TrimSuffix(h.contentPath, ".bin"), true
}

func newTestDispatcher() (*Dispatcher, *fakeCore, *fakeHost) {
	mem := newFakeMem("cpu")
	cpu := &fakeCPU{id: "cpu", mem: mem}
	core := &fakeCore{sys: &fakeSystem{cpu: cpu}}
	bp := breakpoint.NewEngine(core, nil, logger.Allow)
	runtime := rundbg.NewEngine(core, noopRunner{}, bp, nil, logger.Allow)
	syms := symbols.NewStore(func(regionID string) debugif.Memory {
		if regionID == mem.ID() {
			return mem
		}
		return nil
	}, logger.Allow)
	host := newFakeHost()
	d := NewDispatcher(core, runtime, bp, nil, syms, host, logger.Allow)
	return d, core, host
}

type noopRunner struct{}

func (noopRunner) RunFrame() {}

func process(d *Dispatcher, line string) string {
	var buf bytes.Buffer
	d.Process(line, &buf)
	return buf.String()
}

func TestVerbQuitStopsDispatcher(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if !d.Running() {
		t.Fatal("dispatcher should start running")
	}
	got := process(d, "quit")
	if got != "{\"ok\":true}\n" {
		t.Errorf("quit reply = %q", got)
	}
	if d.Running() {
		t.Error("dispatcher should stop running after quit")
	}
}

func TestVerbUnknownCommand(t *testing.T) {
	d, _, _ := newTestDispatcher()
	got := process(d, "frobnicate everything")
	if !strings.Contains(got, `"ok":false`) || !strings.Contains(got, "unknown command") {
		t.Errorf("unknown command reply = %q", got)
	}
}

func TestVerbPeekPoke(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := process(d, "poke 100 42"); !strings.Contains(got, `"written":1`) {
		t.Fatalf("poke reply = %q", got)
	}
	got := process(d, "peek 100 1")
	if !strings.Contains(got, `"data":[42]`) {
		t.Errorf("peek reply = %q, want data [42]", got)
	}
}

func TestVerbBPAddListDelete(t *testing.T) {
	d, _, _ := newTestDispatcher()
	addReply := process(d, "bp add 1000 X")
	if !strings.Contains(addReply, `"id":1`) {
		t.Fatalf("bp add reply = %q", addReply)
	}
	list := process(d, "bp list")
	if !strings.Contains(list, `"address":"0x1000"`) {
		t.Errorf("bp list reply = %q", list)
	}
	del := process(d, "bp delete 1")
	if !strings.Contains(del, `"ok":true`) {
		t.Errorf("bp delete reply = %q", del)
	}
	list = process(d, "bp list")
	if !strings.Contains(list, `"breakpoints":[]`) {
		t.Errorf("bp list after delete = %q", list)
	}
}

func TestVerbSymLabelRoundtrip(t *testing.T) {
	d, _, _ := newTestDispatcher()
	setReply := process(d, "sym label set cpu.1000 loop_start")
	if !strings.Contains(setReply, `"ok":true`) {
		t.Fatalf("sym label set reply = %q", setReply)
	}
	getReply := process(d, "sym label get cpu.1000")
	if !strings.Contains(getReply, `"label":"loop_start"`) {
		t.Errorf("sym label get reply = %q", getReply)
	}
}

func TestVerbSymSaveLoadRoundtrip(t *testing.T) {
	d, _, _ := newTestDispatcher()
	process(d, "sym label set cpu.1000 loop_start")
	path := filepath.Join(t.TempDir(), "test.sym.json")

	saveReply := process(d, "sym save "+path)
	if !strings.Contains(saveReply, `"ok":true`) {
		t.Fatalf("sym save reply = %q", saveReply)
	}

	fresh, _, _ := newTestDispatcher()
	loadReply := process(fresh, "sym load "+path)
	if !strings.Contains(loadReply, `"count":1`) {
		t.Fatalf("sym load reply = %q", loadReply)
	}
	getReply := process(fresh, "sym label get cpu.1000")
	if !strings.Contains(getReply, `"label":"loop_start"`) {
		t.Errorf("sym label get after load = %q", getReply)
	}
}

func TestVerbSearchLifecycle(t *testing.T) {
	d, _, _ := newTestDispatcher()
	reset := process(d, "search reset cpu 1")
	if !strings.Contains(reset, `"candidates":65536`) {
		t.Fatalf("search reset reply = %q", reset)
	}
	count := process(d, "search count")
	if !strings.Contains(count, `"candidates":65536`) {
		t.Errorf("search count reply = %q", count)
	}
}

func TestVerbManualToggle(t *testing.T) {
	d, _, host := newTestDispatcher()
	process(d, "manual on")
	if !host.manual {
		t.Error("manual on should set host.manual")
	}
	process(d, "manual off")
	if host.manual {
		t.Error("manual off should clear host.manual")
	}
}

func TestVerbResetCallsHost(t *testing.T) {
	d, _, host := newTestDispatcher()
	process(d, "reset")
	if host.resetCalls != 1 {
		t.Errorf("reset calls = %d, want 1", host.resetCalls)
	}
}

func TestVerbSave(t *testing.T) {
	d, _, host := newTestDispatcher()
	reply := process(d, "save 0")
	if !strings.Contains(reply, `"slot":0`) {
		t.Errorf("save reply = %q", reply)
	}
	if !host.saveSlots[0] {
		t.Error("save should have reached the host")
	}
}

func TestVerbCaptureNoDebugSupportWithoutEngine(t *testing.T) {
	d, _, _ := newTestDispatcher()
	reply := process(d, "capture status")
	if !strings.Contains(reply, `"no debug support"`) {
		t.Errorf("capture status without an engine = %q", reply)
	}
}

func TestVerbCaptureStatusAndFailedStart(t *testing.T) {
	d, core, _ := newTestDispatcher()
	d.SetCapture(capture.NewEngine(core))

	reply := process(d, "capture status")
	if !strings.Contains(reply, `"active":false`) {
		t.Errorf("capture status = %q", reply)
	}

	// the fake system exposes no "GP0" misc breakpoint or "vram" region,
	// so Start must fail cleanly rather than panic.
	reply = process(d, "capture start")
	if strings.Contains(reply, `"ok":true`) {
		t.Errorf("capture start against a system with no GPU support should fail, got %q", reply)
	}

	reply = process(d, "capture events")
	if !strings.Contains(reply, `"count":0`) {
		t.Errorf("capture events on an idle engine = %q", reply)
	}
}

func TestVerbCaptureUsage(t *testing.T) {
	d, core, _ := newTestDispatcher()
	d.SetCapture(capture.NewEngine(core))

	reply := process(d, "capture")
	if !strings.Contains(reply, "usage:") {
		t.Errorf("capture with no argument = %q", reply)
	}

	reply = process(d, "capture bogus")
	if !strings.Contains(reply, "usage:") {
		t.Errorf("capture bogus = %q", reply)
	}
}
