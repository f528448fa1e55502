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

// Package democore is a static-inspection stand-in for a real emulator
// core (§1 Purpose & Scope excludes dynamically loading one). It loads
// content as a flat memory image and exposes it through the debug ABI so
// the rest of the backend — disassembly, breakpoints, symbols, memory
// search — has something concrete to run against without a real hardware
// core wired in. It never executes: RunFrame only advances a frame
// counter and feeds the host a blank frame and silence, so subscriptions
// against it are accepted but never fire.
package democore

import (
	"fmt"
	"os"
	"sync"

	"github.com/arret/arret/arch"
	"github.com/arret/arret/corehost"
	"github.com/arret/arret/debugif"
)

// Core is a debugif.Core/corehost.EmulatorCore implementation over a flat
// byte slice loaded from disk, disassembled and inspected as cpuType.
type Core struct {
	mu sync.Mutex

	cpuType    debugif.CPUType
	geomW      int
	geomH      int
	sampleRate float64

	loaded  bool
	path    string
	mem     *ramRegion
	cpu     *cpu
	frame   uint64
	nextSub debugif.SubscriptionID
	subs    map[debugif.SubscriptionID]debugif.Subscription
}

// New constructs a Core presenting one CPU of type cpuType over a memory
// region of size memSize, reporting geomW x geomH / 60fps / 48kHz to the
// host once content is loaded.
func New(cpuType debugif.CPUType, memSize uint64, geomW, geomH int) *Core {
	mem := newRAMRegion(memSize)
	return &Core{
		cpuType:    cpuType,
		geomW:      geomW,
		geomH: geomH,
		sampleRate: 48000,
		mem:        mem,
		cpu:        newCPU(cpuType, mem),
		subs:       make(map[debugif.SubscriptionID]debugif.Subscription),
	}
}

func (c *Core) Name() string    { return "democore" }
func (c *Core) Version() string { return "1.0" }

// LoadGame reads path into the memory region, truncating or zero-padding
// to the region's fixed size.
func (c *Core) LoadGame(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.load(data)
	c.cpu.reset()
	c.path = path
	c.loaded = true
	c.frame = 0
	return nil
}

func (c *Core) UnloadGame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.path = ""
}

// RunFrame advances the frame counter and feeds the host a blank frame and
// silence; it performs no CPU execution, so it never triggers a debug ABI
// event.
func (c *Core) RunFrame(h *corehost.Host) {
	c.mu.Lock()
	c.frame++
	w, ht := c.geomW, c.geomH
	c.mu.Unlock()

	pixels := make([]uint32, w*ht)
	h.VideoRefresh(pixels, w, ht, w)

	frames := int(c.sampleRate / 60)
	silence := make([]int16, frames*2)
	h.AudioSampleBatch(silence)
}

func (c *Core) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cpu.reset()
	c.frame = 0
}

// Serialize snapshots the memory region and frame counter.
func (c *Core) Serialize() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, 8+len(c.mem.buf))
	putU64(out, c.frame)
	copy(out[8:], c.mem.buf)
	return out, nil
}

func (c *Core) Unserialize(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("democore: save state too short")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.frame = getU64(data)
	n := copy(c.mem.buf, data[8:])
	for i := n; i < len(c.mem.buf); i++ {
		c.mem.buf[i] = 0
	}
	return nil
}

func (c *Core) Geometry() (int, int)          { return c.geomW, c.geomH }
func (c *Core) Timing() (float64, float64) { return 60.0, c.sampleRate }

func (c *Core) System() debugif.System { return demoSystem{c} }

// Subscribe records sub and hands back a monotonically increasing id.
// Nothing in Core's RunFrame ever calls the handler; content-free static
// inspection has no execution to report events for.
func (c *Core) Subscribe(sub debugif.Subscription, handler debugif.Handler) debugif.SubscriptionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = sub
	return id
}

func (c *Core) Unsubscribe(id debugif.SubscriptionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

type demoSystem struct{ c *Core }

func (s demoSystem) Description() string { return "democore/" + s.c.cpuType.String() }
func (s demoSystem) CPUs() []debugif.CPU { return []debugif.CPU{s.c.cpu} }
func (s demoSystem) MemoryRegions() []debugif.Memory {
	return []debugif.Memory{s.c.mem}
}
func (s demoSystem) MiscBreakpoints() []debugif.MiscBreakpoint { return nil }
func (s demoSystem) PrimaryCPU() debugif.CPU                   { return s.c.cpu }

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// registerLayout looks up the register layout for cpuType, falling back
// to a single-register PC-only layout if the architecture package has not
// registered one (should not happen for any debugif.CPUType constant).
func registerLayout(cpuType debugif.CPUType) []arch.RegLayoutEntry {
	if desc := arch.Lookup(cpuType); desc != nil {
		return desc.Registers
	}
	return []arch.RegLayoutEntry{{Name: "PC", Index: 0, Bits: 16}}
}
