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

package democore

import (
	"sync"

	"github.com/arret/arret/debugif"
)

// ramRegion is a single flat, unbanked debugif.Memory region backed by a
// fixed-size byte slice. It has no MemoryMap: it is itself primary
// storage.
type ramRegion struct {
	mu  sync.RWMutex
	buf []byte
}

func newRAMRegion(size uint64) *ramRegion {
	return &ramRegion{buf: make([]byte, size)}
}

// load copies data into buf, truncating if data is larger than the region
// and zero-filling any remainder if it is smaller.
func (m *ramRegion) load(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := copy(m.buf, data)
	for i := n; i < len(m.buf); i++ {
		m.buf[i] = 0
	}
}

func (m *ramRegion) ID() string          { return "ram" }
func (m *ramRegion) Description() string { return "content image" }
func (m *ramRegion) Base() uint64        { return 0 }
func (m *ramRegion) Size() uint64        { return uint64(len(m.buf)) }

func (m *ramRegion) Peek(addr uint64, sideEffects bool) uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if addr >= uint64(len(m.buf)) {
		return 0
	}
	return m.buf[addr]
}

func (m *ramRegion) Poke(addr uint64, value uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr < uint64(len(m.buf)) {
		m.buf[addr] = value
	}
}

func (m *ramRegion) MemoryMap() []debugif.MemoryMap { return nil }

func (m *ramRegion) GetBankAddress(addr uint64, bank int) (debugif.MemoryMap, bool) {
	return debugif.MemoryMap{}, false
}

// cpu is a debugif.CPU with a register file sized to cpuType's registered
// layout in the arch package. GetRegister/SetRegister on an out-of-range
// index are no-ops (return 0 / do nothing) rather than panicking, matching
// the tolerant style of the rest of this backend's user-facing surface.
type cpu struct {
	mu   sync.Mutex
	typ  debugif.CPUType
	mem  debugif.Memory
	regs []uint64
}

func newCPU(typ debugif.CPUType, mem debugif.Memory) *cpu {
	layout := registerLayout(typ)
	n := 0
	for _, r := range layout {
		if r.Index+1 > n {
			n = r.Index + 1
		}
	}
	if n == 0 {
		n = 1
	}
	return &cpu{typ: typ, mem: mem, regs: make([]uint64, n)}
}

func (c *cpu) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.regs {
		c.regs[i] = 0
	}
}

func (c *cpu) ID() string             { return c.typ.String() }
func (c *cpu) Description() string    { return "democore " + c.typ.String() }
func (c *cpu) Type() debugif.CPUType  { return c.typ }
func (c *cpu) IsPrimary() bool        { return true }
func (c *cpu) MemoryRegion() debugif.Memory { return c.mem }
func (c *cpu) DelaySlot() int         { return 0 }

func (c *cpu) GetRegister(idx int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= len(c.regs) {
		return 0
	}
	return c.regs[idx]
}

func (c *cpu) SetRegister(idx int, value uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx >= 0 && idx < len(c.regs) {
		c.regs[idx] = value
	}
}
