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
	"strconv"
	"strings"

	"github.com/arret/arret/arch"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/symbols"
)

func (d *Dispatcher) hasDebug() bool {
	return d.core != nil
}

func (d *Dispatcher) findCPU(id string) debugif.CPU {
	if d.core == nil {
		return nil
	}
	if id == "" {
		return d.core.System().PrimaryCPU()
	}
	for _, c := range d.core.System().CPUs() {
		if strings.EqualFold(c.ID(), id) {
			return c
		}
	}
	return nil
}

func (d *Dispatcher) findMemory(id string) debugif.Memory {
	if d.core == nil {
		return nil
	}
	for _, m := range d.regions() {
		if m.ID() == id {
			return m
		}
	}
	return nil
}

// regions collects every distinct memory region reachable from the loaded
// system: each CPU's own region, the system's declared regions, and every
// memory-map source those regions point at, matching the original's
// ADD_UNIQUE walk over rd_Memory pointers.
func (d *Dispatcher) regions() []debugif.Memory {
	if d.core == nil {
		return nil
	}
	sys := d.core.System()
	seen := map[string]debugif.Memory{}
	order := []string{}
	add := func(m debugif.Memory) {
		if m == nil {
			return
		}
		if _, ok := seen[m.ID()]; ok {
			return
		}
		seen[m.ID()] = m
		order = append(order, m.ID())
	}

	for _, c := range sys.CPUs() {
		add(c.MemoryRegion())
	}
	for _, m := range sys.MemoryRegions() {
		add(m)
	}
	for _, c := range sys.CPUs() {
		mem := c.MemoryRegion()
		if mem == nil {
			continue
		}
		for _, mm := range mem.MemoryMap() {
			add(mm.Source)
		}
	}

	out := make([]debugif.Memory, 0, len(order))
	for _, id := range order {
		out = append(out, seen[id])
	}
	return out
}

func pcIndex(cpuType debugif.CPUType) int {
	desc := arch.Lookup(cpuType)
	if desc == nil {
		return -1
	}
	for _, r := range desc.Registers {
		if r.Name == "PC" {
			return r.Index
		}
	}
	return -1
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

// resolveAddrMarkers strips the disassembler's "@<hex>" address markers,
// appending "[label]" after the bare hex digits when the resolved region
// and address carries one. memID is the disassembled region's ID.
func resolveAddrMarkers(text, memID string, syms *symbols.Store) string {
	if !strings.ContainsRune(text, '@') {
		return text
	}
	var b strings.Builder
	i := 0
	for i < len(text) {
		if text[i] != '@' {
			b.WriteByte(text[i])
			i++
			continue
		}
		j := i + 1
		for j < len(text) && isHexDigit(text[j]) {
			j++
		}
		if j == i+1 {
			b.WriteByte(text[i])
			i++
			continue
		}
		hexStr := text[i+1 : j]
		b.WriteString(hexStr)
		if syms != nil {
			if addr, err := strconv.ParseUint(hexStr, 16, 64); err == nil {
				if resolved, err := syms.Resolve(memID, addr); err == nil {
					if label, ok := syms.Label(resolved.Region, resolved.Addr); ok {
						b.WriteByte('[')
						b.WriteString(label)
						b.WriteByte(']')
					}
				}
			}
		}
		i = j
	}
	return b.String()
}

func registerByName(cpuType debugif.CPUType, name string) (arch.RegLayoutEntry, bool) {
	desc := arch.Lookup(cpuType)
	if desc == nil {
		return arch.RegLayoutEntry{}, false
	}
	for _, r := range desc.Registers {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return arch.RegLayoutEntry{}, false
}
