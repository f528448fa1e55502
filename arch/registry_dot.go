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

package arch

import (
	"io"

	"github.com/bradleyjkemp/memviz"
)

// registrySnapshot is a plain-data mirror of the registry, since memviz
// walks exported struct fields and the registry's function-valued fields
// (Disassemble, StackTrace) are meaningless in a graph dump.
type registrySnapshot struct {
	CPUs []cpuSnapshot
}

type cpuSnapshot struct {
	Type               string
	MaxInstructionSize int
	Alignment          int
	DelaySlots         int
	Registers          []RegLayoutEntry
	TraceRegisters     []TraceReg
	CallingConventions []string
}

// DumpRegistryGraph writes a Graphviz rendering of the registered
// architecture descriptors to w, for operator inspection of what CPU
// types and register layouts are wired into the running process.
func DumpRegistryGraph(w io.Writer) {
	snap := registrySnapshot{}
	for _, d := range All() {
		snap.CPUs = append(snap.CPUs, cpuSnapshot{
			Type:               d.Type.String(),
			MaxInstructionSize: d.MaxInstructionSize,
			Alignment:          d.Alignment,
			DelaySlots:         d.DelaySlots,
			Registers:          d.Registers,
			TraceRegisters:     d.TraceRegisters,
			CallingConventions: d.CallingConventions,
		})
	}
	memviz.Map(w, &snap)
}
