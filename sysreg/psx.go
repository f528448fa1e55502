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

package sysreg

// psxIntNames indexes IRQ_STAT bits; bit 8 has no standard assignment.
var psxIntNames = []string{
	"VBlank", "GPU", "CD", "DMA", "Timer0", "Timer1", "Timer2", "SIO",
	"", "SPU", "PIO",
}

func init() {
	Register(&Descriptor{
		Description: "psx",
		IntNames:    psxIntNames,
		TraceOptions: []TraceOption{
			{Label: "BIOS calls", Start: startBiosTrace},
			{Label: "GPU commands", Start: startGPUTrace("", "GP0", "GP1")},
			{Label: "GPU post-commands", Start: startGPUTrace("[post] ", "GPU Post")},
		},
	})
}
