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

var gbIntNames = []string{"VBlank", "STAT", "Timer", "Serial", "Joypad"}

func init() {
	Register(&Descriptor{Description: "gb", IntNames: gbIntNames})
	Register(&Descriptor{Description: "gbc", IntNames: gbIntNames})
}
