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

//go:build !statsview
// +build !statsview

package protocol

import "io"

// LaunchStatsPage is a no-op in builds without the "statsview" tag.
func LaunchStatsPage(output io.Writer) {}

// StatsPageAvailable reports whether LaunchStatsPage does anything in this
// build.
func StatsPageAvailable() bool {
	return false
}
