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
//
// *** NOTE: all historical versions of this file, as found in any
// git repository, are also covered by the licence, even when this
// notice is not present ***

// Package paths resolves the on-disk locations this backend reads and
// writes: sibling breakpoint/symbol/save-state files derived from a
// loaded ROM's path, and a config directory for anything not tied to a
// specific piece of content.
//
// SiblingPath derives a content-relative resource, e.g. the breakpoint
// file next to a loaded ROM:
//
//	p := paths.SiblingPath("/roms/game.a26", ".bp") // "/roms/game.bp"
//
// ResourcePath resolves (creating it if necessary) a path under the
// config directory, which is ".arret" in the current working directory
// in builds without the "release" tag, or "arret" in the user's config
// directory in builds with it:
//
//	p, err := paths.ResourcePath("scripts", "debuggerInit")
package paths
