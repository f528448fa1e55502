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

package paths

import (
	"path/filepath"
	"strings"
)

// SiblingPath returns contentPath with its extension replaced by suffix,
// e.g. SiblingPath("/roms/game.a26", ".bp") -> "/roms/game.bp". Used to
// derive the default breakpoint, symbol and save-state files a loaded
// ROM resolves against.
func SiblingPath(contentPath, suffix string) string {
	return strings.TrimSuffix(contentPath, filepath.Ext(contentPath)) + suffix
}

// ResourcePath returns the resource string (representing the resource to
// be loaded) prepended with the config directory, creating any missing
// directories in the result. Build-tagged variants of getBasePath decide
// where that config directory lives (dev_path.go / release_path.go).
func ResourcePath(resource ...string) (string, error) {
	return getBasePath(filepath.Join(resource...))
}
