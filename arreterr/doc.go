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

// Package arreterr defines the error taxonomy surfaced by the debugger
// runtime and the command protocol. Every error returned across a package
// boundary wraps an Errno so the command dispatcher can turn any of them
// into {"ok":false,"error":"..."} without a chain of type switches, and
// callers that care about the category can test with errors.Is against the
// Errno sentinels below.
package arreterr
