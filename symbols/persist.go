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

package symbols

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/arret/arret/logger"
)

const logTag = "symbols"

// wireEntry is the on-disk JSON shape of one symbol. Label and Comment are
// omitted when empty, mirroring the original writer's sparse output.
type wireEntry struct {
	Region  string `json:"region"`
	Addr    uint64 `json:"addr"`
	Label   string `json:"label,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Save writes every annotation to path as a JSON array.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	out := make([]wireEntry, 0, len(s.syms))
	for k, e := range s.syms {
		out = append(out, wireEntry{Region: k.Region, Addr: k.Addr, Label: e.Label, Comment: e.Comment})
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	logger.Logf(s.logPerm, logTag, "saved %d symbols to %s", len(out), path)
	return nil
}

// Load replaces the store's contents with the annotations in path. Rather
// than decoding the file as a single strict JSON array, it scans objects
// one at a time and keeps whatever individually well-formed ones it finds:
// an object missing a region or address, or with neither label nor
// comment, is dropped; a truncated or malformed trailing object simply
// ends the scan. This mirrors the original reader's best-effort recovery
// policy (§7) rather than failing the whole load over one bad entry.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	wire := tolerantParse(data)

	loaded := map[Key]entry{}
	for _, w := range wire {
		if w.Region == "" {
			continue
		}
		if w.Label == "" && w.Comment == "" {
			continue
		}
		loaded[Key{w.Region, w.Addr}] = entry{Label: w.Label, Comment: w.Comment}
	}

	s.mu.Lock()
	s.syms = loaded
	s.mu.Unlock()

	logger.Logf(s.logPerm, logTag, "loaded %d symbols from %s", len(loaded), path)
	return nil
}

// tolerantParse recovers individually well-formed objects from a symbol
// file, decoding one object at a time via json.Decoder's streaming token
// reader and keeping whatever it can even if a later object is malformed
// or the file is truncated.
func tolerantParse(data []byte) []wireEntry {
	start := bytes.IndexByte(data, '[')
	if start < 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data[start:]))
	var out []wireEntry

	// consume the opening '['
	if _, err := dec.Token(); err != nil {
		return out
	}
	for dec.More() {
		var raw struct {
			Region  string  `json:"region"`
			Addr    *uint64 `json:"addr"`
			Label   string  `json:"label"`
			Comment string  `json:"comment"`
		}
		if err := dec.Decode(&raw); err != nil {
			break
		}
		if raw.Addr == nil {
			continue
		}
		out = append(out, wireEntry{Region: raw.Region, Addr: *raw.Addr, Label: raw.Label, Comment: raw.Comment})
	}
	return out
}
