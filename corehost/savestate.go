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

package corehost

import (
	"fmt"
	"os"

	"github.com/arret/arret/logger"
)

func savePath(romBase string, slot int) string {
	return fmt.Sprintf("%s.%d.state", romBase, slot)
}

// SaveState implements protocol.Host: it serializes the core and writes the
// result to "<rombase>.<slot>.state", matching ar_save_state's naming.
func (h *Host) SaveState(slot int) error {
	if slot < 0 || slot >= MaxSaveSlots {
		return fmt.Errorf("corehost: save slot %d out of range", slot)
	}

	h.mu.Lock()
	core := h.core
	romBase := h.romBase
	loaded := h.contentOK
	h.mu.Unlock()

	if !loaded {
		return fmt.Errorf("corehost: no content loaded")
	}

	data, err := core.Serialize()
	if err != nil {
		return fmt.Errorf("corehost: save state: %w", err)
	}

	path := savePath(romBase, slot)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("corehost: save state: %w", err)
	}
	logger.Logf(h.logPerm, logTag, "saved state to slot %d (%s)", slot, path)
	return nil
}

// LoadState implements protocol.Host: it reads "<rombase>.<slot>.state" and
// hands its bytes to the core's Unserialize.
func (h *Host) LoadState(slot int) error {
	if slot < 0 || slot >= MaxSaveSlots {
		return fmt.Errorf("corehost: load slot %d out of range", slot)
	}

	h.mu.Lock()
	core := h.core
	romBase := h.romBase
	loaded := h.contentOK
	h.mu.Unlock()

	if !loaded {
		return fmt.Errorf("corehost: no content loaded")
	}

	path := savePath(romBase, slot)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("corehost: load state: %w", err)
	}

	if err := core.Unserialize(data); err != nil {
		return fmt.Errorf("corehost: load state: %w", err)
	}

	h.mu.Lock()
	for i := range h.video.buf {
		h.video.buf[i] = 0
	}
	h.mu.Unlock()

	logger.Logf(h.logPerm, logTag, "loaded state from slot %d (%s)", slot, path)
	return nil
}
