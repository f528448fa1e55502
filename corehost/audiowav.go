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

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DumpWAV writes every unread frame currently sitting in the audio ring to
// a standard stereo 16-bit WAV file at path, without disturbing the ring's
// read cursor. There is no live audio sink in headless/server operation, so
// this is the only way to inspect what the core has been producing; a
// frontend with a real audio callback drains the ring through AudioRead
// instead.
func (h *Host) DumpWAV(path string) error {
	h.mu.Lock()
	frames := h.audio.snapshot()
	h.mu.Unlock()

	if len(frames) == 0 {
		return fmt.Errorf("corehost: audio ring is empty")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("corehost: dump wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, DownsampleTargetRate, 16, 2, 1)

	data := make([]int, len(frames))
	for i, s := range frames {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: DownsampleTargetRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("corehost: dump wav: %w", err)
	}
	return enc.Close()
}
