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

// video holds the private frame buffer a core's video-refresh callback
// copies into, capped to MaxWidth x MaxHeight (§4.J).
type video struct {
	buf           [MaxWidth * MaxHeight]uint32
	width, height int
}

func (v *video) setGeometry(width, height int) {
	if width > MaxWidth {
		width = MaxWidth
	}
	if height > MaxHeight {
		height = MaxHeight
	}
	v.width, v.height = width, height
}

// refresh copies pixels (row-major, pitch given in uint32 elements) into the
// private frame buffer, capping the copy at MaxWidth x MaxHeight the way
// core_video_refresh caps at MAX_WIDTH/MAX_HEIGHT before memcpy-ing each row.
func (v *video) refresh(pixels []uint32, width, height, pitch int) {
	if len(pixels) == 0 || width <= 0 || height <= 0 {
		return
	}
	if pitch <= 0 {
		pitch = width
	}

	cappedW := width
	if cappedW > MaxWidth {
		cappedW = MaxWidth
	}
	cappedH := height
	if cappedH > MaxHeight {
		cappedH = MaxHeight
	}

	v.width, v.height = cappedW, cappedH
	for y := 0; y < cappedH; y++ {
		srcRow := y * pitch
		dstRow := y * cappedW
		if srcRow+cappedW > len(pixels) {
			break
		}
		copy(v.buf[dstRow:dstRow+cappedW], pixels[srcRow:srcRow+cappedW])
	}
}

// VideoRefresh is the callback an EmulatorCore invokes once per frame with
// its rendered pixel buffer (packed XRGB8888, row-major, pitch in uint32
// elements). Unlike SetGeometry, this never fires OnGeometryChange: a
// per-frame render size (common on systems with a variable scanline count)
// is not itself a geometry change announcement.
func (h *Host) VideoRefresh(pixels []uint32, width, height, pitch int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.video.refresh(pixels, width, height, pitch)
}

// FrameBuffer implements protocol.Host: it returns the current frame
// dimensions and a copy of the pixel buffer (only the live width x height
// slice, not the full MaxWidth x MaxHeight backing array).
func (h *Host) FrameBuffer() (int, int, []uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.video.width == 0 || h.video.height == 0 {
		return 0, 0, nil
	}
	n := h.video.width * h.video.height
	out := make([]uint32, n)
	copy(out, h.video.buf[:n])
	return h.video.width, h.video.height, out
}
