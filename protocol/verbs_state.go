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

package protocol

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/arret/arret/paths"
	"github.com/arret/arret/rundbg"
)

func init() {
	registerVerb("save", verbSave)
	registerVerb("load", verbLoad)
	registerVerb("screen", verbScreen)
}

func verbSave(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if nargs < 2 {
		errf(w, "usage: save <slot>")
		return
	}
	if d.host == nil {
		errf(w, "no core loaded")
		return
	}
	if d.runtime != nil && d.runtime.State() == rundbg.Blocked {
		errf(w, "cannot save state while core thread is blocked")
		return
	}
	slot, _ := strconv.Atoi(arg1)
	if err := d.host.SaveState(slot); err != nil {
		errf(w, "save failed for slot %d", slot)
		return
	}
	okf(w, `"slot":%d`, slot)
}

func verbLoad(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if nargs < 2 {
		errf(w, "usage: load <slot>")
		return
	}
	if d.host == nil {
		errf(w, "no core loaded")
		return
	}
	if d.runtime != nil && d.runtime.State() == rundbg.Blocked {
		errf(w, "cannot load state while core thread is blocked")
		return
	}
	slot, _ := strconv.Atoi(arg1)
	if err := d.host.LoadState(slot); err != nil {
		errf(w, "load failed for slot %d", slot)
		return
	}
	okf(w, `"slot":%d`, slot)
}

// verbScreen implements "screen [path]": it converts the current frame
// buffer from packed XRGB8888 to RGB and encodes it as a PNG. The original
// writes this with stb_image_write, a C-only library with no counterpart in
// the retrieval pack, so this is one of the few places Arrêt reaches for
// the standard library's image/png rather than a third-party encoder. With
// no path argument the filename is derived from the loaded content's short
// name and the current time, so repeated captures never collide.
func verbScreen(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if d.host == nil {
		errf(w, "no core loaded")
		return
	}
	path := arg1
	if nargs < 2 {
		var shortName string
		if base, ok := d.host.ContentPathBase(); ok {
			shortName = filepath.Base(base)
		}
		path = paths.UniqueFilename("screenshot", shortName) + ".png"
	}

	width, height, pixels := d.host.FrameBuffer()
	if width == 0 || height == 0 {
		errf(w, "no frame buffer available")
		return
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, px := range pixels {
		if i >= width*height {
			break
		}
		img.Set(i%width, i/width, color.RGBA{
			R: byte(px >> 16),
			G: byte(px >> 8),
			B: byte(px),
			A: 0xFF,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		errf(w, "failed to write PNG: %s", jsonEscape(path))
		return
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		errf(w, "failed to write PNG: %s", jsonEscape(path))
		return
	}
	okf(w, `"width":%d,"height":%d,"path":"%s"`, width, height, jsonEscape(path))
}
