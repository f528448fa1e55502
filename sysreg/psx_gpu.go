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

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/arret/arret/debugif"
)

// GPUPost is one posted GP0/GP1 command word packet, carried in a
// debugif.Event's Misc fields: MiscArgs[0] is the port (0=GP0, 1=GP1),
// MiscArgs[1] the source (0=CPU, 2=DMA channel 2), MiscArgs[2] the R3000A
// PC that issued the command, and MiscData the little-endian uint32 words.
type GPUPost struct {
	Port   uint8
	Source uint8
	PC     uint32
	Words  []uint32
}

// DecodeGPUPost extracts a GPUPost from event, or ok=false if event does
// not carry a well-formed GPU post packet.
func DecodeGPUPost(event debugif.Event) (GPUPost, bool) {
	if event.Type != debugif.EventMisc || len(event.MiscData)%4 != 0 {
		return GPUPost{}, false
	}
	words := make([]uint32, len(event.MiscData)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(event.MiscData[i*4:])
	}
	return GPUPost{
		Port:   uint8(event.MiscArgs[0]),
		Source: uint8(event.MiscArgs[1]),
		PC:     uint32(event.MiscArgs[2]),
		Words:  words,
	}, true
}

func sign11(v uint32) int { return int(int32(v<<21) >> 21) }

// DecodeGP0 renders one GP0 (drawing) command word sequence as a one-line
// summary.
func DecodeGP0(words []uint32) string {
	if len(words) == 0 {
		return "GP0 (empty)"
	}
	op := uint8(words[0] >> 24)

	switch {
	case op == 0x00:
		return "GP0 NOP"
	case op == 0x01:
		return "GP0 ClearCache"
	case op == 0x02:
		c := words[0] & 0xFFFFFF
		var x, y, w, h int
		if len(words) >= 3 {
			x = sign11(words[1] & 0x7FF)
			y = sign11((words[1] >> 16) & 0x7FF)
			w = int(words[2] & 0xFFFF)
			h = int(words[2] >> 16)
		}
		return fmt.Sprintf("GP0 FillRect (%d,%d) %dx%d #%06X", x, y, w, h, c)
	case op == 0x1F:
		return "GP0 IRQ"
	case op >= 0x20 && op <= 0x3F:
		quad := op&0x08 != 0
		tex := op&0x04 != 0
		shade := op&0x10 != 0
		trans := op&0x02 != 0
		shape := "Poly3"
		if quad {
			shape = "Poly4"
		}
		style := "mono "
		if shade {
			style = "shade "
		}
		texStr := ""
		if tex {
			texStr = "tex "
		}
		blend := "opaque"
		if trans {
			blend = "trans"
		}
		return fmt.Sprintf("GP0 %s %s%s%s", shape, style, texStr, blend)
	case op >= 0x40 && op <= 0x5F:
		shade := op&0x10 != 0
		trans := op&0x02 != 0
		pline := op&0x08 != 0
		kind := "Line"
		if pline {
			kind = "Polyline"
		}
		style := "mono "
		if shade {
			style = "shade "
		}
		blend := "opaque"
		if trans {
			blend = "trans"
		}
		return fmt.Sprintf("GP0 %s %s%s", kind, style, blend)
	case op >= 0x60 && op <= 0x7F:
		tex := op&0x04 != 0
		trans := op&0x02 != 0
		sz := (op >> 3) & 0x03
		names := [4]string{"var", "1x1", "8x8", "16x16"}
		texStr := ""
		if tex {
			texStr = " tex"
		}
		blend := " opaque"
		if trans {
			blend = " trans"
		}
		return fmt.Sprintf("GP0 Rect %s%s%s", names[sz], texStr, blend)
	case op >= 0x80 && op <= 0x9F:
		var sx, sy, dx, dy, w, h int
		if len(words) >= 4 {
			sx, sy = int(words[1]&0x3FF), int((words[1]>>16)&0x3FF)
			dx, dy = int(words[2]&0x3FF), int((words[2]>>16)&0x3FF)
			w, h = int(words[3]&0x3FF), int((words[3]>>16)&0x1FF)
		}
		return fmt.Sprintf("GP0 VRAM>VRAM (%d,%d)>(%d,%d) %dx%d", sx, sy, dx, dy, w, h)
	case op >= 0xA0 && op <= 0xBF:
		var x, y, w, h int
		if len(words) >= 3 {
			x, y = int(words[1]&0x3FF), int((words[1]>>16)&0x3FF)
			w, h = int(words[2]&0x3FF), int((words[2]>>16)&0x1FF)
		}
		return fmt.Sprintf("GP0 CPU>VRAM (%d,%d) %dx%d", x, y, w, h)
	case op >= 0xC0 && op <= 0xDF:
		var x, y, w, h int
		if len(words) >= 3 {
			x, y = int(words[1]&0x3FF), int((words[1]>>16)&0x3FF)
			w, h = int(words[2]&0x3FF), int((words[2]>>16)&0x1FF)
		}
		return fmt.Sprintf("GP0 VRAM>CPU (%d,%d) %dx%d", x, y, w, h)
	case op == 0xE1:
		v := words[0] & 0xFFFFFF
		texX := (v & 0xF) * 64
		texY := ((v >> 4) & 1) * 256
		abr := (v >> 5) & 3
		tp := (v >> 7) & 3
		depths := [4]string{"4bpp", "8bpp", "15bpp", "reserved"}
		dither := ""
		if (v>>9)&1 != 0 {
			dither = " dither"
		}
		return fmt.Sprintf("GP0 DrawMode page=(%d,%d) abr=%d %s%s", texX, texY, abr, depths[tp], dither)
	case op == 0xE2:
		return fmt.Sprintf("GP0 TexWindow %08X", words[0]&0xFFFFFF)
	case op == 0xE3:
		return fmt.Sprintf("GP0 DrawAreaTL (%d,%d)", words[0]&0x3FF, (words[0]>>10)&0x1FF)
	case op == 0xE4:
		return fmt.Sprintf("GP0 DrawAreaBR (%d,%d)", words[0]&0x3FF, (words[0]>>10)&0x1FF)
	case op == 0xE5:
		x := sign11(words[0] & 0x7FF)
		y := sign11((words[0] >> 11) & 0x7FF)
		return fmt.Sprintf("GP0 DrawOffset (%d,%d)", x, y)
	case op == 0xE6:
		v := words[0] & 3
		return fmt.Sprintf("GP0 MaskBit set=%d check=%d", v&1, (v>>1)&1)
	default:
		return fmt.Sprintf("GP0 %02X [%08X]", op, words[0])
	}
}

// DecodeGP1 renders one GP1 (control) command word as a one-line summary.
func DecodeGP1(words []uint32) string {
	if len(words) == 0 {
		return "GP1 (empty)"
	}
	op := uint8(words[0] >> 24)
	v := words[0] & 0x00FFFFFF

	switch {
	case op == 0x00:
		return "GP1 Reset"
	case op == 0x01:
		return "GP1 ResetCmdBuf"
	case op == 0x02:
		return "GP1 AckIRQ"
	case op == 0x03:
		state := "on"
		if v&1 != 0 {
			state = "off"
		}
		return fmt.Sprintf("GP1 DispEnable %s", state)
	case op == 0x04:
		return fmt.Sprintf("GP1 DMADir %d", v&3)
	case op == 0x05:
		return fmt.Sprintf("GP1 DispStart (%d,%d)", v&0x3FE, (v>>10)&0x1FF)
	case op == 0x06:
		return fmt.Sprintf("GP1 HRange %d-%d", v&0xFFF, (v>>12)&0xFFF)
	case op == 0x07:
		return fmt.Sprintf("GP1 VRange %d-%d", v&0x3FF, (v>>10)&0x3FF)
	case op == 0x08:
		widths := [4]int{256, 320, 512, 640}
		w := widths[v&3]
		if v&0x40 != 0 {
			w = 368
		}
		h := 240
		if v&0x04 != 0 {
			h = 480
		}
		region := "NTSC"
		if v&0x08 != 0 {
			region = "PAL"
		}
		depth := "15bpp"
		if v&0x10 != 0 {
			depth = "24bpp"
		}
		interlace := ""
		if v&0x20 != 0 {
			interlace = " interlace"
		}
		return fmt.Sprintf("GP1 DispMode %dx%d %s %s%s", w, h, region, depth, interlace)
	case op == 0x09:
		return fmt.Sprintf("GP1 TexDisable %d", v&1)
	case op >= 0x10 && op <= 0x1F:
		return fmt.Sprintf("GP1 GetInfo %d", v&0xF)
	default:
		return fmt.Sprintf("GP1 %02X [%06X]", op, v)
	}
}

// DecodeGP0Detail renders the multi-line vertex/color breakdown of a
// GP0 drawing command. No command-protocol verb calls it.
func DecodeGP0Detail(words []uint32) string {
	if len(words) == 0 {
		return ""
	}
	op := uint8(words[0] >> 24)
	var b strings.Builder

	switch {
	case op >= 0x20 && op <= 0x3F:
		tex := op&0x04 != 0
		shade := op&0x10 != 0
		nverts := 3
		if op&0x08 != 0 {
			nverts = 4
		}
		stride := 1
		if shade {
			stride++
		}
		if tex {
			stride++
		}

		fmt.Fprintf(&b, "Color: %06X\n", words[0]&0xFFFFFF)
		for v := 0; v < nverts; v++ {
			idx := 1
			if v > 0 {
				idx = 1 + v*stride
			}
			if idx >= len(words) {
				break
			}
			vx := sign11(words[idx] & 0x7FF)
			vy := sign11((words[idx] >> 16) & 0x7FF)
			fmt.Fprintf(&b, "V%d: (%d,%d)", v, vx, vy)
			if tex {
				tidx := idx + 1
				if tidx < len(words) {
					u := words[tidx] & 0xFF
					vv := (words[tidx] >> 8) & 0xFF
					fmt.Fprintf(&b, "  UV: (%d,%d)", u, vv)
				}
			}
			b.WriteByte('\n')
		}
	case op >= 0x40 && op <= 0x5F:
		shade := op&0x10 != 0
		pline := op&0x08 != 0
		fmt.Fprintf(&b, "Color: %06X\n", words[0]&0xFFFFFF)
		stride := 1
		if shade {
			stride = 2
		}
		maxv := 2
		if pline {
			maxv = 16
		}
		for v := 0; v < maxv; v++ {
			idx := 1 + v*stride
			if idx >= len(words) {
				break
			}
			if pline && words[idx] == 0x55555555 {
				break
			}
			vx := sign11(words[idx] & 0x7FF)
			vy := sign11((words[idx] >> 16) & 0x7FF)
			fmt.Fprintf(&b, "V%d: (%d,%d)\n", v, vx, vy)
		}
	case op >= 0x60 && op <= 0x7F:
		fmt.Fprintf(&b, "Color: %06X\n", words[0]&0xFFFFFF)
		if len(words) >= 2 {
			vx := sign11(words[1] & 0x7FF)
			vy := sign11((words[1] >> 16) & 0x7FF)
			fmt.Fprintf(&b, "Pos: (%d,%d)\n", vx, vy)
		}
	case op == 0x02:
		fmt.Fprintf(&b, "Color: %06X\n", words[0]&0xFFFFFF)
		if len(words) >= 3 {
			x := words[1] & 0x3F0
			y := (words[1] >> 16) & 0x3FF
			w := (words[2]&0x3FF + 0xF) &^ 0xF
			h := (words[2] >> 16) & 0x1FF
			fmt.Fprintf(&b, "Pos: (%d,%d)  Size: %dx%d\n", x, y, w, h)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// gpuTraceSession subscribes to the "GP0"/"GP1" misc breakpoints and logs
// pre-execution command lines, optionally prefixed to mark post-execution
// logging (§4.F "GPU post-commands" option).
type gpuTraceSession struct {
	subs   []debugif.SubscriptionID
}

func startGPUTrace(prefix string, names ...string) func(core debugif.Core, log func(string)) (TraceSession, error) {
	return func(core debugif.Core, log func(string)) (TraceSession, error) {
		var found []debugif.MiscBreakpoint
		for _, mb := range core.System().MiscBreakpoints() {
			for _, name := range names {
				if mb.Name == name {
					found = append(found, mb)
				}
			}
		}
		if len(found) != len(names) {
			return nil, fmt.Errorf("sysreg: GPU misc breakpoints not found")
		}

		s := &gpuTraceSession{}
		for i := range found {
			mb := found[i]
			sub := debugif.Subscription{Kind: debugif.SubMisc, Misc: &mb}
			id := core.Subscribe(sub, func(sub debugif.SubscriptionID, event debugif.Event) bool {
				post, ok := DecodeGPUPost(event)
				if !ok {
					return false
				}
				var line string
				if post.Port == 0 {
					line = DecodeGP0(post.Words)
				} else {
					line = DecodeGP1(post.Words)
				}
				if prefix != "" {
					line = prefix + line
				}
				log(line)
				return false
			})
			s.subs = append(s.subs, id)
		}
		return s, nil
	}
}

func (s *gpuTraceSession) Stop(core debugif.Core) {
	for _, id := range s.subs {
		core.Unsubscribe(id)
	}
}
