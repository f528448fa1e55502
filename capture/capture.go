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

// Package capture implements PSX GPU VRAM capture (§4.G): a core-thread
// recording of GP0/GP1 commands, each stamped with a full compressed VRAM
// keyframe and a bounding rectangle for UI overlay, plus frame-boundary
// markers so a viewer can scrub the capture frame by frame.
package capture

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/arret/arret/debugif"
	"github.com/arret/arret/sysreg"
)

const (
	vramW     = 1024 // halfwords per row
	vramH     = 512
	vramBytes = vramW * vramH * 2 // 1048576
)

// EventKind tags one captured record.
type EventKind uint8

const (
	GPUCommand EventKind = iota
	FrameBoundary
)

// Event is one captured GPU command or frame marker (mirrors GpuCapEvent).
type Event struct {
	Kind        EventKind
	Port        uint8
	Source      uint8
	IsKeyframe  bool
	Words       []uint32
	PC          uint32
	FrameNumber int

	// Diff is a qCompress-compatible (4-byte big-endian length + zlib
	// stream) full VRAM snapshot, present only when this command modifies
	// VRAM.
	Diff []byte

	// DiffX/Y/W/H is the halfword-coordinate bounding rectangle affected
	// by this command, for UI overlay; DiffW==0 && DiffH==0 means the
	// rectangle could not be determined (the diff covers the whole VRAM).
	DiffX, DiffY, DiffW, DiffH uint16
}

// qcompress produces a qCompress-compatible buffer: 4-byte big-endian
// uncompressed length followed by a zlib stream, so the recorded VRAM
// snapshots can be inspected directly with the pack's Qt-based viewer.
func qcompress(data []byte) []byte {
	var buf bytes.Buffer
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(data)))
	buf.Write(lenPrefix[:])

	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

func qdecompress(data []byte, wantLen int) ([]byte, bool) {
	if len(data) < 4 {
		return nil, false
	}
	n := binary.BigEndian.Uint32(data[:4])
	if int(n) != wantLen {
		return nil, false
	}
	r, err := zlib.NewReader(bytes.NewReader(data[4:]))
	if err != nil {
		return nil, false
	}
	defer r.Close()
	out := make([]byte, wantLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, false
	}
	return out, true
}

// vramRect computes the halfword-coordinate bounding box a GP0 command
// touches, clamped to the current draw area and offset, with a 1-halfword
// margin. Returns ok=false when the bounds cannot be determined from the
// command's fields alone (e.g. a polyline of unknown vertex count).
func vramRect(words []uint32, offX, offY, ax1, ay1, ax2, ay2 int) (x, y, w, h int, ok bool) {
	if len(words) == 0 {
		return 0, 0, 0, 0, false
	}
	op := uint8(words[0] >> 24)
	var x0, y0, x1, y1 int

	switch {
	case op == 0x02 && len(words) >= 3:
		x0 = int(words[1] & 0x3F0)
		y0 = int((words[1] >> 16) & 0x3FF)
		ww := int((words[2]&0x3FF + 0xF) &^ 0xF)
		hh := int((words[2] >> 16) & 0x1FF)
		if ww == 0 || hh == 0 {
			return 0, 0, 0, 0, false
		}
		x1, y1 = x0+ww-1, y0+hh-1
		if x1 >= vramW || y1 >= vramH {
			return 0, 0, 0, 0, false
		}
	case op >= 0x20 && op <= 0x3F:
		tex := op&0x04 != 0
		shade := op&0x10 != 0
		stride := 1
		if shade {
			stride++
		}
		if tex {
			stride++
		}
		x0, y0 = 1<<30, 1<<30
		x1, y1 = -(1 << 30), -(1 << 30)
		for v := 0; v < 3; v++ {
			idx := 1
			if v > 0 {
				idx = 1 + v*stride
			}
			if idx >= len(words) {
				return 0, 0, 0, 0, false
			}
			vx := sign11(words[idx]&0x7FF) + offX
			vy := sign11((words[idx]>>16)&0x7FF) + offY
			if vx < x0 {
				x0 = vx
			}
			if vx > x1 {
				x1 = vx
			}
			if vy < y0 {
				y0 = vy
			}
			if vy > y1 {
				y1 = vy
			}
		}
		x0, y0, x1, y1 = clampBox(x0, y0, x1, y1, ax1, ay1, ax2, ay2)
	case op >= 0x40 && op <= 0x5F:
		if op&0x08 != 0 {
			return 0, 0, 0, 0, false // polyline: unknown vertex count
		}
		shade := op&0x10 != 0
		v1idx := 2
		if shade {
			v1idx = 3
		}
		if v1idx >= len(words) || len(words) < 2 {
			return 0, 0, 0, 0, false
		}
		vx0 := sign11(words[1]&0x7FF) + offX
		vy0 := sign11((words[1]>>16)&0x7FF) + offY
		vx1 := sign11(words[v1idx]&0x7FF) + offX
		vy1 := sign11((words[v1idx]>>16)&0x7FF) + offY
		x0, x1 = minMax(vx0, vx1)
		y0, y1 = minMax(vy0, vy1)
		x0, y0, x1, y1 = clampBox(x0, y0, x1, y1, ax1, ay1, ax2, ay2)
	case op >= 0x60 && op <= 0x7F:
		tex := op&0x04 != 0
		sz := (op >> 3) & 0x03
		if len(words) < 2 {
			return 0, 0, 0, 0, false
		}
		vx := sign11(words[1]&0x7FF) + offX
		vy := sign11((words[1]>>16)&0x7FF) + offY
		var ww, hh int
		switch sz {
		case 1:
			ww, hh = 1, 1
		case 2:
			ww, hh = 8, 8
		case 3:
			ww, hh = 16, 16
		default:
			need := 3
			if tex {
				need = 4
			}
			if len(words) < need {
				return 0, 0, 0, 0, false
			}
			widx := 2
			if tex {
				widx = 3
			}
			ww = int(words[widx] & 0x3FF)
			hh = int((words[widx] >> 16) & 0x1FF)
		}
		x0, y0, x1, y1 = vx, vy, vx+ww-1, vy+hh-1
		x0, y0, x1, y1 = clampBox(x0, y0, x1, y1, ax1, ay1, ax2, ay2)
	case op >= 0x80 && op <= 0x9F && len(words) >= 4:
		dx := int(words[2] & 0x3FF)
		dy := int((words[2] >> 16) & 0x3FF)
		ww := int(words[3] & 0x3FF)
		hh := int((words[3] >> 16) & 0x1FF)
		if ww == 0 {
			ww = 0x400
		}
		if hh == 0 {
			hh = 0x200
		}
		x0, y0, x1, y1 = dx, dy, dx+ww-1, dy+hh-1
		if x1 >= vramW || y1 >= vramH {
			return 0, 0, 0, 0, false
		}
	case (op >= 0xA0 && op <= 0xBF && len(words) >= 3):
		x0 = int(words[1] & 0x3FF)
		y0 = int((words[1] >> 16) & 0x3FF)
		ww := int(words[2] & 0x3FF)
		hh := int((words[2] >> 16) & 0x1FF)
		if ww == 0 {
			ww = 0x400
		}
		if hh == 0 {
			hh = 0x200
		}
		x1, y1 = x0+ww-1, y0+hh-1
		if x1 >= vramW || y1 >= vramH {
			return 0, 0, 0, 0, false
		}
	default:
		return 0, 0, 0, 0, false
	}

	x0--
	y0--
	x1++
	y1++
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= vramW {
		x1 = vramW - 1
	}
	if y1 >= vramH {
		y1 = vramH - 1
	}
	if x0 > x1 || y0 > y1 {
		return 0, 0, 0, 0, false
	}
	return x0, y0, x1 - x0 + 1, y1 - y0 + 1, true
}

func sign11(v uint32) int { return int(int32(v<<21) >> 21) }

func minMax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

func clampBox(x0, y0, x1, y1, ax1, ay1, ax2, ay2 int) (int, int, int, int) {
	if x0 < ax1 {
		x0 = ax1
	}
	if y0 < ay1 {
		y0 = ay1
	}
	if x1 > ax2 {
		x1 = ax2
	}
	if y1 > ay2 {
		y1 = ay2
	}
	return x0, y0, x1, y1
}

// Engine owns one GPU capture session.
type Engine struct {
	mu sync.Mutex

	core debugif.Core
	vram debugif.Memory

	active bool
	sub    debugif.SubscriptionID

	events          []Event
	compressedBytes int
	frameCounter    int

	drawOffX, drawOffY             int
	drawAreaX1, drawAreaY1         int
	drawAreaX2, drawAreaY2         int

	deferred      bool
	deferredIndex int
}

// NewEngine creates an idle capture engine bound to core.
func NewEngine(core debugif.Core) *Engine {
	return &Engine{core: core}
}

func findMemory(core debugif.Core, id string) debugif.Memory {
	for _, m := range core.System().MemoryRegions() {
		if m.ID() == id {
			return m
		}
	}
	return nil
}

func findMisc(core debugif.Core, name string) *debugif.MiscBreakpoint {
	for _, mb := range core.System().MiscBreakpoints() {
		if mb.Name == name {
			mb := mb
			return &mb
		}
	}
	return nil
}

func readFullVRAM(mem debugif.Memory) []byte {
	buf := make([]byte, vramBytes)
	for i := range buf {
		buf[i] = mem.Peek(uint64(i), false)
	}
	return buf
}

// Start begins capturing GP0 commands. Fails if a "vram" memory region or
// "GP0" misc breakpoint is not exposed by the loaded system, or a capture
// is already active.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return fmt.Errorf("capture: already active")
	}

	mb := findMisc(e.core, "GP0")
	if mb == nil {
		return fmt.Errorf("capture: no GP0 misc breakpoint")
	}
	vram := findMemory(e.core, "vram")
	if vram == nil {
		return fmt.Errorf("capture: no vram memory region")
	}

	sub := debugif.Subscription{Kind: debugif.SubMisc, Misc: mb}
	id := e.core.Subscribe(sub, e.onEvent)
	if id < 0 {
		return fmt.Errorf("capture: subscription failed")
	}

	e.vram = vram
	e.sub = id
	e.events = nil
	e.compressedBytes = 0
	e.frameCounter = 1
	e.drawOffX, e.drawOffY = 0, 0
	e.drawAreaX1, e.drawAreaY1 = 0, 0
	e.drawAreaX2, e.drawAreaY2 = vramW-1, vramH-1
	e.deferred = false

	cur := readFullVRAM(vram)
	diff := qcompress(cur)
	e.compressedBytes += len(diff)
	e.events = append(e.events, Event{Kind: GPUCommand, IsKeyframe: true, Diff: diff})

	e.active = true
	return nil
}

// Stop ends the capture session and releases its subscription.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return
	}
	e.active = false
	e.core.Unsubscribe(e.sub)
	e.vram = nil
}

// Active reports whether a capture is running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// FrameBoundary records a frame marker. Called by the host's post-frame
// hook (§4.J).
func (e *Engine) FrameBoundary() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return
	}
	e.completeDeferredLocked()
	e.events = append(e.events, Event{Kind: FrameBoundary, FrameNumber: e.frameCounter})
	e.frameCounter++
}

func (e *Engine) completeDeferredLocked() {
	if !e.deferred || e.vram == nil {
		return
	}
	e.deferred = false
	cur := readFullVRAM(e.vram)
	diff := qcompress(cur)
	e.events[e.deferredIndex].IsKeyframe = true
	e.events[e.deferredIndex].Diff = diff
	e.compressedBytes += len(diff)
}

func (e *Engine) onEvent(sub debugif.SubscriptionID, event debugif.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return false
	}
	post, ok := sysreg.DecodeGPUPost(event)
	if !ok {
		return false
	}

	if post.Port == 0 && len(post.Words) > 0 {
		cfg := uint8(post.Words[0] >> 24)
		switch cfg {
		case 0xE3:
			e.drawAreaX1 = int(post.Words[0] & 0x3FF)
			e.drawAreaY1 = int((post.Words[0] >> 10) & 0x1FF)
		case 0xE4:
			e.drawAreaX2 = int(post.Words[0] & 0x3FF)
			e.drawAreaY2 = int((post.Words[0] >> 10) & 0x1FF)
		case 0xE5:
			e.drawOffX = sign11(post.Words[0] & 0x7FF)
			e.drawOffY = sign11((post.Words[0] >> 11) & 0x7FF)
		}
	}

	words := post.Words
	if len(words) > 16 {
		words = words[:16]
	}
	ev := Event{Kind: GPUCommand, Port: post.Port, Source: post.Source, PC: post.PC, Words: words}

	modifiesVRAM := false
	isCPUToVRAM := false
	if post.Port == 0 && len(words) > 0 {
		op := uint8(words[0] >> 24)
		if op == 0x02 || (op >= 0x20 && op <= 0x7F) || (op >= 0x80 && op <= 0xBF) {
			modifiesVRAM = true
		}
		if op >= 0xA0 && op <= 0xBF {
			isCPUToVRAM = true
		}
	}

	if e.deferred {
		e.completeDeferredLocked()
	}

	idx := len(e.events)

	if modifiesVRAM && e.vram != nil {
		if x, y, w, h, ok := vramRect(words, e.drawOffX, e.drawOffY, e.drawAreaX1, e.drawAreaY1, e.drawAreaX2, e.drawAreaY2); ok {
			ev.DiffX, ev.DiffY, ev.DiffW, ev.DiffH = uint16(x), uint16(y), uint16(w), uint16(h)
		}

		if isCPUToVRAM {
			// The transfer hasn't completed at post-hook time; defer the
			// VRAM read until the next event or frame boundary.
			e.events = append(e.events, ev)
			e.deferred = true
			e.deferredIndex = idx
			return false
		}

		cur := readFullVRAM(e.vram)
		diff := qcompress(cur)
		ev.IsKeyframe = true
		ev.Diff = diff
		e.compressedBytes += len(diff)
	}

	e.events = append(e.events, ev)
	return false
}

// Events returns every captured record, valid once the capture has
// stopped.
func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// CompressedBytes returns the total size of every stored VRAM snapshot.
func (e *Engine) CompressedBytes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compressedBytes
}

// Reconstruct decompresses the full 1MB VRAM state as of event idx,
// walking back to the nearest event carrying a snapshot.
func (e *Engine) Reconstruct(idx int) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx < 0 || idx >= len(e.events) {
		return nil, false
	}

	target := idx
	for target > 0 && (e.events[target].Kind == FrameBoundary || len(e.events[target].Diff) == 0) {
		target--
	}
	if len(e.events[target].Diff) == 0 {
		return nil, false
	}
	return qdecompress(e.events[target].Diff, vramBytes)
}
