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

// Package corehost implements the emulator-host callback surface (§4.J):
// environment queries, video refresh, the audio ring buffer, fixable input
// overrides, and save-state I/O. Dynamically loading a core from a shared
// library (the libretro dlopen mechanism the teacher's C backend used) is
// out of scope as functionality; in its place, EmulatorCore is the Go
// interface a concrete emulator implementation satisfies, constructed
// in-process rather than dlopen'd. Host is the concrete collaborator that
// satisfies both protocol.Host (the command dispatcher's view of the
// running core) and rundbg.CoreRunner (the debugger runtime's frame driver).
package corehost

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
	"github.com/arret/arret/protocol"
)

const logTag = "corehost"

// Frame buffer and save-slot bounds (§4.J).
const (
	MaxWidth     = 256
	MaxHeight    = 224
	MaxSaveSlots = 10
)

// EmulatorCore is the frame-execution surface a concrete emulator
// implementation provides. It stands in for the teacher's dlopen'd
// libretro core: same callback shape (environment, video, audio, input,
// serialize), but wired at compile time instead of loaded from a shared
// library at runtime.
type EmulatorCore interface {
	debugif.Core

	Name() string
	Version() string

	// LoadGame loads content at path, replacing anything already loaded.
	LoadGame(path string) error
	UnloadGame()

	// RunFrame executes one frame, calling back into h's VideoRefresh,
	// AudioSampleBatch and InputState as needed. It must not return until
	// every callback it makes has completed, mirroring retro_run's
	// synchronous contract with the frontend.
	RunFrame(h *Host)

	Reset()

	Serialize() ([]byte, error)
	Unserialize(data []byte) error

	// Geometry and Timing are queried once after LoadGame succeeds
	// (mirrors retro_get_system_av_info).
	Geometry() (width, height int)
	Timing() (fps, sampleRate float64)
}

// Host is the emulator-host collaborator: it owns the frame buffer, the
// audio ring, input override state and save-state I/O for one loaded
// EmulatorCore.
type Host struct {
	mu sync.Mutex

	core    EmulatorCore
	logPerm logger.Permission

	systemDir string
	saveDir   string
	romPath   string
	romBase   string
	contentOK bool

	video video
	audio audioRing
	input inputState

	manualInput bool

	variables       map[string]*Variable
	controllerTypes []ControllerType

	onGeometryChange func(width, height int)
}

// NewHost constructs a Host around core. systemDir and saveDir are handed
// to the core's environment queries (RETRO_ENVIRONMENT_GET_SYSTEM_DIRECTORY
// / GET_SAVE_DIRECTORY in the original ABI); either may be "".
func NewHost(core EmulatorCore, systemDir, saveDir string, logPerm logger.Permission) *Host {
	h := &Host{
		core:      core,
		logPerm:   logPerm,
		systemDir: systemDir,
		saveDir:   saveDir,
	}
	h.audio.reset(384000)
	return h
}

// OnGeometryChange installs a callback invoked whenever the core reports a
// geometry change (RETRO_ENVIRONMENT_SET_GEOMETRY) after content has
// loaded, e.g. so a frontend can resize a window.
func (h *Host) OnGeometryChange(fn func(width, height int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onGeometryChange = fn
}

// LoadContent loads romPath into the core and derives the save-state base
// path and save directory from it, matching ar_load_content's rom_base /
// save_dir derivation.
func (h *Host) LoadContent(romPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.contentOK {
		h.core.UnloadGame()
		h.contentOK = false
	}

	if err := h.core.LoadGame(romPath); err != nil {
		return fmt.Errorf("corehost: load content: %w", err)
	}

	h.romPath = romPath
	h.romBase = strings.TrimSuffix(romPath, filepath.Ext(romPath))
	if dir := filepath.Dir(romPath); dir != "" {
		h.saveDir = dir
	}

	w, ht := h.core.Geometry()
	h.video.setGeometry(w, ht)

	_, sampleRate := h.core.Timing()
	if sampleRate > 0 {
		h.audio.reset(sampleRate)
	}

	h.contentOK = true
	logger.Logf(h.logPerm, logTag, "content loaded: %s (%dx%d)", romPath, w, ht)
	return nil
}

// RunFrame implements rundbg.CoreRunner: it runs one frame synchronously on
// the calling goroutine.
func (h *Host) RunFrame() {
	h.mu.Lock()
	core := h.core
	loaded := h.contentOK
	h.mu.Unlock()
	if !loaded {
		return
	}
	core.RunFrame(h)
}

// Reset implements protocol.Host.
func (h *Host) Reset() {
	h.mu.Lock()
	loaded := h.contentOK
	h.mu.Unlock()
	if loaded {
		h.core.Reset()
	}
}

// SetManualInput implements protocol.Host: while on, ar_set_input from a
// live gamepad (or whatever feeds the non-fixed input state) is expected to
// stop; only fixed overrides and the command protocol's "input" verb drive
// the core.
func (h *Host) SetManualInput(on bool) {
	h.mu.Lock()
	h.manualInput = on
	h.mu.Unlock()
}

// ManualInput reports the current manual-input flag.
func (h *Host) ManualInput() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.manualInput
}

// ContentInfo implements protocol.Host. This backend does not depend on a
// per-system "get_content_info" callback (§4.F systems describe themselves
// through debugif.System.Description instead), so it reports the loaded
// ROM path.
func (h *Host) ContentInfo() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.contentOK {
		return "", false
	}
	return h.romPath, true
}

// ContentPathBase implements protocol.Host.
func (h *Host) ContentPathBase() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.contentOK {
		return "", false
	}
	return h.romBase, true
}

// Info implements protocol.Host.
func (h *Host) Info() protocol.HostFrame {
	h.mu.Lock()
	defer h.mu.Unlock()
	info := protocol.HostFrame{
		CoreName:    h.core.Name(),
		CoreVersion: h.core.Version(),
		Width:       uint32(h.video.width),
		Height:      uint32(h.video.height),
	}
	if h.contentOK {
		info.FPS, info.SampleRate = h.core.Timing()
	}
	return info
}
