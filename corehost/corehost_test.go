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
	"path/filepath"
	"testing"

	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
)

type fakeSystem struct{}

func (fakeSystem) Description() string                    { return "fake" }
func (fakeSystem) CPUs() []debugif.CPU                     { return nil }
func (fakeSystem) MemoryRegions() []debugif.Memory         { return nil }
func (fakeSystem) MiscBreakpoints() []debugif.MiscBreakpoint { return nil }
func (fakeSystem) PrimaryCPU() debugif.CPU                 { return nil }

type fakeCore struct {
	loaded     bool
	resetCalls int
	state      []byte
	frame      []uint32
	width      int
	height     int
	sampleRate float64
}

func newFakeCore() *fakeCore {
	return &fakeCore{width: 4, height: 2, sampleRate: 48000}
}

func (c *fakeCore) System() debugif.System { return fakeSystem{} }
func (c *fakeCore) Subscribe(sub debugif.Subscription, handler debugif.Handler) debugif.SubscriptionID {
	return 0
}
func (c *fakeCore) Unsubscribe(id debugif.SubscriptionID) {}

func (c *fakeCore) Name() string    { return "fakecore" }
func (c *fakeCore) Version() string { return "1.0" }

func (c *fakeCore) LoadGame(path string) error {
	c.loaded = true
	c.frame = make([]uint32, c.width*c.height)
	for i := range c.frame {
		c.frame[i] = uint32(i + 1)
	}
	return nil
}

func (c *fakeCore) UnloadGame() { c.loaded = false }

func (c *fakeCore) RunFrame(h *Host) {
	h.VideoRefresh(c.frame, c.width, c.height, c.width)
	h.AudioSampleBatch([]int16{100, -100, 200, -200})
}

func (c *fakeCore) Reset() { c.resetCalls++ }

func (c *fakeCore) Serialize() ([]byte, error) {
	return []byte{1, 2, 3, 4}, nil
}

func (c *fakeCore) Unserialize(data []byte) error {
	c.state = append([]byte(nil), data...)
	return nil
}

func (c *fakeCore) Geometry() (int, int) { return c.width, c.height }
func (c *fakeCore) Timing() (float64, float64) { return 60.0, c.sampleRate }

func TestLoadContentDerivesRomBase(t *testing.T) {
	core := newFakeCore()
	h := NewHost(core, "/system", "/save", logger.Allow)

	if err := h.LoadContent("/roms/game.a26"); err != nil {
		t.Fatalf("LoadContent: %v", err)
	}
	base, ok := h.ContentPathBase()
	if !ok || base != "/roms/game" {
		t.Errorf("ContentPathBase = (%q, %v), want (/roms/game, true)", base, ok)
	}
	info, ok := h.ContentInfo()
	if !ok || info != "/roms/game.a26" {
		t.Errorf("ContentInfo = (%q, %v)", info, ok)
	}
}

func TestRunFrameUpdatesFrameBuffer(t *testing.T) {
	core := newFakeCore()
	h := NewHost(core, "", "", logger.Allow)
	if err := h.LoadContent("game.bin"); err != nil {
		t.Fatal(err)
	}

	h.RunFrame()

	w, ht, pixels := h.FrameBuffer()
	if w != 4 || ht != 2 {
		t.Fatalf("FrameBuffer dims = %dx%d, want 4x2", w, ht)
	}
	if len(pixels) != 8 || pixels[0] != 1 {
		t.Errorf("FrameBuffer pixels = %v", pixels)
	}
}

func TestRunFrameNoopWithoutContent(t *testing.T) {
	core := newFakeCore()
	h := NewHost(core, "", "", logger.Allow)
	h.RunFrame() // must not panic; core.RunFrame is never invoked

	w, ht, _ := h.FrameBuffer()
	if w != 0 || ht != 0 {
		t.Errorf("FrameBuffer should be empty before content loads, got %dx%d", w, ht)
	}
}

func TestVideoRefreshCapsToMaxDimensions(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	big := make([]uint32, (MaxWidth+10)*(MaxHeight+10))
	h.VideoRefresh(big, MaxWidth+10, MaxHeight+10, MaxWidth+10)

	w, ht, pixels := h.FrameBuffer()
	if w != MaxWidth || ht != MaxHeight {
		t.Errorf("capped dims = %dx%d, want %dx%d", w, ht, MaxWidth, MaxHeight)
	}
	if len(pixels) != MaxWidth*MaxHeight {
		t.Errorf("len(pixels) = %d, want %d", len(pixels), MaxWidth*MaxHeight)
	}
}

func TestInfoReportsCoreAndGeometry(t *testing.T) {
	core := newFakeCore()
	h := NewHost(core, "", "", logger.Allow)
	if err := h.LoadContent("game.bin"); err != nil {
		t.Fatal(err)
	}
	info := h.Info()
	if info.CoreName != "fakecore" || info.CoreVersion != "1.0" {
		t.Errorf("Info core = %+v", info)
	}
	if info.Width != 4 || info.Height != 2 {
		t.Errorf("Info geometry = %dx%d", info.Width, info.Height)
	}
	if info.FPS != 60.0 || info.SampleRate != 48000 {
		t.Errorf("Info timing = %+v", info)
	}
}

func TestResetCallsCoreOnlyWhenLoaded(t *testing.T) {
	core := newFakeCore()
	h := NewHost(core, "", "", logger.Allow)
	h.Reset()
	if core.resetCalls != 0 {
		t.Fatalf("Reset should be a no-op before content loads")
	}
	if err := h.LoadContent("game.bin"); err != nil {
		t.Fatal(err)
	}
	h.Reset()
	if core.resetCalls != 1 {
		t.Errorf("resetCalls = %d, want 1", core.resetCalls)
	}
}

func TestManualInputToggle(t *testing.T) {
	h := NewHost(newFakeCore(), "", "", logger.Allow)
	if h.ManualInput() {
		t.Fatal("manual input should start off")
	}
	h.SetManualInput(true)
	if !h.ManualInput() {
		t.Error("SetManualInput(true) did not take effect")
	}
}

func TestSaveLoadStateRoundtrip(t *testing.T) {
	dir := t.TempDir()
	core := newFakeCore()
	h := NewHost(core, "", dir, logger.Allow)
	if err := h.LoadContent(filepath.Join(dir, "game.bin")); err != nil {
		t.Fatal(err)
	}

	if err := h.SaveState(0); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := h.LoadState(0); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if string(core.state) != "\x01\x02\x03\x04" {
		t.Errorf("Unserialize saw %v, want the serialized bytes back", core.state)
	}
}

func TestSaveStateRejectsOutOfRangeSlot(t *testing.T) {
	h := NewHost(newFakeCore(), "", t.TempDir(), logger.Allow)
	if err := h.LoadContent("game.bin"); err != nil {
		t.Fatal(err)
	}
	if err := h.SaveState(MaxSaveSlots); err == nil {
		t.Error("expected error for out-of-range slot")
	}
}

func TestSaveStateRejectsWithoutContent(t *testing.T) {
	h := NewHost(newFakeCore(), "", t.TempDir(), logger.Allow)
	if err := h.SaveState(0); err == nil {
		t.Error("expected error when no content is loaded")
	}
}
