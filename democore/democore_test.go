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

package democore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arret/arret/corehost"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
)

func writeTempROM(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGamePopulatesMemory(t *testing.T) {
	c := New(debugif.CPUMOS6502, 16, 4, 4)
	path := writeTempROM(t, []byte{0xA9, 0x01, 0x8D, 0x00})

	if err := c.LoadGame(path); err != nil {
		t.Fatal(err)
	}

	sys := c.System()
	mem := sys.MemoryRegions()[0]
	if mem.Peek(0, false) != 0xA9 {
		t.Errorf("byte 0 = %#x, want 0xA9", mem.Peek(0, false))
	}
	if mem.Peek(2, false) != 0x8D {
		t.Errorf("byte 2 = %#x, want 0x8D", mem.Peek(2, false))
	}
	// bytes beyond the loaded content are zero-filled
	if mem.Peek(15, false) != 0 {
		t.Errorf("byte 15 = %#x, want 0", mem.Peek(15, false))
	}
}

func TestLoadGameTruncatesOversizedContent(t *testing.T) {
	c := New(debugif.CPUMOS6502, 4, 4, 4)
	path := writeTempROM(t, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	if err := c.LoadGame(path); err != nil {
		t.Fatal(err)
	}

	mem := c.System().MemoryRegions()[0]
	if mem.Size() != 4 {
		t.Fatalf("region size = %d, want 4 (fixed at construction)", mem.Size())
	}
	if mem.Peek(3, false) != 4 {
		t.Errorf("byte 3 = %d, want 4", mem.Peek(3, false))
	}
}

func TestPrimaryCPUExposesArchRegisterCount(t *testing.T) {
	c := New(debugif.CPUMOS6502, 16, 4, 4)
	cpu := c.System().PrimaryCPU()
	if cpu.Type() != debugif.CPUMOS6502 {
		t.Fatalf("Type() = %v, want CPUMOS6502", cpu.Type())
	}
	if !cpu.IsPrimary() {
		t.Error("expected sole CPU to be primary")
	}

	cpu.SetRegister(0, 0x1234)
	if got := cpu.GetRegister(0); got != 0x1234 {
		t.Errorf("GetRegister(0) = %#x, want 0x1234", got)
	}
	// out of range is a tolerant no-op, not a panic
	cpu.SetRegister(9999, 1)
	if got := cpu.GetRegister(9999); got != 0 {
		t.Errorf("GetRegister(9999) = %d, want 0", got)
	}
}

func TestResetClearsRegisters(t *testing.T) {
	c := New(debugif.CPUMOS6502, 16, 4, 4)
	cpu := c.System().PrimaryCPU()
	cpu.SetRegister(0, 0xFF)

	c.Reset()

	if got := cpu.GetRegister(0); got != 0 {
		t.Errorf("GetRegister(0) after Reset = %#x, want 0", got)
	}
}

func TestSubscribeUnsubscribeNeverFires(t *testing.T) {
	c := New(debugif.CPUMOS6502, 16, 4, 4)
	fired := false
	id := c.Subscribe(debugif.Subscription{Kind: debugif.SubExecution}, func(debugif.SubscriptionID, debugif.Event) bool {
		fired = true
		return false
	})
	if id < 0 {
		t.Fatal("expected non-negative subscription id")
	}

	h := corehost.NewHost(c, "", "", logger.Allow)
	path := writeTempROM(t, []byte{0x00})
	if err := c.LoadGame(path); err != nil {
		t.Fatal(err)
	}
	c.RunFrame(h)

	if fired {
		t.Error("democore never executes; subscription handler should not fire")
	}
	c.Unsubscribe(id)
}

func TestSerializeUnserializeRoundtrip(t *testing.T) {
	c := New(debugif.CPUMOS6502, 8, 4, 4)
	path := writeTempROM(t, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err := c.LoadGame(path); err != nil {
		t.Fatal(err)
	}

	mem := c.System().MemoryRegions()[0]
	mem.Poke(0, 0xEE)

	snapshot, err := c.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	mem.Poke(0, 0x00)

	if err := c.Unserialize(snapshot); err != nil {
		t.Fatal(err)
	}
	if mem.Peek(0, false) != 0xEE {
		t.Errorf("byte 0 after Unserialize = %#x, want 0xEE", mem.Peek(0, false))
	}
}

func TestGeometryAndTiming(t *testing.T) {
	c := New(debugif.CPULR35902, 0, 160, 144)
	w, h := c.Geometry()
	if w != 160 || h != 144 {
		t.Errorf("Geometry() = (%d, %d), want (160, 144)", w, h)
	}
	fps, rate := c.Timing()
	if fps != 60.0 || rate != 48000 {
		t.Errorf("Timing() = (%v, %v), want (60, 48000)", fps, rate)
	}
}
