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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arret/arret/arreterr"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
)

func TestSetLabel_RejectsInvalid(t *testing.T) {
	s := NewStore(nil, logger.Allow)
	if err := s.SetLabel("ram", 0x100, "9bad"); !errors.Is(err, arreterr.New(arreterr.InvalidLabel)) {
		t.Fatalf("expected InvalidLabel error, got %v", err)
	}
	if err := s.SetLabel("ram", 0x100, "_valid_Name9"); err != nil {
		t.Fatalf("expected valid label to be accepted, got %v", err)
	}
}

func TestLabelAndCommentLifecycle(t *testing.T) {
	s := NewStore(nil, logger.Allow)
	if err := s.SetLabel("ram", 0x100, "start"); err != nil {
		t.Fatal(err)
	}
	s.SetComment("ram", 0x100, "entry point")

	if lbl, ok := s.Label("ram", 0x100); !ok || lbl != "start" {
		t.Fatalf("got %q, %v", lbl, ok)
	}
	if c, ok := s.Comment("ram", 0x100); !ok || c != "entry point" {
		t.Fatalf("got %q, %v", c, ok)
	}
	if !s.HasAnnotation("ram", 0x100) {
		t.Fatal("expected annotation to be present")
	}

	if !s.DeleteLabel("ram", 0x100) {
		t.Fatal("expected delete to succeed")
	}
	if !s.HasAnnotation("ram", 0x100) {
		t.Fatal("expected entry to survive since comment remains")
	}
	if !s.DeleteComment("ram", 0x100) {
		t.Fatal("expected delete to succeed")
	}
	if s.HasAnnotation("ram", 0x100) {
		t.Fatal("expected entry to be gone once both label and comment are cleared")
	}
}

func TestCountAndClear(t *testing.T) {
	s := NewStore(nil, logger.Allow)
	s.SetComment("ram", 1, "a")
	s.SetComment("ram", 2, "b")
	if s.Count() != 2 {
		t.Fatalf("expected 2, got %d", s.Count())
	}
	s.Clear()
	if s.Count() != 0 {
		t.Fatalf("expected 0 after clear, got %d", s.Count())
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	s := NewStore(nil, logger.Allow)
	if err := s.SetLabel("ram", 0x100, "start"); err != nil {
		t.Fatal(err)
	}
	s.SetComment("ram", 0x200, "note")

	path := filepath.Join(t.TempDir(), "test.sym.json")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded := NewStore(nil, logger.Allow)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("expected 2 symbols after load, got %d", loaded.Count())
	}
	if lbl, ok := loaded.Label("ram", 0x100); !ok || lbl != "start" {
		t.Fatalf("got %q, %v", lbl, ok)
	}
}

func TestLoad_TolerantOfTrailingGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.sym.json")
	data := []byte(`[{"region":"ram","addr":256,"label":"start"},{"region":"ram","addr":512`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(nil, logger.Allow)
	if err := s.Load(path); err != nil {
		t.Fatal(err)
	}
	if lbl, ok := s.Label("ram", 256); !ok || lbl != "start" {
		t.Fatalf("expected the well-formed entry to survive, got %q, %v", lbl, ok)
	}
}

// chainMemory is a minimal debugif.Memory used to exercise map resolution.
type chainMemory struct {
	id     string
	maps   []debugif.MemoryMap
	banked func(addr uint64, bank int) (debugif.MemoryMap, bool)
}

func (m *chainMemory) ID() string          { return m.id }
func (m *chainMemory) Description() string { return m.id }
func (m *chainMemory) Base() uint64        { return 0 }
func (m *chainMemory) Size() uint64        { return 0x10000 }
func (m *chainMemory) Peek(addr uint64, sideEffects bool) uint8 { return 0 }
func (m *chainMemory) Poke(addr uint64, value uint8)            {}
func (m *chainMemory) MemoryMap() []debugif.MemoryMap           { return m.maps }
func (m *chainMemory) GetBankAddress(addr uint64, bank int) (debugif.MemoryMap, bool) {
	if m.banked == nil {
		return debugif.MemoryMap{}, false
	}
	return m.banked(addr, bank)
}

func TestResolve_FollowsMemoryMapChain(t *testing.T) {
	rom := &chainMemory{id: "rom"}
	cart := &chainMemory{id: "cart", maps: []debugif.MemoryMap{
		{Base: 0x8000, End: 0xFFFF, Source: rom, SourceBase: 0x0000},
	}}
	regions := map[string]debugif.Memory{"rom": rom, "cart": cart}
	find := func(id string) debugif.Memory { return regions[id] }

	s := NewStore(find, logger.Allow)
	resolved, err := s.Resolve("cart", 0x8010)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Region != "rom" || resolved.Addr != 0x10 {
		t.Fatalf("got %+v", resolved)
	}
}

func TestResolve_DetectsCycle(t *testing.T) {
	a := &chainMemory{id: "a"}
	b := &chainMemory{id: "b"}
	a.maps = []debugif.MemoryMap{{Base: 0, End: 0xFFFF, Source: b, SourceBase: 0}}
	b.maps = []debugif.MemoryMap{{Base: 0, End: 0xFFFF, Source: a, SourceBase: 0}}
	regions := map[string]debugif.Memory{"a": a, "b": b}
	find := func(id string) debugif.Memory { return regions[id] }

	s := NewStore(find, logger.Allow)
	if _, err := s.Resolve("a", 0); err == nil {
		t.Fatal("expected cycle to be detected")
	}
}

func TestResolve_UnknownRegion(t *testing.T) {
	s := NewStore(func(string) debugif.Memory { return nil }, logger.Allow)
	if _, err := s.Resolve("nope", 0); !errors.Is(err, arreterr.New(arreterr.UnknownMemoryRegion)) {
		t.Fatalf("got %v", err)
	}
}
