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

// Package symbols implements label and comment annotation storage (§4.B):
// a (region ID, address) -> {label, comment} store, resolved through the
// memory-map graph to the deepest backing region before lookup, persisted
// as a sibling ".sym.json" file next to the loaded ROM.
package symbols

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/arret/arret/arreterr"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/logger"
)

var labelPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Key identifies one annotated address: the deepest backing region ID and
// the address within that region.
type Key struct {
	Region string
	Addr   uint64
}

type entry struct {
	Label   string
	Comment string
}

// Symbol is one annotated (region, address) pair, as returned by List.
type Symbol struct {
	Region  string
	Addr    uint64
	Label   string
	Comment string
}

// ResolvedAddr is the outcome of walking a memory-map chain to its deepest
// backing region.
type ResolvedAddr struct {
	Region string
	Addr   uint64
}

// finder looks up a named memory region, mirroring the emulator-host lookup
// the original backend calls into. corehost supplies the concrete
// implementation; the store accepts it as a collaborator to stay free of a
// corehost import cycle.
type finder func(regionID string) debugif.Memory

// Store is a label/comment annotation store for one loaded system. It is
// safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	syms    map[Key]entry
	find    finder
	logPerm logger.Permission
}

// NewStore creates an empty annotation store. find resolves a region ID to
// its Memory collaborator for map-chain resolution; it may be nil, in which
// case Resolve and ResolveBank always fail.
func NewStore(find finder, logPerm logger.Permission) *Store {
	return &Store{syms: map[Key]entry{}, find: find, logPerm: logPerm}
}

// Resolve walks the memory-map chain from (regionID, addr) to the deepest
// backing region, following rd.MemoryMap.Source links. Returns an error if
// regionID is unknown or the chain cycles.
func (s *Store) Resolve(regionID string, addr uint64) (ResolvedAddr, error) {
	if s.find == nil {
		return ResolvedAddr{}, arreterr.New(arreterr.UnknownMemoryRegion, regionID)
	}

	visited := map[string]bool{}
	curRegion := regionID
	curAddr := addr

	for {
		if visited[curRegion] {
			return ResolvedAddr{}, arreterr.New(arreterr.BadRange, fmt.Sprintf("cycle at %s", curRegion))
		}
		visited[curRegion] = true

		mem := s.find(curRegion)
		if mem == nil {
			if len(visited) == 1 {
				return ResolvedAddr{}, arreterr.New(arreterr.UnknownMemoryRegion, curRegion)
			}
			break
		}

		maps := mem.MemoryMap()
		if len(maps) == 0 {
			break
		}

		found := false
		for _, m := range maps {
			if m.Source != nil && curAddr >= m.Base && curAddr <= m.End {
				curAddr = m.SourceBase + (curAddr - m.Base)
				curRegion = m.Source.ID()
				found = true
				break
			}
		}
		if !found {
			break
		}
	}

	return ResolvedAddr{Region: curRegion, Addr: curAddr}, nil
}

// ResolveBank resolves addr as if bank were selected on regionID, then
// continues resolution as Resolve does.
func (s *Store) ResolveBank(regionID string, addr uint64, bank int) (ResolvedAddr, error) {
	if s.find == nil {
		return ResolvedAddr{}, arreterr.New(arreterr.UnknownMemoryRegion, regionID)
	}
	mem := s.find(regionID)
	if mem == nil {
		return ResolvedAddr{}, arreterr.New(arreterr.UnknownMemoryRegion, regionID)
	}

	m, ok := mem.GetBankAddress(addr, bank)
	if !ok {
		return ResolvedAddr{}, arreterr.New(arreterr.BadRange, fmt.Sprintf("bank %d unavailable on %s", bank, regionID))
	}
	if m.Source != nil {
		return s.Resolve(m.Source.ID(), m.SourceBase+(addr-m.Base))
	}
	return s.Resolve(regionID, addr)
}

func validLabel(label string) bool {
	return labelPattern.MatchString(label)
}

// SetLabel attaches label to (region, addr). label must match
// [a-zA-Z_][a-zA-Z0-9_]*.
func (s *Store) SetLabel(region string, addr uint64, label string) error {
	if !validLabel(label) {
		return arreterr.New(arreterr.InvalidLabel, label)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key{region, addr}
	e := s.syms[k]
	e.Label = label
	s.syms[k] = e
	return nil
}

// DeleteLabel removes the label at (region, addr), dropping the entry
// entirely if it now has neither label nor comment.
func (s *Store) DeleteLabel(region string, addr uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key{region, addr}
	e, ok := s.syms[k]
	if !ok {
		return false
	}
	e.Label = ""
	if e.Comment == "" {
		delete(s.syms, k)
	} else {
		s.syms[k] = e
	}
	return true
}

// Label returns the label at (region, addr) and whether one is set.
func (s *Store) Label(region string, addr uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.syms[Key{region, addr}]
	if !ok || e.Label == "" {
		return "", false
	}
	return e.Label, true
}

// SetComment attaches a free-form comment to (region, addr).
func (s *Store) SetComment(region string, addr uint64, comment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key{region, addr}
	e := s.syms[k]
	e.Comment = comment
	s.syms[k] = e
}

// DeleteComment removes the comment at (region, addr), dropping the entry
// entirely if it now has neither label nor comment.
func (s *Store) DeleteComment(region string, addr uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := Key{region, addr}
	e, ok := s.syms[k]
	if !ok {
		return false
	}
	e.Comment = ""
	if e.Label == "" {
		delete(s.syms, k)
	} else {
		s.syms[k] = e
	}
	return true
}

// Comment returns the comment at (region, addr) and whether one is set.
func (s *Store) Comment(region string, addr uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.syms[Key{region, addr}]
	if !ok || e.Comment == "" {
		return "", false
	}
	return e.Comment, true
}

// HasAnnotation reports whether (region, addr) has a label or comment.
func (s *Store) HasAnnotation(region string, addr uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.syms[Key{region, addr}]
	return ok
}

// List returns every annotated symbol, unordered.
func (s *Store) List() []Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Symbol, 0, len(s.syms))
	for k, e := range s.syms {
		out = append(out, Symbol{Region: k.Region, Addr: k.Addr, Label: e.Label, Comment: e.Comment})
	}
	return out
}

// Count returns the number of annotated (region, addr) pairs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.syms)
}

// Clear removes every annotation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syms = map[Key]entry{}
}

// Save and Load persist annotations to and from the sibling
// "<rombase>.sym.json" file, implemented in persist.go.
