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

// Package memsearch implements the memory-search engine (§4.C, "cheat
// finder"): a bitfield of candidate addresses within one memory region,
// narrowed by successive filter passes comparing current values against a
// literal or against the previous snapshot.
package memsearch

import (
	"sync"

	"github.com/arret/arret/arreterr"
	"github.com/arret/arret/debugif"
)

// Op is a filter comparison operator.
type Op int

const (
	OpEQ Op = iota
	OpNE
	OpLT
	OpGT
	OpLE
	OpGE
)

// VsPrev, passed as the value argument to Filter, compares each candidate
// against its own previous snapshot instead of a literal.
const VsPrev = ^uint64(0)

// Result is one surviving candidate.
type Result struct {
	Addr  uint64
	Value uint64
	Prev  uint64
}

// Search holds one in-progress memory search. It is safe for concurrent
// use.
type Search struct {
	mu sync.Mutex

	mem       debugif.Memory
	dataSize  int
	alignment int
	baseAddr  uint64
	numSlots  uint64

	candidates []bool
	prev       []uint64
	count      uint64
}

// New starts a search over region, snapshotting every alignment-spaced slot
// as an initial candidate. dataSize and alignment must each be 1, 2 or 4;
// any other value is replaced by 1. alignment is raised to dataSize if
// narrower.
func New(region debugif.Memory, dataSize, alignment int) (*Search, error) {
	if region == nil {
		return nil, arreterr.New(arreterr.UnknownMemoryRegion)
	}
	if dataSize != 1 && dataSize != 2 && dataSize != 4 {
		dataSize = 1
	}
	if alignment != 1 && alignment != 2 && alignment != 4 {
		alignment = 1
	}
	if alignment < dataSize {
		alignment = dataSize
	}

	baseAddr := region.Base()
	size := region.Size()
	numSlots := size / uint64(alignment)
	if numSlots == 0 {
		return nil, arreterr.New(arreterr.BadRange, "region too small for the chosen alignment")
	}

	s := &Search{
		mem:        region,
		dataSize:   dataSize,
		alignment:  alignment,
		baseAddr:   baseAddr,
		numSlots:   numSlots,
		candidates: make([]bool, numSlots),
		prev:       make([]uint64, numSlots),
		count:      numSlots,
	}
	for i := uint64(0); i < numSlots; i++ {
		s.candidates[i] = true
		s.prev[i] = s.readValue(s.slotAddr(i))
	}
	return s, nil
}

func (s *Search) slotAddr(slot uint64) uint64 {
	return s.baseAddr + slot*uint64(s.alignment)
}

func (s *Search) readValue(addr uint64) uint64 {
	var v uint64
	for i := 0; i < s.dataSize; i++ {
		v |= uint64(s.mem.Peek(addr+uint64(i), false)) << (i * 8)
	}
	return v
}

func compare(op Op, cur, cmp uint64) bool {
	switch op {
	case OpEQ:
		return cur == cmp
	case OpNE:
		return cur != cmp
	case OpLT:
		return cur < cmp
	case OpGT:
		return cur > cmp
	case OpLE:
		return cur <= cmp
	case OpGE:
		return cur >= cmp
	default:
		return false
	}
}

// Filter narrows the candidate set to slots matching op against value (or
// against each slot's previous snapshot, if value is VsPrev), then
// refreshes the snapshot for every surviving slot. Returns the number of
// remaining candidates.
func (s *Search) Filter(op Op, value uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	for slot := uint64(0); slot < s.numSlots; slot++ {
		if !s.candidates[slot] {
			continue
		}
		cur := s.readValue(s.slotAddr(slot))
		cmp := value
		if value == VsPrev {
			cmp = s.prev[slot]
		}
		if !compare(op, cur, cmp) {
			s.candidates[slot] = false
			s.count--
		}
	}

	for slot := uint64(0); slot < s.numSlots; slot++ {
		if s.candidates[slot] {
			s.prev[slot] = s.readValue(s.slotAddr(slot))
		}
	}

	return s.count
}

// Results returns up to max surviving candidates.
func (s *Search) Results(max int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Result, 0, max)
	for slot := uint64(0); slot < s.numSlots && len(out) < max; slot++ {
		if !s.candidates[slot] {
			continue
		}
		addr := s.slotAddr(slot)
		out = append(out, Result{Addr: addr, Value: s.readValue(addr), Prev: s.prev[slot]})
	}
	return out
}

// Count returns the number of surviving candidates.
func (s *Search) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
