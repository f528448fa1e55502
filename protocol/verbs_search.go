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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arret/arret/memsearch"
)

func init() {
	registerVerb("search", verbSearch)
}

var searchOps = map[string]memsearch.Op{
	"eq": memsearch.OpEQ, "ne": memsearch.OpNE,
	"lt": memsearch.OpLT, "gt": memsearch.OpGT,
	"le": memsearch.OpLE, "ge": memsearch.OpGE,
}

func verbSearch(d *Dispatcher, w io.Writer, arg1, arg2, rest, line string, nargs int) {
	if nargs < 2 {
		errf(w, "usage: search reset|filter|list|count ...")
		return
	}

	switch arg1 {
	case "reset":
		searchReset(d, w, line)
	case "filter":
		searchFilter(d, w, arg2, rest, nargs)
	case "list":
		searchList(d, w, arg2, nargs)
	case "count":
		searchCount(d, w)
	default:
		errf(w, "unknown search subcommand: %s", jsonEscape(arg1))
	}
}

// searchReset implements "search reset <region_id> [size] [alignment]".
func searchReset(d *Dispatcher, w io.Writer, line string) {
	fields := splitFields(line, 5)
	regionID := fields[2]
	if regionID == "" {
		errf(w, "usage: search reset <region_id> [size] [alignment]")
		return
	}
	dataSize := 1
	if fields[3] != "" {
		dataSize, _ = strconv.Atoi(fields[3])
	}
	alignment := dataSize
	if fields[4] != "" {
		alignment, _ = strconv.Atoi(strings.Fields(fields[4])[0])
	}

	mem := d.findMemory(regionID)
	if mem == nil {
		errf(w, "search reset failed (bad region or size)")
		return
	}
	s, err := memsearch.New(mem, dataSize, alignment)
	if err != nil {
		errf(w, "search reset failed (bad region or size)")
		return
	}

	d.searchMu.Lock()
	d.search = s
	d.searchRegion = regionID
	d.searchMu.Unlock()

	okf(w, `"candidates":%d`, s.Count())
}

func searchFilter(d *Dispatcher, w io.Writer, arg2, rest string, nargs int) {
	if nargs < 4 {
		errf(w, "usage: search filter <op> <value|p>")
		return
	}
	d.searchMu.Lock()
	s := d.search
	d.searchMu.Unlock()
	if s == nil {
		errf(w, "no active search (call search reset first)")
		return
	}

	op, ok := searchOps[strings.ToLower(arg2)]
	if !ok {
		errf(w, "unknown op: %s", jsonEscape(arg2))
		return
	}

	var val uint64
	if strings.EqualFold(rest, "p") {
		val = memsearch.VsPrev
	} else {
		val = parseUint(rest)
	}

	count := s.Filter(op, val)
	okf(w, `"candidates":%d`, count)
}

func searchList(d *Dispatcher, w io.Writer, arg2 string, nargs int) {
	d.searchMu.Lock()
	s := d.search
	d.searchMu.Unlock()
	if s == nil {
		errf(w, "no active search")
		return
	}
	max := 100
	if nargs >= 3 {
		max = int(parseUint(arg2))
	}
	if max > 10000 {
		max = 10000
	}

	results := s.Results(max)
	var b []byte
	b = append(b, fmt.Sprintf(`{"ok":true,"candidates":%d,"results":[`, s.Count())...)
	for i, r := range results {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, fmt.Sprintf(`{"addr":"0x%x","value":%d,"prev":%d}`, r.Addr, r.Value, r.Prev)...)
	}
	b = append(b, "]}\n"...)
	w.Write(b)
}

func searchCount(d *Dispatcher, w io.Writer) {
	d.searchMu.Lock()
	s := d.search
	d.searchMu.Unlock()
	if s == nil {
		errf(w, "no active search")
		return
	}
	okf(w, `"candidates":%d`, s.Count())
}
