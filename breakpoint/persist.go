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

package breakpoint

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/arret/arret/logger"
)

// formatFlags renders a breakpoint's flags as "[cpu.]hexaddr flags[cond]",
// e.g. "cpu0.0100 XRd my comment", matching the original ASCII format
// (§7 persistence).
func formatFlags(bp Breakpoint) string {
	var b strings.Builder
	if bp.CPUID != "" {
		b.WriteString(bp.CPUID)
		b.WriteByte('.')
	}
	fmt.Fprintf(&b, "%04X ", bp.Address)
	if bp.Flags&Execute != 0 {
		b.WriteByte('X')
	}
	if bp.Flags&Read != 0 {
		b.WriteByte('R')
	}
	if bp.Flags&Write != 0 {
		b.WriteByte('W')
	}
	if !bp.Enabled {
		b.WriteByte('d')
	}
	if bp.Temporary {
		b.WriteByte('t')
	}
	if bp.Condition != "" {
		b.WriteByte(' ')
		b.WriteString(bp.Condition)
	}
	return b.String()
}

// Save writes every breakpoint to path in the "[cpu.]<hex_addr> <flags>[d][t]
// [condition]" line format, one per line.
func (e *Engine) Save(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveLocked(path)
}

func (e *Engine) saveLocked(path string) error {
	var b strings.Builder
	for _, bp := range e.bps {
		b.WriteString(formatFlags(bp))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return err
	}
	logger.Logf(e.logPerm, logTag, "saved %d breakpoints to %s", len(e.bps), path)
	return nil
}

// Load replaces every breakpoint with the contents of path. Blank lines
// and lines starting with '#' are ignored; flag letters are
// case-insensitive. It returns the number of breakpoints successfully
// loaded.
func (e *Engine) Load(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	e.Clear()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if e.loadLine(line) {
			count++
		}
	}

	logger.Logf(e.logPerm, logTag, "loaded %d breakpoints from %s", count, path)
	return count, scanner.Err()
}

func (e *Engine) loadLine(line string) bool {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return false
	}
	addrField, flagsField := fields[0], fields[1]
	condition := ""
	if len(fields) == 3 {
		condition = strings.TrimSpace(fields[2])
	}

	cpuID := ""
	if dot := strings.IndexByte(addrField, '.'); dot >= 0 {
		cpuID = addrField[:dot]
		addrField = addrField[dot+1:]
	}

	addr, err := strconv.ParseUint(addrField, 16, 64)
	if err != nil {
		return false
	}

	var flags Flags
	enabled := true
	temporary := false
	for _, r := range strings.ToUpper(flagsField) {
		switch r {
		case 'X':
			flags |= Execute
		case 'R':
			flags |= Read
		case 'W':
			flags |= Write
		case 'D':
			enabled = false
		case 'T':
			temporary = true
		}
	}

	_, err = e.Add(addr, flags, enabled, temporary, condition, cpuID)
	return err == nil
}
