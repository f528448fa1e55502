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

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

// trimTrailing strips trailing CR/LF/space, matching the original's
// in-place trim of the raw socket line before tokenising.
func trimTrailing(line string) string {
	end := len(line)
	for end > 0 {
		c := line[end-1]
		if c == '\n' || c == '\r' || c == ' ' {
			end--
			continue
		}
		break
	}
	return line[:end]
}

// tokenize splits line the way `sscanf(line, "%63s %255s %255s %[^\n]", ...)`
// does: up to three whitespace-delimited tokens, then the remainder of the
// line verbatim (internal whitespace preserved) starting after the third
// token's trailing separator. nargs is the number of fields that would have
// matched, exactly as sscanf reports it, so verb handlers can gate on
// argument count the same way the original does.
func tokenize(line string) (cmd, arg1, arg2, rest string, nargs int) {
	var fields [3]string
	n := len(line)
	i := 0
	count := 0
	for count < 3 {
		for i < n && isSpace(line[i]) {
			i++
		}
		if i >= n {
			break
		}
		start := i
		for i < n && !isSpace(line[i]) {
			i++
		}
		fields[count] = line[start:i]
		count++
	}

	switch count {
	case 0:
		return "", "", "", "", 0
	case 1:
		return fields[0], "", "", "", 1
	case 2:
		return fields[0], fields[1], "", "", 2
	}

	for i < n && isSpace(line[i]) {
		i++
	}
	if i < n {
		return fields[0], fields[1], fields[2], line[i:], 4
	}
	return fields[0], fields[1], fields[2], "", 3
}

// splitFields splits line into exactly n whitespace-delimited fields, the
// way successive `%s` sscanf conversions would, except the final field
// captures the remainder of the line (leading whitespace trimmed, internal
// whitespace preserved) the way a trailing `%[^\n]` does. Missing trailing
// fields are returned as "". Used by multi-level subcommand verbs (bp add,
// search reset, sym set) whose sub-dispatch re-parses the full line.
func splitFields(line string, n int) []string {
	out := make([]string, n)
	i, ln := 0, len(line)
	for f := 0; f < n; f++ {
		for i < ln && isSpace(line[i]) {
			i++
		}
		if i >= ln {
			break
		}
		if f == n-1 {
			out[f] = line[i:]
			break
		}
		start := i
		for i < ln && !isSpace(line[i]) {
			i++
		}
		out[f] = line[start:i]
	}
	return out
}
