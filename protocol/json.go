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
	"strings"
)

// okf writes {"ok":true[,<fields>]}\n to w. fields, if non-empty, is one or
// more already-quoted "key":value pairs joined by commas, formatted with
// args exactly as fmt.Fprintf would.
func okf(w io.Writer, fields string, args ...interface{}) {
	if fields == "" {
		fmt.Fprint(w, "{\"ok\":true}\n")
		return
	}
	fmt.Fprintf(w, "{\"ok\":true,"+fields+"}\n", args...)
}

// errf writes {"ok":false,"error":"<message>"}\n to w. The formatted
// message is not itself escaped, matching the original's behaviour: callers
// pass literal, pre-escaped text (verb handlers here never interpolate
// untrusted content into an error message without escaping it first).
func errf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "{\"ok\":false,\"error\":\""+format+"\"}\n", args...)
}

// jsonEscape escapes s for embedding inside a JSON string literal, matching
// the original's manual per-character switch (quote, backslash, and the
// common C0 control codes it bothered to handle).
func jsonEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
