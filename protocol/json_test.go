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
	"bytes"
	"testing"
)

func TestOkfNoFields(t *testing.T) {
	var buf bytes.Buffer
	okf(&buf, "")
	if got, want := buf.String(), "{\"ok\":true}\n"; got != want {
		t.Errorf("okf = %q, want %q", got, want)
	}
}

func TestOkfWithFields(t *testing.T) {
	var buf bytes.Buffer
	okf(&buf, `"id":%d,"name":"%s"`, 7, "bob")
	if got, want := buf.String(), "{\"ok\":true,\"id\":7,\"name\":\"bob\"}\n"; got != want {
		t.Errorf("okf = %q, want %q", got, want)
	}
}

func TestErrf(t *testing.T) {
	var buf bytes.Buffer
	errf(&buf, "unknown command: %s", "frobnicate")
	if got, want := buf.String(), "{\"ok\":false,\"error\":\"unknown command: frobnicate\"}\n"; got != want {
		t.Errorf("errf = %q, want %q", got, want)
	}
}

func TestJSONEscape(t *testing.T) {
	cases := map[string]string{
		"plain":        "plain",
		"a\"b":         `a\"b`,
		"a\\b":         `a\\b`,
		"line\nbreak":  `line\nbreak`,
		"tab\ttab":     `tab\ttab`,
		"cr\rreturn":   `cr\rreturn`,
	}
	for in, want := range cases {
		if got := jsonEscape(in); got != want {
			t.Errorf("jsonEscape(%q) = %q, want %q", in, got, want)
		}
	}
}
