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

package paths_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arret/arret/paths"
)

func TestSiblingPath(t *testing.T) {
	cases := []struct {
		content, suffix, want string
	}{
		{"/roms/game.a26", ".bp", "/roms/game.bp"},
		{"/roms/game.a26", ".sym.json", "/roms/game.sym.json"},
		{"game.gb", ".state", "game.state"},
		{"noext", ".bp", "noext.bp"},
	}
	for _, c := range cases {
		got := paths.SiblingPath(c.content, c.suffix)
		if got != c.want {
			t.Errorf("SiblingPath(%q, %q) = %q, want %q", c.content, c.suffix, got, c.want)
		}
	}
}

func TestResourcePath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	pth, err := paths.ResourcePath("foo/bar", "baz")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(pth, filepath.Join(".arret", "foo", "bar", "baz")) {
		t.Errorf("ResourcePath(\"foo/bar\", \"baz\") = %q", pth)
	}
	if _, err := os.Stat(pth); err != nil {
		t.Errorf("expected ResourcePath to create %q: %v", pth, err)
	}

	pth, err = paths.ResourcePath("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(pth, ".arret") {
		t.Errorf("ResourcePath(\"\") = %q", pth)
	}
}

func TestResourcePathIdempotent(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	first, err := paths.ResourcePath("scripts")
	if err != nil {
		t.Fatal(err)
	}
	second, err := paths.ResourcePath("scripts")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("ResourcePath not idempotent: %q != %q", first, second)
	}
}
