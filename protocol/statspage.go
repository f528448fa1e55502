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

//go:build statsview
// +build statsview

package protocol

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// StatsAddr is the address the optional runtime statistics page listens on
// when built with the "statsview" tag and started via LaunchStatsPage.
const StatsAddr = "localhost:12601"

const statsURL = "/debug/statsview"

// LaunchStatsPage starts a background HTTP server exposing live goroutine,
// heap, and GC statistics, for diagnosing the command server under load.
func LaunchStatsPage(output io.Writer) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(StatsAddr))
		mgr := statsview.New()
		mgr.Start()
	}()

	fmt.Fprintf(output, "stats page available at %s%s\n", StatsAddr, statsURL)
}

// StatsPageAvailable reports whether LaunchStatsPage does anything in this
// build.
func StatsPageAvailable() bool {
	return true
}
