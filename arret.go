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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/arret/arret/breakpoint"
	"github.com/arret/arret/capture"
	"github.com/arret/arret/corehost"
	"github.com/arret/arret/debugif"
	"github.com/arret/arret/democore"
	"github.com/arret/arret/logger"
	"github.com/arret/arret/modalflag"
	"github.com/arret/arret/protocol"
	"github.com/arret/arret/rundbg"
	"github.com/arret/arret/symbols"
	"github.com/arret/arret/trace"
	"github.com/arret/arret/version"

	// blank imports for their init() side effects: registering architecture
	// and system descriptors with the arch/sysreg registries (§3, §4.F).
	_ "github.com/arret/arret/arch"
	_ "github.com/arret/arret/sysreg"
)

const defaultPort = 2782

func main() {
	md := &modalflag.Modes{Output: os.Stdout}
	md.NewArgs(os.Args[1:])
	md.NewMode()
	showVersion := md.AddBool("version", false, "print the application version and exit")
	md.AddSubModes("SERVER", "CLIENT")

	p, err := md.Parse()
	switch p {
	case modalflag.ParseHelp:
		os.Exit(0)
	case modalflag.ParseError:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *showVersion {
		v, rev, release := version.Version()
		if release {
			fmt.Fprintf(md.Output, "%s (%s)\n", version.ApplicationName, v)
		} else {
			fmt.Fprintf(md.Output, "%s (%s, %s)\n", version.ApplicationName, v, rev)
		}
		os.Exit(0)
	}

	switch md.Mode() {
	case "CLIENT":
		err = runClient(md)
	default:
		err = runServer(md)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runClient implements the "client" mode of the CLI flags list: a one-shot
// "--cmd" request against a running server, or an interactive REPL when no
// command is given.
func runClient(md *modalflag.Modes) error {
	md.NewMode()
	port := md.AddInt("port", defaultPort, "port the server is listening on")
	cmd := md.AddString("cmd", "", "send a single command and print its reply, instead of an interactive session")

	if _, err := md.Parse(); err != nil {
		return err
	}

	if *cmd != "" {
		return protocol.RunClient(*cmd, *port, os.Stdout)
	}
	return protocol.RunInteractive(*port, os.Stdin, os.Stdout)
}

// runServer implements the "server" mode: it builds an EmulatorCore, wires
// every debug engine around it (§3-§4.H), and serves the command protocol
// (§4.I) until interrupted or told to "quit".
func runServer(md *modalflag.Modes) error {
	md.NewMode()
	port := md.AddInt("port", defaultPort, "port to listen on")
	headless := md.AddBool("headless", false, "do not launch the runtime statistics page")
	mute := md.AddBool("mute", false, "start with audio output muted")
	archName := md.AddString("arch", "6502", "target architecture: z80, 6502, 65816, r3000a, lr35902")
	memSize := md.AddUint64("memsize", 64*1024, "size in bytes of the loaded content's flat memory image")
	geomW := md.AddInt("width", 256, "frame buffer width reported to the protocol's \"info\" verb")
	geomH := md.AddInt("height", 240, "frame buffer height reported to the protocol's \"info\" verb")
	systemDir := md.AddString("system-dir", "", "directory holding BIOS/firmware images the core may need")
	saveDir := md.AddString("save-dir", "", "directory save states are written to")

	if _, err := md.Parse(); err != nil {
		return err
	}

	cpuType, err := parseCPUType(*archName)
	if err != nil {
		return err
	}

	core := democore.New(cpuType, *memSize, *geomW, *geomH)
	host := corehost.NewHost(core, *systemDir, *saveDir, logger.Allow)
	host.SetMute(*mute)

	if content := md.GetArg(0); content != "" {
		if err := host.LoadContent(content); err != nil {
			return fmt.Errorf("loading content: %w", err)
		}
	}

	bp := breakpoint.NewEngine(core, nil, logger.Allow)
	tracer := trace.NewEngine(core, logger.Allow)
	capEngine := capture.NewEngine(core)
	runtime := rundbg.NewEngine(core, host, bp, tracer, logger.Allow)
	syms := symbols.NewStore(regionFinder(core), logger.Allow)

	dispatcher := protocol.NewDispatcher(core, runtime, bp, tracer, syms, host, logger.Allow)
	dispatcher.SetCapture(capEngine)

	server, err := protocol.Listen(*port, dispatcher, logger.Allow)
	if err != nil {
		return err
	}
	fmt.Fprintf(md.Output, "listening on %s\n", server.Addr())

	if !*headless && protocol.StatsPageAvailable() {
		protocol.LaunchStatsPage(md.Output)
	}

	intChan := make(chan os.Signal, 1)
	signal.Notify(intChan, os.Interrupt)

	go server.Serve()

	select {
	case <-intChan:
	case <-waitForQuit(dispatcher):
	}
	server.Shutdown()
	return nil
}

// waitForQuit closes its returned channel once the "quit" verb has stopped
// the dispatcher, so the server shuts down without waiting for a signal.
func waitForQuit(d *protocol.Dispatcher) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if !d.Running() {
				close(done)
				return
			}
		}
	}()
	return done
}

func regionFinder(core debugif.Core) func(regionID string) debugif.Memory {
	return func(regionID string) debugif.Memory {
		for _, r := range core.System().MemoryRegions() {
			if r.ID() == regionID {
				return r
			}
		}
		return nil
	}
}

func parseCPUType(name string) (debugif.CPUType, error) {
	switch name {
	case "z80":
		return debugif.CPUZ80, nil
	case "6502":
		return debugif.CPUMOS6502, nil
	case "65816":
		return debugif.CPU65816, nil
	case "r3000a":
		return debugif.CPUR3000A, nil
	case "lr35902":
		return debugif.CPULR35902, nil
	default:
		return debugif.CPUUnknown, fmt.Errorf("unrecognised architecture: %s", name)
	}
}
