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
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// RunClient connects to a running instance on port, sends cmdStr as a
// single command line, prints the trimmed response to out, and returns.
// It mirrors the original's one-shot client: connect, write, read to EOF,
// disconnect.
func RunClient(cmdStr string, port int, out io.Writer) error {
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", cmdStr); err != nil {
		return err
	}

	reply, err := io.ReadAll(conn)
	if err != nil && len(reply) == 0 {
		return err
	}
	fmt.Fprintln(out, strings.TrimRight(string(reply), "\n"))
	return nil
}

// RunInteractive reads command lines from in, sending each in its own
// one-shot connection (matching the server's one-shot-per-connection
// contract) and printing the response to out, until in reaches EOF or a
// line reading "quit" is sent. When in is a terminal, the terminal is put
// into cbreak mode for the duration so a bare Ctrl-C sends "quit" to the
// server instead of killing the client, the same interruption easyterm
// gives the interactive debugger console.
func RunInteractive(port int, in *os.File, out io.Writer) error {
	var oldAttr, cbreakAttr unix.Termios
	if err := termios.Tcgetattr(in.Fd(), &oldAttr); err != nil {
		return runInteractiveLineMode(port, in, out)
	}
	cbreakAttr = oldAttr
	termios.Cfmakecbreak(&cbreakAttr)
	if err := termios.Tcsetattr(in.Fd(), termios.TCIFLUSH, &cbreakAttr); err != nil {
		return runInteractiveLineMode(port, in, out)
	}
	defer termios.Tcsetattr(in.Fd(), termios.TCIFLUSH, &oldAttr)

	return runInteractiveCbreak(port, in, out)
}

// runInteractiveLineMode is the fallback used when in is not a terminal
// (e.g. piped input, or a test harness): plain line-buffered reading.
func runInteractiveLineMode(port int, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := RunClient(line, port, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if line == "quit" {
			break
		}
	}
	return scanner.Err()
}

const ctrlC = 0x03

// runInteractiveCbreak reads keystrokes one at a time from a cbreak-mode
// terminal, assembling a line locally (with basic backspace handling) and
// dispatching it on Enter, exactly as runInteractiveLineMode does for a
// plain reader. A bare Ctrl-C sends "quit" immediately, whatever has been
// typed so far.
func runInteractiveCbreak(port int, in *os.File, out io.Writer) error {
	buf := make([]byte, 1)
	var line []byte
	for {
		n, err := in.Read(buf)
		if err != nil || n == 0 {
			return err
		}
		c := buf[0]

		switch {
		case c == ctrlC:
			fmt.Fprint(out, "\r\n")
			return RunClient("quit", port, out)

		case c == '\r' || c == '\n':
			fmt.Fprint(out, "\r\n")
			cmd := strings.TrimSpace(string(line))
			line = line[:0]
			if cmd == "" {
				continue
			}
			if err := RunClient(cmd, port, out); err != nil {
				fmt.Fprintf(out, "error: %v\r\n", err)
			}
			if cmd == "quit" {
				return nil
			}

		case c == 0x7f || c == 0x08: // backspace/delete
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Fprint(out, "\b \b")
			}

		default:
			line = append(line, c)
			fmt.Fprintf(out, "%c", c)
		}
	}
}
