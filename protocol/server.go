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
	"net"
	"strings"
	"time"

	"github.com/arret/arret/logger"
)

const (
	// cmdBufSize caps a single command line, matching CMD_BUF_SIZE.
	cmdBufSize = 4096

	// clientReadTimeout bounds how long a connection may sit idle before
	// its command line arrives, so a stuck client can't wedge a server
	// goroutine forever.
	clientReadTimeout = 2 * time.Second
)

// Server accepts one-shot TCP connections, each carrying a single
// newline-terminated command line, and replies with the Dispatcher's JSON
// response before closing. Unlike the original's single-threaded poll
// loop, each connection is handled on its own goroutine; Dispatcher.Process
// serializes access to the underlying debug state internally.
type Server struct {
	dispatcher *Dispatcher
	listener   net.Listener
	logPerm    logger.Permission

	done chan struct{}
}

// Listen opens a TCP listener on port and returns a Server ready to Serve.
func Listen(port int, dispatcher *Dispatcher, logPerm logger.Permission) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	logger.Logf(logPerm, "protocol", "listening on port %d", port)
	return &Server{
		dispatcher: dispatcher,
		listener:   ln,
		logPerm:    logPerm,
		done:       make(chan struct{}),
	}, nil
}

// Addr returns the listener's bound network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Shutdown is called, handling each on its
// own goroutine. It blocks until the listener closes.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				logger.Logf(s.logPerm, "protocol", "accept failed: %v", err)
				return
			}
		}
		go s.handleConn(conn)

		if !s.dispatcher.Running() {
			s.Shutdown()
			return
		}
	}
}

// Shutdown closes the listener, causing Serve to return.
func (s *Server) Shutdown() {
	close(s.done)
	s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(clientReadTimeout))

	reader := bufio.NewReaderSize(conn, cmdBufSize)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return
	}
	line = strings.TrimRight(line, "\r\n")

	s.dispatcher.Process(line, conn)
}
