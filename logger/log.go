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

package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Entry represents a single line/entry in the log
type Entry struct {
	Timestamp time.Time
	tag       string
	detail    string
	repeated  int
}

func (e *Entry) String() string {
	s := strings.Builder{}
	s.WriteString(fmt.Sprintf("%s: %s", e.tag, e.detail))
	if e.repeated > 0 {
		s.WriteString(fmt.Sprintf(" (repeat x%d)", e.repeated+1))
	}
	s.WriteString("\n")
	return s.String()
}

// not exposing logger to outside of the package. the package level functions
// can be used to log to the central logger.
type logger struct {
	crit sync.Mutex

	maxEntries int
	entries    []Entry
	echo       io.Writer
	echoRecent bool

	// timestamp of most recent log() event
	atomicTimestamp atomic.Value // time.Time

	// timestamp of the newest entry as of the last call to writeRecent
	recentCursor time.Time
}

func newLogger(maxEntries int) *logger {
	l := &logger{
		maxEntries: maxEntries,
		entries:    make([]Entry, 0, maxEntries),
	}
	l.atomicTimestamp.Store(time.Time{})
	return l
}

func (l *logger) log(tag, detail string) {
	l.crit.Lock()
	defer l.crit.Unlock()

	e := &Entry{}
	if len(l.entries) > 0 {
		e = &l.entries[len(l.entries)-1]
	}

	// remove all newline characters from tag and detail string
	tag = strings.ReplaceAll(tag, "\n", "")
	detail = strings.ReplaceAll(detail, "\n", "")

	var written Entry
	if detail != e.detail || tag != e.tag {
		written = Entry{Timestamp: time.Now(), tag: tag, detail: detail}
		l.entries = append(l.entries, written)
		e = &l.entries[len(l.entries)-1]
	} else {
		e.repeated++
		e.Timestamp = time.Now()
		written = *e
	}

	l.atomicTimestamp.Store(e.Timestamp)

	// maintain maximum length
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}

	if l.echo != nil {
		_, _ = io.WriteString(l.echo, written.String())
	}
}

func (l *logger) logf(tag, detail string, args ...interface{}) {
	l.log(tag, fmt.Sprintf(detail, args...))
}

func (l *logger) clear() {
	l.crit.Lock()
	defer l.crit.Unlock()
	l.entries = l.entries[:0]
}

func (l *logger) write(output io.Writer) bool {
	l.crit.Lock()
	defer l.crit.Unlock()
	if len(l.entries) == 0 {
		return false
	}
	for _, e := range l.entries {
		_, _ = io.WriteString(output, e.String())
	}
	return true
}

func (l *logger) writeRecent(output io.Writer) bool {
	l.crit.Lock()
	defer l.crit.Unlock()

	wrote := false
	for i := range l.entries {
		if l.entries[i].Timestamp.After(l.recentCursor) {
			_, _ = io.WriteString(output, l.entries[i].String())
			wrote = true
		}
	}
	if len(l.entries) > 0 {
		l.recentCursor = l.entries[len(l.entries)-1].Timestamp
	}
	return wrote
}

func (l *logger) tail(output io.Writer, number int) {
	l.crit.Lock()
	defer l.crit.Unlock()

	if number > len(l.entries) {
		number = len(l.entries)
	}

	for _, e := range l.entries[len(l.entries)-number:] {
		_, _ = io.WriteString(output, e.String())
	}
}

func (l *logger) setEcho(output io.Writer, writeRecent bool) {
	l.crit.Lock()
	l.echo = output
	l.crit.Unlock()

	if output != nil && writeRecent {
		l.write(output)
	}
}

// borrowLog gives the supplied function exclusive access to the entry slice.
// the function must not retain the slice beyond its call.
func (l *logger) borrowLog(f func([]Entry)) {
	l.crit.Lock()
	defer l.crit.Unlock()
	f(l.entries)
}
