// Package keyboard reads single keystrokes from stdin without
// blocking the executor's dispatch loop, for the s/S (status) and
// q/Q (graceful shutdown) keys §4.6 step 3 listens for. Adopted from
// the teacher's go.mod, which carries mattn/go-isatty and
// golang.org/x/term as dependencies but never exercises them directly
// in any source file in the retrieval pack — this is the home
// SPEC_FULL.md gives them.
package keyboard

import (
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Reader delivers keystrokes from stdin on a channel as they arrive,
// without the caller blocking to read them.
type Reader struct {
	keys  chan byte
	state *term.State
	fd    int
	raw   bool
}

// Open puts stdin into raw mode (if it is a terminal) and starts a
// background goroutine forwarding keystrokes to Keys(). If stdin is
// not a terminal (e.g. piped input in CI), Keys() simply never
// receives anything; canary still runs, just without interactive
// status/shutdown keys.
func Open() *Reader {
	fd := int(os.Stdin.Fd())

	r := &Reader{keys: make(chan byte, 8), fd: fd}

	if !isatty.IsTerminal(uintptr(fd)) {
		return r
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return r
	}

	r.state = state
	r.raw = true

	go r.readLoop()

	return r
}

func (r *Reader) readLoop() {
	buf := make([]byte, 1)

	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			close(r.keys)
			return
		}

		if n > 0 {
			select {
			case r.keys <- buf[0]:
			default: // drop keystrokes the caller hasn't drained yet
			}
		}
	}
}

// Keys is the channel of keystrokes read so far. It is closed when
// stdin reaches EOF.
func (r *Reader) Keys() <-chan byte { return r.keys }

// Close restores the terminal to its prior mode, if Open put it into
// raw mode.
func (r *Reader) Close() error {
	if !r.raw {
		return nil
	}

	return term.Restore(r.fd, r.state)
}
