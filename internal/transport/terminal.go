package transport

import (
	"os"

	"golang.org/x/term"
)

// RawTerminal wraps the process's stdin/stdout in raw mode, restoring the
// original termios on Close. Used by zmrx when none of --serial, --listen
// or --dial is given, to receive over the controlling
// terminal directly. Grounded on the corpus's use of golang.org/x/term for
// raw-mode control (the teacher's terminal.go, now deleted, did the same
// over a pty rather than the real controlling tty).
type RawTerminal struct {
	fd       int
	oldState *term.State
}

// NewRawTerminal puts stdin into raw mode.
func NewRawTerminal() (*RawTerminal, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &RawTerminal{fd: fd, oldState: oldState}, nil
}

func (t *RawTerminal) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (t *RawTerminal) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (t *RawTerminal) Close() error {
	return term.Restore(t.fd, t.oldState)
}
