// Package transport adapts concrete I/O sources (TCP sockets, serial
// ports, SSH sessions, raw terminals) to the byte-pump shape the zmodem
// engine expects: something that can be read from in a loop and written to
// synchronously. None of this package is part of the protocol itself —
// it exists because spec §5 makes the engine deliberately transport-
// agnostic, and something still has to own the actual file descriptor.
//
// Grounded on the teacher's zmodem/io.go (ReaderWithTimeout, FrameReader/
// FrameWriter) and ssh.go/terminal.go (now deleted from the copied tree),
// generalized from "feed the teacher's blocking Session" to "feed an
// engine.Feed loop".
package transport

import (
	"io"
	"time"

	"github.com/corvid-systems/zmrx/zmodem"
)

// Conn is the minimal surface Pump needs: something to read bytes from and
// write bytes to, with an optional read deadline (serial and raw-terminal
// connections don't always support one).
type Conn interface {
	io.ReadWriteCloser
}

// DeadlineConn is satisfied by transports that support read deadlines
// (net.Conn, most pty/tty wrappers). Pump uses it to bound each read so a
// stalled sender surfaces as a Timeout callback instead of hanging forever.
type DeadlineConn interface {
	Conn
	SetReadDeadline(t time.Time) error
}

// Feeder is the subset of *zmodem.Engine that Pump needs.
type Feeder interface {
	Feed(buf []byte) (zmodem.Status, error)
	Timeout() (zmodem.Status, error)
}

// Pump reads from conn in a loop and feeds every chunk to feeder, calling
// feeder.Timeout when a read deadline expires. It returns when the engine
// reports completion, a fatal error, or the connection closes.
func Pump(conn Conn, feeder Feeder, readSize int, deadline time.Duration) error {
	if readSize <= 0 {
		readSize = 512
	}
	buf := make([]byte, readSize)
	dc, supportsDeadline := conn.(DeadlineConn)

	for {
		if supportsDeadline && deadline > 0 {
			_ = dc.SetReadDeadline(time.Now().Add(deadline))
		}

		n, err := conn.Read(buf)
		if n > 0 {
			status, ferr := feeder.Feed(buf[:n])
			if ferr != nil {
				return ferr
			}
			if status != zmodem.StatusContinue {
				return nil
			}
		}
		if err != nil {
			if isTimeout(err) {
				status, ferr := feeder.Timeout()
				if ferr != nil {
					return ferr
				}
				if status != zmodem.StatusContinue {
					return nil
				}
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

type timeoutError interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	te, ok := err.(timeoutError)
	return ok && te.Timeout()
}
