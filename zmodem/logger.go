package zmodem

import (
	"fmt"
	"io"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the protocol-level logging seam. The engine and the transport
// helpers below only ever call these three methods, so any structured
// logger can stand in; NewLogger wires up github.com/charmbracelet/log, a
// dependency this port adds rather than one inherited from the teacher
// (whose own logger.go is a hand-rolled FileLogger/NoopLogger over
// os/fmt/sync).
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// charmLogger adapts *charmlog.Logger to the Logger interface.
type charmLogger struct {
	l *charmlog.Logger
}

// NewLogger builds a charmbracelet/log-backed Logger writing to w at the
// given level ("debug", "info", "warn", "error").
func NewLogger(w io.Writer, level string) Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "zmrx",
	})
	if lvl, err := charmlog.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return &charmLogger{l: l}
}

func (c *charmLogger) Debug(format string, args ...interface{}) {
	c.l.Debug(fmt.Sprintf(format, args...))
}

func (c *charmLogger) Info(format string, args ...interface{}) {
	c.l.Info(fmt.Sprintf(format, args...))
}

func (c *charmLogger) Error(format string, args ...interface{}) {
	c.l.Error(fmt.Sprintf(format, args...))
}

// NoopLogger discards everything; the default when an embedder supplies no
// logger.
type NoopLogger struct{}

func (NoopLogger) Debug(format string, args ...interface{}) {}
func (NoopLogger) Info(format string, args ...interface{})  {}
func (NoopLogger) Error(format string, args ...interface{}) {}

// FormatFrameLog formats a frame for logging with optional data truncation.
func FormatFrameLog(direction string, frameType int, hdr Header, data []byte, dataSize int) string {
	frameName := FrameTypeName(frameType)
	pos := rclhdr(hdr)

	msg := fmt.Sprintf("%s %s (pos=%d, hdr=[%02x %02x %02x %02x])",
		direction, frameName, pos, hdr[0], hdr[1], hdr[2], hdr[3])

	if dataSize > 0 {
		msg += fmt.Sprintf(", data_size=%d", dataSize)
		if len(data) > 0 {
			displayLen := len(data)
			truncated := false
			if displayLen > 128 {
				displayLen = 128
				truncated = true
			}
			if truncated {
				msg += fmt.Sprintf(", data=%q...[truncated]", data[:displayLen])
			} else {
				msg += fmt.Sprintf(", data=%q", data[:displayLen])
			}
		}
	}

	return msg
}

// LoggingReader wraps the transport-level reader (internal/transport) and
// logs reads of more than 10 bytes plus any read error other than io.EOF;
// the engine itself never sees an io.Reader, but the read-loop that feeds it
// bytes does.
type LoggingReader struct {
	reader io.Reader
	logger Logger
	name   string
}

func NewLoggingReader(reader io.Reader, logger Logger, name string) *LoggingReader {
	return &LoggingReader{reader: reader, logger: logger, name: name}
}

func (lr *LoggingReader) Read(p []byte) (int, error) {
	n, err := lr.reader.Read(p)
	if lr.logger != nil && n > 10 {
		data := p[:n]
		if n > 128 {
			lr.logger.Debug("%s: read %d bytes: %q...[truncated]", lr.name, n, data[:128])
		} else {
			lr.logger.Debug("%s: read %d bytes: %q", lr.name, n, data)
		}
	}
	if err != nil && err != io.EOF && lr.logger != nil {
		lr.logger.Error("%s: read error: %v", lr.name, err)
	}
	return n, err
}

// LoggingWriter wraps the transport-level writer and logs writes of more
// than 10 bytes plus any write error.
type LoggingWriter struct {
	writer io.Writer
	logger Logger
	name   string
}

func NewLoggingWriter(writer io.Writer, logger Logger, name string) *LoggingWriter {
	return &LoggingWriter{writer: writer, logger: logger, name: name}
}

func (lw *LoggingWriter) Write(p []byte) (int, error) {
	n, err := lw.writer.Write(p)
	if lw.logger != nil && n > 10 {
		data := p[:n]
		if n > 128 {
			lw.logger.Debug("%s: wrote %d bytes: %q...[truncated]", lw.name, n, data[:128])
		} else {
			lw.logger.Debug("%s: wrote %d bytes: %q", lw.name, n, data)
		}
	}
	if err != nil && lw.logger != nil {
		lw.logger.Error("%s: write error: %v", lw.name, err)
	}
	return n, err
}
