// Command zmrx receives files over ZModem, reading the wire stream from a
// TCP connection (listening or dialing), a serial port, or the controlling
// terminal and driving the zmodem engine over whichever one was chosen.
//
// Grounded on the teacher's cmd/grz/main.go (now deleted), reworked around
// the byte-pump Engine instead of the teacher's blocking Session.Receive.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/corvid-systems/zmrx/internal/transport"
	"github.com/corvid-systems/zmrx/zmodem"
)

func main() {
	var (
		listen        = pflag.String("listen", "", "listen for a TCP connection on host:port")
		dial          = pflag.String("dial", "", "connect to a TCP host:port")
		serialDevice  = pflag.String("serial", "", "receive over a serial device instead of TCP")
		baud          = pflag.Int("baud", 115200, "serial baud rate (with --serial)")
		dest          = pflag.String("dest", ".", "directory to write received files into")
		overwrite     = pflag.Bool("overwrite", false, "overwrite existing files without prompting")
		protect       = pflag.Bool("protect", false, "never overwrite existing files")
		escapeControl = pflag.Bool("escape-control", false, "escape every control byte on the wire")
		configPath    = pflag.String("config", "", "YAML config file (overridden by flags)")
		verbose       = pflag.BoolP("verbose", "v", false, "debug logging")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - receive files over ZModem\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	cfg, err := zmodem.LoadConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zmrx: config: %v\n", err)
		os.Exit(1)
	}
	// Flags only override the config file's values when the user actually
	// passed them; otherwise a YAML-set value would get silently clobbered
	// back to the flag's default.
	if pflag.Lookup("dest").Changed {
		cfg.DestDir = *dest
	}
	if pflag.Lookup("overwrite").Changed {
		cfg.Overwrite = *overwrite
	}
	if pflag.Lookup("protect").Changed {
		cfg.Protect = *protect
	}
	if cfg.Overwrite && cfg.Protect {
		fmt.Fprintln(os.Stderr, "zmrx: --overwrite and --protect are mutually exclusive")
		os.Exit(1)
	}
	if pflag.Lookup("escape-control").Changed {
		cfg.EscapeControl = *escapeControl
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger := zmodem.NewLogger(os.Stderr, level)

	conn, err := openConn(*listen, *dial, *serialDevice, *baud)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zmrx: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	cb := &zmodem.Callbacks{
		OnFilePrompt: func(name string, size int64, mode os.FileMode) (bool, error) {
			logger.Info("incoming file %s (%d bytes)", name, size)
			return true, nil
		},
		OnFileCreate: func(name string, size int64, mode os.FileMode) error {
			path := filepath.Join(cfg.DestDir, filepath.Base(name))
			// --protect refuses unconditionally; otherwise the existing
			// refuse-on-conflict default applies unless --overwrite opted
			// in, per the Config.Protect/Overwrite doc comments.
			if cfg.Protect || !cfg.Overwrite {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("refusing to overwrite %s", path)
				}
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
			if err != nil {
				return err
			}
			currentFile = f
			return nil
		},
		OnReceive: func(buf []byte, zcnl bool) error {
			if currentFile == nil {
				return fmt.Errorf("no open file")
			}
			_, err := currentFile.Write(buf)
			return err
		},
		OnFileComplete: func(name string, transferred int64, d time.Duration) {
			if currentFile != nil {
				currentFile.Close()
				currentFile = nil
			}
			logger.Info("received %s: %d bytes in %s", name, transferred, d)
		},
		OnProgress: func(name string, transferred, total int64, rate float64) {
			logger.Debug("%s: %d/%d bytes (%.0f B/s)", name, transferred, total, rate)
		},
		OnError: func(err error, context string) {
			logger.Error("%s: %v", context, err)
		},
	}

	engine := zmodem.New(cfg, cb, logger, func(buf []byte) error {
		_, err := conn.Write(buf)
		return err
	})

	if err := transport.Pump(conn, engine, cfg.RecvBufSize, cfg.RespTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "zmrx: %v\n", err)
		os.Exit(1)
	}
}

var currentFile *os.File

func openConn(listen, dial, serialDevice string, baud int) (transport.Conn, error) {
	switch {
	case serialDevice != "":
		return transport.OpenSerial(serialDevice, baud)
	case listen != "":
		return transport.ListenTCP(listen)
	case dial != "":
		return transport.DialTCP(dial)
	default:
		return transport.NewRawTerminal()
	}
}
