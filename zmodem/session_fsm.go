package zmodem

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session state machine — spec §4.5. Grounded on the teacher's
// zmodem/session.go (now deleted) for the state names and the shape of the
// per-file bookkeeping (offset, filename, nerrors), generalized from its
// blocking read/write loop into pure (event, data) -> (Status, error)
// transitions that engine.go's Feed drives.

// State is one of the ten session states from spec §4.5.
type State int

const (
	ZMR_START State = iota
	ZMR_INITWAIT
	ZMR_FILEINFO
	ZMR_CRCWAIT
	ZMR_READREADY
	ZMR_READING
	ZMR_FINISH
	ZMR_COMMAND
	ZMR_MESSAGE
	ZMR_DONE
)

func (s State) String() string {
	switch s {
	case ZMR_START:
		return "START"
	case ZMR_INITWAIT:
		return "INITWAIT"
	case ZMR_FILEINFO:
		return "FILEINFO"
	case ZMR_CRCWAIT:
		return "CRCWAIT"
	case ZMR_READREADY:
		return "READREADY"
	case ZMR_READING:
		return "READING"
	case ZMR_FINISH:
		return "FINISH"
	case ZMR_COMMAND:
		return "COMMAND"
	case ZMR_MESSAGE:
		return "MESSAGE"
	case ZMR_DONE:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// sessEvent is the vocabulary component D posts to component E.
type sessEvent int

const (
	ZME_RQINIT sessEvent = iota
	ZME_SINIT
	ZME_FILE
	ZME_DATA
	ZME_DATARCVD
	ZME_EOF
	ZME_FIN
	ZME_NAK
	ZME_CRC
	ZME_FREECNT
	ZME_COMMAND
	ZME_STDERR
	ZME_OO
	ZME_CANCEL
	ZME_TIMEOUT
	ZME_ERROR
)

// Session holds every piece of per-transfer state the action table reads
// and writes: capability bytes, the current file's offset/size/name, error
// and timeout counters, and the callbacks/logger/writer it drives.
type Session struct {
	cfg Config
	cb  *Callbacks
	log Logger

	write func([]byte) error
	pr    *parser

	state State

	rcaps byte
	scaps byte

	attn []byte

	f0, f1   byte
	filename string
	filesize int64
	fileMode os.FileMode
	timestamp time.Time

	offset  int64
	fileCRC uint32

	nerrors   int
	ntimeouts int

	progress *ProgressTracker

	// skipCurrent is set by OnFilePrompt declining a file; the receiver
	// still has to consume (and discard) its data sub-packets.
	skipCurrent bool
}

// newSession builds a session in its initial state, per spec §4.6: state =
// ZMR_START, pstate = IDLE/ZPAD (parser's zero value already matches),
// timeout = connect timeout.
func newSession(cfg Config, cb *Callbacks, log Logger, write func([]byte) error) *Session {
	merged := mergeCallbacks(cb)
	rcaps := byte(DefaultRCAPS)
	if cfg.EscapeControl {
		rcaps |= ESCALL
	}
	return &Session{
		cfg:      cfg,
		cb:       merged,
		log:      log,
		write:    write,
		pr:       newParser(cfg.EscapeControl, cfg.PktBufSize+pktbufOverhead),
		state:    ZMR_START,
		rcaps:    rcaps,
		progress: NewProgressTracker(merged.OnProgress, 200*time.Millisecond),
	}
}

// Timeout returns the expected response window for the current state, a
// hint per spec §4.6.
func (s *Session) Timeout() time.Duration {
	switch s.state {
	case ZMR_START, ZMR_INITWAIT:
		return s.cfg.ConnTimeout
	default:
		return s.cfg.RespTimeout
	}
}

func (s *Session) emit(buf []byte) error {
	if err := s.write(buf); err != nil {
		return err
	}
	return nil
}

// sendHexHeader is used for every receiver-originated header. ZHEX is
// printable-only, so it survives 7-bit serial links and line-buffered
// terminals the sender's chosen binary format might not — the same
// reason real-world rz replies in hex even when it accepted a binary
// ZSINIT, and a deliberate simplification documented in DESIGN.md.
func (s *Session) sendHexHeader(frameType int, hdr Header) error {
	return s.emit(buildHexHeader(frameType, hdr))
}

// dispatch runs one (event, payload) through the transition table for the
// current state and returns the tick result, per spec §4.5's "a final
// ZME_ERROR catch-all exists in every table" rule: unhandled events fall
// through to zmrError.
func (s *Session) dispatch(ev sessEvent, frameType int, hdr Header, data []byte, dataOK bool, term byte) (Status, error) {
	switch ev {
	case ZME_CANCEL:
		_ = s.emit(CancelStream)
		s.state = ZMR_DONE
		return 0, ECANCELED
	case ZME_RQINIT:
		return s.zmrZrinit()
	case ZME_FREECNT:
		return s.zmrFreecnt()
	}

	switch s.state {
	case ZMR_START:
		switch ev {
		case ZME_SINIT:
			return s.zmrZsinit(hdr)
		case ZME_FILE:
			return s.zmrZfile(hdr)
		case ZME_FIN:
			return s.zmrZfin()
		case ZME_TIMEOUT:
			return s.zmrStartTimeout()
		default:
			return s.zmrError()
		}

	case ZMR_INITWAIT:
		switch ev {
		case ZME_DATARCVD:
			return s.zmrZsrintdata(data, dataOK)
		case ZME_FILE:
			return s.zmrZfile(hdr)
		case ZME_TIMEOUT:
			return s.zmrStartTimeout()
		default:
			return s.zmrError()
		}

	case ZMR_FILEINFO:
		switch ev {
		case ZME_DATARCVD:
			return s.zmrFilename(data, dataOK)
		case ZME_TIMEOUT:
			return s.zmrStartTimeout()
		default:
			return s.zmrError()
		}

	case ZMR_CRCWAIT:
		switch ev {
		case ZME_CRC:
			return s.zmrZcrc(hdr)
		case ZME_NAK:
			return s.zmrNakcrc()
		case ZME_TIMEOUT:
			return s.zmrCrcwaitTimeout()
		default:
			return s.zmrError()
		}

	case ZMR_READREADY:
		switch ev {
		case ZME_DATA:
			return s.zmrZdata(hdr)
		case ZME_EOF:
			return s.zmrZeof(hdr)
		case ZME_FILE:
			return s.zmrZfile(hdr)
		case ZME_FIN:
			return s.zmrZfin()
		case ZME_TIMEOUT:
			return s.zmrReadingTimeout()
		default:
			return s.zmrError()
		}

	case ZMR_READING:
		switch ev {
		case ZME_DATARCVD:
			return s.zmrFiledata(data, term, dataOK)
		case ZME_TIMEOUT:
			return s.zmrReadingTimeout()
		default:
			return s.zmrError()
		}

	case ZMR_FINISH:
		// ZME_RQINIT (a new batch starting) is handled by the global
		// case above, per spec's "awaiting OO trailer or a new ZRQINIT".
		switch ev {
		case ZME_OO:
			return s.zmrOo()
		case ZME_TIMEOUT:
			return s.zmrTerminalTimeout()
		default:
			return s.zmrError()
		}

	case ZMR_COMMAND:
		switch ev {
		case ZME_DATARCVD:
			// command payload accepted but not executed — wiring only,
			// per spec §4.5's ZMR_COMMAND note.
			s.cb.OnEvent(Event{Type: EventFrameReceived, Message: "ZCOMMAND data ignored", Timestamp: timeNow()})
			s.state = ZMR_START
			return 0, nil
		case ZME_TIMEOUT:
			return s.zmrTerminalTimeout()
		default:
			return s.zmrError()
		}

	case ZMR_MESSAGE:
		switch ev {
		case ZME_DATARCVD:
			if dataOK {
				s.cb.OnEvent(Event{Type: EventFrameReceived, Message: string(data), Timestamp: timeNow()})
			}
			s.state = ZMR_START
			return 0, nil
		case ZME_TIMEOUT:
			return s.zmrTerminalTimeout()
		default:
			return s.zmrError()
		}

	case ZMR_DONE:
		return Status(1), nil

	default:
		return s.zmrError()
	}
}

// handleHeaderEvent translates one parsed header into a session event and
// dispatches it. Some frame types (ZCOMMAND, ZSTDERR) need their own
// sub-packet, so they move the state machine into a waiting state rather
// than dispatching immediately.
func (s *Session) handleHeaderEvent(frameType int, hdr Header) (Status, error) {
	switch frameType {
	case ZRQINIT:
		return s.dispatch(ZME_RQINIT, frameType, hdr, nil, false, 0)
	case ZSINIT:
		return s.dispatch(ZME_SINIT, frameType, hdr, nil, false, 0)
	case ZFILE:
		return s.dispatch(ZME_FILE, frameType, hdr, nil, false, 0)
	case ZCRC:
		return s.dispatch(ZME_CRC, frameType, hdr, nil, false, 0)
	case ZNAK:
		return s.dispatch(ZME_NAK, frameType, hdr, nil, false, 0)
	case ZDATA:
		return s.dispatch(ZME_DATA, frameType, hdr, nil, false, 0)
	case ZEOF:
		return s.dispatch(ZME_EOF, frameType, hdr, nil, false, 0)
	case ZFIN:
		return s.dispatch(ZME_FIN, frameType, hdr, nil, false, 0)
	case ZFREECNT:
		return s.dispatch(ZME_FREECNT, frameType, hdr, nil, false, 0)
	case ZCOMMAND:
		s.state = ZMR_COMMAND
		s.pr.SetCRC32Mode(s.rcaps&CANFC32 != 0)
		s.pr.EnterDataState()
		return 0, nil
	case ZSTDERR:
		s.state = ZMR_MESSAGE
		s.pr.SetCRC32Mode(s.rcaps&CANFC32 != 0)
		s.pr.EnterDataState()
		return 0, nil
	case ZCAN, ZABORT:
		return s.dispatch(ZME_CANCEL, frameType, hdr, nil, false, 0)
	case ZSKIP:
		// sender is telling us it skipped something we asked for; treated
		// as a soft request (taxonomy category 2), not an error.
		s.state = ZMR_START
		return 0, nil
	default:
		return s.zmrError()
	}
}

// --- actions -----------------------------------------------------------

func (s *Session) zmrZrinit() (Status, error) {
	hdr := Header{byte(s.cfg.PktBufSize), byte(s.cfg.PktBufSize >> 8), 0, s.rcaps}
	s.pr.SetWaitOO(false)
	s.state = ZMR_START
	if err := s.sendHexHeader(ZRINIT, hdr); err != nil {
		return 0, EIO
	}
	return 0, nil
}

func (s *Session) zmrZsinit(hdr Header) (Status, error) {
	s.scaps = hdr[ZF0]
	s.cfg.EscapeControl = s.scaps&TESCCTL != 0
	s.pr.escCtrl = s.cfg.EscapeControl
	s.state = ZMR_INITWAIT
	s.pr.SetCRC32Mode(s.rcaps&CANFC32 != 0)
	s.pr.EnterDataState()
	return 0, nil
}

func (s *Session) zmrZsrintdata(data []byte, ok bool) (Status, error) {
	if !ok {
		if err := s.sendHexHeader(ZNAK, Header{}); err != nil {
			return 0, EIO
		}
		return 0, nil
	}
	s.attn = append([]byte(nil), data...)
	hdr := stohdr(uint32(s.cfg.SerialNumber))
	s.state = ZMR_START
	if err := s.sendHexHeader(ZACK, hdr); err != nil {
		return 0, EIO
	}
	return 0, nil
}

func (s *Session) zmrFreecnt() (Status, error) {
	hdr := stohdr(0xFFFFFFFF)
	if err := s.sendHexHeader(ZACK, hdr); err != nil {
		return 0, EIO
	}
	return 0, nil
}

func (s *Session) zmrZfile(hdr Header) (Status, error) {
	s.f0 = hdr[ZF0]
	s.f1 = hdr[ZF1]
	s.nerrors = 0
	s.pr.SetWaitOO(false)
	s.state = ZMR_FILEINFO
	s.pr.SetCRC32Mode(s.rcaps&CANFC32 != 0)
	s.pr.EnterDataState()
	return 0, nil
}

func (s *Session) zmrFilename(data []byte, ok bool) (Status, error) {
	if !ok {
		if err := s.sendHexHeader(ZNAK, Header{}); err != nil {
			return 0, EIO
		}
		s.state = ZMR_START
		return 0, nil
	}

	name, meta := splitFileInfo(data)
	s.filename = name
	s.filesize = 0
	s.fileMode = 0644
	s.timestamp = time.Time{}

	if fields := strings.Fields(meta); len(fields) > 0 {
		if v, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			s.filesize = v
		}
		if len(fields) > 1 {
			if v, err := strconv.ParseInt(fields[1], 8, 64); err == nil {
				s.timestamp = time.Unix(v, 0)
			}
		}
		if len(fields) > 2 {
			if v, err := strconv.ParseUint(fields[2], 8, 32); err == nil {
				s.fileMode = os.FileMode(v)
			}
		}
	}

	accept, err := s.cb.OnFilePrompt(s.filename, s.filesize, s.fileMode)
	if err != nil {
		return 0, EIO
	}
	s.skipCurrent = !accept
	if s.skipCurrent {
		if err := s.sendHexHeader(ZSKIP, Header{}); err != nil {
			return 0, EIO
		}
		s.state = ZMR_START
		return 0, nil
	}

	s.cb.OnFileStart(s.filename, s.filesize, s.fileMode)
	if err := s.cb.OnFileCreate(s.filename, s.filesize, s.fileMode); err != nil {
		return 0, EIO
	}
	s.progress.Start(s.filename, s.filesize)

	s.offset = 0
	if s.f0 == ZCRESUM {
		s.offset = s.filesize
	}

	if s.f1&ZMMASK == ZMCRC {
		s.state = ZMR_CRCWAIT
		if err := s.sendHexHeader(ZCRC, Header{}); err != nil {
			return 0, EIO
		}
		return 0, nil
	}

	return s.openFile()
}

// splitFileInfo splits a ZFILE sub-packet into its NUL-terminated filename
// and the trailing ASCII metadata string.
func splitFileInfo(data []byte) (name, meta string) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return string(data[:i]), string(bytes.TrimRight(data[i+1:], "\x00"))
	}
	return string(data), ""
}

func (s *Session) openFile() (Status, error) {
	s.state = ZMR_READREADY
	hdr := stohdr(uint32(s.offset))
	if err := s.sendHexHeader(ZRPOS, hdr); err != nil {
		return 0, EIO
	}
	return 0, nil
}

func (s *Session) zmrZcrc(hdr Header) (Status, error) {
	s.fileCRC = rclhdr(hdr)
	return s.openFile()
}

func (s *Session) zmrNakcrc() (Status, error) {
	if err := s.sendHexHeader(ZCRC, Header{}); err != nil {
		return 0, EIO
	}
	return 0, nil
}

func (s *Session) zmrZdata(hdr Header) (Status, error) {
	senderOffset := int64(rclhdr(hdr))
	if senderOffset != s.offset {
		if len(s.attn) > 0 {
			if err := s.emit(s.attn); err != nil {
				return 0, EIO
			}
		}
		hdr := stohdr(uint32(s.offset))
		if err := s.sendHexHeader(ZRPOS, hdr); err != nil {
			return 0, EIO
		}
		return 0, nil
	}
	s.state = ZMR_READING
	s.pr.SetCRC32Mode(s.rcaps&CANFC32 != 0)
	s.pr.EnterDataState()
	return 0, nil
}

func (s *Session) zmrFiledata(data []byte, term byte, ok bool) (Status, error) {
	if !ok {
		s.nerrors++
		if s.nerrors > s.cfg.MaxErrors {
			_ = s.emit(CancelStream)
			s.state = ZMR_DONE
			return 0, ETIMEDOUT
		}
		hdr := stohdr(uint32(s.offset))
		if err := s.sendHexHeader(ZRPOS, hdr); err != nil {
			return 0, EIO
		}
		s.state = ZMR_READREADY
		return 0, nil
	}

	if !s.skipCurrent {
		if err := s.cb.OnReceive(data, s.f0 == ZCNL); err != nil {
			if err := s.sendHexHeader(ZFERR, Header{}); err != nil {
				return 0, EIO
			}
			s.state = ZMR_FINISH
			s.pr.SetWaitOO(true)
			return 0, EIO
		}
	}

	s.offset += int64(len(data))
	s.progress.Update(s.offset)

	if term == ZCRCE || term == ZCRCW {
		s.state = ZMR_READREADY
	} else {
		s.pr.EnterDataState()
	}
	if term == ZCRCQ || term == ZCRCW {
		hdr := stohdr(uint32(s.offset))
		if err := s.sendHexHeader(ZACK, hdr); err != nil {
			return 0, EIO
		}
	}
	return 0, nil
}

func (s *Session) zmrZeof(hdr Header) (Status, error) {
	if int64(rclhdr(hdr)) != s.offset {
		// spurious EOF from a stale retransmit, ignore per spec §4.5.
		return 0, nil
	}
	duration := s.progress.Complete()
	s.cb.OnFileComplete(s.filename, s.offset, duration)
	return s.zmrZrinit()
}

func (s *Session) zmrZfin() (Status, error) {
	if err := s.sendHexHeader(ZFIN, Header{}); err != nil {
		return 0, EIO
	}
	s.pr.SetWaitOO(true)
	s.filename = ""
	s.offset = 0
	s.state = ZMR_FINISH
	return 0, nil
}

func (s *Session) zmrOo() (Status, error) {
	s.state = ZMR_DONE
	return Status(1), nil
}

func (s *Session) zmrBadrpos() (Status, error) {
	hdr := stohdr(uint32(s.offset))
	if err := s.sendHexHeader(ZRPOS, hdr); err != nil {
		return 0, EIO
	}
	return 0, nil
}

func (s *Session) zmrStartTimeout() (Status, error) {
	s.ntimeouts++
	if s.ntimeouts > 4 {
		return 0, ETIMEDOUT
	}
	return s.zmrZrinit()
}

func (s *Session) zmrCrcwaitTimeout() (Status, error) {
	s.ntimeouts++
	if s.ntimeouts > 2 {
		s.ntimeouts = 0
		s.state = ZMR_START
		return s.zmrZrinit()
	}
	if err := s.sendHexHeader(ZCRC, Header{}); err != nil {
		return 0, EIO
	}
	return 0, nil
}

func (s *Session) zmrReadingTimeout() (Status, error) {
	s.ntimeouts++
	if s.ntimeouts > 2 {
		s.ntimeouts = 0
		s.state = ZMR_START
		return s.zmrZrinit()
	}
	return s.zmrBadrpos()
}

func (s *Session) zmrTerminalTimeout() (Status, error) {
	return 0, ETIMEDOUT
}

func (s *Session) zmrError() (Status, error) {
	s.log.Debug("zmr_error: event ignored in state %s", s.state)
	return 0, nil
}

// zmrGarbage handles a header that failed its CRC check or a malformed hex
// digit: per spec §4.4.3, emit ZNAK and return to idle so the sender's
// retry logic resends the header.
func (s *Session) zmrGarbage() (Status, error) {
	if err := s.sendHexHeader(ZNAK, Header{}); err != nil {
		return 0, EIO
	}
	return 0, nil
}

// timeNow exists only so the small number of timestamped debug events in
// this file read naturally; Session carries no wall-clock dependency
// outside of ProgressTracker and file metadata parsing.
func timeNow() time.Time { return time.Now() }
