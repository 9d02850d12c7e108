package zmodem

import "time"

// Session facade — spec §4.6. Grounded on the teacher's top-level
// zmodem.go session constructors (now folded into this file and
// zmodem.go's wire-constant table), reshaped around a single Feed entry
// point instead of the teacher's blocking Receive(ctx, conn) loop.

// ZM_XFRDONE is the positive sentinel a Feed call returns once every
// requested file has been transferred and the sender's "OO" trailer has
// been seen — the caller may stop feeding bytes. Spec §4.6/§7.
const ZM_XFRDONE = StatusDone

// Engine is the transport-agnostic ZModem receiver. It never performs I/O
// itself beyond the write callback supplied to New; reading is entirely
// the caller's responsibility; see internal/transport for adapters that
// pump bytes from a net.Conn, a serial port, or a pty into Feed.
type Engine struct {
	sess *Session
}

// New allocates a receiver session. write is called synchronously,
// possibly several times, from within a single Feed call whenever the
// protocol needs to emit a header or cancel stream; a non-nil return value
// is surfaced to the caller as a fatal I/O error (spec §7 category 6).
func New(cfg Config, cb *Callbacks, log Logger, write func([]byte) error) *Engine {
	if log == nil {
		log = NoopLogger{}
	}
	return &Engine{sess: newSession(cfg, cb, log, write)}
}

// Feed pushes received wire bytes through the parser and state machine.
// It never blocks and performs no reads; every write the protocol needs
// to make in reaction to buf happens before Feed returns. The returned
// Status is StatusContinue, ZM_XFRDONE, or an error from the Errno
// vocabulary.
func (e *Engine) Feed(buf []byte) (Status, error) {
	for _, b := range buf {
		ev, ok := e.sess.pr.PushByte(b)
		if !ok {
			continue
		}
		status, err := e.react(ev)
		if err != nil || status == ZM_XFRDONE {
			return status, err
		}
	}
	return StatusContinue, nil
}

// react turns one parser event into a session dispatch.
func (e *Engine) react(ev parseEvent) (Status, error) {
	s := e.sess
	switch ev.Kind {
	case evHeader:
		return s.handleHeaderEvent(ev.FrameType, ev.Header)
	case evData:
		return s.dispatch(ZME_DATARCVD, 0, Header{}, ev.Data, true, ev.DataTerm)
	case evDataErr:
		return s.dispatch(ZME_DATARCVD, 0, Header{}, nil, false, ev.DataTerm)
	case evCancel:
		return s.dispatch(ZME_CANCEL, 0, Header{}, nil, false, 0)
	case evOO:
		return s.dispatch(ZME_OO, 0, Header{}, nil, false, 0)
	case evGarbage:
		// every evGarbage the parser emits comes from a failed header CRC
		// or a malformed hex digit (see parser.go); true idle-state noise
		// never produces an event at all, pushIdle just drops it. Spec
		// §4.4.3: emit ZNAK and return to idle.
		return s.zmrGarbage()
	default:
		return StatusContinue, nil
	}
}

// Timeout notifies the engine that the response window for the current
// state has elapsed; the embedder owns the clock (spec §5 — "the engine
// itself has no timers").
func (e *Engine) Timeout() (Status, error) {
	return e.sess.dispatch(ZME_TIMEOUT, 0, Header{}, nil, false, 0)
}

// State reports the current high-level session state, mostly useful for
// logging/diagnostics.
func (e *Engine) State() State {
	return e.sess.state
}

// ResponseWindow returns the current state's expected response timeout, a
// hint for the embedder's timer.
func (e *Engine) ResponseWindow() time.Duration {
	return e.sess.Timeout()
}

// Release tears down the session. There is no native resource to free in
// this port (no C heap allocations to mirror) but the call is kept as a
// deliberate symmetry with spec §4.6's initialize/release pairing, and as
// the place a future caller-visible cleanup hook would go.
func (e *Engine) Release() {
	e.sess = nil
}
