package zmodem

// Byte parser — spec §4.4.
//
// Grounded on the teacher's zrbhdr/zrbhdr32/zrhhdr/zrdata (zmodem/frame.go,
// now deleted) for the header/data accumulation rules, and on
// Metro-Olografix's Feed(data []byte)-based receiver for the idiom of
// driving the whole thing from a byte slice instead of a blocking reader.
// Every blocking read in the teacher's versions (zdlread, the ZDLE/CAN
// detection loop) becomes a pure state transition here: one byte in,
// zero-or-more semantic events out, no I/O.

type pstate int

const (
	pstateIdle pstate = iota
	pstateHeader
	pstateData
)

type psubstate int

const (
	psubNone psubstate = iota
	psubSeenZPAD
	psubSeenZDLE
	psubFrameType // binary header: format byte already read; also pushData's CRC-trailer state
	psubHexHi     // hex header: waiting for high nibble
	psubHexLo     // hex header: waiting for low nibble, hexHi already read
	psubSeenO     // idle, waitOO set: first 'O' of the "OO" trailer seen
)

// eventKind enumerates what the parser hands up to the session state
// machine (component E) once it has assembled something meaningful.
type eventKind int

const (
	evHeader eventKind = iota
	evData
	evDataErr // sub-packet failed CRC
	evCancel  // 5+ consecutive CAN bytes, or the long CancelStream
	evGarbage // header failed its CRC check or carried a non-hex digit; answered with ZNAK
	evOO      // the "OO" trailer after ZFIN, only watched for after SetWaitOO(true)
)

// parseEvent is one parser output. For evHeader, FrameType/Header are
// populated. For evData/evDataErr, Data and DataTerm are populated.
type parseEvent struct {
	Kind      eventKind
	FrameType int
	Header    Header
	Data      []byte
	DataTerm  byte // ZCRCE/ZCRCG/ZCRCQ/ZCRCW
}

// parser is the incremental byte-driven header/data framer. It owns no
// transport and performs no I/O; Feed in engine.go drains bytes into
// PushByte and reacts to the returned events.
type parser struct {
	escCtrl bool

	state    pstate
	substate psubstate

	// header accumulation
	hdrFormat  byte // ZBIN / ZHEX / ZBIN32
	hdrType    byte
	hdr        Header
	hdrIdx     int
	hdrEscNext bool // previous byte was ZDLE, next byte needs un-escaping
	hdrCRC     [4]byte
	hdrCRCIdx  int
	hdrCRCLen  int // 2 for ZBIN, 4 for ZBIN32

	hexHighNib  int
	hexHaveHigh bool

	// data sub-packet accumulation
	dataBuf   []byte
	dataMaxLen int
	crc32Mode bool // sub-packets under a ZBIN32 ZDATA use 32-bit CRC

	// CAN-run detector: any run of 5 literal CAN bytes cancels the session,
	// per spec invariant. The canonical CancelStream (8 CAN + 10 BS) also
	// satisfies this since it opens with 8 CANs. canceled latches once the
	// run has fired so a longer run (or the trailing BS bytes) can't fire
	// evCancel a second time; it clears on the first non-CAN byte.
	canRun   int
	canceled bool

	// waitOO is set by the session machine on entering ZMR_FINISH: the
	// parser starts watching idle-state input for the "OO" trailer.
	waitOO bool
}

// SetWaitOO toggles "OO" trailer detection in PSTATE_IDLE, per spec §4.4.2.
func (p *parser) SetWaitOO(enabled bool) {
	p.waitOO = enabled
}

func newParser(escCtrl bool, dataMaxLen int) *parser {
	return &parser{
		escCtrl:    escCtrl,
		dataMaxLen: dataMaxLen,
		dataBuf:    make([]byte, 0, dataMaxLen),
	}
}

// SetCRC32Mode tells the parser whether the data sub-packets of the frame
// currently being received are checked with a 16-bit or 32-bit CRC. The
// session state machine calls this when it opens a ZDATA/ZFILE sub-packet
// stream, mirroring which header format carried the request.
func (p *parser) SetCRC32Mode(enabled bool) {
	p.crc32Mode = enabled
}

// EnterDataState switches the parser into sub-packet accumulation mode,
// called by the session machine immediately after a ZDATA/ZFILE header is
// accepted.
func (p *parser) EnterDataState() {
	p.state = pstateData
	p.substate = psubNone
	p.dataBuf = p.dataBuf[:0]
}

// PushByte feeds one wire byte into the parser and returns the event it
// completed, if any.
func (p *parser) PushByte(ch byte) (parseEvent, bool) {
	// CAN-run detection applies to every byte in every pstate, including a
	// CAN (== ZDLE) that opens an escape; a valid encoder never emits two
	// ZDLE bytes in a row, so a run of five only comes from a cancel.
	if ch == CAN {
		p.canRun++
		if p.canRun >= 5 && !p.canceled {
			p.canceled = true
			p.resetToIdle()
			return parseEvent{Kind: evCancel}, true
		}
		if p.canceled {
			return parseEvent{}, false
		}
	} else {
		p.canRun = 0
		p.canceled = false
	}

	// XON/XOFF are flow-control bytes the sender may interleave anywhere in
	// the stream, not just between frames; spec §4.4.1 requires they be
	// discarded regardless of pstate rather than corrupting whatever field
	// is currently being accumulated.
	if ch == XON || ch == XOFF {
		return parseEvent{}, false
	}

	switch p.state {
	case pstateIdle:
		return p.pushIdle(ch)
	case pstateHeader:
		return p.pushHeader(ch)
	case pstateData:
		return p.pushData(ch)
	}
	return parseEvent{}, false
}

func (p *parser) resetToIdle() {
	p.state = pstateIdle
	p.substate = psubNone
	p.hdrIdx = 0
	p.hdrCRCIdx = 0
	p.hexHaveHigh = false
	p.dataBuf = p.dataBuf[:0]
}

func (p *parser) pushIdle(ch byte) (parseEvent, bool) {
	switch p.substate {
	case psubNone:
		if ch == ZPAD {
			p.substate = psubSeenZPAD
			return parseEvent{}, false
		}
		if p.waitOO && ch == 'O' {
			p.substate = psubSeenO
			return parseEvent{}, false
		}
		// any other byte while idle is noise (line turnaround garbage,
		// XON/XOFF echo) and is silently discarded per spec §4.4.1.
		return parseEvent{}, false

	case psubSeenO:
		if ch == 'O' {
			p.waitOO = false
			p.substate = psubNone
			return parseEvent{Kind: evOO}, true
		}
		if ch == ZPAD {
			p.substate = psubSeenZPAD
			return parseEvent{}, false
		}
		p.substate = psubNone
		return parseEvent{}, false

	case psubSeenZPAD:
		switch ch {
		case ZPAD:
			return parseEvent{}, false // a second ZPAD is still fine
		case ZDLE:
			p.substate = psubSeenZDLE
		default:
			p.substate = psubNone
		}
		return parseEvent{}, false

	case psubSeenZDLE:
		switch ch {
		case ZBIN:
			p.beginHeader(ch, false)
		case ZBIN32:
			p.beginHeader(ch, true)
		case ZHEX:
			p.beginHexHeader()
		default:
			p.substate = psubNone
		}
		return parseEvent{}, false
	}
	return parseEvent{}, false
}

func (p *parser) beginHeader(format byte, crc32 bool) {
	p.state = pstateHeader
	p.substate = psubFrameType
	p.hdrFormat = format
	p.hdrIdx = 0
	p.hdrEscNext = false
	p.hdrCRCIdx = 0
	if crc32 {
		p.hdrCRCLen = 4
	} else {
		p.hdrCRCLen = 2
	}
}

func (p *parser) beginHexHeader() {
	p.state = pstateHeader
	p.substate = psubHexHi
	p.hdrFormat = ZHEX
	p.hdrIdx = 0
	p.hdrCRCLen = 2
	p.hdrCRCIdx = 0
	p.hexHaveHigh = false
}

// pushHeader accumulates a binary (ZBIN/ZBIN32) or hex (ZHEX) header.
func (p *parser) pushHeader(ch byte) (parseEvent, bool) {
	if p.hdrFormat == ZHEX {
		return p.pushHexHeader(ch)
	}
	return p.pushBinHeader(ch)
}

func (p *parser) pushBinHeader(ch byte) (parseEvent, bool) {
	if ch == ZDLE && !p.hdrEscNext {
		p.hdrEscNext = true
		return parseEvent{}, false
	}
	var b byte
	if p.hdrEscNext {
		b, _ = decodeEscapedByte(ch)
		p.hdrEscNext = false
	} else {
		b = ch
	}

	if p.hdrIdx == 0 {
		p.hdrType = b
		p.hdrIdx++
		return parseEvent{}, false
	}
	if p.hdrIdx <= 4 {
		p.hdr[p.hdrIdx-1] = b
		p.hdrIdx++
		return parseEvent{}, false
	}
	// CRC bytes
	p.hdrCRC[p.hdrCRCIdx] = b
	p.hdrCRCIdx++
	if p.hdrCRCIdx < p.hdrCRCLen {
		return parseEvent{}, false
	}

	var ok bool
	if p.hdrFormat == ZBIN32 {
		ok = verifyBin32HeaderCRC32(p.hdrType, p.hdr, [4]byte{p.hdrCRC[0], p.hdrCRC[1], p.hdrCRC[2], p.hdrCRC[3]})
	} else {
		ok = verifyBinHeaderCRC16(p.hdrType, p.hdr, p.hdrCRC[0], p.hdrCRC[1])
	}
	p.resetToIdle()
	if !ok {
		return parseEvent{Kind: evGarbage}, true
	}
	return parseEvent{Kind: evHeader, FrameType: int(p.hdrType), Header: p.hdr}, true
}

func (p *parser) pushHexHeader(ch byte) (parseEvent, bool) {
	switch p.substate {
	case psubHexHi, psubHexLo:
		v, ok := hexVal(ch)
		if !ok {
			// non-hex byte where a digit was expected: malformed header,
			// drop back to idle and let the sender's retry timer recover.
			p.resetToIdle()
			return parseEvent{Kind: evGarbage}, true
		}
		if p.substate == psubHexHi {
			p.hexHighNib = v
			p.substate = psubHexLo
			return parseEvent{}, false
		}
		b := byte(p.hexHighNib<<4 | v)
		p.substate = psubHexHi
		return p.consumeHexByte(b)
	}
	return parseEvent{}, false
}

// consumeHexByte accumulates one hex-decoded byte of a ZHEX header. On
// completion the parser resets straight back to PSTATE_IDLE (spec §4.4.3);
// the trailing "\r\n" and optional XON the sender appends are then just
// ordinary idle-state noise, silently discarded like any other byte that
// isn't ZPAD.
func (p *parser) consumeHexByte(b byte) (parseEvent, bool) {
	if p.hdrIdx == 0 {
		p.hdrType = b
		p.hdrIdx++
		return parseEvent{}, false
	}
	if p.hdrIdx <= 4 {
		p.hdr[p.hdrIdx-1] = b
		p.hdrIdx++
		return parseEvent{}, false
	}
	p.hdrCRC[p.hdrCRCIdx] = b
	p.hdrCRCIdx++
	if p.hdrCRCIdx < p.hdrCRCLen {
		return parseEvent{}, false
	}

	ok := verifyBinHeaderCRC16(p.hdrType, p.hdr, p.hdrCRC[0], p.hdrCRC[1])
	hdrType, hdr := p.hdrType, p.hdr
	p.resetToIdle()
	if !ok {
		return parseEvent{Kind: evGarbage}, true
	}
	return parseEvent{Kind: evHeader, FrameType: int(hdrType), Header: hdr}, true
}

// pushData accumulates one ZModem data sub-packet: raw bytes until a
// ZDLE-prefixed terminator (ZCRCE/ZCRCG/ZCRCQ/ZCRCW), followed by its CRC.
func (p *parser) pushData(ch byte) (parseEvent, bool) {
	switch p.substate {
	case psubNone:
		if ch == ZDLE {
			p.substate = psubSeenZDLE
			return parseEvent{}, false
		}
		if len(p.dataBuf) >= p.dataMaxLen {
			// oversize sub-packet: treat as a framing error rather than
			// growing without bound.
			p.resetToIdle()
			return parseEvent{Kind: evDataErr}, true
		}
		p.dataBuf = append(p.dataBuf, ch)
		return parseEvent{}, false

	case psubSeenZDLE:
		if isSubpacketTerminator(ch) {
			p.substate = psubFrameType // reuse as "terminator seen, reading CRC"
			p.hdrCRCIdx = 0
			p.hdrType = ch // stash terminator in hdrType
			if p.crc32Mode {
				p.hdrCRCLen = 4
			} else {
				p.hdrCRCLen = 2
			}
			return parseEvent{}, false
		}
		// an escaped literal byte inside the data stream
		b, _ := decodeEscapedByte(ch)
		p.substate = psubNone
		if len(p.dataBuf) >= p.dataMaxLen {
			p.resetToIdle()
			return parseEvent{Kind: evDataErr}, true
		}
		p.dataBuf = append(p.dataBuf, b)
		return parseEvent{}, false

	case psubFrameType:
		// CRC bytes following the terminator are ZDLE-escaped like any
		// other wire byte.
		if ch == ZDLE && p.hdrCRCIdx < p.hdrCRCLen && !p.hdrEscNext {
			p.hdrEscNext = true
			return parseEvent{}, false
		}
		var b byte
		if p.hdrEscNext {
			b, _ = decodeEscapedByte(ch)
			p.hdrEscNext = false
		} else {
			b = ch
		}
		p.hdrCRC[p.hdrCRCIdx] = b
		p.hdrCRCIdx++
		if p.hdrCRCIdx < p.hdrCRCLen {
			return parseEvent{}, false
		}

		term := p.hdrType
		ok := p.verifyDataCRC(term)
		data := make([]byte, len(p.dataBuf))
		copy(data, p.dataBuf)
		p.dataBuf = p.dataBuf[:0]
		p.substate = psubNone
		if term == ZCRCW || term == ZCRCE {
			// frame boundary: parser returns to idle, session machine
			// decides what comes next (ack, or expect another header).
			p.state = pstateIdle
		}
		if !ok {
			return parseEvent{Kind: evDataErr, DataTerm: term}, true
		}
		return parseEvent{Kind: evData, Data: data, DataTerm: term}, true
	}
	return parseEvent{}, false
}

func (p *parser) verifyDataCRC(term byte) bool {
	if p.crc32Mode {
		crc := uint32(0xFFFFFFFF)
		for _, c := range p.dataBuf {
			crc = crc32Update(crc, c)
		}
		crc = crc32Update(crc, term)
		for i := 0; i < 4; i++ {
			crc = crc32Update(crc, p.hdrCRC[i])
		}
		return crc == crc32ResidueMagic
	}
	var crc uint16
	for _, c := range p.dataBuf {
		crc = crc16Update(crc, c)
	}
	crc = crc16Update(crc, term)
	// high byte arrives first; fold low byte first (see verifyBinHeaderCRC16)
	crc = crc16Update(crc, p.hdrCRC[1])
	crc = crc16Update(crc, p.hdrCRC[0])
	return crc == 0
}
