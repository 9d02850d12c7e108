package zmodem

// Synthetic sender harness — test-only. Builds the wire bytes a real
// ZModem sender would produce, so session_test.go can drive the receiver
// state machine through the scenarios in spec §8 without a second
// process. Grounded on the teacher's deleted zmodem/sender.go (BuildFileHeader
// and the ZDATA/ZEOF/ZFIN emission sequence); the sender role itself is
// explicitly out of scope for this module (it exists only to manufacture
// test input).

func senderZRQINIT() []byte {
	return buildHexHeader(ZRQINIT, Header{})
}

func senderZFileHeader(f0, f1 byte) []byte {
	var hdr Header
	hdr[ZF0] = f0
	hdr[ZF1] = f1
	return buildBin32Header(false, ZFILE, hdr)
}

func senderFileInfoSubpacket(name string, size int64) []byte {
	payload := append([]byte(name), 0)
	meta := itoa(size) + " 0 0 0 0 0"
	payload = append(payload, []byte(meta)...)
	return encodeDataSubpacket(false, true, payload, ZCRCW)
}

func senderZDataHeader(offset uint32) []byte {
	return buildBin32Header(false, ZDATA, stohdr(offset))
}

func senderDataSubpacket(payload []byte, term byte) []byte {
	return encodeDataSubpacket(false, true, payload, term)
}

func senderZEOF(offset uint32) []byte {
	return buildHexHeader(ZEOF, stohdr(offset))
}

func senderZFIN() []byte {
	return buildHexHeader(ZFIN, Header{})
}

var senderOOTrailer = []byte{'O', 'O'}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
