package zmodem

// Header encoding/verification — spec §4.2, §4.3.
//
// Grounded on the teacher's zsbhdr/zsbhdr32/zshhdr (outbound) and
// zrbhdr/zrbhdr32/zrhhdr (inbound CRC check) in zmodem/frame.go, rewritten
// so the outbound side returns a plain byte slice (no FrameWriter
// interface — the engine owns exactly one write() callback, per spec §3)
// and the inbound side is a pure verification function the incremental
// parser calls once it has accumulated a full header (spec §4.4.3), rather
// than a blocking reader.

// Header is the 4-byte payload carried by every ZModem header: either four
// flag bytes (ZF0..ZF3) or a little-endian-ish position (ZP0..ZP3).
type Header [4]byte

// stohdr stores a file position into a Header, low byte first (ZP0..ZP3).
func stohdr(pos uint32) Header {
	return Header{
		byte(pos),
		byte(pos >> 8),
		byte(pos >> 16),
		byte(pos >> 24),
	}
}

// rclhdr recovers a file position from a Header.
func rclhdr(hdr Header) uint32 {
	return uint32(hdr[ZP0]) |
		uint32(hdr[ZP1])<<8 |
		uint32(hdr[ZP2])<<16 |
		uint32(hdr[ZP3])<<24
}

const hexDigits = "0123456789abcdef"

func putHex(b byte, out []byte) {
	out[0] = hexDigits[b>>4]
	out[1] = hexDigits[b&0x0F]
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

// buildBinHeader renders a ZBIN (16-bit CRC) header, ZDLE-escaping the type,
// payload and CRC bytes.
func buildBinHeader(escCtrl bool, frameType int, hdr Header) []byte {
	out := []byte{ZPAD, ZDLE, ZBIN}
	enc := newEscapeEncoder(escCtrl)

	ftByte := byte(frameType)
	out = append(out, enc.EncodeByte(ftByte)...)
	crc := crc16Update(0, ftByte)
	for _, b := range hdr {
		out = append(out, enc.EncodeByte(b)...)
		crc = crc16Update(crc, b)
	}
	out = append(out, enc.EncodeByte(byte(crc>>8))...)
	out = append(out, enc.EncodeByte(byte(crc))...)
	return out
}

// buildBin32Header renders a ZBIN32 (32-bit CRC) header.
func buildBin32Header(escCtrl bool, frameType int, hdr Header) []byte {
	out := []byte{ZPAD, ZDLE, ZBIN32}
	enc := newEscapeEncoder(escCtrl)

	ftByte := byte(frameType)
	out = append(out, enc.EncodeByte(ftByte)...)
	crc := crc32Update(0xFFFFFFFF, ftByte)
	for _, b := range hdr {
		out = append(out, enc.EncodeByte(b)...)
		crc = crc32Update(crc, b)
	}
	crc = crc32Finalize(crc)
	for i := 0; i < 4; i++ {
		out = append(out, enc.EncodeByte(byte(crc))...)
		crc >>= 8
	}
	return out
}

// buildHexHeader renders a ZHEX header. Hex digits never need ZDLE escaping
// (they're all in the safe printable set), so no escaper is involved. A
// trailing XON is appended for every type except ZACK and ZFIN (spec §4.2).
func buildHexHeader(frameType int, hdr Header) []byte {
	out := make([]byte, 0, 16)
	out = append(out, ZPAD, ZPAD, ZDLE, ZHEX)

	var digits [2]byte
	putHex(byte(frameType), digits[:])
	out = append(out, digits[:]...)
	crc := crc16Update(0, byte(frameType))

	for _, b := range hdr {
		putHex(b, digits[:])
		out = append(out, digits[:]...)
		crc = crc16Update(crc, b)
	}

	putHex(byte(crc>>8), digits[:])
	out = append(out, digits[:]...)
	putHex(byte(crc), digits[:])
	out = append(out, digits[:]...)

	out = append(out, '\r', '\n')
	if frameType != ZACK && frameType != ZFIN {
		out = append(out, XON)
	}
	return out
}

// verifyBinHeaderCRC16 checks the running CRC-16 over type||payload||crc ==
// 0, per spec §4.2. The wire carries the CRC high byte first, but CRC-16/ARC
// is reflected, so the received bytes are folded back in low byte first for
// the residue to come out zero.
func verifyBinHeaderCRC16(frameType byte, hdr Header, crcHi, crcLo byte) bool {
	crc := crc16Update(0, frameType)
	for _, b := range hdr {
		crc = crc16Update(crc, b)
	}
	crc = crc16Update(crc, crcLo)
	crc = crc16Update(crc, crcHi)
	return crc == 0
}

// verifyBin32HeaderCRC32 checks the running CRC-32 against the magic
// residue, per spec §4.2.
func verifyBin32HeaderCRC32(frameType byte, hdr Header, crcBytes [4]byte) bool {
	crc := crc32Update(0xFFFFFFFF, frameType)
	for _, b := range hdr {
		crc = crc32Update(crc, b)
	}
	for _, b := range crcBytes {
		crc = crc32Update(crc, b)
	}
	return crc == crc32ResidueMagic
}
