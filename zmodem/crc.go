package zmodem

import "hash/crc32"

// CRC-16/ARC and CRC-32/IEEE running-value primitives.
//
// spec.md §1 treats these as "assumed present... library functions with the
// standard polynomials" — external, narrow collaborators the core doesn't
// own. No crc16 library turned up anywhere in the retrieved corpus (see
// DESIGN.md), so crc16Update below is the same small reflected table every
// ZModem implementation in this corpus (drunlade-go-lrzsz, xx25-go-zmodem,
// Metro-Olografix's receiver) carries inline. The 32-bit side reuses the
// standard library's own crc32.IEEETable rather than hand-rolling a second
// copy of the identical table.

var crc16Table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		crc := uint16(i)
		for b := 0; b < 8; b++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
		crc16Table[i] = crc
	}
}

// crc16Update folds one byte into a running CRC-16/ARC value.
func crc16Update(crc uint16, b byte) uint16 {
	return (crc >> 8) ^ crc16Table[byte(crc)^b]
}

// crc16Of returns the CRC-16 residue over buf starting from 0, matching the
// convention used by the ZBIN and ZHEX header formats (§4.2).
func crc16Of(buf ...[]byte) uint16 {
	var crc uint16
	for _, b := range buf {
		for _, c := range b {
			crc = crc16Update(crc, c)
		}
	}
	return crc
}

var crc32Table = crc32.IEEETable

// crc32Update folds one byte into a running CRC-32/IEEE value. ZModem seeds
// the running value with 0xFFFFFFFF and transmits the one's-complement,
// little-endian — see crc32Finalize and crc32VerifyResidue.
func crc32Update(crc uint32, b byte) uint32 {
	return crc32Table[byte(crc)^b] ^ (crc >> 8)
}

// crc32Of returns the running CRC-32 value (pre-complement) over buf,
// seeded at 0xFFFFFFFF per the ZBIN32 convention.
func crc32Of(buf ...[]byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range buf {
		for _, c := range b {
			crc = crc32Update(crc, c)
		}
	}
	return crc
}

// crc32Finalize complements a running CRC-32 value for transmission.
func crc32Finalize(crc uint32) uint32 {
	return ^crc
}

// crc32ResidueMagic is the fixed residue a correct CRC-32/IEEE running value
// settles to once the transmitted (complemented) CRC bytes have themselves
// been folded back in — §4.2's "magic residue".
const crc32ResidueMagic = 0xDEBB20E3
