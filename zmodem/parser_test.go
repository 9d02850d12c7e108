package zmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// encodeDataSubpacket builds the wire bytes for one ZModem data sub-packet:
// escaped payload, ZDLE-prefixed terminator, then the CRC of
// payload||terminator.
func encodeDataSubpacket(escCtrl bool, crc32Mode bool, payload []byte, term byte) []byte {
	enc := newEscapeEncoder(escCtrl)
	var out []byte
	for _, b := range payload {
		out = append(out, enc.EncodeByte(b)...)
	}
	out = append(out, ZDLE, term)

	if crc32Mode {
		crc := uint32(0xFFFFFFFF)
		for _, b := range payload {
			crc = crc32Update(crc, b)
		}
		crc = crc32Update(crc, term)
		crc = crc32Finalize(crc)
		for i := 0; i < 4; i++ {
			out = append(out, enc.EncodeByte(byte(crc))...)
			crc >>= 8
		}
	} else {
		var crc uint16
		for _, b := range payload {
			crc = crc16Update(crc, b)
		}
		crc = crc16Update(crc, term)
		out = append(out, enc.EncodeByte(byte(crc>>8))...)
		out = append(out, enc.EncodeByte(byte(crc))...)
	}
	return out
}

func TestDataSubpacketRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 128).Draw(rt, "payload")
		term := rapid.SampledFrom([]byte{ZCRCE, ZCRCG, ZCRCQ, ZCRCW}).Draw(rt, "term")
		crc32Mode := rapid.Bool().Draw(rt, "crc32")

		wire := encodeDataSubpacket(false, crc32Mode, payload, term)

		p := newParser(false, 4096)
		p.SetCRC32Mode(crc32Mode)
		p.EnterDataState()

		events := feedAll(p, wire)
		require.Len(rt, events, 1)
		assert.Equal(rt, evData, events[0].Kind)
		assert.Equal(rt, payload, events[0].Data)
		assert.Equal(rt, term, events[0].DataTerm)
	})
}

func TestDataSubpacketEscapeTransparency(t *testing.T) {
	// payload deliberately includes every byte that must round-trip through
	// escaping: XON, XOFF, 0xFF, DEL, and '@' followed by '\r'.
	payload := []byte{XON, XOFF, 0xFF, DEL, '@', '\r', 'z'}
	wire := encodeDataSubpacket(false, false, payload, ZCRCW)

	p := newParser(false, 4096)
	p.EnterDataState()
	events := feedAll(p, wire)

	require.Len(t, events, 1)
	assert.Equal(t, evData, events[0].Kind)
	assert.Equal(t, payload, events[0].Data)
}

func TestXONXOFFDiscardedMidHeaderAndMidData(t *testing.T) {
	hdr := Header{1, 2, 3, 4}
	wire := buildBinHeader(false, ZRINIT, hdr)
	// splice a stray XON/XOFF pair into the middle of the header bytes;
	// these are flow-control noise a real link can interleave anywhere.
	mid := len(wire) / 2
	spliced := append([]byte{}, wire[:mid]...)
	spliced = append(spliced, XON, XOFF)
	spliced = append(spliced, wire[mid:]...)

	events := feedAll(newParser(false, 64), spliced)
	require.Len(t, events, 1)
	assert.Equal(t, evHeader, events[0].Kind)
	assert.Equal(t, ZRINIT, events[0].FrameType)
	assert.Equal(t, hdr, events[0].Header)

	payload := []byte("hello")
	dataWire := encodeDataSubpacket(false, false, payload, ZCRCE)
	dmid := len(dataWire) / 2
	splicedData := append([]byte{}, dataWire[:dmid]...)
	splicedData = append(splicedData, XOFF, XON)
	splicedData = append(splicedData, dataWire[dmid:]...)

	p := newParser(false, 4096)
	p.EnterDataState()
	dataEvents := feedAll(p, splicedData)
	require.Len(t, dataEvents, 1)
	assert.Equal(t, evData, dataEvents[0].Kind)
	assert.Equal(t, payload, dataEvents[0].Data)
}

func TestDataSubpacketBadCRC(t *testing.T) {
	payload := []byte("hello")
	wire := encodeDataSubpacket(false, false, payload, ZCRCE)
	wire[len(wire)-1] ^= 0xFF

	p := newParser(false, 4096)
	p.EnterDataState()
	events := feedAll(p, wire)

	require.Len(t, events, 1)
	assert.Equal(t, evDataErr, events[0].Kind)
}
