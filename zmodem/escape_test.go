package zmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// decodeWire decodes a fully-escaped wire sequence (as produced by
// escapeEncoder.EncodeByte) back into the original byte string. Decoding
// needs no ATSIGN state, since an escaped CR carries its own ZDLE prefix;
// the atsign value tracked below is never consulted.
func decodeWire(t *testing.T, wire []byte) []byte {
	t.Helper()
	var out []byte
	atsign := false
	for i := 0; i < len(wire); i++ {
		b := wire[i]
		if b != ZDLE {
			out = append(out, b)
			atsign = (b & 0x7F) == '@'
			continue
		}
		i++
		require.Less(t, i, len(wire), "dangling ZDLE in wire stream")
		decoded, _ := decodeEscapedByte(wire[i])
		out = append(out, decoded)
		atsign = (decoded & 0x7F) == '@'
	}
	_ = atsign
	return out
}

func TestEscapeRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "data")
		escCtrl := rapid.Bool().Draw(rt, "escCtrl")

		enc := newEscapeEncoder(escCtrl)
		var wire []byte
		for _, b := range data {
			wire = append(wire, enc.EncodeByte(b)...)
		}

		got := decodeWire(t, wire)
		assert.Equal(rt, data, got)
	})
}

func TestEscapeAlwaysEscapesReserved(t *testing.T) {
	enc := newEscapeEncoder(false)
	for _, b := range []byte{ZDLE, DLE, XON, XOFF, GS, DEL, 0xFF} {
		wire := enc.EncodeByte(b)
		assert.Len(t, wire, 2, "byte 0x%02x must be escaped", b)
		assert.Equal(t, byte(ZDLE), wire[0])
	}
}

func TestEscapeAtsignCR(t *testing.T) {
	enc := newEscapeEncoder(false)
	// '@' itself is never escaped...
	wire := enc.EncodeByte('@')
	assert.Len(t, wire, 1)
	// ...but the CR immediately following one is.
	wire = enc.EncodeByte('\r')
	assert.Len(t, wire, 2)
}

func TestEscapeControlFlag(t *testing.T) {
	plain := newEscapeEncoder(false).EncodeByte(0x01)
	assert.Len(t, plain, 1)

	escaped := newEscapeEncoder(true).EncodeByte(0x01)
	assert.Len(t, escaped, 2)
}

func TestIsSubpacketTerminator(t *testing.T) {
	for _, b := range []byte{ZCRCE, ZCRCG, ZCRCQ, ZCRCW} {
		assert.True(t, isSubpacketTerminator(b))
	}
	assert.False(t, isSubpacketTerminator('x'))
}
