package zmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCRC16KnownVector(t *testing.T) {
	// "123456789" is the standard CRC check string; CRC-16/ARC of it is
	// the well-known value 0xBB3D.
	got := crc16Of([]byte("123456789"))
	assert.Equal(t, uint16(0xBB3D), got)
}

func TestCRC32ResidueMagic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "data")

		crc := crc32Of(data)
		sent := crc32Finalize(crc)

		var crcBytes [4]byte
		c := sent
		for i := 0; i < 4; i++ {
			crcBytes[i] = byte(c)
			c >>= 8
		}

		running := uint32(0xFFFFFFFF)
		for _, b := range data {
			running = crc32Update(running, b)
		}
		for _, b := range crcBytes {
			running = crc32Update(running, b)
		}
		assert.Equal(t, uint32(crc32ResidueMagic), running)
	})
}

func TestCRC16DiscriminatesSingleBitFlip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(rt, "data")
		crc := crc16Of(data)

		idx := rapid.IntRange(0, len(data)-1).Draw(rt, "idx")
		bit := rapid.IntRange(0, 7).Draw(rt, "bit")
		flipped := append([]byte(nil), data...)
		flipped[idx] ^= 1 << uint(bit)

		assert.NotEqual(rt, crc, crc16Of(flipped))
	})
}
