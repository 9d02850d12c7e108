package zmodem

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	engine    *Engine
	written   [][]byte
	received  [][]byte
	completed []string
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{}
	cb := &Callbacks{
		OnReceive: func(buf []byte, zcnl bool) error {
			cp := append([]byte(nil), buf...)
			f.received = append(f.received, cp)
			return nil
		},
		OnFileComplete: func(name string, transferred int64, d time.Duration) {
			f.completed = append(f.completed, name)
		},
	}
	f.engine = New(DefaultConfig(), cb, NoopLogger{}, func(buf []byte) error {
		cp := append([]byte(nil), buf...)
		f.written = append(f.written, cp)
		return nil
	})
	return f
}

func (f *sessionFixture) lastWritten() []byte {
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

// Scenario 1: clean one-file transfer, spec §8.
func TestScenarioCleanTransferFull(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.engine.Feed(senderZRQINIT())
	require.NoError(t, err)
	assert.Equal(t, ZMR_START, f.engine.State())

	_, err = f.engine.Feed(senderZFileHeader(0, 0))
	require.NoError(t, err)
	_, err = f.engine.Feed(senderFileInfoSubpacket("hi.txt", 5))
	require.NoError(t, err)
	assert.Equal(t, ZMR_READREADY, f.engine.State())

	_, err = f.engine.Feed(senderZDataHeader(0))
	require.NoError(t, err)
	_, err = f.engine.Feed(senderDataSubpacket([]byte("hello"), ZCRCE))
	require.NoError(t, err)

	require.Len(t, f.received, 1)
	assert.Equal(t, []byte("hello"), f.received[0])
	assert.Equal(t, ZMR_READREADY, f.engine.State())

	_, err = f.engine.Feed(senderZEOF(5))
	require.NoError(t, err)
	assert.Equal(t, ZMR_START, f.engine.State())

	_, err = f.engine.Feed(senderZFIN())
	require.NoError(t, err)
	assert.Equal(t, ZMR_FINISH, f.engine.State())

	status, err := f.engine.Feed(senderOOTrailer)
	require.NoError(t, err)
	assert.Equal(t, ZM_XFRDONE, status)
	assert.Equal(t, ZMR_DONE, f.engine.State())
}

// Scenario 2: bad data CRC recovers without calling OnReceive.
func TestScenarioBadDataCRCRecovers(t *testing.T) {
	f := newSessionFixture(t)
	_, _ = f.engine.Feed(senderZRQINIT())
	_, _ = f.engine.Feed(senderZFileHeader(0, 0))
	_, _ = f.engine.Feed(senderFileInfoSubpacket("hi.txt", 5))
	_, _ = f.engine.Feed(senderZDataHeader(0))

	bad := senderDataSubpacket([]byte("hello"), ZCRCE)
	bad[len(bad)-1] ^= 0xFF
	_, err := f.engine.Feed(bad)
	require.NoError(t, err)

	assert.Empty(t, f.received, "on_receive must not be called on bad CRC")
	assert.Equal(t, ZMR_READREADY, f.engine.State())

	// sender retransmits
	_, err = f.engine.Feed(senderZDataHeader(0))
	require.NoError(t, err)
	_, err = f.engine.Feed(senderDataSubpacket([]byte("hello"), ZCRCE))
	require.NoError(t, err)
	require.Len(t, f.received, 1)
	assert.Equal(t, []byte("hello"), f.received[0])
}

// Scenario 3: offset mismatch triggers resync, no data delivered.
func TestScenarioOffsetMismatchResync(t *testing.T) {
	f := newSessionFixture(t)
	_, _ = f.engine.Feed(senderZRQINIT())
	_, _ = f.engine.Feed(senderZFileHeader(0, 0))
	_, _ = f.engine.Feed(senderFileInfoSubpacket("hi.txt", 5))
	require.Equal(t, ZMR_READREADY, f.engine.State())

	_, err := f.engine.Feed(senderZDataHeader(100))
	require.NoError(t, err)

	assert.Empty(t, f.received)
	assert.Equal(t, ZMR_READREADY, f.engine.State())
}

// Scenario 4: a cancel stream aborts the session.
func TestScenarioCancelAborts(t *testing.T) {
	f := newSessionFixture(t)
	_, _ = f.engine.Feed(senderZRQINIT())

	status, err := f.engine.Feed([]byte{CAN, CAN, CAN, CAN, CAN})
	assert.Error(t, err)
	assert.Equal(t, ECANCELED, err)
	_ = status
}

// Scenario 6: two files back-to-back, no leaked state between them.
func TestScenarioTwoFilesBackToBack(t *testing.T) {
	f := newSessionFixture(t)
	_, _ = f.engine.Feed(senderZRQINIT())
	_, _ = f.engine.Feed(senderZFileHeader(0, 0))
	_, _ = f.engine.Feed(senderFileInfoSubpacket("one.txt", 5))
	_, _ = f.engine.Feed(senderZDataHeader(0))
	_, _ = f.engine.Feed(senderDataSubpacket([]byte("hello"), ZCRCE))
	_, _ = f.engine.Feed(senderZEOF(5))
	assert.Equal(t, ZMR_START, f.engine.State())

	_, err := f.engine.Feed(senderZFileHeader(0, 0))
	require.NoError(t, err)
	_, err = f.engine.Feed(senderFileInfoSubpacket("two.txt", 6))
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.engine.sess.offset, "offset must reset for the new file")

	_, err = f.engine.Feed(senderZDataHeader(0))
	require.NoError(t, err)
	_, err = f.engine.Feed(senderDataSubpacket([]byte("second"), ZCRCW))
	require.NoError(t, err)

	require.Len(t, f.received, 2)
	assert.Equal(t, []byte("hello"), f.received[0])
	assert.Equal(t, []byte("second"), f.received[1])

	_, err = f.engine.Feed(senderZFIN())
	require.NoError(t, err)
	status, err := f.engine.Feed(senderOOTrailer)
	require.NoError(t, err)
	assert.Equal(t, ZM_XFRDONE, status)
}

// A header that fails its CRC check must draw a ZNAK reply, per spec
// §4.4.3, not just get logged and dropped.
func TestGarbageHeaderDrawsZNAK(t *testing.T) {
	f := newSessionFixture(t)

	wire := buildBinHeader(false, ZRINIT, Header{1, 2, 3, 4})
	wire[len(wire)-1] ^= 0x01 // flip a CRC bit

	_, err := f.engine.Feed(wire)
	require.NoError(t, err)

	require.NotEmpty(t, f.written)
	assert.Equal(t, buildHexHeader(ZNAK, Header{}), f.lastWritten())
}

func TestFilePromptDeclineSkipsFile(t *testing.T) {
	f := newSessionFixture(t)
	cb := &Callbacks{
		OnFilePrompt: func(name string, size int64, mode os.FileMode) (bool, error) {
			return false, nil
		},
	}
	f.engine = New(DefaultConfig(), cb, NoopLogger{}, func(buf []byte) error {
		f.written = append(f.written, append([]byte(nil), buf...))
		return nil
	})

	_, _ = f.engine.Feed(senderZRQINIT())
	_, _ = f.engine.Feed(senderZFileHeader(0, 0))
	_, err := f.engine.Feed(senderFileInfoSubpacket("skip.txt", 5))
	require.NoError(t, err)
	assert.Equal(t, ZMR_START, f.engine.State())
}
