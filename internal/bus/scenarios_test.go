package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mnunberg/busfs/internal/cancel"
)

func newTestBus() *Bus {
	return New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})
}

func TestReader_SeesWriteAfterOpen(t *testing.T) {
	b := newTestBus()
	r := NewReaderHandle(b, true)

	b.Append([]byte("abc\n"))

	buf := make([]byte, 4)
	n, err := r.Read(buf, cancel.Background())
	require.NoError(t, err)
	require.Equal(t, "abc\n", string(buf[:n]))

	// No further writes: next read on the nonblocking handle must not
	// produce duplicate or phantom bytes.
	n2, err2 := r.Read(buf, cancel.Background())
	require.ErrorIs(t, err2, ErrWouldBlock)
	require.Equal(t, 0, n2)
}

// A reader may observe a prefix of an in-progress message split across
// two writes, but must never duplicate bytes, and the total bytes read
// once the message completes is 4.
func TestReader_SeesPartialMessageAcrossWrites(t *testing.T) {
	b := newTestBus()
	r := NewReaderHandle(b, true)

	b.Append([]byte("ab"))

	buf := make([]byte, 8)
	n1, err := r.Read(buf, cancel.Background())
	if err == ErrWouldBlock {
		n1 = 0
	} else {
		require.NoError(t, err)
		require.True(t, string(buf[:n1]) == "ab", "partial read must be a clean prefix")
	}

	b.Append([]byte("c\n"))

	total := n1
	for total < 4 {
		n, err := r.Read(buf, cancel.Background())
		if err == ErrWouldBlock {
			continue
		}
		require.NoError(t, err)
		total += n
	}

	require.Equal(t, 4, total)
}

// After the writer releases and the reader has drained the last write
// following an unlink, a blocking read returns completion rather than
// hanging.
func TestReader_SurvivesUnlinkAfterWriterReleases(t *testing.T) {
	reg := NewRegistry()

	wh, err := Open(reg, "/p", true, true, false)
	require.NoError(t, err)
	w := wh.(*WriterHandle)

	rh, err := Open(reg, "/p", false, false, false)
	require.NoError(t, err)
	r := rh.(*ReaderHandle)

	_, err = w.Write([]byte("x\n"))
	require.NoError(t, err)

	buf := make([]byte, 2)
	n, err := r.Read(buf, cancel.Background())
	require.NoError(t, err)
	require.Equal(t, "x\n", string(buf[:n]))

	_, ok := reg.Unlink("/p")
	require.True(t, ok)
	require.NoError(t, w.Release())

	// The reader has drained the last write and there are no writers
	// left: a further blocking read must return promptly (completion),
	// not hang.
	done := make(chan struct{})
	var n2 int
	var err2 error
	go func() {
		n2, err2 = r.Read(buf, cancel.Background())
		close(done)
	}()

	select {
	case <-done:
		require.NoError(t, err2)
		require.Equal(t, 0, n2)
	case <-time.After(time.Second):
		t.Fatal("blocking read hung after unlink with no writers left")
	}

	require.NoError(t, r.Release())
}
