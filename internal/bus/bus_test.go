package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppend_ReturnsInputLength(t *testing.T) {
	b := New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})

	n := b.Append([]byte("abc\n"))

	require.Equal(t, 4, n)
}

func TestAppend_AdvancesSerialOncePerDelimiter(t *testing.T) {
	b := New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})

	start := b.nextSerial
	b.Append([]byte("m1\nm2\nm3\n"))

	require.Equal(t, start+3, b.nextSerial)
}

// capacity=8 means a message longer than 7 bytes is clipped to 7 bytes
// followed by a synthetic delimiter. The trailing "9\n" after the
// clipped point forms a second, genuine message, so the total serial
// advance for this single append is 2: one for the real trailing
// delimiter, one for the truncation-forced delimiter.
func TestAppend_TruncatesOversizedMessage(t *testing.T) {
	b := New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})

	start := b.nextSerial
	b.Append([]byte("123456789\n")) // 10 bytes > capacity-1 (7)

	require.Equal(t, start+2, b.nextSerial)

	truncated := b.slots[(b.curIdx-2+2*len(b.slots))%len(b.slots)]
	require.Equal(t, "1234567\n", string(truncated.data[:truncated.size]))

	trailing := b.slots[(b.curIdx-1+len(b.slots))%len(b.slots)]
	require.Equal(t, "9\n", string(trailing.data[:trailing.size]))
}

func TestAppend_TruncationDropsOriginalOverflowByte(t *testing.T) {
	b := New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})

	b.Append([]byte("1234567X\n")) // X would overflow; must not appear anywhere

	for i := range b.slots {
		require.NotContains(t, string(b.slots[i].data[:b.slots[i].size]), "X")
	}

	truncated := b.slots[(b.curIdx-2+2*len(b.slots))%len(b.slots)]
	require.Equal(t, "1234567\n", string(truncated.data[:truncated.size]))
}

func TestLifecycle_FreshBusStartsAtInitialSerial(t *testing.T) {
	b := New("/p", Options{})
	require.Equal(t, initialSerial, b.nextSerial)
}

func TestCounts_ReflectsAddRefAndRelease(t *testing.T) {
	b := New("/p", Options{})

	b.addRef(false)
	b.addRef(true)

	readers, writers, refs, unlinked := b.Counts()
	require.Equal(t, 1, readers)
	require.Equal(t, 1, writers)
	require.Equal(t, 2, refs)
	require.False(t, unlinked)

	destroyed := b.release(true)
	require.False(t, destroyed, "still has a reader ref outstanding")

	b.markUnlinked()
	destroyed = b.release(false)
	require.True(t, destroyed, "refcount reached zero after unlink")
}
