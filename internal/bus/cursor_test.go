package bus

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/mnunberg/busfs/internal/cancel"
)

func readAll(t *testing.T, h *ReaderHandle, want int) []byte {
	t.Helper()

	out := make([]byte, 0, want)
	buf := make([]byte, want)

	for len(out) < want {
		n, err := h.Read(buf, cancel.Background())
		if err == ErrWouldBlock {
			continue
		}
		require.NoError(t, err)
		out = append(out, buf[:n]...)
	}

	return out
}

// messages splits a delivered byte stream into its delimiter-terminated
// messages, keeping the delimiter on each.
func messages(b []byte) []string {
	var out []string
	for _, m := range strings.SplitAfter(string(b), "\n") {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// A reader opened before any writes and kept current observes exactly
// the concatenation of everything written after it opened.
func TestCursor_DeliveryPrefix(t *testing.T) {
	b := New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})
	h := NewReaderHandle(b, true)

	want := []string{"m1\n", "m2\n", "m3\n"}
	for _, m := range want {
		b.Append([]byte(m))
	}

	got := readAll(t, h, len("m1\nm2\nm3\n"))
	if diff := cmp.Diff(want, messages(got)); diff != "" {
		t.Fatalf("delivered messages mismatch (-want +got):\n%s", diff)
	}
}

// While messages-since-observation stays <= N-1, the reader loses
// nothing.
func TestCursor_BoundedLag_NoLoss(t *testing.T) {
	b := New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})
	h := NewReaderHandle(b, true)

	// N=4, write N-1=3 messages: no slot has been overwritten yet.
	b.Append([]byte("a\n"))
	b.Append([]byte("b\n"))
	b.Append([]byte("c\n"))

	got := readAll(t, h, len("a\nb\nc\n"))
	require.Equal(t, "a\nb\nc\n", string(got))
}

// With N=4, writing 6 messages means the reader's original slots have
// been overwritten twice over; the next read must start at "m3\n" or
// later, never "m1\n"/"m2\n".
func TestCursor_OverflowRollover(t *testing.T) {
	b := New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})
	h := NewReaderHandle(b, true)

	for _, m := range []string{"m1\n", "m2\n", "m3\n", "m4\n", "m5\n", "m6\n"} {
		b.Append([]byte(m))
	}

	buf := make([]byte, 3)
	n, err := h.Read(buf, cancel.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)

	first := string(buf[:n])
	require.NotEqual(t, "m1\n", first)
	require.NotEqual(t, "m2\n", first)
	require.Contains(t, []string{"m3\n", "m4\n", "m5\n", "m6\n"}, first)
}

func TestCursor_Nonblocking_WouldBlock(t *testing.T) {
	b := New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})
	h := NewReaderHandle(b, true)

	buf := make([]byte, 8)
	n, err := h.Read(buf, cancel.Background())

	require.Equal(t, 0, n)
	require.ErrorIs(t, err, ErrWouldBlock)
}

func TestCursor_ReaderSeesTruncatedMessage(t *testing.T) {
	b := New("/p", Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})
	h := NewReaderHandle(b, true)

	b.Append([]byte("123456789\n"))

	buf := make([]byte, 8)
	n, err := h.Read(buf, cancel.Background())
	require.NoError(t, err)
	require.Equal(t, "1234567\n", string(buf[:n]))
}
