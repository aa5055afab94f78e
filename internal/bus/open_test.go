package bus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mnunberg/busfs/internal/cancel"
)

func TestOpen_WriterHandleRejectsRead(t *testing.T) {
	r := NewRegistry()

	// Open itself never sees a combined read/write flag (the host layer
	// resolves mode before calling it); this test pins the role-exclusive
	// contract at the Handle level instead: a writer handle can never
	// read.
	wh, err := Open(r, "/p", true, true, false)
	require.NoError(t, err)

	_, err = wh.Read(make([]byte, 1), cancel.Background())
	require.ErrorIs(t, err, ErrBadHandle)
}

func TestHandle_OperationsFailAfterRelease(t *testing.T) {
	r := NewRegistry()

	wh, err := Open(r, "/p", true, true, false)
	require.NoError(t, err)
	rh, err := Open(r, "/p", false, false, true)
	require.NoError(t, err)

	require.NoError(t, wh.Release())
	require.NoError(t, rh.Release())

	_, err = wh.Write([]byte("x\n"))
	require.ErrorIs(t, err, ErrClosed)

	_, err = rh.Read(make([]byte, 1), cancel.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestOpenWithOptions_SizesFreshBus(t *testing.T) {
	r := NewRegistry()

	h, err := OpenWithOptions(r, "/p", true, true, false, Options{RingSize: 4, SlotCapacity: 8, Delim: '\n'})
	require.NoError(t, err)
	w := h.(*WriterHandle)

	require.Equal(t, 4, w.bus.N())
	require.Equal(t, 8, w.bus.Capacity())
}

func TestOpenWithOptions_IgnoredWhenBusAlreadyExists(t *testing.T) {
	r := NewRegistry()

	_, err := OpenWithOptions(r, "/p", true, true, false, Options{RingSize: 4, SlotCapacity: 8})
	require.NoError(t, err)

	h2, err := OpenWithOptions(r, "/p", false, false, false, Options{RingSize: 99, SlotCapacity: 99})
	require.NoError(t, err)

	r2 := h2.(*ReaderHandle)
	require.Equal(t, 4, r2.bus.N())
}
