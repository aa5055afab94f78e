package bus

import (
	"sync"
	"sync/atomic"

	"github.com/mnunberg/busfs/internal/cancel"
)

// Handle is the capability set exposed to a file-level caller (FUSE glue
// or the admin REPL): a Reader can Read but not Write, a Writer can Write
// but not Read. Keeping Reader and Writer as distinct types rather than
// one role-tagged Bus pointer makes a write on a read-only handle fail by
// construction instead of by a runtime role check.
type Handle interface {
	Read(dst []byte, token cancel.Token) (int, error)
	Write(src []byte) (int, error)
	Release() error
}

// ReaderHandle is a Handle opened for read-only access to a Bus.
type ReaderHandle struct {
	bus      *Bus
	cursor   *cursor
	once     sync.Once
	released atomic.Bool
}

// NewReaderHandle positions a fresh cursor at the oldest retained message
// and increments the Bus's reader count and refcount.
func NewReaderHandle(b *Bus, nonblocking bool) *ReaderHandle {
	b.addRef(false)
	return &ReaderHandle{bus: b, cursor: newCursor(b, nonblocking)}
}

func (h *ReaderHandle) Read(dst []byte, token cancel.Token) (int, error) {
	if h.released.Load() {
		return 0, ErrClosed
	}
	return h.cursor.read(h.bus, dst, token)
}

func (h *ReaderHandle) Write([]byte) (int, error) {
	return 0, ErrBadHandle
}

// Release decrements the Bus's reader count and refcount. Idempotent: a
// second call is a no-op, so every open is paired with exactly one
// effective release even if the caller releases twice.
func (h *ReaderHandle) Release() error {
	h.once.Do(func() {
		h.released.Store(true)
		h.bus.release(false)
	})
	return nil
}

// WriterHandle is a Handle opened for write-only access to a Bus.
type WriterHandle struct {
	bus      *Bus
	once     sync.Once
	released atomic.Bool
}

// NewWriterHandle increments the Bus's writer count and refcount.
func NewWriterHandle(b *Bus) *WriterHandle {
	b.addRef(true)
	return &WriterHandle{bus: b}
}

func (h *WriterHandle) Read([]byte, cancel.Token) (int, error) {
	return 0, ErrBadHandle
}

func (h *WriterHandle) Write(src []byte) (int, error) {
	if h.released.Load() {
		return 0, ErrClosed
	}
	return h.bus.Append(src), nil
}

// Release decrements the Bus's writer count and refcount. Idempotent, for
// the same reason as ReaderHandle.Release.
func (h *WriterHandle) Release() error {
	h.once.Do(func() {
		h.released.Store(true)
		h.bus.release(true)
	})
	return nil
}

var (
	_ Handle = (*ReaderHandle)(nil)
	_ Handle = (*WriterHandle)(nil)
)
