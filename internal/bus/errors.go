package bus

import "errors"

var (
	// ErrWouldBlock is returned by a nonblocking reader when no new data
	// has arrived.
	ErrWouldBlock = errors.New("busfs: would block")

	// ErrInterrupted is returned by a blocking read that was cancelled
	// via its cancel.Token before new data arrived.
	ErrInterrupted = errors.New("busfs: interrupted")

	// ErrBadHandle is returned when a write is attempted on a reader
	// handle, or a read on a writer handle.
	ErrBadHandle = errors.New("busfs: bad file descriptor")

	// ErrInvalidMode stands for an open mode other than pure read-only or
	// pure write-only. Open takes the role as a bool and does not return
	// it; internal/fuseglue rejects such modes with EINVAL before calling
	// Open.
	ErrInvalidMode = errors.New("busfs: invalid argument")

	// ErrNotFound is returned by Open when path is not registered and
	// create was not requested.
	ErrNotFound = errors.New("busfs: not found")

	// ErrClosed is returned by operations on a handle that has already
	// been released.
	ErrClosed = errors.New("busfs: handle closed")
)
