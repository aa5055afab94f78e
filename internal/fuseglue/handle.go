package fuseglue

import (
	"context"
	"syscall"

	fusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/mnunberg/busfs/internal/bus"
	"github.com/mnunberg/busfs/internal/cancel"
)

// fileHandle adapts a bus.Handle (Reader or Writer) to the fs package's
// per-open FileHandle interfaces. offset is ignored throughout: a bus has
// no addressable byte offset, only "the next unread message", so every
// Read/Write call advances the Handle's own cursor rather than dst's off
// argument.
type fileHandle struct {
	h bus.Handle
}

var (
	_ fusefs.FileHandle   = (*fileHandle)(nil)
	_ fusefs.FileReader   = (*fileHandle)(nil)
	_ fusefs.FileWriter   = (*fileHandle)(nil)
	_ fusefs.FileReleaser = (*fileHandle)(nil)
	_ fusefs.FileFsyncer  = (*fileHandle)(nil)
)

// Read drives the Wait/Interrupt protocol via a cancel.Token derived from
// ctx: the kernel cancels ctx when it delivers FUSE_INTERRUPT for this
// request, so a blocked read unblocks as soon as the caller is
// interrupted, without any signal handler or thread-local state.
func (fh *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	tok := cancel.FromContext(ctx)
	defer tok.Release()

	n, err := fh.h.Read(dest, tok)
	if err != nil {
		return fuse.ReadResultData(nil), busErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (fh *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := fh.h.Write(data)
	if err != nil {
		return 0, busErrno(err)
	}
	return uint32(n), 0
}

func (fh *fileHandle) Release(ctx context.Context) syscall.Errno {
	return busErrno(fh.h.Release())
}

// Fsync is a no-op: a Bus holds nothing but in-memory ring slots, so there
// is nothing to flush.
func (fh *fileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return 0
}
