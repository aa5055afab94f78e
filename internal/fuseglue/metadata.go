package fuseglue

import (
	"context"
	"errors"
	"os"
	"syscall"

	fusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/mnunberg/busfs/internal/bus"
)

var (
	_ fusefs.NodeGetxattrer    = (*node)(nil)
	_ fusefs.NodeSetxattrer    = (*node)(nil)
	_ fusefs.NodeListxattrer   = (*node)(nil)
	_ fusefs.NodeRemovexattrer = (*node)(nil)
	_ fusefs.NodeStatfser      = (*node)(nil)
)

// fillAttrOut populates out from a real backing directory os.FileInfo: the
// full mode (file type and permission bits), size, and mtime. Ino is left
// for the library to derive from the Inode's StableAttr (per the fs
// package's NodeGetattrer doc comment).
func fillAttrOut(out *fuse.Attr, s *shared, rel string, info os.FileInfo) {
	out.Mode = fuseMode(info)
	out.Size = uint64(info.Size())
	mtime := info.ModTime()
	out.SetTimes(nil, &mtime, nil)
}

// Getxattr, Setxattr, Listxattr, Removexattr are pure passthroughs to the
// real backing directory.
func (n *node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	data, err := n.shared.real.Getxattr(n.shared.hostPath(n.relPath), attr)
	if err != nil {
		return 0, toErrno(err)
	}
	if len(dest) < len(data) {
		return uint32(len(data)), syscall.ERANGE
	}
	copy(dest, data)
	return uint32(len(data)), 0
}

func (n *node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return toErrno(n.shared.real.Setxattr(n.shared.hostPath(n.relPath), attr, data, int(flags)))
}

func (n *node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	names, err := n.shared.real.Listxattr(n.shared.hostPath(n.relPath))
	if err != nil {
		return 0, toErrno(err)
	}

	var buf []byte
	for _, name := range names {
		buf = append(buf, name...)
		buf = append(buf, 0)
	}
	if len(dest) < len(buf) {
		return uint32(len(buf)), syscall.ERANGE
	}
	copy(dest, buf)
	return uint32(len(buf)), 0
}

func (n *node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return toErrno(n.shared.real.Removexattr(n.shared.hostPath(n.relPath), attr))
}

// Statfs reports the real backing directory's filesystem statistics;
// BlockSize here is the host filesystem's, distinct from the advisory
// blksize/blocks Getattr reports for a Bus.
func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	info, err := n.shared.real.Statfs(n.shared.hostPath(n.relPath))
	if err != nil {
		return toErrno(err)
	}

	out.Bsize = uint32(info.BlockSize)
	out.Blocks = info.Blocks
	out.Bfree = info.BlocksFree
	out.Bavail = info.BlocksAvail
	out.Files = info.Files
	out.Ffree = info.FilesFree
	out.NameLen = uint32(info.NameLen)

	return 0
}

// toErrno converts a pkg/fs (os-package-shaped) error into a syscall.Errno;
// any error from the underlying directory passes through as-is.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	return fusefs.ToErrno(err)
}

// busErrno maps the internal/bus sentinel errors onto the POSIX-style
// errno values FUSE callers expect.
func busErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, bus.ErrWouldBlock):
		return syscall.EAGAIN
	case errors.Is(err, bus.ErrInterrupted):
		return syscall.EINTR
	case errors.Is(err, bus.ErrBadHandle), errors.Is(err, bus.ErrClosed):
		return syscall.EBADF
	case errors.Is(err, bus.ErrInvalidMode):
		return syscall.EINVAL
	case errors.Is(err, bus.ErrNotFound):
		return syscall.ENOENT
	default:
		return syscall.EIO
	}
}
