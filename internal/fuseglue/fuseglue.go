// Package fuseglue wires the in-memory bus registry (internal/bus) and the
// real-directory passthrough (pkg/fs) into a github.com/hanwen/go-fuse/v2/fs
// node tree.
//
// Every regular file under the mount is bus-backed: Lookup/Readdir/Mkdir/
// Rmdir/Symlink/xattr/chmod/chown all delegate straight to the real backing
// directory, while Open/Create/Read/Write/Release drive internal/bus.Registry
// and the per-handle Reader/Writer objects that implement the actual publish/
// subscribe semantics.
package fuseglue

import (
	"context"
	"os"
	"path"
	"syscall"
	"time"

	fusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/mnunberg/busfs/internal/bus"
	"github.com/mnunberg/busfs/pkg/fs"
)

// shared is the state every node in the tree needs: the real backing
// directory, the bus registry, and the Bus options new buses are created
// with. It is not itself an Inode; every node embeds a pointer to one.
type shared struct {
	real     fs.FS
	realRoot string
	reg      *bus.Registry
	busOpts  bus.Options
}

func (s *shared) hostPath(rel string) string {
	if rel == "" {
		return s.realRoot
	}
	return path.Join(s.realRoot, rel)
}

// busPath is the registry key for a mount-relative path. It is distinct from
// the host path so that renaming the real directory root never changes which
// Bus a given mount path resolves to.
func busPath(rel string) string {
	return "/" + rel
}

// node is the single InodeEmbedder type for every entry in the tree
// (directories, regular files, symlinks). Regular files are bus-backed;
// everything else is a pure passthrough to the real backing directory.
type node struct {
	fusefs.Inode

	shared  *shared
	relPath string // slash-separated, relative to the mount root; "" for root
}

// NewRoot returns the root node of a busfs mount. realRoot is the real
// backing directory that metadata operations delegate to; it is created
// if missing.
func NewRoot(real fs.FS, realRoot string, reg *bus.Registry, busOpts bus.Options) (fusefs.InodeEmbedder, error) {
	if err := real.MkdirAll(realRoot, 0o755); err != nil {
		return nil, err
	}
	return &node{shared: &shared{real: real, realRoot: realRoot, reg: reg, busOpts: busOpts}}, nil
}

func (n *node) child(rel string) *node {
	return &node{shared: n.shared, relPath: rel}
}

var (
	_ fusefs.InodeEmbedder  = (*node)(nil)
	_ fusefs.NodeLookuper   = (*node)(nil)
	_ fusefs.NodeReaddirer  = (*node)(nil)
	_ fusefs.NodeGetattrer  = (*node)(nil)
	_ fusefs.NodeSetattrer  = (*node)(nil)
	_ fusefs.NodeMkdirer    = (*node)(nil)
	_ fusefs.NodeRmdirer    = (*node)(nil)
	_ fusefs.NodeCreater    = (*node)(nil)
	_ fusefs.NodeUnlinker   = (*node)(nil)
	_ fusefs.NodeRenamer    = (*node)(nil)
	_ fusefs.NodeOpener     = (*node)(nil)
	_ fusefs.NodeSymlinker  = (*node)(nil)
	_ fusefs.NodeReadlinker = (*node)(nil)
	_ fusefs.NodeMknoder    = (*node)(nil)
	_ fusefs.NodeLinker     = (*node)(nil)
	_ fusefs.NodeAccesser   = (*node)(nil)
)

// Access always grants the requested mask; permission enforcement is the
// host directory's job via its own file modes, which Getattr already
// reports faithfully.
func (n *node) Access(ctx context.Context, mask uint32) syscall.Errno {
	return 0
}

// Lookup resolves a single path component against the real backing
// directory; the kind of Inode created (file, dir, symlink) mirrors the
// host entry's type.
func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	rel := path.Join(n.relPath, name)

	info, err := n.shared.real.Lstat(n.shared.hostPath(rel))
	if err != nil {
		return nil, toErrno(err)
	}

	fillAttrOut(&out.Attr, n.shared, rel, info)
	child := n.NewInode(ctx, n.child(rel), fusefs.StableAttr{Mode: fuseMode(info)})

	return child, 0
}

// Readdir lists the real backing directory's entries for this path. Bus
// content has nothing to do with directory structure, so this is a pure
// passthrough.
func (n *node) Readdir(ctx context.Context) (fusefs.DirStream, syscall.Errno) {
	entries, err := n.shared.real.ReadDir(n.shared.hostPath(n.relPath))
	if err != nil {
		return nil, toErrno(err)
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		mode := uint32(syscall.S_IFREG)
		if err == nil {
			mode = fuseMode(info)
		} else if e.IsDir() {
			mode = syscall.S_IFDIR
		}
		list = append(list, fuse.DirEntry{Name: e.Name(), Mode: mode})
	}

	return fusefs.NewListDirStream(list), 0
}

// Getattr reports bus-derived stats for a live bus (mtime = last append,
// blksize = slot capacity, blocks = N, size = N * slot capacity, all
// advisory) and falls back to the real backing directory for everything
// else, including a file that was never opened this process; bus
// content does not persist across restarts.
func (n *node) Getattr(ctx context.Context, f fusefs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if b, ok := n.shared.reg.Get(busPath(n.relPath), bus.GetOptions{}); ok {
		out.Attr.Mode = syscall.S_IFREG | 0o644
		out.Attr.Size = uint64(b.N()) * uint64(b.Capacity())
		out.Attr.Blksize = uint32(b.Capacity())
		out.Attr.Blocks = uint64(b.N())
		mtime := b.Mtime()
		out.Attr.SetTimes(nil, &mtime, nil)
		return 0
	}

	info, err := n.shared.real.Lstat(n.shared.hostPath(n.relPath))
	if err != nil {
		return toErrno(err)
	}
	fillAttrOut(&out.Attr, n.shared, n.relPath, info)
	return 0
}

// Setattr honors chmod/chown against the host entry unconditionally. Size
// (truncate) only applies to host files: a bus's "size" is the ring's
// advisory capacity, not addressable content, so truncate on a bus-backed
// path is accepted but otherwise ignored.
func (n *node) Setattr(ctx context.Context, f fusefs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	hostPath := n.shared.hostPath(n.relPath)

	if mode, ok := in.GetMode(); ok {
		if err := n.shared.real.Chmod(hostPath, os.FileMode(mode&0o7777)); err != nil {
			return toErrno(err)
		}
	}
	if uid, uok := in.GetUID(); uok {
		gid, gok := in.GetGID()
		if !gok {
			gid = ^uint32(0)
		}
		if err := n.shared.real.Lchown(hostPath, int(uid), int(gid)); err != nil {
			return toErrno(err)
		}
	}
	if size, ok := in.GetSize(); ok {
		if _, busBacked := n.shared.reg.Get(busPath(n.relPath), bus.GetOptions{}); !busBacked {
			if err := n.shared.real.Truncate(hostPath, int64(size)); err != nil {
				return toErrno(err)
			}
		}
	}
	atime, aok := in.GetATime()
	mtime, mok := in.GetMTime()
	if aok || mok {
		// os.Chtimes leaves a zero time.Time unchanged, which is exactly
		// the partial-update semantics utimensat's UTIME_OMIT provides.
		if !aok {
			atime = time.Time{}
		}
		if !mok {
			mtime = time.Time{}
		}
		if err := n.shared.real.Chtimes(hostPath, atime, mtime); err != nil {
			return toErrno(err)
		}
	}

	return n.Getattr(ctx, f, out)
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	rel := path.Join(n.relPath, name)
	if err := n.shared.real.Mkdir(n.shared.hostPath(rel), os.FileMode(mode)); err != nil {
		return nil, toErrno(err)
	}

	info, err := n.shared.real.Lstat(n.shared.hostPath(rel))
	if err != nil {
		return nil, toErrno(err)
	}
	fillAttrOut(&out.Attr, n.shared, rel, info)

	return n.NewInode(ctx, n.child(rel), fusefs.StableAttr{Mode: syscall.S_IFDIR}), 0
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return toErrno(n.shared.real.Remove(n.shared.hostPath(path.Join(n.relPath, name))))
}

// Create creates the backing host file and registers a fresh Bus for it
// (host-file create succeeded, so the registry Get is called with Create
// set).
func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fusefs.Inode, fusefs.FileHandle, uint32, syscall.Errno) {
	rel := path.Join(n.relPath, name)
	hostPath := n.shared.hostPath(rel)

	f, err := n.shared.real.OpenFile(hostPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(mode&0o7777))
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}
	f.Close()

	// Create always opens for write: it both creates the backing host
	// file and registers the Bus.
	h, err := bus.OpenWithOptions(n.shared.reg, busPath(rel), true, true, flags&syscall.O_NONBLOCK != 0, n.shared.busOpts)
	if err != nil {
		return nil, nil, 0, busErrno(err)
	}

	out.Attr.Mode = syscall.S_IFREG | 0o644
	child := n.NewInode(ctx, n.child(rel), fusefs.StableAttr{Mode: syscall.S_IFREG})

	// FOPEN_DIRECT_IO: a bus file's content is dynamic per the fs package's
	// own doc comment on FileHandle ("files whose contents are not tied to
	// an inode ... should return the FOPEN_DIRECT_IO flag"); the kernel
	// page cache would otherwise serve stale reads across opens.
	return child, &fileHandle{h: h}, fuse.FOPEN_DIRECT_IO, 0
}

// Open resolves the access mode and obtains (without creating) a Bus;
// only pure read-only or pure write-only is accepted.
func (n *node) Open(ctx context.Context, flags uint32) (fusefs.FileHandle, uint32, syscall.Errno) {
	writer, ok := accessMode(flags)
	if !ok {
		return nil, 0, syscall.EINVAL
	}

	h, err := bus.Open(n.shared.reg, busPath(n.relPath), writer, false, flags&syscall.O_NONBLOCK != 0)
	if err != nil {
		return nil, 0, busErrno(err)
	}

	return &fileHandle{h: h}, fuse.FOPEN_DIRECT_IO, 0
}

// Unlink removes the host file and marks the Bus unlinked; open handles
// remain valid until released.
func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	rel := path.Join(n.relPath, name)
	if err := n.shared.real.Remove(n.shared.hostPath(rel)); err != nil {
		return toErrno(err)
	}
	n.shared.reg.Unlink(busPath(rel))
	return 0
}

// Rename renames both the host file and the Bus registry key, resolving
// both the old and new mount-relative paths consistently before touching
// the host directory.
func (n *node) Rename(ctx context.Context, name string, newParent fusefs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	np, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}

	oldRel := path.Join(n.relPath, name)
	newRel := path.Join(np.relPath, newName)

	if err := n.shared.real.Rename(n.shared.hostPath(oldRel), n.shared.hostPath(newRel)); err != nil {
		return toErrno(err)
	}

	if b, ok := n.shared.reg.Get(busPath(oldRel), bus.GetOptions{}); ok {
		n.shared.reg.Rename(b, busPath(newRel))
	}

	return 0
}

func (n *node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	rel := path.Join(n.relPath, name)
	if err := n.shared.real.Symlink(target, n.shared.hostPath(rel)); err != nil {
		return nil, toErrno(err)
	}

	info, err := n.shared.real.Lstat(n.shared.hostPath(rel))
	if err != nil {
		return nil, toErrno(err)
	}
	fillAttrOut(&out.Attr, n.shared, rel, info)

	return n.NewInode(ctx, n.child(rel), fusefs.StableAttr{Mode: syscall.S_IFLNK}), 0
}

func (n *node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.shared.real.Readlink(n.shared.hostPath(n.relPath))
	if err != nil {
		return nil, toErrno(err)
	}
	return []byte(target), 0
}

// Mknod and Link are unsupported operations on this filesystem.
func (n *node) Mknod(ctx context.Context, name string, mode, dev uint32, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	return nil, syscall.EINVAL
}

func (n *node) Link(ctx context.Context, target fusefs.InodeEmbedder, name string, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	return nil, syscall.EINVAL
}

// accessMode resolves O_ACCMODE: only pure read-only or pure write-only
// is accepted.
func accessMode(flags uint32) (writer bool, ok bool) {
	switch flags & syscall.O_ACCMODE {
	case syscall.O_RDONLY:
		return false, true
	case syscall.O_WRONLY:
		return true, true
	default:
		return false, false
	}
}

func fuseMode(info os.FileInfo) uint32 {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return syscall.S_IFLNK | uint32(info.Mode().Perm())
	case info.IsDir():
		return syscall.S_IFDIR | uint32(info.Mode().Perm())
	default:
		return syscall.S_IFREG | uint32(info.Mode().Perm())
	}
}
