// Package fs abstracts the real backing directory that busfs delegates
// its metadata operations to: every stat, chmod, mkdir, readlink, xattr,
// and statfs request on the mount acts on a host path through the [FS]
// interface rather than the os package directly.
//
// The main types are:
//   - [FS]: the operation set the FUSE passthrough layer needs
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation over the [os] package
//   - [Chaos]: fault-injecting decorator for resilience testing
//   - [AtomicWriter]: temp-file-plus-rename publisher for sidecar files
//
// The daemon wires [Real] (optionally wrapped in [Chaos]) into the mount
// at startup; everything above this package is indifferent to which one
// it got.
package fs

import (
	"io"
	"os"
	"time"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File]. The intent is os-like
// behavior: implementations must behave like [os.File], including that
// [File.Fd] returns a valid OS file descriptor usable with syscalls until
// the file is closed.
//
// Note: [File] includes [io.Writer] even for read-only handles. Like
// [os.File], implementations should return an error from Write when the
// file wasn't opened for writing.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	// Embedded interfaces from [io] package.
	// These provide Read, Write, Close, and Seek methods.
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	// Used for low-level operations like [syscall.Flock].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS is the host-directory operation set the mount's passthrough layer
// is built on. Every method mirrors its [os] package equivalent; the
// xattr family and [FS.Statfs] exist because FUSE exposes them and the
// os package does not.
//
// Implementations in this package: [Real] for production, [Chaos] for
// fault-injection testing.
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	// The returned [File] can be used with [bufio], [io], and other stdlib packages.
	Open(path string) (File, error)

	// Create creates or truncates a file for writing. See [os.Create].
	// The file is created with mode 0666 (before umask).
	Create(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	// Use this for fine-grained control (append, exclusive create, etc).
	//
	// Common flags: [os.O_RDONLY], [os.O_WRONLY], [os.O_RDWR],
	// [os.O_APPEND], [os.O_CREATE], [os.O_EXCL], [os.O_TRUNC].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	// For large files, prefer [FS.Open] with streaming reads.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary. See [os.WriteFile].
	// The file is created with the specified permissions (before umask) if it
	// doesn't exist, or truncated if it does.
	//
	// Note: WriteFile is not atomic or durable. Errors or crashes can leave a
	// partially written or empty file. For durability, use [FS.OpenFile] with
	// explicit [File.Sync] before [File.Close].
	WriteFile(path string, data []byte, perm os.FileMode) error

	// ReadDir reads a directory and returns its entries. See [os.ReadDir].
	// Entries are sorted by name.
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	// No error if the directory already exists.
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	// For recursive deletion, use [FS.RemoveAll].
	Remove(path string) error

	// RemoveAll deletes a path and any children. See [os.RemoveAll].
	// No error if path doesn't exist.
	RemoveAll(path string) error

	// Rename moves/renames a file or directory. See [os.Rename].
	// Atomic on the same filesystem.
	Rename(oldpath, newpath string) error

	// Mkdir creates a single directory. See [os.Mkdir].
	// Unlike [FS.MkdirAll], returns an error if the parent is missing or
	// the directory already exists.
	Mkdir(path string, perm os.FileMode) error

	// Lstat returns file info without following a trailing symlink.
	// See [os.Lstat].
	Lstat(path string) (os.FileInfo, error)

	// Chmod changes the permission bits of a path. See [os.Chmod].
	Chmod(path string, mode os.FileMode) error

	// Lchown changes the owner and group of a path without following a
	// trailing symlink. See [os.Lchown].
	Lchown(path string, uid, gid int) error

	// Readlink returns the target of a symbolic link. See [os.Readlink].
	Readlink(path string) (string, error)

	// Symlink creates newname as a symbolic link to oldname. See [os.Symlink].
	Symlink(oldname, newname string) error

	// Getxattr returns the value of an extended attribute.
	Getxattr(path, attr string) ([]byte, error)

	// Listxattr returns the names of all extended attributes set on path.
	Listxattr(path string) ([]string, error)

	// Setxattr sets an extended attribute on path.
	Setxattr(path, attr string, data []byte, flags int) error

	// Removexattr removes an extended attribute from path.
	Removexattr(path, attr string) error

	// Chtimes changes the access and modification times of a path. See
	// [os.Chtimes]; a zero time.Time leaves that timestamp unchanged.
	Chtimes(path string, atime, mtime time.Time) error

	// Statfs returns filesystem-level statistics for the mount containing path.
	Statfs(path string) (StatfsInfo, error)

	// Truncate changes the size of a host file. See [os.Truncate].
	Truncate(path string, size int64) error
}

// StatfsInfo carries the subset of statfs(2) fields the host layer passes
// through to FUSE's statfs reply.
type StatfsInfo struct {
	BlockSize   int64
	Blocks      uint64
	BlocksFree  uint64
	BlocksAvail uint64
	Files       uint64
	FilesFree   uint64
	NameLen     int64
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
