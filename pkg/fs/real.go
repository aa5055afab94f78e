package fs

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Real implements [FS] using the real filesystem.
//
// Most methods are pure passthroughs to the [os] package with identical
// behavior and error semantics. The exceptions are [Real.Exists], which
// wraps [os.Stat], the xattr family, which calls [golang.org/x/sys/unix],
// and [Real.Statfs], which calls [syscall.Statfs]; these return errors as
// [*os.PathError].
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.Open].
func (r *Real) Open(path string) (File, error) {
	return os.Open(path)
}

// A passthrough wrapper for [os.Create].
func (r *Real) Create(path string) (File, error) {
	return os.Create(path)
}

// A passthrough wrapper for [os.OpenFile].
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// A passthrough wrapper for [os.ReadFile].
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile is a passthrough wrapper for [os.WriteFile].
func (r *Real) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// --- Directory Operations ---

// A passthrough wrapper for [os.ReadDir].
func (r *Real) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// A passthrough wrapper for [os.MkdirAll].
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// --- Metadata ---

// A passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Exists checks if a file exists using [os.Stat].
// Returns (true, nil) if the file exists, (false, nil) if it does not,
// or (false, err) for other errors.
func (r *Real) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// --- Mutations ---

// A passthrough wrapper for [os.Remove].
func (r *Real) Remove(path string) error {
	return os.Remove(path)
}

// A passthrough wrapper for [os.RemoveAll].
func (r *Real) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// A passthrough wrapper for [os.Rename].
func (r *Real) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// A passthrough wrapper for [os.Mkdir].
func (r *Real) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

// A passthrough wrapper for [os.Lstat].
func (r *Real) Lstat(path string) (os.FileInfo, error) {
	return os.Lstat(path)
}

// A passthrough wrapper for [os.Chmod].
func (r *Real) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

// A passthrough wrapper for [os.Lchown].
func (r *Real) Lchown(path string, uid, gid int) error {
	return os.Lchown(path, uid, gid)
}

// A passthrough wrapper for [os.Readlink].
func (r *Real) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

// A passthrough wrapper for [os.Symlink].
func (r *Real) Symlink(oldname, newname string) error {
	return os.Symlink(oldname, newname)
}

// Getxattr reads an extended attribute via [unix.Lgetxattr].
//
// Uses the L-variant so attributes are read from the link itself rather
// than a symlink target, matching lowlevel FUSE getxattr semantics.
func (r *Real) Getxattr(path, attr string) ([]byte, error) {
	size, err := unix.Lgetxattr(path, attr, nil)
	if err != nil {
		return nil, &os.PathError{Op: "getxattr", Path: path, Err: err}
	}

	if size == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, size)

	n, err := unix.Lgetxattr(path, attr, buf)
	if err != nil {
		return nil, &os.PathError{Op: "getxattr", Path: path, Err: err}
	}

	return buf[:n], nil
}

// Listxattr lists extended attribute names via [unix.Llistxattr].
func (r *Real) Listxattr(path string) ([]string, error) {
	size, err := unix.Llistxattr(path, nil)
	if err != nil {
		return nil, &os.PathError{Op: "listxattr", Path: path, Err: err}
	}

	if size == 0 {
		return nil, nil
	}

	buf := make([]byte, size)

	n, err := unix.Llistxattr(path, buf)
	if err != nil {
		return nil, &os.PathError{Op: "listxattr", Path: path, Err: err}
	}

	return splitXattrNames(buf[:n]), nil
}

// Setxattr sets an extended attribute via [unix.Lsetxattr].
func (r *Real) Setxattr(path, attr string, data []byte, flags int) error {
	if err := unix.Lsetxattr(path, attr, data, flags); err != nil {
		return &os.PathError{Op: "setxattr", Path: path, Err: err}
	}

	return nil
}

// Removexattr removes an extended attribute via [unix.Lremovexattr].
func (r *Real) Removexattr(path, attr string) error {
	if err := unix.Lremovexattr(path, attr); err != nil {
		return &os.PathError{Op: "removexattr", Path: path, Err: err}
	}

	return nil
}

// Statfs reports filesystem statistics via [syscall.Statfs].
func (r *Real) Statfs(path string) (StatfsInfo, error) {
	var st syscall.Statfs_t

	if err := syscall.Statfs(path, &st); err != nil {
		return StatfsInfo{}, &os.PathError{Op: "statfs", Path: path, Err: err}
	}

	return StatfsInfo{
		BlockSize:   st.Bsize,
		Blocks:      st.Blocks,
		BlocksFree:  st.Bfree,
		BlocksAvail: st.Bavail,
		Files:       st.Files,
		FilesFree:   st.Ffree,
		NameLen:     int64(st.Namelen),
	}, nil
}

// A passthrough wrapper for [os.Truncate].
func (r *Real) Truncate(path string, size int64) error {
	return os.Truncate(path, size)
}

// A passthrough wrapper for [os.Chtimes].
func (r *Real) Chtimes(path string, atime, mtime time.Time) error {
	return os.Chtimes(path, atime, mtime)
}

// splitXattrNames splits a NUL-separated attribute name list, as returned
// by [unix.Llistxattr], into individual strings.
func splitXattrNames(buf []byte) []string {
	var names []string

	start := 0

	for i, b := range buf {
		if b == 0 {
			if i > start {
				names = append(names, string(buf[start:i]))
			}

			start = i + 1
		}
	}

	return names
}

// Compile-time interface check.
var _ FS = (*Real)(nil)
