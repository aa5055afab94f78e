package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrAtomicWriteDirSync indicates the parent directory could not be synced
// after the rename. The new file is in place but its directory entry may
// not survive a crash. Callers that only need atomic visibility (a reader
// polling the file never sees a torn write) can ignore it with
// errors.Is(err, ErrAtomicWriteDirSync); busfsd's stats snapshot does.
var ErrAtomicWriteDirSync = errors.New("dir sync")

// AtomicWriter publishes files via write-to-temp-then-rename, so a
// concurrent reader of the destination path always sees either the old
// content or the new content, never a partial write. It operates through
// an [FS], which lets the same code path run against [Real] in production
// and [Chaos] under fault injection.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter returns an AtomicWriter backed by fsys.
// Panics if fsys is nil.
func NewAtomicWriter(fsys FS) *AtomicWriter {
	if fsys == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fsys}
}

// AtomicWriteOptions configures Write.
type AtomicWriteOptions struct {
	// SyncDir syncs the parent directory after the rename. Default true.
	SyncDir bool

	// Perm is the published file's mode. Must be non-zero; the temp file
	// is chmod'd to it explicitly so the result is umask-independent.
	Perm os.FileMode
}

// DefaultOptions returns the options WriteWithDefaults uses.
func (*AtomicWriter) DefaultOptions() AtomicWriteOptions {
	return AtomicWriteOptions{
		SyncDir: true,
		Perm:    0o644,
	}
}

// WriteWithDefaults writes r's content to path atomically using DefaultOptions.
func (w *AtomicWriter) WriteWithDefaults(path string, r io.Reader) error {
	return w.Write(path, r, w.DefaultOptions())
}

// Write copies reader into a temp file in path's directory, syncs it,
// renames it over path, and (per opts.SyncDir) syncs the directory.
//
// A failed directory sync returns an error satisfying
// errors.Is(err, ErrAtomicWriteDirSync); every earlier failure removes the
// temp file before returning.
func (w *AtomicWriter) Write(path string, reader io.Reader, opts AtomicWriteOptions) error {
	if reader == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == string(os.PathSeparator) || base == "." {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}
	dir = filepath.Clean(dir)

	tmp, tmpPath, err := w.createTemp(dir, base, opts.Perm)
	if err != nil {
		return err
	}

	if err := w.fillTemp(tmp, tmpPath, reader, opts.Perm); err != nil {
		return errors.Join(err, w.discardTemp(tmp, tmpPath))
	}

	if err := w.fs.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("rename: %w", err), w.discardTemp(tmp, tmpPath))
	}

	closeErr := tmp.Close()

	if opts.SyncDir {
		if err := w.syncDir(dir); err != nil {
			return errors.Join(err, closeErr)
		}
	}

	// The rename already landed; a close error on the temp handle doesn't
	// undo publication.
	return nil
}

// fillTemp chmods the temp file, copies the payload in, and syncs it. The
// chmod happens before the content lands so the file never becomes visible
// (post-rename) with the wrong mode.
func (w *AtomicWriter) fillTemp(tmp File, tmpPath string, reader io.Reader, perm os.FileMode) error {
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file %q: %w", tmpPath, err)
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		return fmt.Errorf("write temp file %q: %w", tmpPath, err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file %q: %w", tmpPath, err)
	}

	return nil
}

// discardTemp closes and removes a temp file that will not be published.
func (w *AtomicWriter) discardTemp(tmp File, tmpPath string) error {
	var errs []error

	if err := tmp.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close temp file %q: %w", tmpPath, err))
	}

	if err := w.fs.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("remove temp file %q: %w", tmpPath, err))
	}

	return errors.Join(errs...)
}

const atomicWriteMaxAttempts = 10000

// atomicWriteCounter makes concurrent writers in one process pick distinct
// temp names without coordinating through the filesystem.
var atomicWriteCounter atomic.Uint64

func (w *AtomicWriter) createTemp(dir, base string, perm os.FileMode) (File, string, error) {
	for range atomicWriteMaxAttempts {
		seq := atomicWriteCounter.Add(1)
		tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, seq))

		f, err := w.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return f, tmpPath, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

func (w *AtomicWriter) syncDir(dir string) error {
	d, err := w.fs.Open(dir)
	if err != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("open dir %q: %w", dir, err))
	}

	syncErr := d.Sync()
	closeErr := d.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("close dir %q: %w", dir, closeErr)
	}

	if syncErr != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("%q: %w", dir, syncErr), closeErr)
	}

	return closeErr
}
