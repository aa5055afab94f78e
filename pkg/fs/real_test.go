package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func Test_RealFS_Exists_Returns_False_When_Path_Does_Not_Exist(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()

	exists, err := fs.Exists(filepath.Join(dir, "does-not-exist.txt"))

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, false; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_Exists_Returns_True_When_Path_Is_A_File(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.txt")

	// Create file
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	exists, err := fs.Exists(path)

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, true; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_Exists_Returns_True_When_Path_Is_A_Directory(t *testing.T) {
	fs := NewReal()
	dir := t.TempDir()
	subdir := filepath.Join(dir, "subdir")

	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	exists, err := fs.Exists(subdir)

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, true; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_Xattr_RoundTrips(t *testing.T) {
	real := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")

	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	const attr = "user.busfs.test"

	if err := real.Setxattr(path, attr, []byte("v1"), 0); err != nil {
		t.Skipf("xattr unsupported on this filesystem: %v", err)
	}

	got, err := real.Getxattr(path, attr)
	if err != nil {
		t.Fatalf("Getxattr: %v", err)
	}

	if string(got) != "v1" {
		t.Fatalf("Getxattr=%q, want %q", got, "v1")
	}

	names, err := real.Listxattr(path)
	if err != nil {
		t.Fatalf("Listxattr: %v", err)
	}

	found := false

	for _, n := range names {
		if n == attr {
			found = true
		}
	}

	if !found {
		t.Fatalf("Listxattr=%v, want to contain %q", names, attr)
	}

	if err := real.Removexattr(path, attr); err != nil {
		t.Fatalf("Removexattr: %v", err)
	}
}

func Test_RealFS_Mkdir_Symlink_Readlink(t *testing.T) {
	real := NewReal()
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")

	if err := real.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	if err := real.Mkdir(sub, 0755); err == nil {
		t.Fatalf("Mkdir: want error on existing dir")
	}

	link := filepath.Join(dir, "link")
	if err := real.Symlink(sub, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	target, err := real.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}

	if target != sub {
		t.Fatalf("Readlink=%q, want %q", target, sub)
	}

	info, err := real.Lstat(link)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}

	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("Lstat mode=%v, want symlink bit set", info.Mode())
	}
}

func Test_RealFS_Chtimes_SetsModTime(t *testing.T) {
	real := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")

	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	want := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := real.Chtimes(path, time.Time{}, want); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	info, err := real.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if !info.ModTime().Equal(want) {
		t.Fatalf("ModTime=%v, want %v", info.ModTime(), want)
	}
}

func Test_RealFS_Statfs_ReportsBlockSize(t *testing.T) {
	real := NewReal()
	dir := t.TempDir()

	info, err := real.Statfs(dir)
	if err != nil {
		t.Fatalf("Statfs: %v", err)
	}

	if info.BlockSize <= 0 {
		t.Fatalf("BlockSize=%d, want > 0", info.BlockSize)
	}
}

func Test_RealFS_Truncate_ShrinksFile(t *testing.T) {
	real := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")

	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := real.Truncate(path, 5); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	info, err := real.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if got, want := info.Size(), int64(5); got != want {
		t.Fatalf("size=%d, want=%d", got, want)
	}
}
