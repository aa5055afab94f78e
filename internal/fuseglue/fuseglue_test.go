package fuseglue

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/mnunberg/busfs/internal/bus"
)

func Test_AccessMode_ReadOnly(t *testing.T) {
	writer, ok := accessMode(syscall.O_RDONLY)
	if !ok {
		t.Fatalf("ok=false, want true")
	}
	if writer {
		t.Fatalf("writer=true, want false")
	}
}

func Test_AccessMode_WriteOnly(t *testing.T) {
	writer, ok := accessMode(syscall.O_WRONLY)
	if !ok {
		t.Fatalf("ok=false, want true")
	}
	if !writer {
		t.Fatalf("writer=false, want true")
	}
}

func Test_AccessMode_ReadWrite_Rejected(t *testing.T) {
	_, ok := accessMode(syscall.O_RDWR)
	if ok {
		t.Fatalf("ok=true, want false for O_RDWR")
	}
}

func Test_AccessMode_PreservesOtherFlags(t *testing.T) {
	writer, ok := accessMode(syscall.O_WRONLY | syscall.O_NONBLOCK | syscall.O_CREAT)
	if !ok || !writer {
		t.Fatalf("writer=%v, ok=%v, want true, true", writer, ok)
	}
}

type fakeFileInfo struct {
	mode os.FileMode
}

func (f fakeFileInfo) Name() string      { return "fake" }
func (f fakeFileInfo) Size() int64       { return 0 }
func (f fakeFileInfo) Mode() os.FileMode { return f.mode }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool       { return f.mode.IsDir() }
func (f fakeFileInfo) Sys() any          { return nil }

func Test_FuseMode_RegularFile(t *testing.T) {
	info := fakeFileInfo{mode: 0o644}
	mode := fuseMode(info)
	if mode&syscall.S_IFREG == 0 {
		t.Fatalf("mode=%o, want S_IFREG bit set", mode)
	}
	if mode&0o777 != 0o644 {
		t.Fatalf("perm bits=%o, want 0644", mode&0o777)
	}
}

func Test_FuseMode_Directory(t *testing.T) {
	info := fakeFileInfo{mode: os.ModeDir | 0o755}
	mode := fuseMode(info)
	if mode&syscall.S_IFDIR == 0 {
		t.Fatalf("mode=%o, want S_IFDIR bit set", mode)
	}
}

func Test_FuseMode_Symlink(t *testing.T) {
	info := fakeFileInfo{mode: os.ModeSymlink | 0o777}
	mode := fuseMode(info)
	if mode&syscall.S_IFLNK == 0 {
		t.Fatalf("mode=%o, want S_IFLNK bit set", mode)
	}
}

func Test_ToErrno_Nil(t *testing.T) {
	if got := toErrno(nil); got != 0 {
		t.Fatalf("toErrno(nil)=%v, want 0", got)
	}
}

func Test_ToErrno_NotExist(t *testing.T) {
	err := &os.PathError{Op: "stat", Path: "x", Err: syscall.ENOENT}
	if got, want := toErrno(err), syscall.ENOENT; got != want {
		t.Fatalf("toErrno=%v, want %v", got, want)
	}
}

func Test_BusErrno_Nil(t *testing.T) {
	if got := busErrno(nil); got != 0 {
		t.Fatalf("busErrno(nil)=%v, want 0", got)
	}
}

func Test_BusErrno_Sentinels(t *testing.T) {
	cases := []struct {
		err  error
		want syscall.Errno
	}{
		{bus.ErrWouldBlock, syscall.EAGAIN},
		{bus.ErrInterrupted, syscall.EINTR},
		{bus.ErrBadHandle, syscall.EBADF},
		{bus.ErrClosed, syscall.EBADF},
		{bus.ErrInvalidMode, syscall.EINVAL},
		{bus.ErrNotFound, syscall.ENOENT},
	}

	for _, c := range cases {
		if got := busErrno(c.err); got != c.want {
			t.Fatalf("busErrno(%v)=%v, want %v", c.err, got, c.want)
		}
	}
}

func Test_BusErrno_SentinelTextWithoutWrapping(t *testing.T) {
	wrapped := errors.New("append: " + bus.ErrWouldBlock.Error())
	if got := busErrno(wrapped); got != syscall.EIO {
		t.Fatalf("busErrno(unwrapped-string)=%v, want EIO (no errors.Is match)", got)
	}
}

func Test_BusErrno_Unknown(t *testing.T) {
	if got := busErrno(errors.New("boom")); got != syscall.EIO {
		t.Fatalf("busErrno(unknown)=%v, want EIO", got)
	}
}

func Test_BusPath(t *testing.T) {
	cases := map[string]string{
		"":            "/",
		"a":           "/a",
		"a/b":         "/a/b",
		"dir/file.ext": "/dir/file.ext",
	}

	for rel, want := range cases {
		if got := busPath(rel); got != want {
			t.Fatalf("busPath(%q)=%q, want %q", rel, got, want)
		}
	}
}
