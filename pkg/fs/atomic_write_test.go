package fs_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/mnunberg/busfs/pkg/fs"
)

func TestAtomicWriteFile_VisibleAfterWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	real := fs.NewReal()
	writer := fs.NewAtomicWriter(real)

	const content = "hello"

	path := filepath.Join(dir, "final.txt")

	if err := writer.WriteWithDefaults(path, strings.NewReader(content)); err != nil {
		t.Fatalf("WriteWithDefaults: %v", err)
	}

	got, err := real.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != content {
		t.Fatalf("content=%q, want %q", string(got), content)
	}
}
