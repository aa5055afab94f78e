package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Get_AbsentWithoutCreate(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("/missing", GetOptions{})
	require.False(t, ok)
}

func TestRegistry_Get_CreatesAndReturnsSameBus(t *testing.T) {
	r := NewRegistry()

	b1, ok := r.Get("/p", GetOptions{Create: true})
	require.True(t, ok)

	b2, ok := r.Get("/p", GetOptions{})
	require.True(t, ok)
	require.Same(t, b1, b2)
}

// After rename, the old key resolves to absent and the new key resolves
// to the same Bus.
func TestRegistry_Rename_Atomicity(t *testing.T) {
	r := NewRegistry()

	b, _ := r.Get("/old", GetOptions{Create: true})
	r.Rename(b, "/new")

	_, ok := r.Get("/old", GetOptions{})
	require.False(t, ok)

	got, ok := r.Get("/new", GetOptions{})
	require.True(t, ok)
	require.Same(t, b, got)
	require.Equal(t, "/new", b.Path())
}

// After unlink and release of every handle, the Bus is destroyed; a
// fresh open of the same path yields a new Bus with next_serial back at
// the initial value.
func TestRegistry_Lifecycle_UnlinkThenRecreate(t *testing.T) {
	r := NewRegistry()

	b, _ := r.Get("/p", GetOptions{Create: true, Increment: true})
	b.Append([]byte("hello\n"))

	unlinked, ok := r.Unlink("/p")
	require.True(t, ok)
	require.Same(t, b, unlinked)

	destroyed := false
	r.Release(b, false) // Increment above was for a reader role by default
	_, stillThere := r.Get("/p", GetOptions{})
	require.False(t, stillThere, "unlinked path no longer resolves")

	readers, writers, refs, isUnlinked := b.Counts()
	destroyed = refs == 0 && isUnlinked
	require.True(t, destroyed)
	require.Equal(t, 0, readers)
	require.Equal(t, 0, writers)

	fresh, ok := r.Get("/p", GetOptions{Create: true})
	require.True(t, ok)
	require.NotSame(t, b, fresh)
	require.Equal(t, initialSerial, fresh.nextSerial)
}

// Unlinking the old name after a rename must not mark the renamed Bus
// unlinked: only the current name refers to it.
func TestRegistry_Unlink_StaleNameAfterRename(t *testing.T) {
	r := NewRegistry()

	b, _ := r.Get("/old", GetOptions{Create: true})
	r.Rename(b, "/new")

	_, ok := r.Unlink("/old")
	require.False(t, ok)
	require.False(t, b.isUnlinked())

	unlinked, ok := r.Unlink("/new")
	require.True(t, ok)
	require.Same(t, b, unlinked)
	require.True(t, b.isUnlinked())
}

func TestRegistry_Unlink_AbsentPathReturnsFalse(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Unlink("/never-created")
	require.False(t, ok)
}
