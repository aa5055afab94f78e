package bus

import (
	"sync"
	"time"
)

// initialSerial is the serial a freshly created Bus starts counting from.
// Starting above zero makes a zero serial recognizable as "never
// initialized" in diagnostics and snapshots.
const initialSerial uint64 = 0x100

// DefaultRingSize and DefaultSlotCapacity are the package's out-of-the-box
// ring dimensions, used whenever a caller doesn't supply its own Options.
const (
	DefaultRingSize     = 1024
	DefaultSlotCapacity = 256
	DefaultDelim        = '\n'
)

// Bus is one named message stream: a bounded ring of slots, a monotonic
// serial, and the synchronization primitives the append/read/wait
// protocols rely on.
type Bus struct {
	capacity int
	delim    byte

	// bufMu guards slots, curIdx, and nextSerial (the "buf lock").
	bufMu      sync.RWMutex
	slots      []slot
	curIdx     int
	nextSerial uint64
	mtime      time.Time

	// changeMu + changeCh implement the wait/broadcast protocol: waiters
	// snapshot changeCh and select on it; every append or unlink closes
	// the current channel (waking every blocked selector, like a
	// condition variable's Broadcast) and installs a fresh one. This is
	// never held together with bufMu; unlike a sync.Cond, it composes
	// with select so a waiter can also watch a cancellation channel and
	// a timeout in the same statement.
	changeMu sync.Mutex
	changeCh chan struct{}

	// refsMu guards the role counts, refcount, and unlinked (the "refs
	// lock").
	refsMu      sync.Mutex
	readerCount int
	writerCount int
	refcount    int
	unlinked    bool

	// pathMu guards path, which Registry.Rename mutates in place so the
	// Bus's own path field always agrees with its current registry key.
	pathMu sync.Mutex
	path   string
}

// Options configures a new Bus. Zero values fall back to the package
// defaults.
type Options struct {
	RingSize     int
	SlotCapacity int
	Delim        byte
}

func (o Options) withDefaults() Options {
	if o.RingSize <= 0 {
		o.RingSize = DefaultRingSize
	}
	if o.SlotCapacity <= 0 {
		o.SlotCapacity = DefaultSlotCapacity
	}
	if o.Delim == 0 {
		o.Delim = DefaultDelim
	}
	return o
}

// New creates a Bus for path with N slots of the given capacity. The Bus
// is not registered anywhere; callers go through Registry.Get to both
// create and register one atomically.
func New(path string, opts Options) *Bus {
	opts = opts.withDefaults()

	b := &Bus{
		capacity:   opts.SlotCapacity,
		delim:      opts.Delim,
		slots:      newSlots(opts.RingSize, opts.SlotCapacity),
		nextSerial: initialSerial,
		path:       path,
		mtime:      time.Now(),
		changeCh:   make(chan struct{}),
	}
	b.slots[0].serial = b.nextSerial

	return b
}

// Path returns the Bus's current path.
func (b *Bus) Path() string {
	b.pathMu.Lock()
	defer b.pathMu.Unlock()
	return b.path
}

func (b *Bus) setPath(p string) {
	b.pathMu.Lock()
	b.path = p
	b.pathMu.Unlock()
}

// Mtime returns the time of the last successful append.
func (b *Bus) Mtime() time.Time {
	b.bufMu.RLock()
	defer b.bufMu.RUnlock()
	return b.mtime
}

// N returns the ring size; Capacity returns the per-slot byte capacity.
// Both are advisory sizing figures reported to callers that stat a bus.
func (b *Bus) N() int        { return len(b.slots) }
func (b *Bus) Capacity() int { return b.capacity }

// Append copies data into the current slot, scanning for delimiter bytes
// and rotating to the next slot on each one. A message that would exceed
// a slot's capacity is truncated to capacity-1 bytes followed by a
// synthetic delimiter; the byte at the clip point is dropped, and any
// bytes after it start the next message. It never fails under normal
// operation; the writer never blocks on reader progress.
func (b *Bus) Append(data []byte) int {
	b.bufMu.Lock()

	for _, in := range data {
		cur := &b.slots[b.curIdx]

		write := in
		if cur.size >= b.capacity-1 {
			// Truncation rule: clip to capacity-1 and force a synthetic
			// delimiter. The original byte is dropped.
			cur.size = b.capacity - 1
			write = b.delim
		}

		cur.data[cur.size] = write
		cur.size++

		if write == b.delim {
			b.nextSerial++
			b.curIdx = (b.curIdx + 1) % len(b.slots)
			next := &b.slots[b.curIdx]
			next.serial = b.nextSerial
			next.size = 0
		}
	}

	b.mtime = time.Now()
	b.bufMu.Unlock()

	b.broadcast()

	return len(data)
}

// broadcast wakes every waiter blocked in waitForChange by closing the
// current change channel and installing a fresh one.
func (b *Bus) broadcast() {
	b.changeMu.Lock()
	close(b.changeCh)
	b.changeCh = make(chan struct{})
	b.changeMu.Unlock()
}

// changeSignal returns the channel to select on for the next broadcast.
func (b *Bus) changeSignal() <-chan struct{} {
	b.changeMu.Lock()
	defer b.changeMu.Unlock()
	return b.changeCh
}

// snapshot captures (nextSerial, slot size at idx) for the wait protocol's
// wake-condition check.
func (b *Bus) snapshot(idx int) (serial uint64, size int) {
	b.bufMu.RLock()
	defer b.bufMu.RUnlock()
	return b.nextSerial, b.slots[idx].size
}

func (b *Bus) hasNoWriters() bool {
	b.refsMu.Lock()
	defer b.refsMu.Unlock()
	return b.unlinked && b.writerCount == 0
}

func (b *Bus) isUnlinked() bool {
	b.refsMu.Lock()
	defer b.refsMu.Unlock()
	return b.unlinked
}

func (b *Bus) markUnlinked() {
	b.refsMu.Lock()
	b.unlinked = true
	b.refsMu.Unlock()

	// Wake every blocked reader so they can observe the new unlinked
	// state.
	b.broadcast()
}

// addRef/release implement the refcount/role bookkeeping used by
// Registry.Get/Release. destroyed reports whether the Bus should be torn
// down: true once refcount reaches zero and the path has been unlinked.
func (b *Bus) addRef(writer bool) {
	b.refsMu.Lock()
	b.refcount++
	if writer {
		b.writerCount++
	} else {
		b.readerCount++
	}
	b.refsMu.Unlock()
}

func (b *Bus) release(writer bool) (destroyed bool) {
	b.refsMu.Lock()

	b.refcount--
	if writer {
		b.writerCount--
	} else {
		b.readerCount--
	}

	destroyed = b.refcount == 0 && b.unlinked
	noWritersLeft := writer && b.writerCount == 0
	b.refsMu.Unlock()

	if noWritersLeft {
		// A writer releasing may have been the last one; wake readers
		// blocked on "no more writers" so they can observe completion.
		b.broadcast()
	}

	return destroyed
}

// Counts returns the current reader/writer/ref counts, used by
// Registry.Range for busfsd's stats snapshot.
func (b *Bus) Counts() (readers, writers, refs int, unlinked bool) {
	b.refsMu.Lock()
	defer b.refsMu.Unlock()
	return b.readerCount, b.writerCount, b.refcount, b.unlinked
}
