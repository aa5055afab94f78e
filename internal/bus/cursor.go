package bus

import "github.com/mnunberg/busfs/internal/cancel"

// cursor is a reader's position within a Bus: the slot index it is
// consuming, the serial it expects to find there (used to detect
// rollover), and the byte offset already returned from that slot.
type cursor struct {
	idx         int
	serial      uint64
	offset      int
	nonblocking bool
}

// newCursor positions a fresh cursor at the oldest still-retained
// message, so a reader that has just opened the bus starts from the
// earliest content still in the ring rather than from whatever slot is
// currently being written.
func newCursor(b *Bus, nonblocking bool) *cursor {
	b.bufMu.RLock()
	idx := b.oldestLocked()
	c := &cursor{
		idx:         idx,
		serial:      b.slots[idx].serial,
		nonblocking: nonblocking,
	}
	b.bufMu.RUnlock()
	return c
}

// oldestLocked finds the oldest still-retained slot: the one right after
// curIdx if the ring has wrapped, or else the first non-empty slot found
// scanning forward from there. Callers must hold bufMu (shared or
// exclusive).
func (b *Bus) oldestLocked() int {
	n := len(b.slots)

	idx := ((b.curIdx-(n-1))%n + n) % n
	if b.slots[idx].size > 0 {
		return idx
	}

	for i := 1; i < n; i++ {
		j := (idx + i) % n
		if b.slots[j].size > 0 {
			return j
		}
	}

	return b.curIdx
}

// advanceLocked moves a cursor to the next slot, but only if that slot's
// serial is exactly one past the cursor's current serial. Anything else
// means there is no next message yet, or the ring has wrapped again since.
// Callers must hold bufMu.
func (b *Bus) advanceLocked(idx int, serial uint64) (nextIdx int, nextSerial uint64, ok bool) {
	n := len(b.slots)
	nxt := (idx + 1) % n

	if b.slots[nxt].serial-serial == 1 {
		return nxt, b.slots[nxt].serial, true
	}

	return idx, serial, false
}

// read checks whether the cursor's current slot has anything unread; if
// not it waits for a change. Otherwise it detects rollover (the slot was
// reused since the cursor last looked at it, repositioning to the oldest
// retained message) and then copies as much as fits into dst, advancing
// across slot boundaries as needed.
func (c *cursor) read(b *Bus, dst []byte, token cancel.Token) (int, error) {
	for {
		b.bufMu.RLock()
		msg := b.slots[c.idx]

		if msg.serial == c.serial && msg.size == c.offset {
			snapSerial, snapSize := b.nextSerial, msg.size
			b.bufMu.RUnlock()

			if c.nonblocking {
				return 0, ErrWouldBlock
			}

			if err := waitForChange(b, c.idx, snapSerial, snapSize, token); err != nil {
				return 0, err
			}

			// waitForChange can also wake because the bus was unlinked
			// with no writers left, independent of any new data. If
			// nothing actually changed, this is completion, not a
			// spurious wakeup to retry from the top.
			if b.hasNoWriters() {
				newSerial, newSize := b.snapshot(c.idx)
				if newSerial == snapSerial && newSize == snapSize {
					return 0, nil
				}
			}

			continue
		}

		if msg.serial != c.serial {
			// Rollover: the slot this cursor pointed at has been reused.
			oidx := b.oldestLocked()
			c.idx = oidx
			c.serial = b.slots[oidx].serial
			c.offset = 0
		}

		produced := 0
		for produced < len(dst) {
			cur := b.slots[c.idx]
			avail := cur.size - c.offset

			if avail == 0 {
				nidx, nserial, ok := b.advanceLocked(c.idx, c.serial)
				if !ok {
					break
				}
				c.idx, c.serial, c.offset = nidx, nserial, 0
				continue
			}

			n := len(dst) - produced
			if n > avail {
				n = avail
			}
			copy(dst[produced:produced+n], cur.data[c.offset:c.offset+n])
			c.offset += n
			produced += n
		}

		b.bufMu.RUnlock()

		if produced == 0 {
			return 0, ErrWouldBlock
		}

		return produced, nil
	}
}
