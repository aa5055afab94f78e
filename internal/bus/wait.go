package bus

import (
	"time"

	"github.com/mnunberg/busfs/internal/cancel"
)

// waitCycle bounds how long a blocked reader waits between re-checks: a
// periodic re-check guards against a missed wakeup and gives the
// cancellation check a bounded cadence even when no append ever occurs.
const waitCycle = 250 * time.Millisecond

// waitForChange blocks until the Bus's state has diverged from the
// snapshot taken at idx (snapSerial, snapSize), the Bus has been unlinked
// with no writers left, or token fires. The wake condition is:
//
//	bus.nextSerial != snapSerial || slots[idx].size != snapSize ||
//	    (bus.unlinked && bus.writerCount == 0)
//
// Callers must not hold bufMu when calling this.
func waitForChange(b *Bus, idx int, snapSerial uint64, snapSize int, token cancel.Token) error {
	for {
		if wakeConditionHolds(b, idx, snapSerial, snapSize) {
			return nil
		}

		select {
		case <-token.Done():
			return ErrInterrupted
		case <-b.changeSignal():
			// An append, unlink, or last-writer release broadcast;
			// re-check the wake condition at the top of the loop.
		case <-time.After(waitCycle):
			// Liveness hedge: re-check even with no broadcast.
		}
	}
}

func wakeConditionHolds(b *Bus, idx int, snapSerial uint64, snapSize int) bool {
	curSerial, curSize := b.snapshot(idx)
	if curSerial != snapSerial || curSize != snapSize {
		return true
	}
	return b.hasNoWriters()
}
