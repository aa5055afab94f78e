// Package bus implements the in-memory publish/subscribe core: a bounded
// ring of message slots per path, reader cursors that track position and
// detect rollover, a wait/interrupt protocol for blocking reads, and a
// path-keyed registry with reference-counted lifetime.
//
// Nothing in this package depends on FUSE; internal/fuseglue is the only
// caller and it only ever sees the Registry, Handle, ReaderHandle, and
// WriterHandle types.
package bus
