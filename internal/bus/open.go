package bus

// Open resolves a Bus for path and wraps it in the Handle matching the
// requested role: only a pure reader or pure writer is constructed (no
// read-write handle exists). A Bus is obtained from r, creating it if
// create is set (i.e. the host file's own create call already
// succeeded), and the matching Handle is constructed, bumping the Bus's
// role count and refcount. New buses are sized with the package
// defaults; callers that need a configured ring size or slot capacity
// (e.g. cmd/busfsd, wired from internal/config) use OpenWithOptions
// instead.
func Open(r *Registry, path string, writer, create, nonblocking bool) (Handle, error) {
	return OpenWithOptions(r, path, writer, create, nonblocking, Options{})
}

// OpenWithOptions is Open, but a freshly created Bus uses opts instead of
// the package defaults.
func OpenWithOptions(r *Registry, path string, writer, create, nonblocking bool, opts Options) (Handle, error) {
	b, ok := r.Get(path, GetOptions{Create: create, BusOptions: opts})
	if !ok {
		return nil, ErrNotFound
	}

	if writer {
		return NewWriterHandle(b), nil
	}

	return NewReaderHandle(b, nonblocking), nil
}
