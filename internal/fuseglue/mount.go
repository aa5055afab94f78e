package fuseglue

import (
	fusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/mnunberg/busfs/internal/bus"
	busfsfs "github.com/mnunberg/busfs/pkg/fs"
)

// MountOptions configures a busfs mount: where it appears, which real
// directory backs its metadata, and the Bus parameters new buses are
// created with.
type MountOptions struct {
	Mountpoint string
	RealRoot   string
	BusOptions bus.Options
	Debug      bool
	AllowOther bool
}

// Mount builds the node tree rooted at opts.RealRoot and mounts it at
// opts.Mountpoint, returning the running fuse.Server and the Registry the
// caller can use for out-of-band introspection (e.g. cmd/busfsd's stats
// snapshot).
func Mount(real busfsfs.FS, opts MountOptions) (*fuse.Server, *bus.Registry, error) {
	reg := bus.NewRegistry()

	root, err := NewRoot(real, opts.RealRoot, reg, opts.BusOptions)
	if err != nil {
		return nil, nil, err
	}

	server, err := fusefs.Mount(opts.Mountpoint, root, &fusefs.Options{
		MountOptions: fuse.MountOptions{
			FsName:     "busfs",
			Name:       "busfs",
			Debug:      opts.Debug,
			AllowOther: opts.AllowOther,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	return server, reg, nil
}
