// Package main implements busfsd, the daemon that mounts a busfs
// filesystem: files under the mountpoint behave as bounded ring-buffer
// message buses, with everything else delegated to a real backing
// directory.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/mnunberg/busfs/internal/bus"
	"github.com/mnunberg/busfs/internal/config"
	"github.com/mnunberg/busfs/internal/fuseglue"
	busfsfs "github.com/mnunberg/busfs/pkg/fs"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "busfsd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("busfsd", flag.ContinueOnError)

	flagConfig := fs.StringP("config", "c", "", "Load settings from `file` (JSON with comments)")
	flagMountpoint := fs.StringP("mountpoint", "m", "", "Directory to mount busfs on")
	flagRealRoot := fs.String("realfs-root", "", "Host directory backing metadata operations")
	flagLogFile := fs.String("logfile", "", "Append daemon log messages to `file`")
	flagRingSize := fs.Int("ring-size", 0, "Slots per bus (0: use config/default)")
	flagSlotCap := fs.Int("slot-capacity", 0, "Bytes per slot (0: use config/default)")
	flagDebug := fs.Bool("debug", false, "Enable FUSE request debug logging")
	flagAllowOther := fs.Bool("allow-other", false, "Allow other users to access the mount")
	flagStatsFile := fs.String("stats-file", "", "Periodically snapshot bus stats to `file` (disabled if empty)")
	flagStatsEvery := fs.Duration("stats-interval", 5*time.Second, "Stats snapshot interval")
	flagChaosSeed := fs.Int64("chaos-seed", 0, "Nonzero: wrap the host filesystem in a fault-injecting decorator seeded with this value, for resilience testing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: busfsd [options]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if *flagMountpoint != "" {
		cfg.Mountpoint = *flagMountpoint
	}
	if *flagRealRoot != "" {
		cfg.RealFSRoot = *flagRealRoot
	}
	if *flagLogFile != "" {
		cfg.LogFile = *flagLogFile
	}
	if *flagRingSize != 0 {
		cfg.RingSize = *flagRingSize
	}
	if *flagSlotCap != 0 {
		cfg.SlotCapacity = *flagSlotCap
	}
	if fs.Changed("debug") {
		cfg.Debug = *flagDebug
	}
	if fs.Changed("allow-other") {
		cfg.AllowOther = *flagAllowOther
	}

	if cfg.Mountpoint == "" {
		fs.Usage()
		return fmt.Errorf("a mountpoint is required (-m or config's \"mountpoint\")")
	}

	logf, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open logfile %s: %w", cfg.LogFile, err)
	}
	defer logf.Close()

	logger := log.New(logf, "busfsd: ", log.LstdFlags)
	logger.Printf("starting up, realfs=%s mountpoint=%s ring=%d slot=%d",
		cfg.RealFSRoot, cfg.Mountpoint, cfg.RingSize, cfg.SlotCapacity)

	var real busfsfs.FS = busfsfs.NewReal()
	if *flagChaosSeed != 0 {
		chaos := busfsfs.NewChaos(real, *flagChaosSeed, &busfsfs.ChaosConfig{TraceCapacity: 256})
		logger.Printf("chaos fault injection enabled, seed=%d", *flagChaosSeed)
		real = chaos
	}

	if err := real.MkdirAll(cfg.RealFSRoot, 0o755); err != nil {
		return fmt.Errorf("create realfs root %s: %w", cfg.RealFSRoot, err)
	}

	server, reg, err := fuseglue.Mount(real, fuseglue.MountOptions{
		Mountpoint: cfg.Mountpoint,
		RealRoot:   cfg.RealFSRoot,
		BusOptions: cfg.BusOptions(),
		Debug:      cfg.Debug,
		AllowOther: cfg.AllowOther,
	})
	if err != nil {
		return fmt.Errorf("mount %s: %w", cfg.Mountpoint, err)
	}

	logger.Printf("mounted on %s", cfg.Mountpoint)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()

	var stopStats chan struct{}
	if *flagStatsFile != "" {
		stopStats = make(chan struct{})
		writer := busfsfs.NewAtomicWriter(real)
		go snapshotStatsLoop(reg, writer, *flagStatsFile, *flagStatsEvery, stopStats, logger)
	}

	select {
	case sig := <-sigCh:
		logger.Printf("received %s, unmounting", sig)
		if err := server.Unmount(); err != nil {
			logger.Printf("unmount error: %v", err)
		}
	case <-done:
	}

	if stopStats != nil {
		close(stopStats)
	}

	<-done
	logger.Printf("shut down")

	return nil
}

// snapshotStatsLoop periodically writes a human-readable summary of every
// open bus to path, using an atomic temp-file-plus-rename write so a reader
// polling the file never observes a torn snapshot.
func snapshotStatsLoop(reg *bus.Registry, writer *busfsfs.AtomicWriter, path string, every time.Duration, stop <-chan struct{}, logger *log.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := writeStatsSnapshot(reg, writer, path); err != nil {
				logger.Printf("stats snapshot: %v", err)
			}
		case <-stop:
			return
		}
	}
}

func writeStatsSnapshot(reg *bus.Registry, writer *busfsfs.AtomicWriter, path string) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# busfs stats snapshot, %s\n", time.Now().Format(time.RFC3339))

	reg.Range(func(p string, readers, writers, refs int, unlinked bool) {
		fmt.Fprintf(&buf, "%s\treaders=%d\twriters=%d\trefs=%d\tunlinked=%v\n", p, readers, writers, refs, unlinked)
	})

	// Only atomic visibility matters for the snapshot, not crash
	// durability, so a failed directory sync is not reported.
	err := writer.WriteWithDefaults(path, bytes.NewReader(buf.Bytes()))
	if errors.Is(err, busfsfs.ErrAtomicWriteDirSync) {
		return nil
	}
	return err
}
