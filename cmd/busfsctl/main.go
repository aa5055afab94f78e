// busfsctl is an interactive REPL for poking at a mounted busfs
// filesystem during development and debugging: open, read, write, and
// tail bus files directly through the mountpoint, the same way any other
// process would.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/mnunberg/busfs/internal/cancel"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "busfsctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("busfsctl", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: busfsctl <mountpoint>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing mountpoint")
	}

	repl := &REPL{root: fs.Arg(0)}
	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	root  string
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".busfsctl_history")
}

func (r *REPL) resolve(rel string) string {
	return filepath.Join(r.root, rel)
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("busfsctl - busfs debug CLI (mount=%s)\n", r.root)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("busfsctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil

		case "help", "?":
			r.printHelp()

		case "touch", "create":
			r.cmdCreate(args)

		case "write", "put":
			r.cmdWrite(args)

		case "read", "get":
			r.cmdRead(args)

		case "tail":
			r.cmdTail(args)

		case "stat":
			r.cmdStat(args)

		case "rm", "unlink":
			r.cmdRemove(args)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"touch", "create", "write", "put", "read", "get",
		"tail", "stat", "rm", "unlink", "help", "exit", "quit", "q",
	}

	var completions []string
	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}
	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  touch <path>                Create a bus file (open for write, then close)")
	fmt.Println("  write <path> <message>      Append a message to a bus")
	fmt.Println("  read <path> [n]             Read up to n bytes (default 4096), blocking")
	fmt.Println("  tail <path>                 Poll for new messages until Ctrl-C")
	fmt.Println("  stat <path>                 Show size/mtime as reported by the mount")
	fmt.Println("  rm <path>                   Unlink a bus file")
	fmt.Println("  help                        Show this help")
	fmt.Println("  exit / quit / q             Exit")
}

func (r *REPL) cmdCreate(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: touch <path>")
		return
	}

	f, err := os.OpenFile(r.resolve(args[0]), os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	f.Close()
	fmt.Println("OK")
}

func (r *REPL) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: write <path> <message>")
		return
	}

	f, err := os.OpenFile(r.resolve(args[0]), os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		fmt.Printf("Error opening: %v\n", err)
		return
	}
	defer f.Close()

	msg := strings.Join(args[1:], " ")
	if _, err := f.Write([]byte(msg + "\n")); err != nil {
		fmt.Printf("Error writing: %v\n", err)
		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: read <path> [n]")
		return
	}

	n := 4096
	if len(args) >= 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Printf("Error parsing n: %v\n", err)
			return
		}
		n = v
	}

	f, err := os.Open(r.resolve(args[0]))
	if err != nil {
		fmt.Printf("Error opening: %v\n", err)
		return
	}
	defer f.Close()

	tok, stop := cancel.FromSignal(os.Interrupt)
	defer stop()

	buf := make([]byte, n)
	readN, err := readCancelable(tok, f, buf)
	if err != nil && !errors.Is(err, io.EOF) {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("%d bytes:\n", readN)
	printMessage(buf[:readN])
}

// cmdTail polls a bus file opened nonblocking until Ctrl-C, printing each
// message as it arrives. A nonblocking reader's EAGAIN (bus.ErrWouldBlock
// at the core, mapped to syscall.EAGAIN at the FUSE boundary) is the poll
// signal to retry on.
func (r *REPL) cmdTail(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tail <path>")
		return
	}

	f, err := os.OpenFile(r.resolve(args[0]), os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		fmt.Printf("Error opening: %v\n", err)
		return
	}
	defer f.Close()

	fmt.Println("Tailing, press Ctrl-C to stop.")

	tok, stop := cancel.FromSignal(os.Interrupt)
	defer stop()

	buf := make([]byte, 4096)

	for {
		select {
		case <-tok.Done():
			fmt.Println("\nStopped.")
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			fmt.Printf("Error: %v\n", err)
			return
		}

		printMessage(buf[:n])
	}
}

func (r *REPL) cmdStat(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: stat <path>")
		return
	}

	info, err := os.Stat(r.resolve(args[0]))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Size:  %d\n", info.Size())
	fmt.Printf("Mode:  %s\n", info.Mode())
	fmt.Printf("Mtime: %s\n", info.ModTime().Format(time.RFC3339))
}

func (r *REPL) cmdRemove(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: rm <path>")
		return
	}

	if err := os.Remove(r.resolve(args[0])); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("OK")
}

// printMessage shows a byte slice as text if printable, hex otherwise.
func printMessage(b []byte) {
	printable := true
	for _, c := range b {
		if c != '\n' && c != '\t' && (c < 32 || c > 126) {
			printable = false
			break
		}
	}

	if printable {
		fmt.Print(string(b))
		if len(b) > 0 && b[len(b)-1] != '\n' {
			fmt.Println()
		}
		return
	}

	fmt.Println(hex.EncodeToString(b))
}

// readCancelable performs a single blocking Read, returning early with
// tok.Err() if tok is canceled before the read completes. A plain blocking
// read on a regular file descriptor can't be interrupted from Go once
// issued, so this races the read against cancellation rather than aborting
// the syscall itself; a reader blocked on a bus file unblocks on its own
// once the daemon's wait loop observes the same signal-driven interrupt.
func readCancelable(tok cancel.Token, f *os.File, buf []byte) (int, error) {
	type result struct {
		n   int
		err error
	}

	ch := make(chan result, 1)
	go func() {
		n, err := f.Read(buf)
		ch <- result{n, err}
	}()

	select {
	case res := <-ch:
		return res.n, res.err
	case <-tok.Done():
		return 0, tok.Err()
	}
}
