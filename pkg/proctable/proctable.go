// Package proctable provides read access to the OS process table and
// signal delivery to individual processes. It is the only layer that
// touches /proc directly; everything above it works against the Table
// interface so tests can substitute a fake.
package proctable

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Table is the surface the supervisor, reaper and prober need from the
// process table. Pids and Cmdline are read-only; Signal is the only
// mutating operation.
type Table interface {
	// Pids returns all process IDs currently in the process table.
	Pids() ([]int, error)

	// Cmdline returns the argument vector of a process. Processes that
	// exit between Pids and Cmdline return an error, not a panic.
	Cmdline(pid int) ([]string, error)

	// Signal delivers sig to pid. Signal 0 probes for existence.
	Signal(pid int, sig syscall.Signal) error
}

// ProcTable reads the real process table from /proc.
type ProcTable struct {
	root string
}

// New returns a ProcTable backed by /proc.
func New() *ProcTable {
	return &ProcTable{root: "/proc"}
}

// NewWithRoot returns a ProcTable rooted at dir. Used by tests that
// build a synthetic /proc layout.
func NewWithRoot(dir string) *ProcTable {
	return &ProcTable{root: dir}
}

// Pids lists all numeric entries under the proc root.
func (t *ProcTable) Pids() ([]int, error) {
	entries, err := os.ReadDir(t.root)
	if err != nil {
		return nil, fmt.Errorf("read process table: %w", err)
	}

	var pids []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}

	return pids, nil
}

// Cmdline reads /proc/<pid>/cmdline. Arguments are null-separated.
func (t *ProcTable) Cmdline(pid int) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(t.root, strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return nil, fmt.Errorf("read cmdline for pid %d: %w", pid, err)
	}

	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) == 1 && parts[0] == "" {
		return nil, nil
	}
	return parts, nil
}

// Signal delivers sig to pid via the OS.
func (t *ProcTable) Signal(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return process.Signal(sig)
}

// Alive reports whether pid exists in the process table. Signal 0 is
// delivered without side effects; EPERM still means the process exists.
func Alive(t Table, pid int) bool {
	if pid <= 0 {
		return false
	}
	err := t.Signal(pid, syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}

// FindByName returns the pids whose command line contains name,
// excluding the calling process. Matching against the full command
// line rather than just argv[0] catches interpreter-launched programs
// (websockify runs as "python3 /usr/bin/websockify ...").
func FindByName(t Table, name string) ([]int, error) {
	pids, err := t.Pids()
	if err != nil {
		return nil, err
	}

	self := os.Getpid()
	var matched []int
	for _, pid := range pids {
		if pid == self {
			continue
		}
		args, err := t.Cmdline(pid)
		if err != nil {
			// Process exited between listing and reading.
			continue
		}
		if cmdlineMatches(args, name) {
			matched = append(matched, pid)
		}
	}

	return matched, nil
}

func cmdlineMatches(args []string, name string) bool {
	for _, arg := range args {
		if filepath.Base(arg) == name || strings.Contains(arg, name) {
			return true
		}
	}
	return false
}
