package desktop

import (
	"sync"
	"syscall"
)

// fakeTable is an in-memory process table for tests.
type fakeTable struct {
	mu      sync.Mutex
	procs   map[int][]string
	killed  map[int]int
	pidsErr error
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		procs:  make(map[int][]string),
		killed: make(map[int]int),
	}
}

func (ft *fakeTable) add(pid int, cmdline ...string) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.procs[pid] = cmdline
}

func (ft *fakeTable) alive(pid int) bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	_, ok := ft.procs[pid]
	return ok
}

func (ft *fakeTable) killCount(pid int) int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.killed[pid]
}

func (ft *fakeTable) Pids() ([]int, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.pidsErr != nil {
		return nil, ft.pidsErr
	}
	pids := make([]int, 0, len(ft.procs))
	for pid := range ft.procs {
		pids = append(pids, pid)
	}
	return pids, nil
}

func (ft *fakeTable) Cmdline(pid int) ([]string, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	args, ok := ft.procs[pid]
	if !ok {
		return nil, syscall.ESRCH
	}
	return args, nil
}

func (ft *fakeTable) Signal(pid int, sig syscall.Signal) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if _, ok := ft.procs[pid]; !ok {
		return syscall.ESRCH
	}
	if sig == syscall.SIGKILL {
		delete(ft.procs, pid)
		ft.killed[pid]++
	}
	return nil
}

// fakeSpawner records spawns and registers the "process" in a
// fakeTable so probes and reaps observe it.
type fakeSpawner struct {
	mu      sync.Mutex
	table   *fakeTable
	nextPID int
	failOn  map[Role]error
	order   []Role
	onSpawn func(Role)
}

func newFakeSpawner(table *fakeTable) *fakeSpawner {
	return &fakeSpawner{
		table:   table,
		nextPID: 50_000_000, // above any real pid, so self-exclusion never hides a fake
		failOn:  make(map[Role]error),
	}
}

func (fs *fakeSpawner) Spawn(spec ProcessSpec) (int, error) {
	fs.mu.Lock()
	if err := fs.failOn[spec.Role]; err != nil {
		fs.mu.Unlock()
		return 0, err
	}
	fs.nextPID++
	pid := fs.nextPID
	fs.order = append(fs.order, spec.Role)
	hook := fs.onSpawn
	fs.mu.Unlock()

	fs.table.add(pid, append([]string{spec.Executable}, spec.Args...)...)
	if hook != nil {
		hook(spec.Role)
	}
	return pid, nil
}

func (fs *fakeSpawner) spawnedOrder() []Role {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]Role{}, fs.order...)
}
