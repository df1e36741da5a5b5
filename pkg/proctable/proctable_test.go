package proctable

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProcEntry builds a /proc-style directory for one fake pid.
func writeProcEntry(t *testing.T, root string, pid int, args ...string) {
	t.Helper()

	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))

	cmdline := ""
	for _, arg := range args {
		cmdline += arg + "\x00"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmdline), 0o644))
}

func TestPids(t *testing.T) {
	root := t.TempDir()
	writeProcEntry(t, root, 100, "Xvfb", ":1")
	writeProcEntry(t, root, 250, "/usr/bin/x11vnc")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sys"), 0o755)) // non-numeric, skipped
	require.NoError(t, os.WriteFile(filepath.Join(root, "uptime"), []byte("1"), 0o644))

	table := NewWithRoot(root)
	pids, err := table.Pids()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{100, 250}, pids)
}

func TestPidsMissingRoot(t *testing.T) {
	table := NewWithRoot(filepath.Join(t.TempDir(), "nope"))
	_, err := table.Pids()
	assert.Error(t, err)
}

func TestCmdline(t *testing.T) {
	root := t.TempDir()
	writeProcEntry(t, root, 42, "Xvfb", ":1", "-screen", "0", "1280x720x24")

	table := NewWithRoot(root)
	args, err := table.Cmdline(42)
	require.NoError(t, err)
	assert.Equal(t, []string{"Xvfb", ":1", "-screen", "0", "1280x720x24"}, args)

	_, err = table.Cmdline(43)
	assert.Error(t, err)
}

func TestCmdlineEmpty(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "77")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), nil, 0o644))

	table := NewWithRoot(root)
	args, err := table.Cmdline(77)
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestFindByName(t *testing.T) {
	root := t.TempDir()
	writeProcEntry(t, root, 100, "Xvfb", ":1")
	writeProcEntry(t, root, 200, "/usr/bin/python3", "/usr/bin/websockify", "6080", "localhost:5900")
	writeProcEntry(t, root, 300, "bash")

	table := NewWithRoot(root)

	pids, err := FindByName(table, "Xvfb")
	require.NoError(t, err)
	assert.Equal(t, []int{100}, pids)

	pids, err = FindByName(table, "websockify")
	require.NoError(t, err)
	assert.Equal(t, []int{200}, pids)

	pids, err = FindByName(table, "x11vnc")
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestFindByNameExcludesSelf(t *testing.T) {
	root := t.TempDir()
	writeProcEntry(t, root, os.Getpid(), "Xvfb", ":1")

	table := NewWithRoot(root)
	pids, err := FindByName(table, "Xvfb")
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestRealTableSeesSelf(t *testing.T) {
	if _, err := os.Stat("/proc"); err != nil {
		t.Skip("no /proc on this platform")
	}

	table := New()
	pids, err := table.Pids()
	require.NoError(t, err)
	assert.Contains(t, pids, os.Getpid())

	args, err := table.Cmdline(os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, args)

	assert.True(t, Alive(table, os.Getpid()))
	assert.NoError(t, table.Signal(os.Getpid(), syscall.Signal(0)))
}

func TestAliveInvalidPid(t *testing.T) {
	table := New()
	assert.False(t, Alive(table, 0))
	assert.False(t, Alive(table, -5))
}
