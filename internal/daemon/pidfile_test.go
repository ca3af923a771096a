package daemon

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID is a PID that almost certainly does not exist.
const deadPID = 999999

func TestPIDFile_WriteAndRead(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "test.pid"))

	require.NoError(t, pf.WritePID(12345))

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number\n"), 0o644))

	_, err := NewPIDFile(path).Read()
	assert.ErrorContains(t, err, "invalid PID file content")
}

func TestPIDFile_Acquire_CreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "nested", "server.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Acquire())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Acquire_ReplacesStale(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "server.pid"))
	require.NoError(t, pf.WritePID(deadPID))

	require.NoError(t, pf.Acquire())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Acquire_LiveOwner(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "server.pid"))
	ppid := os.Getppid()
	require.NoError(t, pf.WritePID(ppid))

	err := pf.Acquire()
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	pid, readErr := pf.Read()
	require.NoError(t, readErr)
	assert.Equal(t, ppid, pid)
}

func TestPIDFile_Release(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Acquire())
	require.NoError(t, pf.Release())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Missing file is not an error.
	assert.NoError(t, pf.Release())
}

func TestPIDFile_Release_OtherOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	pf := NewPIDFile(path)
	require.NoError(t, pf.WritePID(deadPID))

	require.NoError(t, pf.Release())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestPIDFile_IsRunning(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "server.pid"))

	pid, running := pf.IsRunning()
	assert.Equal(t, 0, pid)
	assert.False(t, running)

	require.NoError(t, pf.WritePID(deadPID))
	pid, running = pf.IsRunning()
	assert.Equal(t, deadPID, pid)
	assert.False(t, running)

	require.NoError(t, pf.Acquire())
	pid, running = pf.IsRunning()
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, running)
}

func TestPIDFile_Signal(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "server.pid"))

	err := pf.Signal(syscall.Signal(0))
	assert.ErrorContains(t, err, "read PID file")

	require.NoError(t, pf.Acquire())
	assert.NoError(t, pf.Signal(syscall.Signal(0)))
}
