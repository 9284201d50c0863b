package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	f := pid.New(dir)

	require.NoError(t, f.Write())

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, f.Remove())
	assert.NoFileExists(t, f.Path())

	// Removing twice is fine.
	require.NoError(t, f.Remove())
}

func TestWriteOwnFileAgain(t *testing.T) {
	f := pid.New(t.TempDir())
	require.NoError(t, f.Write())
	require.NoError(t, f.Write())
}

func TestWriteAlreadyRunning(t *testing.T) {
	f := pid.New(t.TempDir())
	// The parent of the test binary is alive for the duration of the test.
	require.NoError(t, os.WriteFile(f.Path(), []byte(strconv.Itoa(os.Getppid())), 0o600))

	err := f.Write()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteStaleFile(t *testing.T) {
	f := pid.New(t.TempDir())
	require.NoError(t, os.WriteFile(f.Path(), []byte("not-a-pid"), 0o600))

	require.NoError(t, f.Write())
}

func TestDefaultDir(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), "irrigatectl.pid"), pid.New("").Path())
}
