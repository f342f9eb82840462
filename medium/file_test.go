package medium

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileBackedMediumSnapshotAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.nvm")

	fbm, err := OpenFileBacked(path, testParams(), Hooks{})
	require.NoError(t, err)

	require.NoError(t, fbm.Erase(0))
	payload := make([]byte, 256)
	payload[0] = 0x7A
	require.NoError(t, fbm.Write(0, payload))
	require.NoError(t, fbm.Snapshot())
	require.NoError(t, fbm.Close())

	reopened, err := OpenFileBacked(path, testParams(), Hooks{})
	require.NoError(t, err)
	defer reopened.Close()

	out, err := reopened.Read(0, 256)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestFileBackedMediumRejectsConcurrentOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.nvm")

	first, err := OpenFileBacked(path, testParams(), Hooks{})
	require.NoError(t, err)
	defer first.Close()

	_, err = OpenFileBacked(path, testParams(), Hooks{})
	require.ErrorIs(t, err, ErrMediumBusy)
}
