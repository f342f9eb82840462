package medium

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	natefinchatomic "github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// FileBackedMedium wraps a Medium whose backing array is mirrored to a
// host file between runs, so a simulated EEPROM's state can survive
// across process invocations (cmd/nvmdemo itself uses a plain
// in-memory Medium and does not open one). The in-memory Medium
// remains the hot path for Read/Write/Erase; the file is only touched
// on Load and Snapshot.
//
// A process-exclusive advisory lock guards the backing file so two
// demo processes cannot snapshot the same image concurrently and
// silently clobber each other — the analogue of [pkg/slotcache]'s
// writer-lock file, here guarding a single simulated device rather
// than a single cache writer.
type FileBackedMedium struct {
	*Medium

	mu       sync.Mutex
	path     string
	lockFile *os.File
}

// fileMagic tags snapshot files so Load can reject foreign files
// early instead of silently misinterpreting their bytes as a medium
// image.
const fileMagic = "NVMIMG01"

// OpenFileBacked acquires an exclusive advisory lock on path+".lock"
// and loads path into a new Medium of the given geometry. If path does
// not exist, the Medium starts as a freshly erased image; if it exists
// but has a bad magic or a size that does not match the geometry, the
// lock is released and an error is returned. Close must be called to
// release the lock.
func OpenFileBacked(path string, params Params, hooks Hooks) (*FileBackedMedium, error) {
	lockFile, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = lockFile.Close()
		return nil, fmt.Errorf("lock %s: %w: %w", path, ErrMediumBusy, err)
	}

	m := New(params, hooks)

	fbm := &FileBackedMedium{
		Medium:   m,
		path:     path,
		lockFile: lockFile,
	}

	if err := fbm.load(); err != nil && !os.IsNotExist(err) {
		_ = fbm.Close()
		return nil, err
	}

	return fbm, nil
}

func (f *FileBackedMedium) load() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}

	if len(raw) < len(fileMagic)+8 || string(raw[:len(fileMagic)]) != fileMagic {
		return fmt.Errorf("load %s: bad magic", f.path)
	}

	stored := int(binary.LittleEndian.Uint64(raw[len(fileMagic):]))
	body := raw[len(fileMagic)+8:]

	if stored != len(f.Medium.data) || len(body) != stored {
		return fmt.Errorf("load %s: size mismatch (file has %d bytes, medium wants %d)", f.path, len(body), len(f.Medium.data))
	}

	f.Medium.mu.Lock()
	copy(f.Medium.data, body)
	f.Medium.mu.Unlock()

	return nil
}

// Snapshot writes the current medium image to disk atomically (via a
// temp-file-then-rename, never a partially written image) so a later
// OpenFileBacked call can resume from it.
func (f *FileBackedMedium) Snapshot() error {
	f.Medium.mu.Lock()
	body := append([]byte{}, f.Medium.data...)
	f.Medium.mu.Unlock()

	buf := make([]byte, 0, len(fileMagic)+8+len(body))
	buf = append(buf, fileMagic...)

	var sizeField [8]byte
	binary.LittleEndian.PutUint64(sizeField[:], uint64(len(body)))
	buf = append(buf, sizeField[:]...)
	buf = append(buf, body...)

	if err := natefinchatomic.WriteFile(f.path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("snapshot %s: %w", f.path, err)
	}

	return nil
}

// Close releases the advisory lock. It does not snapshot; callers
// that want durability must call Snapshot explicitly.
func (f *FileBackedMedium) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lockFile == nil {
		return nil
	}

	_ = unix.Flock(int(f.lockFile.Fd()), unix.LOCK_UN)
	err := f.lockFile.Close()
	f.lockFile = nil

	return err
}
