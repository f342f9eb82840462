// Package medium simulates the byte-addressable, erase-before-write
// storage medium (nominally EEPROM) that the NvM core persists to.
//
// The contract is deliberately asymmetric: reads are unaligned and
// cheap, writes require page alignment and an already-erased target,
// and erases are block-granular and endurance-limited. This mirrors
// real flash/EEPROM and prevents callers from treating the medium as
// a flat, freely-overwritable byte array.
package medium

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors returned by medium operations.
var (
	// ErrOutOfRange indicates an access beyond the medium's capacity.
	ErrOutOfRange = errors.New("medium: out of range")
	// ErrPageUnaligned indicates a write address or length that does
	// not respect the page granularity.
	ErrPageUnaligned = errors.New("medium: write not page-aligned")
	// ErrBlockUnaligned indicates an erase address that is not
	// erase-block aligned.
	ErrBlockUnaligned = errors.New("medium: erase not block-aligned")
	// ErrNotErased indicates a write targeted bytes that are not all
	// 0xFF (the medium never implicitly erases on write).
	ErrNotErased = errors.New("medium: target not erased")
	// ErrEnduranceExhausted indicates an erase would push a block's
	// erase count past its configured endurance rating.
	ErrEnduranceExhausted = errors.New("medium: endurance exhausted")
	// ErrBlocked indicates a BeforeWrite hook vetoed the operation
	// (used to simulate a busy/blocked medium).
	ErrBlocked = errors.New("medium: write blocked by hook")
	// ErrPowerLoss indicates an AfterWrite hook simulated power loss.
	// The bytes have already been committed to the backing array —
	// this error communicates only that the operation should be
	// treated as failed by the caller, not that it can be undone.
	ErrPowerLoss = errors.New("medium: simulated power loss")
	// ErrMediumBusy indicates a FileBackedMedium's backing file is
	// already locked by another process.
	ErrMediumBusy = errors.New("medium: busy")
)

// Params describes the geometry and timing of a simulated medium.
// Defaults match a typical small automotive EEPROM part.
type Params struct {
	CapacityBytes      int           // total addressable bytes
	PageSize           int           // write program granularity
	EraseBlockSize     int           // erase granularity
	ReadDelayPerByte   time.Duration // simulated per-byte read latency
	WriteDelayPerPage  time.Duration // simulated per-page write latency
	EraseDelayPerBlock time.Duration // simulated per-block erase latency
	EnduranceCycles    uint32        // max erase cycles per erase block
}

// DefaultParams returns the reference geometry: 4 KiB capacity,
// 256-byte pages, 1024-byte erase blocks, ~50us/byte read, ~2ms/page
// write, ~3ms/block erase, 100K cycle endurance.
func DefaultParams() Params {
	return Params{
		CapacityBytes:      4096,
		PageSize:           256,
		EraseBlockSize:     1024,
		ReadDelayPerByte:   50 * time.Microsecond,
		WriteDelayPerPage:  2 * time.Millisecond,
		EraseDelayPerBlock: 3 * time.Millisecond,
		EnduranceCycles:    100_000,
	}
}

// Hooks is the fault-injection hook surface. All four hooks are
// advisory and called unconditionally by the medium; a nil hook is a
// no-op. They let tests and fault-injection harnesses simulate bit
// flips, blocked writes, and power loss without the core needing to
// know about it.
type Hooks struct {
	// BeforeRead is called before a read is serviced.
	BeforeRead func(address, length int)
	// AfterRead may mutate the bytes about to be returned to the
	// caller (for example, to inject a bit flip). The returned slice
	// replaces what Read returns; returning nil leaves the data
	// unchanged.
	AfterRead func(address int, data []byte) []byte
	// BeforeWrite may return an error to block the write entirely
	// (simulating write busy/contention). The write does not proceed
	// if this returns a non-nil error.
	BeforeWrite func(address int, data []byte) error
	// AfterWrite is called after the bytes have been committed to the
	// backing array. A non-nil return simulates a power loss during
	// the write: the caller sees failure, but the bytes are already
	// there (this is the desired semantic — it models a write that
	// completed physically but whose completion was never observed).
	AfterWrite func(address int, data []byte) error
}

// Diagnostics is an immutable snapshot of medium-wide counters.
type Diagnostics struct {
	ReadOps       uint64
	WriteOps      uint64
	EraseOps      uint64
	BytesRead     uint64
	BytesWritten  uint64
	MaxEraseCount uint32
}

// Medium is a simulated erase-before-write storage array.
//
// A Medium is safe for concurrent use: all operations are guarded by
// a single mutex, reflecting that in the reference deployment a
// single-threaded cooperative NvM core is the only caller of the
// medium's read/write/erase path (see the NvM core's scheduling
// model). The mutex exists to make concurrent misuse safe rather than
// to support genuinely parallel medium access.
type Medium struct {
	mu     sync.Mutex
	params Params
	hooks  Hooks
	data   []byte
	erases []uint32 // erase count per erase-block

	diag Diagnostics
}

// New creates a simulated medium of the given geometry, initialized
// to the erased state (all bytes 0xFF), with the given fault-injection
// hooks (zero value = no injection).
func New(params Params, hooks Hooks) *Medium {
	data := make([]byte, params.CapacityBytes)
	for i := range data {
		data[i] = 0xFF
	}

	return &Medium{
		params: params,
		hooks:  hooks,
		data:   data,
		erases: make([]uint32, numEraseBlocks(params)),
	}
}

func numEraseBlocks(p Params) int {
	if p.EraseBlockSize == 0 {
		return 0
	}
	return (p.CapacityBytes + p.EraseBlockSize - 1) / p.EraseBlockSize
}

// Params returns the medium's geometry.
func (m *Medium) Params() Params {
	return m.params
}

// Read returns length bytes starting at address. No alignment is
// required. Fails with ErrOutOfRange if address+length exceeds
// capacity.
func (m *Medium) Read(address, length int) ([]byte, error) {
	if m.hooks.BeforeRead != nil {
		m.hooks.BeforeRead(address, length)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if address < 0 || length < 0 || address+length > len(m.data) {
		return nil, fmt.Errorf("read [%d,%d): %w", address, address+length, ErrOutOfRange)
	}

	out := make([]byte, length)
	copy(out, m.data[address:address+length])

	m.diag.ReadOps++
	m.diag.BytesRead += uint64(length)

	if m.hooks.AfterRead != nil {
		if mutated := m.hooks.AfterRead(address, out); mutated != nil {
			out = mutated
		}
	}

	simulateDelay(time.Duration(length) * m.params.ReadDelayPerByte)

	return out, nil
}

// Write programs bytes at address. address must be page-aligned and
// len(bytes) must be a multiple of the page size. Every targeted byte
// must currently be 0xFF (erased) — Write never erases implicitly.
func (m *Medium) Write(address int, bytes []byte) error {
	if m.params.PageSize == 0 || address%m.params.PageSize != 0 || len(bytes)%m.params.PageSize != 0 {
		return fmt.Errorf("write at %d len %d: %w", address, len(bytes), ErrPageUnaligned)
	}

	if m.hooks.BeforeWrite != nil {
		if err := m.hooks.BeforeWrite(address, bytes); err != nil {
			return fmt.Errorf("write at %d: %w: %w", address, ErrBlocked, err)
		}
	}

	m.mu.Lock()

	if address < 0 || address+len(bytes) > len(m.data) {
		m.mu.Unlock()
		return fmt.Errorf("write [%d,%d): %w", address, address+len(bytes), ErrOutOfRange)
	}

	for i, b := range bytes {
		if m.data[address+i] != 0xFF {
			m.mu.Unlock()
			return fmt.Errorf("write at %d: byte %d not erased: %w", address, address+i, ErrNotErased)
		}
	}

	copy(m.data[address:], bytes)

	m.diag.WriteOps++
	m.diag.BytesWritten += uint64(len(bytes))

	m.mu.Unlock()

	pages := len(bytes) / m.params.PageSize
	simulateDelay(time.Duration(pages) * m.params.WriteDelayPerPage)

	if m.hooks.AfterWrite != nil {
		if err := m.hooks.AfterWrite(address, bytes); err != nil {
			return fmt.Errorf("write at %d: %w: %w", address, ErrPowerLoss, err)
		}
	}

	return nil
}

// Erase sets the erase block containing address to all-0xFF. address
// must be erase-block aligned. Fails with ErrEnduranceExhausted if the
// block's erase count would exceed the configured endurance.
func (m *Medium) Erase(address int) error {
	m.mu.Lock()

	if m.params.EraseBlockSize == 0 || address%m.params.EraseBlockSize != 0 {
		m.mu.Unlock()
		return fmt.Errorf("erase at %d: %w", address, ErrBlockUnaligned)
	}

	if address < 0 || address+m.params.EraseBlockSize > len(m.data) {
		m.mu.Unlock()
		return fmt.Errorf("erase [%d,%d): %w", address, address+m.params.EraseBlockSize, ErrOutOfRange)
	}

	blockIdx := address / m.params.EraseBlockSize

	if m.erases[blockIdx]+1 > m.params.EnduranceCycles {
		m.mu.Unlock()
		return fmt.Errorf("erase block %d: %w", blockIdx, ErrEnduranceExhausted)
	}

	for i := address; i < address+m.params.EraseBlockSize; i++ {
		m.data[i] = 0xFF
	}

	m.erases[blockIdx]++
	if m.erases[blockIdx] > m.diag.MaxEraseCount {
		m.diag.MaxEraseCount = m.erases[blockIdx]
	}
	m.diag.EraseOps++

	m.mu.Unlock()
	simulateDelay(m.params.EraseDelayPerBlock)

	return nil
}

// Diagnostics returns a snapshot of the medium's cumulative counters.
func (m *Medium) Diagnostics() Diagnostics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diag
}

// EraseCount returns the current erase cycle count of the erase block
// containing address. Used by tests asserting endurance behavior.
func (m *Medium) EraseCount(address int) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.erases[address/m.params.EraseBlockSize]
}

// simulateDelay is a hook point for virtual-time accounting. The
// reference deployment advances a virtual clock rather than sleeping
// the real OS thread; the demonstration programs in cmd/ may override
// this behavior via WithRealDelays. By default this is a no-op so
// that tests run at full speed.
var simulateDelay = func(time.Duration) {}

// WithRealDelays enables real time.Sleep-based delay simulation for
// the lifetime of the returned restore function. Intended for
// cmd/nvmdemo, not for unit tests.
func WithRealDelays() (restore func()) {
	prev := simulateDelay
	simulateDelay = func(d time.Duration) { time.Sleep(d) }
	return func() { simulateDelay = prev }
}
