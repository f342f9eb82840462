package block

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/calvinalkan/nvm/crc"
	"github.com/calvinalkan/nvm/layout"
	"github.com/calvinalkan/nvm/medium"
)

// maxVerifyBufferSize bounds the optional primary-readback verification
// in WriteRedundant to block sizes that fit comfortably in a
// stack-sized scratch buffer, per spec.md §4.4.2's "skipped if block
// larger than a stack-sized verify buffer" note.
const maxVerifyBufferSize = 256

// ErrNotDataset is returned by SetDataIndex against a non-Dataset
// block.
var ErrNotDataset = errors.New("block: not a dataset block")

// ErrIndexOutOfRange is returned by SetDataIndex when index >=
// dataset_count.
var ErrIndexOutOfRange = errors.New("block: dataset index out of range")

// Manager runs the read/write algorithms for all three block kinds
// against a single underlying medium.
type Manager struct {
	medium *medium.Medium
}

// NewManager returns a Manager bound to m.
func NewManager(m *medium.Medium) *Manager {
	return &Manager{medium: m}
}

// tryRead reads size bytes at offset and, if kind != crc.None, reads
// and validates the CRC trailer. It never mutates block state; that
// is the caller's job. Returns the payload and true on success, or
// nil and false on any read error or CRC mismatch.
func (m *Manager) tryRead(offset, size int, kind crc.Kind) ([]byte, bool) {
	data, err := m.medium.Read(offset, size)
	if err != nil {
		return nil, false
	}

	if kind == crc.None {
		return data, true
	}

	crcSize := kind.Size()
	trailer, err := m.medium.Read(offset+size, crcSize)
	if err != nil {
		return nil, false
	}

	stored := decodeCRC(kind, trailer)
	if stored != crc.Compute(kind, data) {
		return nil, false
	}

	return data, true
}

// writeWithCrc erases the containing erase block (mandatory — any
// previous contents would block the page write), writes the data
// pages, then writes a full page at the CRC trailer offset, the
// payload followed by 0xFF padding, per spec.md §4.3's policy that
// the medium forbids sub-page writes.
func (m *Manager) writeWithCrc(offset int, data []byte, kind crc.Kind) error {
	params := m.medium.Params()

	eraseBase := offset - (offset % params.EraseBlockSize)
	if err := m.medium.Erase(eraseBase); err != nil {
		return fmt.Errorf("write slot at %#x: erase: %w", offset, err)
	}

	dataPages := padToPageSize(data, params.PageSize)
	if err := m.medium.Write(offset, dataPages); err != nil {
		return fmt.Errorf("write slot at %#x: data: %w", offset, err)
	}

	if kind == crc.None {
		return nil
	}

	crcOffset := offset + len(data)
	crcValue := crc.Compute(kind, data)

	trailerPage := make([]byte, params.PageSize)
	for i := range trailerPage {
		trailerPage[i] = 0xFF
	}
	encodeCRC(kind, crcValue, trailerPage)

	if err := m.medium.Write(crcOffset, trailerPage); err != nil {
		return fmt.Errorf("write slot at %#x: crc trailer: %w", offset, err)
	}

	return nil
}

// padToPageSize right-pads data with 0xFF up to the next page
// boundary, leaving data untouched if it is already page-sized.
func padToPageSize(data []byte, pageSize int) []byte {
	if pageSize == 0 || len(data)%pageSize == 0 {
		return data
	}

	padded := make([]byte, ((len(data)/pageSize)+1)*pageSize)
	for i := range padded {
		padded[i] = 0xFF
	}
	copy(padded, data)

	return padded
}

func decodeCRC(kind crc.Kind, trailer []byte) uint32 {
	switch kind {
	case crc.Crc8:
		return uint32(trailer[0])
	case crc.Crc16:
		return uint32(binary.LittleEndian.Uint16(trailer))
	case crc.Crc32:
		return binary.LittleEndian.Uint32(trailer)
	default:
		return 0
	}
}

func encodeCRC(kind crc.Kind, value uint32, out []byte) {
	switch kind {
	case crc.Crc8:
		out[0] = byte(value)
	case crc.Crc16:
		binary.LittleEndian.PutUint16(out, uint16(value))
	case crc.Crc32:
		binary.LittleEndian.PutUint32(out, value)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// romFallback copies the lesser of len(rom) and len(mirror) bytes
// from the ROM default into the RAM mirror, per spec.md §4.4.1's
// copy-length clamp.
func romFallback(rom, mirror []byte) {
	copy(mirror, rom)
}

// ReadNative implements the Native read path (spec.md §4.4.1).
func (m *Manager) ReadNative(b *Block, mirror []byte) error {
	cfg := b.Config

	data, ok := m.tryRead(cfg.PrimaryOffset, cfg.BlockSize, cfg.CRCKind)
	if ok {
		copy(mirror, data)
		b.State = Valid
		return nil
	}

	if cfg.ROMDefault != nil {
		romFallback(cfg.ROMDefault, mirror)
		b.State = Invalid
		return fmt.Errorf("block#%d: primary unreadable, rom fallback applied", cfg.BlockID)
	}

	b.State = Invalid
	return fmt.Errorf("block#%d: primary unreadable, no rom default", cfg.BlockID)
}

// WriteNative implements the Native write path (spec.md §4.4.1).
func (m *Manager) WriteNative(b *Block, mirror []byte) error {
	cfg := b.Config

	if err := m.writeWithCrc(cfg.PrimaryOffset, mirror, cfg.CRCKind); err != nil {
		b.State = Invalid
		return fmt.Errorf("block#%d: %w", cfg.BlockID, err)
	}

	b.State = Valid
	b.ErasedCount++

	return nil
}

// ReadRedundant implements the Redundant read path (spec.md §4.4.2):
// try primary, then backup, then ROM default.
func (m *Manager) ReadRedundant(b *Block, mirror []byte) error {
	cfg := b.Config

	if data, ok := m.tryRead(cfg.PrimaryOffset, cfg.BlockSize, cfg.CRCKind); ok {
		copy(mirror, data)
		b.State = Valid
		return nil
	}

	if data, ok := m.tryRead(cfg.BackupOffset, cfg.BlockSize, cfg.CRCKind); ok {
		copy(mirror, data)
		b.State = Recovered
		return nil
	}

	if cfg.ROMDefault != nil {
		romFallback(cfg.ROMDefault, mirror)
		b.State = Invalid
		return fmt.Errorf("block#%d: primary and backup unreadable, rom fallback applied", cfg.BlockID)
	}

	b.State = Invalid
	return fmt.Errorf("block#%d: primary and backup unreadable, no rom default", cfg.BlockID)
}

// WriteRedundant implements the Redundant write path (spec.md
// §4.4.2). Primary is written first; if it fails the whole write
// fails without attempting the backup (the old primary content is
// already destroyed by the preceding erase — this is a known,
// intentionally preserved limitation; see the Redundant-write-with-
// primary-failure Open Question in spec.md §9). On primary success,
// backup failure is warned but not fatal, since the primary copy
// remains usable.
func (m *Manager) WriteRedundant(b *Block, mirror []byte) error {
	cfg := b.Config

	if err := m.writeWithCrc(cfg.PrimaryOffset, mirror, cfg.CRCKind); err != nil {
		b.State = Invalid
		return fmt.Errorf("block#%d: primary write failed: %w", cfg.BlockID, err)
	}

	b.ErasedCount++

	// Precaution: verify the primary slot round-trips before trusting
	// it. This does not fail the write — it only affects whether we
	// report a backup-side warning alongside a genuine primary
	// integrity problem a caller should know about.
	var backupWarning error
	if cfg.BlockSize <= maxVerifyBufferSize {
		if readBack, ok := m.tryRead(cfg.PrimaryOffset, cfg.BlockSize, cfg.CRCKind); !ok || !bytesEqual(readBack, mirror) {
			backupWarning = fmt.Errorf("block#%d: primary verify-readback mismatch", cfg.BlockID)
		}
	}

	if err := m.writeWithCrc(cfg.BackupOffset, mirror, cfg.CRCKind); err != nil {
		backupWarning = errors.Join(backupWarning, fmt.Errorf("block#%d: backup write failed (primary remains usable): %w", cfg.BlockID, err))
	}

	if cfg.VersionCtrlOffset != NoVersionCtrlOffset {
		if err := m.bumpVersionStamp(cfg); err != nil {
			backupWarning = errors.Join(backupWarning, fmt.Errorf("block#%d: version stamp: %w", cfg.BlockID, err))
		}
	}

	b.State = Valid

	return backupWarning
}

// bumpVersionStamp reads the current version-stamp byte and writes an
// incremented value as a single-byte payload inside a full, 0xFF-padded
// page. A never-written byte reads as erased 0xFF, so the first stamp
// written wraps to 0x00.
func (m *Manager) bumpVersionStamp(cfg Config) error {
	params := m.medium.Params()

	current, ok := m.tryRead(cfg.VersionCtrlOffset, 1, crc.None)
	var next byte
	if ok {
		next = current[0] + 1
	}

	eraseBase := cfg.VersionCtrlOffset - (cfg.VersionCtrlOffset % params.EraseBlockSize)
	if err := m.medium.Erase(eraseBase); err != nil {
		return err
	}

	page := make([]byte, params.PageSize)
	for i := range page {
		page[i] = 0xFF
	}
	page[0] = next

	return m.medium.Write(cfg.VersionCtrlOffset, page)
}

// ReadDataset implements the Dataset read path (spec.md §4.4.3):
// starting at ActiveDatasetIndex, try successive versions, walking
// backward in write order (active, then the version written just
// before it, and so on) until one succeeds or all are exhausted. This
// visits slots in strict most-recent-first order: since WriteDataset
// always advances the active index forward by one slot, the version
// written immediately before the current active one is always at
// (active-1) mod dataset_count, not (active+1) mod dataset_count.
func (m *Manager) ReadDataset(b *Block, mirror []byte) error {
	cfg := b.Config

	for i := range cfg.DatasetCount {
		idx := ((b.ActiveDatasetIndex-i)%cfg.DatasetCount + cfg.DatasetCount) % cfg.DatasetCount
		offset := layout.DatasetVersionOffset(cfg.PrimaryOffset, idx)

		data, ok := m.tryRead(offset, cfg.BlockSize, cfg.CRCKind)
		if !ok {
			continue
		}

		copy(mirror, data)

		if i == 0 {
			b.State = Valid
		} else {
			b.State = Recovered
			b.ActiveDatasetIndex = idx
		}

		return nil
	}

	if cfg.ROMDefault != nil {
		romFallback(cfg.ROMDefault, mirror)
		b.State = Invalid
		return fmt.Errorf("block#%d: all %d dataset versions unreadable, rom fallback applied", cfg.BlockID, cfg.DatasetCount)
	}

	b.State = Invalid
	return fmt.Errorf("block#%d: all %d dataset versions unreadable, no rom default", cfg.BlockID, cfg.DatasetCount)
}

// WriteDataset implements the Dataset write path (spec.md §4.4.3):
// round-robin to the next version slot, spreading wear across
// dataset_count physical slots and preserving dataset_count-1 older
// versions for rollback.
func (m *Manager) WriteDataset(b *Block, mirror []byte) error {
	cfg := b.Config

	next := (b.ActiveDatasetIndex + 1) % cfg.DatasetCount
	offset := layout.DatasetVersionOffset(cfg.PrimaryOffset, next)

	if err := m.writeWithCrc(offset, mirror, cfg.CRCKind); err != nil {
		b.State = Invalid
		return fmt.Errorf("block#%d: %w", cfg.BlockID, err)
	}

	b.ActiveDatasetIndex = next
	b.State = Valid
	b.ErasedCount++

	return nil
}

// SetDataIndex manually retargets a Dataset block's active version,
// per spec.md §4.4.3. It performs no I/O: success is purely a
// metadata mutation.
func SetDataIndex(b *Block, index int) error {
	if b.Config.Kind != Dataset {
		return fmt.Errorf("block#%d: %w", b.Config.BlockID, ErrNotDataset)
	}

	if index < 0 || index >= b.Config.DatasetCount {
		return fmt.Errorf("block#%d: index=%d count=%d: %w", b.Config.BlockID, index, b.Config.DatasetCount, ErrIndexOutOfRange)
	}

	b.ActiveDatasetIndex = index

	return nil
}
