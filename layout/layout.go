// Package layout computes and validates the on-medium placement of a
// block: where its payload sits, where its CRC trailer sits, and how
// many slots a Dataset block's versions occupy.
package layout

import (
	"errors"
	"fmt"

	"github.com/calvinalkan/nvm/crc"
)

// SlotSize is the fixed redundancy-unit size: every block copy
// (primary, backup, or a dataset version) occupies one 1024-byte slot.
const SlotSize = 1024

// MaxDatasetRegion bounds the total footprint of a Dataset block's
// versions to a dedicated 4 KiB region.
const MaxDatasetRegion = 4096

// Sentinel validation errors, all satisfying errors.Is against
// ErrInvalid for callers that only care whether registration should
// be rejected.
var (
	ErrInvalid          = errors.New("layout: invalid")
	ErrNotSlotAligned   = fmt.Errorf("%w: offset not slot-aligned", ErrInvalid)
	ErrSlotOverflow     = fmt.Errorf("%w: data+crc exceeds slot size", ErrInvalid)
	ErrTrailerUnaligned = fmt.Errorf("%w: CRC trailer not page-aligned", ErrInvalid)
	ErrBackupOverlap    = fmt.Errorf("%w: backup slot overlaps primary slot", ErrInvalid)
	ErrDatasetCount     = fmt.Errorf("%w: dataset_count out of range", ErrInvalid)
	ErrDatasetOverflow  = fmt.Errorf("%w: dataset footprint exceeds reserved region", ErrInvalid)
	ErrBlockSizeZero    = fmt.Errorf("%w: block_size is zero", ErrInvalid)
	ErrOutOfCapacity    = fmt.Errorf("%w: slot exceeds medium capacity", ErrInvalid)
)

// Layout is the resolved, validated placement for one block copy.
type Layout struct {
	DataOffset int
	DataSize   int
	CRCOffset  int
	CRCSize    int
	SlotSize   int
	// Reserved is the unused tail of the slot after data+crc, per
	// the Open Question in spec.md §9: reserved_size = slot_size -
	// data_size - crc_size.
	Reserved int
}

// Native computes and validates the layout for a single-copy block.
func Native(primaryOffset, blockSize int, kind crc.Kind, pageSize, capacity int) (Layout, error) {
	return oneSlot(primaryOffset, blockSize, kind, pageSize, capacity)
}

// Redundant computes and validates the layout for both copies of a
// two-copy block. It returns the primary layout; the backup occupies
// an identical shape at backupOffset. Fails if the backup slot
// overlaps the primary slot.
func Redundant(primaryOffset, backupOffset, blockSize int, kind crc.Kind, pageSize, capacity int) (primary, backup Layout, err error) {
	primary, err = oneSlot(primaryOffset, blockSize, kind, pageSize, capacity)
	if err != nil {
		return Layout{}, Layout{}, err
	}

	backup, err = oneSlot(backupOffset, blockSize, kind, pageSize, capacity)
	if err != nil {
		return Layout{}, Layout{}, err
	}

	if rangesOverlap(primaryOffset, SlotSize, backupOffset, SlotSize) {
		return Layout{}, Layout{}, fmt.Errorf("primary %#x backup %#x: %w", primaryOffset, backupOffset, ErrBackupOverlap)
	}

	return primary, backup, nil
}

// DatasetVersionOffset returns the byte offset of the i-th version
// slot of a Dataset block (i in [0, datasetCount)).
func DatasetVersionOffset(primaryOffset, i int) int {
	return primaryOffset + i*SlotSize
}

// Dataset computes and validates the layout shared by all
// datasetCount version slots of a Dataset block (each version has
// the same data/crc shape; only the base offset differs).
func Dataset(primaryOffset, blockSize, datasetCount int, kind crc.Kind, pageSize, capacity int) (Layout, error) {
	if datasetCount < 2 || datasetCount > 4 {
		return Layout{}, fmt.Errorf("dataset_count=%d: %w", datasetCount, ErrDatasetCount)
	}

	footprint := datasetCount * SlotSize
	if footprint > MaxDatasetRegion {
		return Layout{}, fmt.Errorf("footprint=%d: %w", footprint, ErrDatasetOverflow)
	}

	last := DatasetVersionOffset(primaryOffset, datasetCount-1)
	return oneSlot(last, blockSize, kind, pageSize, capacity)
}

// oneSlot validates and computes the layout of a single slot at
// offset, shared by Native, Redundant, and each Dataset version.
func oneSlot(offset, blockSize int, kind crc.Kind, pageSize, capacity int) (Layout, error) {
	if blockSize <= 0 {
		return Layout{}, ErrBlockSizeZero
	}

	if offset%SlotSize != 0 {
		return Layout{}, fmt.Errorf("offset=%#x: %w", offset, ErrNotSlotAligned)
	}

	crcSize := kind.Size()

	if blockSize+crcSize > SlotSize {
		return Layout{}, fmt.Errorf("block_size=%d crc_size=%d: %w", blockSize, crcSize, ErrSlotOverflow)
	}

	if offset+SlotSize > capacity {
		return Layout{}, fmt.Errorf("offset=%#x slot_size=%d capacity=%d: %w", offset, SlotSize, capacity, ErrOutOfCapacity)
	}

	crcOffset := offset + blockSize

	// Policy requirement (spec.md §4.3): the CRC trailer is written as
	// a full-page payload padded with 0xFF, because the medium
	// rejects sub-page writes. Consequently the trailer's start must
	// itself be page-aligned, or the layout is rejected outright.
	if crcSize > 0 && pageSize > 0 && crcOffset%pageSize != 0 {
		return Layout{}, fmt.Errorf("crc_offset=%#x page_size=%d: %w", crcOffset, pageSize, ErrTrailerUnaligned)
	}

	reserved := SlotSize - blockSize - crcSize

	return Layout{
		DataOffset: offset,
		DataSize:   blockSize,
		CRCOffset:  crcOffset,
		CRCSize:    crcSize,
		SlotSize:   SlotSize,
		Reserved:   reserved,
	}, nil
}

func rangesOverlap(aStart, aLen, bStart, bLen int) bool {
	aEnd := aStart + aLen
	bEnd := bStart + bLen
	return aStart < bEnd && bStart < aEnd
}
