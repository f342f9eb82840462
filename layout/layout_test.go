package layout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/nvm/crc"
)

const (
	testPageSize = 256
	testCapacity = 4096
)

func TestNativeLayout(t *testing.T) {
	l, err := Native(0, 256, crc.Crc16, testPageSize, testCapacity)
	require.NoError(t, err)
	require.Equal(t, 0, l.DataOffset)
	require.Equal(t, 256, l.DataSize)
	require.Equal(t, 256, l.CRCOffset)
	require.Equal(t, 2, l.CRCSize)
	require.Equal(t, SlotSize, l.SlotSize)
	require.Equal(t, SlotSize-256-2, l.Reserved)
}

func TestLargestLegalBlockSize(t *testing.T) {
	// The CRC trailer must start on a page boundary, so the largest
	// Crc16 payload leaves exactly the slot's last page for the trailer.
	_, err := Native(0, SlotSize-testPageSize, crc.Crc16, testPageSize, testCapacity)
	require.NoError(t, err)
}

func TestBlockSizeZeroRejected(t *testing.T) {
	_, err := Native(0, 0, crc.Crc16, testPageSize, testCapacity)
	require.ErrorIs(t, err, ErrBlockSizeZero)
}

func TestNonSlotAlignedOffsetRejected(t *testing.T) {
	_, err := Native(100, 256, crc.Crc16, testPageSize, testCapacity)
	require.ErrorIs(t, err, ErrNotSlotAligned)
}

func TestDataPlusCRCExceedsSlotRejected(t *testing.T) {
	_, err := Native(0, SlotSize-1, crc.Crc16, testPageSize, testCapacity)
	require.ErrorIs(t, err, ErrSlotOverflow)
}

func TestTrailerMustBePageAligned(t *testing.T) {
	// block_size=200 -> crc_offset=200, not a multiple of pageSize=256.
	_, err := Native(0, 200, crc.Crc16, testPageSize, testCapacity)
	require.ErrorIs(t, err, ErrTrailerUnaligned)
}

func TestTrailerAlignmentIgnoredForCrcNone(t *testing.T) {
	_, err := Native(0, 200, crc.None, testPageSize, testCapacity)
	require.NoError(t, err)
}

func TestRedundantRejectsOverlappingBackup(t *testing.T) {
	// Both offsets must be slot-aligned, so an overlapping backup is one
	// that shares the primary's slot.
	_, _, err := Redundant(0, 0, 256, crc.Crc16, testPageSize, testCapacity)
	require.ErrorIs(t, err, ErrBackupOverlap)
}

func TestRedundantAcceptsNonOverlappingBackup(t *testing.T) {
	primary, backup, err := Redundant(0, SlotSize, 256, crc.Crc16, testPageSize, testCapacity)
	require.NoError(t, err)
	require.Equal(t, 0, primary.DataOffset)
	require.Equal(t, SlotSize, backup.DataOffset)
}

func TestDatasetCountBoundaries(t *testing.T) {
	for _, n := range []int{0, 1, 5, 6} {
		_, err := Dataset(0, 256, n, crc.Crc16, testPageSize, testCapacity)
		require.ErrorIsf(t, err, ErrDatasetCount, "count=%d", n)
	}

	for _, n := range []int{2, 3, 4} {
		_, err := Dataset(0, 256, n, crc.Crc16, testPageSize, MaxDatasetRegion)
		require.NoErrorf(t, err, "count=%d", n)
	}
}

func TestDatasetVersionOffsets(t *testing.T) {
	require.Equal(t, 0, DatasetVersionOffset(0, 0))
	require.Equal(t, SlotSize, DatasetVersionOffset(0, 1))
	require.Equal(t, 2*SlotSize, DatasetVersionOffset(0, 2))
}

func TestOutOfCapacityRejected(t *testing.T) {
	_, err := Native(SlotSize*4, 256, crc.Crc16, testPageSize, testCapacity)
	require.ErrorIs(t, err, ErrOutOfCapacity)
}
